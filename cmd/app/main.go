// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"psychic-credits/internal/config"
	"psychic-credits/internal/domain/ports/adapter"
	"psychic-credits/internal/infra/adapters/email"
	payAdapters "psychic-credits/internal/infra/adapters/payment"
	"psychic-credits/internal/infra/api"
	pg "psychic-credits/internal/infra/db/postgres"
	"psychic-credits/internal/infra/logging"
	"psychic-credits/internal/infra/metrics"
	red "psychic-credits/internal/infra/redis"
	"psychic-credits/internal/infra/sched"
	"psychic-credits/internal/infra/tracing"
	"psychic-credits/internal/infra/worker"
	"psychic-credits/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, in-memory gateway allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	// ---- Metrics & tracing ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Payment.Provider)

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, version, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	tm := pg.NewTxManager(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	walletRepo := pg.NewWalletRepo(pool)

	health := map[string]api.Pinger{"postgres": pool}

	// ---- Redis (optional: locks, balance push, rate limits) ----
	var (
		locker  adapter.Locker
		balance adapter.BalanceNotifier
		limiter api.Limiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		balance = red.NewBalancePublisher(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		health["redis"] = redisClient
	} else {
		logger.Warn().Msg("redis.url not set; running without locks, balance push or rate limits")
	}

	// ---- Mail ----
	var mailer adapter.ReceiptMailer
	if cfg.Mail.Enabled {
		m, err := email.NewSMTPMailer(cfg.Mail)
		if err != nil {
			return fmt.Errorf("mail: %w", err)
		}
		mailer = m
	}

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	switch cfg.Payment.Provider {
	case "noop":
		logger.Warn().Msg("using in-memory payment gateway")
		gateway = payAdapters.NewNoopPaymentGateway()
	default:
		mc := cfg.Payment.Mollie
		g, err := payAdapters.NewMollieGateway(mc.APIKey, mc.BaseURL, mc.Timeout)
		if err != nil {
			return fmt.Errorf("mollie gateway: %w", err)
		}
		gateway = g
	}

	// ---- Post-commit side effects ----
	workers := worker.NewPool(cfg.Worker.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()
	events := usecase.NewEventPublisher(workers, balance, mailer, logger)

	// ---- Use cases ----
	walletUC := usecase.NewWalletUseCase(walletRepo, tm, events, cfg.Wallet.SignupBonus, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, walletRepo, gateway, locker, tm, events, usecase.PaymentConfig{
		Currency:      cfg.Payment.Mollie.Currency,
		DefaultMethod: cfg.Payment.Mollie.DefaultMethod,
		RedirectURL:   cfg.RedirectURL(),
		WebhookURL:    cfg.WebhookURL(),
		LockTTL:       cfg.Redis.LockTTL,
	}, logger)

	// ---- Background reconciler ----
	reconciler := sched.NewPaymentReconciler(paymentUC, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.Batch, logger)
	go func() { _ = reconciler.Run(ctx) }()

	go observePool(ctx, pool)

	// ---- HTTP ----
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.AdminAPIKey)
	apiServer := api.NewServer(paymentUC, walletUC, auth, limiter, health, api.Options{
		Dev:             cfg.Runtime.Dev,
		RequestTimeout:  cfg.Server.RequestTimeout,
		TopupsPerMinute: cfg.RateLimit.TopupsPerMinute,
		WebhookPath:     cfg.Payment.Mollie.WebhookPath,
		ReturnPath:      cfg.Payment.Mollie.RedirectPath,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("webhook", cfg.WebhookURL()).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}
	sctx, scancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer scancel()
	if err := server.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}

// observePool exports pool saturation every 15s until ctx ends.
func observePool(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		metrics.ObserveDBPool(pool.Stat())
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
