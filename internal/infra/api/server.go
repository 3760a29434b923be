package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"psychic-credits/internal/infra/logging"
	"psychic-credits/internal/usecase"
)

// Limiter is a fixed-window counter; Allow reports whether key is still under limit.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Pinger is anything /health should check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Dev             bool
	RequestTimeout  time.Duration
	TopupsPerMinute int
	WebhookPath     string
	ReturnPath      string
}

type Server struct {
	payments usecase.PaymentUseCase
	wallets  usecase.WalletUseCase
	auth     *Authenticator
	limiter  Limiter // optional
	health   map[string]Pinger
	opts     Options
	log      *zerolog.Logger
}

func NewServer(
	payments usecase.PaymentUseCase,
	wallets usecase.WalletUseCase,
	auth *Authenticator,
	limiter Limiter,
	health map[string]Pinger,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 20 * time.Second
	}
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/payments/webhook"
	}
	if opts.ReturnPath == "" {
		opts.ReturnPath = "/payments/return"
	}
	l := logging.OrNop(logger).With().Str("component", "api").Logger()
	return &Server{
		payments: payments,
		wallets:  wallets,
		auth:     auth,
		limiter:  limiter,
		health:   health,
		opts:     opts,
		log:      &l,
	}
}

// Router builds the full HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.opts.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// called by the gateway and by the customer's browser; no bearer token
	r.Post(s.opts.WebhookPath, s.handleWebhook)
	r.Get(s.opts.ReturnPath, s.handleReturn)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireUser)

		r.Post("/payments/topup", s.handleTopup)
		r.Get("/payments/status/{paymentId}", s.handleStatus)

		r.Get("/wallet/balance", s.handleBalance)
		r.Get("/wallet/transactions", s.handleTransactions)
		r.Post("/wallet/deduct", s.handleDeduct)
		r.With(RequireAdmin("add_credits")).Post("/wallet/add-credits", s.handleAddCredits)

		r.Route("/admin/transactions", func(r chi.Router) {
			r.With(RequireAdmin("list_payments")).Get("/", s.handleAdminList)
			r.With(RequireAdmin("get_payment")).Get("/{id}", s.handleAdminGet)
			r.With(RequireAdmin("delete_payment")).Delete("/{id}", s.handleAdminDelete)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.health))
	ok := true
	for name, p := range s.health {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down"
			ok = false
			logging.With(r.Context(), s.log).Warn().Err(err).Str("check", name).Msg("health check failed")
			continue
		}
		checks[name] = "up"
	}
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"success": ok, "checks": checks})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, _ := statusFor(err, s.opts.Dev)
	if code >= 500 {
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, r, err, s.opts.Dev)
}
