package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"psychic-credits/internal/config"
	"psychic-credits/internal/infra/api"
	pg "psychic-credits/internal/infra/db/postgres"
	"psychic-credits/internal/infra/logging"
	"psychic-credits/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	schemaPath := flag.String("schema", "deploy/postgres/init.sql", "schema script applied before seeding")
	users := flag.String("users", "demo-alice,demo-bob", "comma separated user ids to seed")
	credits := flag.Int64("credits", 100, "credits each demo wallet should hold at least")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed bearer tokens")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read schema")
	}
	if err := pg.ApplySchema(ctx, pool, string(schema)); err != nil {
		logger.Fatal().Err(err).Msg("schema")
	}

	walletUC := usecase.NewWalletUseCase(pg.NewWalletRepo(pool), pg.NewTxManager(pool), nil, cfg.Wallet.SignupBonus, logger)
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.AdminAPIKey)

	for _, id := range strings.Split(*users, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		w, err := walletUC.Balance(ctx, id)
		if err != nil {
			logger.Fatal().Err(err).Str("user_id", id).Msg("wallet")
		}
		if missing := *credits - w.Credits; missing > 0 {
			if w, err = walletUC.Credit(ctx, id, missing, "seed"); err != nil {
				logger.Fatal().Err(err).Str("user_id", id).Msg("credit")
			}
		}
		tok, err := auth.Issue(usecase.Actor{UserID: id, Email: id + "@example.com", Name: id}, *tokenTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("issue token")
		}
		fmt.Printf("%s: credits=%d\n  token: %s\n", id, w.Credits, tok)
	}

	adminTok, err := auth.Issue(usecase.Actor{UserID: "seed-admin", Admin: true}, *tokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("issue admin token")
	}
	fmt.Printf("admin token: %s\n", adminTok)
	fmt.Println("Seeding complete.")
}
