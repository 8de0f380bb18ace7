package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/edmilsonConstantino/BACK-ISAC/internal/auth"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/config"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/db"
	internalhttp "github.com/edmilsonConstantino/BACK-ISAC/internal/http"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/repository"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/service"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := repository.NewStore(pool)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	svc := service.New(cfg, store, issuer, log)
	server := internalhttp.NewServer(cfg, svc, issuer, log)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("auth server listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "err", err)
	}
}

// newLogger returns a text logger at debug level in development and a JSON
// logger at info level otherwise.
func newLogger(cfg config.Config) *slog.Logger {
	if cfg.Development() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
