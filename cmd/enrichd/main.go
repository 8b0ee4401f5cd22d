// Command enrichd runs C5: the worker pool that resolves each admitted
// killmail's participant identifiers against the external identity API and
// writes the resulting EnrichmentRecord state transition.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"battlescope/internal/enrichment"
	"battlescope/internal/identity"
	"battlescope/internal/killmail"
	"battlescope/pkg/app"
	"battlescope/pkg/config"
	"battlescope/pkg/handlers"
)

func main() {
	appCtx, err := app.InitializeApp("enrichd")
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer appCtx.Shutdown(context.Background())

	if appCtx.Postgres == nil || appCtx.Redis == nil {
		log.Fatal("enrichd: requires both Postgres and Redis")
	}

	killmails := killmail.NewStore(appCtx.Postgres.Pool)
	enrichmentStore := enrichment.NewStore(appCtx.Postgres.Pool)
	queue := enrichment.NewQueue(appCtx.Redis.Client)

	tokens := identity.NewTokenPool(identity.NewStaticTokenSource(config.GetEnv("IDENTITY_API_TOKENS", "")))
	limiter := identity.NewRateLimiter(appCtx.Redis.Client,
		config.GetIntEnv("IDENTITY_RATE_LIMIT", 100),
		time.Duration(config.GetIntEnv("IDENTITY_RATE_WINDOW_SECONDS", 60))*time.Second)
	errorBudget := identity.NewErrorBudget(appCtx.Redis.Client)

	idClient := identity.NewClient(identity.Config{
		BaseURL:         config.MustGetEnv("IDENTITY_API_BASE_URL"),
		TimeoutMS:       config.GetIntEnv("IDENTITY_API_TIMEOUT_MS", 10_000),
		CacheTTLSeconds: config.GetIntEnv("IDENTITY_CACHE_TTL_SECONDS", 3600),
		UserAgent:       config.GetEnv("IDENTITY_USER_AGENT", "battlescope/1.0"),
	}, appCtx.Redis, limiter, errorBudget, tokens)

	pool := enrichment.NewPool(config.GetIntEnv("ENRICHMENT_WORKERS", 4), queue, enrichmentStore, killmails, idClient)
	go pool.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.HealthHandler("enrichd"))
	srv := &http.Server{
		Addr:         ":" + app.GetPort("8082"),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("enrichd: starting health server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("enrichd: health server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("enrichd: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("enrichd: health server forced shutdown", "error", err)
	}
}
