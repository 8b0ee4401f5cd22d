// Command ingestd runs C4: the long-poll puller that pulls killmail
// references off the upstream firehose, filters them against the current
// ruleset, persists admitted events, and enqueues them for enrichment.
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
	"battlescope/internal/ingestion"
	"battlescope/internal/killmail"
	"battlescope/internal/ruleset"
	"battlescope/internal/stream"
	"battlescope/pkg/app"
	"battlescope/pkg/config"
	"battlescope/pkg/handlers"
)

func main() {
	appCtx, err := app.InitializeApp("ingestd")
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer appCtx.Shutdown(context.Background())

	if appCtx.Postgres == nil || appCtx.Redis == nil {
		log.Fatal("ingestd: requires both Postgres and Redis")
	}

	killmails := killmail.NewStore(appCtx.Postgres.Pool)
	rulesetStore := ruleset.NewStore(appCtx.Postgres.Pool)
	if err := rulesetStore.EnsureSeeded(ctx); err != nil {
		log.Fatalf("ingestd: failed to seed ruleset: %v", err)
	}
	rulesetCache := ruleset.NewCache(rulesetStore, appCtx.Redis.Client)
	go rulesetCache.Subscribe(ctx)

	queue := enrichment.NewQueue(appCtx.Redis.Client)

	loop := ingestion.NewLoop(ingestion.Config{
		UserAgent:     config.GetEnv("FIREHOSE_USER_AGENT", "battlescope/1.0"),
		PollInterval:  time.Duration(config.GetIntEnv("FIREHOSE_POLL_SECONDS", 5)) * time.Second,
		TTWMin:        config.GetIntEnv("FIREHOSE_TTW_MIN", 1),
		TTWMax:        config.GetIntEnv("FIREHOSE_TTW_MAX", 10),
		NullThreshold: config.GetIntEnv("FIREHOSE_NULL_THRESHOLD", 5),
		HTTPTimeout:   30 * time.Second,
	}, killmails, rulesetCache, appCtx.Classifier, queue)
	loop.WithNotifier(stream.NewPublisher(appCtx.Redis.Client))

	go loop.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.HealthHandler("ingestd"))
	srv := &http.Server{
		Addr:         ":" + app.GetPort("8081"),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("ingestd: starting health server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ingestd: health server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("ingestd: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("ingestd: health server forced shutdown", "error", err)
	}
}
