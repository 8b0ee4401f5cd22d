// Command clusterd runs C6: the periodic tick driver that groups
// unprocessed killmail events into battles and writes the battle graph.
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

	"battlescope/internal/battle"
	"battlescope/internal/killmail"
	"battlescope/pkg/app"
	"battlescope/pkg/config"
	"battlescope/pkg/handlers"
)

func main() {
	appCtx, err := app.InitializeApp("clusterd")
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer appCtx.Shutdown(context.Background())

	if appCtx.Postgres == nil {
		log.Fatal("clusterd: requires Postgres")
	}

	killmails := killmail.NewStore(appCtx.Postgres.Pool)
	battleStore := battle.NewStore(appCtx.Postgres.Pool, killmails)

	params := battle.DefaultParams()
	params.WindowMinutes = config.GetIntEnv("BATTLE_WINDOW_MINUTES", params.WindowMinutes)
	params.GapMaxMinutes = config.GetIntEnv("BATTLE_GAP_MAX_MINUTES", params.GapMaxMinutes)
	params.MinKills = config.GetIntEnv("BATTLE_MIN_KILLS", params.MinKills)
	params.ProcessingDelayMinutes = config.GetIntEnv("BATTLE_PROCESSING_DELAY_MINUTES", params.ProcessingDelayMinutes)
	params.BatchSize = config.GetIntEnv("BATTLE_BATCH_SIZE", params.BatchSize)

	engine := battle.NewEngine(params, killmails, battleStore, appCtx.Classifier)
	go engine.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.HealthHandler("clusterd"))
	srv := &http.Server{
		Addr:         ":" + app.GetPort("8083"),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("clusterd: starting health server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("clusterd: health server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("clusterd: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("clusterd: health server forced shutdown", "error", err)
	}
}
