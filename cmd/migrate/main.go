package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	"battlescope/pkg/app"
	pkgMigrations "battlescope/pkg/migrations"

	localMigrations "battlescope/migrations"
)

func main() {
	command := flag.String("command", "up", "Migration command: up, status")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	appCtx, err := app.InitializeApp("migrate")
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer appCtx.Shutdown(ctx)

	if appCtx.Postgres == nil {
		log.Fatal("migrate: no Postgres connection available")
	}

	runner := pkgMigrations.NewRunner(appCtx.Postgres.Pool)
	if err := runner.LoadFS(localMigrations.Files); err != nil {
		log.Fatalf("failed to load migrations: %v", err)
	}

	switch *command {
	case "up":
		slog.Info("running database migrations")
		if err := runner.Up(ctx); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		slog.Info("migrations applied")
	case "status":
		entries, err := runner.Status(ctx)
		if err != nil {
			log.Fatalf("failed to get migration status: %v", err)
		}
		fmt.Println("migration status:")
		for _, e := range entries {
			state := "pending"
			if e.Applied {
				state = "applied"
			}
			fmt.Printf("  %-40s %s\n", e.Version, state)
		}
	default:
		log.Fatalf("unknown command %q (expected up or status)", *command)
	}
}
