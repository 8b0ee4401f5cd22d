// Command apiserver runs C7: the HTTP query surface over computed battles,
// admitted killmails, and the active ruleset, plus the SSE live feed that
// wraps the same admitted-killmail stream C8 hydrates with names.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"battlescope/internal/auth"
	"battlescope/internal/battle"
	"battlescope/internal/enricher"
	"battlescope/internal/identity"
	"battlescope/internal/killmail"
	"battlescope/internal/query"
	"battlescope/internal/ruleset"
	"battlescope/internal/stream"
	"battlescope/pkg/app"
	"battlescope/pkg/config"
	"battlescope/pkg/handlers"
	bsmiddleware "battlescope/pkg/middleware"
)

// corsMiddleware adds CORS headers for cross-origin browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	appCtx, err := app.InitializeApp("apiserver")
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer appCtx.Shutdown(context.Background())

	if appCtx.Postgres == nil {
		log.Fatal("apiserver: requires Postgres")
	}

	killmails := killmail.NewStore(appCtx.Postgres.Pool)
	battleStore := battle.NewStore(appCtx.Postgres.Pool, killmails)
	rulesetStore := ruleset.NewStore(appCtx.Postgres.Pool)

	var rulesetCache *ruleset.Cache
	var subscriber *stream.Subscriber
	if appCtx.Redis != nil {
		rulesetCache = ruleset.NewCache(rulesetStore, appCtx.Redis.Client)
		subscriber = stream.NewSubscriber(appCtx.Redis.Client)
		go subscriber.Run(ctx)
	}

	var idClient *identity.Client
	if appCtx.Redis != nil {
		tokens := identity.NewTokenPool(identity.NewStaticTokenSource(config.GetEnv("IDENTITY_API_TOKENS", "")))
		limiter := identity.NewRateLimiter(appCtx.Redis.Client,
			config.GetIntEnv("IDENTITY_RATE_LIMIT", 100),
			time.Duration(config.GetIntEnv("IDENTITY_RATE_WINDOW_SECONDS", 60))*time.Second)
		errorBudget := identity.NewErrorBudget(appCtx.Redis.Client)

		idClient = identity.NewClient(identity.Config{
			BaseURL:         config.MustGetEnv("IDENTITY_API_BASE_URL"),
			TimeoutMS:       config.GetIntEnv("IDENTITY_API_TIMEOUT_MS", 10_000),
			CacheTTLSeconds: config.GetIntEnv("IDENTITY_CACHE_TTL_SECONDS", 3600),
			UserAgent:       config.GetEnv("IDENTITY_USER_AGENT", "battlescope/1.0"),
		}, appCtx.Redis, limiter, errorBudget, tokens)
	}

	var nameEnricher *enricher.Enricher
	if idClient != nil {
		nameEnricher = enricher.New(idClient)
	}

	validator := auth.NewValidator([]byte(config.GetJWTSecret()), config.GetEnv("JWT_ISSUER", "battlescope"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(bsmiddleware.TracingMiddleware)

	r.Get("/healthz", handlers.HealthHandler("apiserver"))

	if subscriber != nil {
		r.Get("/killmails/stream", (&query.StreamHandler{
			Killmails:  killmails,
			Subscriber: subscriber,
			Classifier: appCtx.Classifier,
		}).ServeHTTP)
	}

	humaConfig := huma.DefaultConfig("Battlescope API", "1.0.0")
	humaConfig.Info.Description = "Battle reconstruction and killmail query API"
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "JWT bearer token authentication",
		},
	}
	humaConfig.Tags = []*huma.Tag{
		{Name: "Battles", Description: "Computed battle clusters"},
		{Name: "Killmails", Description: "Admitted killmail events"},
		{Name: "Statistics", Description: "Aggregate per-entity battle statistics"},
		{Name: "Ship History", Description: "Per-character and per-hull flight history"},
		{Name: "Ruleset", Description: "Admission ruleset inspection and management"},
		{Name: "Dashboard", Description: "Rollup summaries"},
	}

	apiPrefix := config.GetAPIPrefix()
	frontendURL := config.GetEnv("FRONTEND_URL", "http://localhost:3000")
	serverURL := frontendURL
	if apiPrefix != "" && !strings.HasSuffix(serverURL, apiPrefix) {
		serverURL = serverURL + apiPrefix
	}
	humaConfig.Servers = []*huma.Server{{URL: serverURL, Description: "Default server"}}

	var api huma.API
	if apiPrefix == "" {
		api = humachi.New(r, humaConfig)
	} else {
		r.Route(apiPrefix, func(prefixRouter chi.Router) {
			api = humachi.New(prefixRouter, humaConfig)
		})
	}

	query.RegisterRoutes(api, "", query.Deps{
		Battles:      battleStore,
		Killmails:    killmails,
		RulesetStore: rulesetStore,
		RulesetCache: rulesetCache,
		Enricher:     nameEnricher,
		Auth:         validator,
	})

	srv := &http.Server{
		Addr:         config.GetHost() + ":" + app.GetPort("8084"),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the SSE route holds connections open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("apiserver: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("apiserver: server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("apiserver: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("apiserver: server forced shutdown", "error", err)
	}
}
