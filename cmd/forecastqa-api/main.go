package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/forecastqa/forecastqa/internal/api"
	"github.com/forecastqa/forecastqa/internal/ask"
	"github.com/forecastqa/forecastqa/internal/auth"
	"github.com/forecastqa/forecastqa/internal/config"
	"github.com/forecastqa/forecastqa/internal/llm"
	"github.com/forecastqa/forecastqa/internal/observability"
	"github.com/forecastqa/forecastqa/internal/ratelimit"
	"github.com/forecastqa/forecastqa/internal/store"
)

func main() {
	cfg, err := config.LoadFromEnv("forecastqa-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	forecastDB, err := store.Open(context.Background(), cfg.DB)
	if err != nil {
		logger.Error("failed to open forecast db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = forecastDB.Close() }()

	forecastStore := store.NewStore(forecastDB, cfg.DB.QueryTimeout)

	clock := clockwork.NewRealClock()
	model, err := llm.NewHTTPClient(llm.Config{
		BaseURL:      cfg.AI.BaseURL,
		APIKey:       cfg.AI.APIKey,
		Model:        cfg.AI.Model,
		Timeout:      cfg.AI.Timeout,
		Retries:      cfg.AI.Retries,
		RetryBackoff: cfg.AI.RetryBackoff,
	}, clock)
	if err != nil {
		logger.Error("failed to initialize llm client", slog.Any("error", err))
		os.Exit(1)
	}

	limiter := ratelimit.New(ratelimit.Config{
		PerMinute: cfg.RateLimit.PerMinute,
		Burst:     cfg.RateLimit.Burst,
		IdleTTL:   cfg.RateLimit.IdleTTL,
	}, clock)

	askService := ask.NewService(logger, cfg.Ask, cfg.AI, model, forecastStore, limiter, clock)

	deps := api.Dependencies{
		Logger: logger,
		Ask:    askService,
		Readiness: api.CombineReadinessChecks(
			api.CheckForecastDSN(cfg),
			api.CheckAIConfig(cfg),
			forecastStore.HealthCheck,
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
