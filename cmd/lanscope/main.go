package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lanscope/core-go/internal/app"
	"lanscope/core-go/internal/config"
	"lanscope/core-go/internal/discoveryworker"
	"lanscope/core-go/internal/httpapi"
	"lanscope/core-go/internal/metrics"
)

func main() {
	cfg, warnings, err := config.Load(os.Getenv("CONFIG_PATH"), os.Getenv)
	logger := httpapi.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	svc, buildWarnings := app.Build(logger, cfg, nil, m)
	for _, w := range buildWarnings {
		logger.Warn().Msg(w)
	}

	worker := discoveryworker.New(logger.With().Str("component", "discoveryworker").Logger(), svc, discoveryworker.Options{
		Interval:       cfg.DiscoveryInterval.Duration(),
		MaxRuntime:     cfg.DiscoveryMaxRuntime.Duration(),
		Preset:         cfg.DiscoveryPreset,
		Drivers:        svc.DriverNames(),
		DefaultDrivers: cfg.Drivers,
	})
	go worker.Run(ctx)

	h := httpapi.NewHandler(logger, svc, httpapi.Options{
		Runs:    worker,
		Metrics: m,
		Timeout: cfg.DiscoveryMaxRuntime.Duration() + 15*time.Second,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("lanscope listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}
