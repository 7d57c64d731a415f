// Package main runs the API gateway: it terminates client traffic,
// enforces rate limits and forwards requests to the backing services.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intelligence-service/platform/internal/config"
	"github.com/intelligence-service/platform/internal/gateway"
	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/metrics"
	"github.com/intelligence-service/platform/internal/middleware"
	"github.com/intelligence-service/platform/internal/ratelimit"
)

// healthSweepSchedule re-probes every upstream once a minute.
const healthSweepSchedule = "@every 1m"

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("api-gateway", cfg.LogLevel, cfg.LogFormat)

	table, err := gateway.LoadRoutes(cfg)
	if err != nil {
		logger.WithError(err).Error("failed to load route table")
		os.Exit(1)
	}

	health := gateway.NewHealthChecker(table, logger)
	if err := health.Start(healthSweepSchedule); err != nil {
		logger.WithError(err).Error("failed to start health sweeps")
		os.Exit(1)
	}
	defer health.Stop()

	proxy := gateway.NewProxy(table, health, cfg.ProxySecretKey, cfg.ProxyTimeout, logger)
	handler := gateway.NewHandler(table, health, proxy, logger)

	var root http.Handler = handler.Router()
	if cfg.EnableRateLimiting {
		limiter := ratelimit.New(cfg.RateLimitRedisURL, cfg.DefaultRateLimit, cfg.RateLimitPeriod, logger)
		rl := middleware.NewRateLimitMiddleware(limiter, cfg.DefaultRateLimit, cfg.RateLimitPeriod.String(), logger)
		root = rl.Handler(root)
	}
	root = middleware.NewCORSMiddleware(cfg.CORSOrigins).Handler(root)
	root = metrics.InstrumentHandler(root)
	root = middleware.NewTracingMiddleware(logger).Handler(root)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:      metrics.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gateway listening on :%d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.Infof("metrics listening on :%d", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		logger.WithError(err).Error("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("gateway shutdown error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("metrics shutdown error")
	}
	logger.Info("gateway stopped")
}
