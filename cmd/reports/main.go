// Package main runs the reports service: intelligence report capture,
// approval workflow and AI-assisted analysis.
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
	"github.com/intelligence-service/platform/internal/database"
	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/middleware"
	"github.com/intelligence-service/platform/internal/reports"
)

func main() {
	cfg, err := config.LoadReports()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reports-service: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("reports-service", cfg.LogLevel, cfg.LogFormat)

	connString := cfg.Database.ConnString()
	if err := database.Migrate(connString, "reports"); err != nil {
		logger.WithError(err).Error("database migration failed")
		os.Exit(1)
	}
	db, err := database.OpenX(connString, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		logger.WithError(err).Error("database connection failed")
		os.Exit(1)
	}
	defer db.Close()

	var aiEndpoint string
	if cfg.AIServiceURL != "" {
		aiEndpoint = cfg.AIServiceURL + cfg.AIAnalysisEndpoint
	}
	ai := reports.NewAIClient(aiEndpoint, cfg.ProxySecretKey, logger)
	files := reports.NewFileStorage(cfg.UploadsPath)

	service := reports.NewService(reports.NewPostgresStore(db), ai, files, logger)
	handler := reports.NewHandler(service, logger)

	authClient := httputil.NewServiceClient(httputil.ServiceClientConfig{
		BaseURL:       cfg.AuthServiceURL,
		GatewaySecret: cfg.ProxySecretKey,
	})
	validator := reports.NewRemoteTokenValidator(authClient)

	authMW := middleware.NewAuthMiddleware(validator, logger, reports.PublicPaths)
	secretMW := middleware.NewGatewaySecretMiddleware(cfg.ProxySecretKey, cfg.AllowDirectAccess, logger, []string{"/health"})

	var root http.Handler = handler.Router()
	root = authMW.Handler(root)
	root = secretMW.Handler(root)
	root = middleware.NewTracingMiddleware(logger).Handler(root)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("reports service listening on :%d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}
	logger.Info("reports service stopped")
}
