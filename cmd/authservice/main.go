// Package main runs the authentication service: user management, token
// issuance and validation.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intelligence-service/platform/internal/auth"
	"github.com/intelligence-service/platform/internal/config"
	"github.com/intelligence-service/platform/internal/database"
	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/middleware"
)

func main() {
	cfg, err := config.LoadAuth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "auth-service: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("auth-service", cfg.LogLevel, cfg.LogFormat)

	connString := cfg.Database.ConnString()
	if err := database.Migrate(connString, "auth"); err != nil {
		logger.WithError(err).Error("database migration failed")
		os.Exit(1)
	}
	db, err := database.Open(connString, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		logger.WithError(err).Error("database connection failed")
		os.Exit(1)
	}
	defer db.Close()

	tokens, err := auth.NewTokenManager(auth.TokenManagerConfig{
		Secret:          cfg.SecretKey,
		PrivateKeyFile:  cfg.JWTPrivateKeyFile,
		PublicKeyFile:   cfg.JWTPublicKeyFile,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.WithError(err).Error("token manager initialisation failed")
		os.Exit(1)
	}

	var sink auth.ActivitySink
	if cfg.AuditLogFile != "" {
		fileSink, err := auth.NewFileActivitySink(cfg.AuditLogFile)
		if err != nil {
			logger.WithError(err).Warn("audit log file unavailable, keeping entries in memory only")
		} else {
			sink = fileSink
			defer fileSink.Close()
		}
	}
	activity := auth.NewActivityLog(cfg.AuditLogMaxEntries, sink)

	service := auth.NewService(auth.NewPostgresStore(db), tokens, activity, logger)
	handler := auth.NewHandler(service, logger)

	authMW := middleware.NewAuthMiddleware(tokens, logger, auth.PublicPaths)
	secretMW := middleware.NewGatewaySecretMiddleware(cfg.ProxySecretKey, cfg.AllowDirectAccess, logger, []string{"/health"})

	var root http.Handler = handler.Router()
	root = authMW.Handler(root)
	root = secretMW.Handler(root)
	root = middleware.NewTracingMiddleware(logger).Handler(root)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("auth service listening on :%d", cfg.Port)
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
	logger.Info("auth service stopped")
}
