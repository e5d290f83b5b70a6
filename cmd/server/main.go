// Package main initializes and starts the maintenance backend server,
// setting up configuration, logging, database connections, repositories,
// services, handlers, and TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/sitebatch/maintenance/internal/auth"
	"github.com/sitebatch/maintenance/internal/config"
	"github.com/sitebatch/maintenance/internal/db"
	"github.com/sitebatch/maintenance/internal/logger"
	"github.com/sitebatch/maintenance/internal/repository"
	"github.com/sitebatch/maintenance/internal/server/handler/http"
	"github.com/sitebatch/maintenance/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options, err := config.ParseServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection and apply migrations.
	postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Remove expired refresh and link tokens in the background.
	db.StartTokenCleaner(ctx, postgresDB, options.CleanupInterval, zapLogger)

	// Initialize repositories.
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	defectRepo := repository.NewPostgresDefectRepository(postgresDB)
	activityRepo := repository.NewPostgresActivityRepository(postgresDB)
	objectRepo := repository.NewPostgresObjectRepository(postgresDB)

	// Initialize business-logic services.
	tokens := auth.NewJWTManager(options.JWTSecret, options.JWTIssuer, options.AccessTokenTTL)
	authService := service.NewAuthService(authRepo, tokens, service.LogMailer{Log: zapLogger}, service.AuthConfig{
		RefreshTTL: options.RefreshTokenTTL,
		LinkTTL:    options.LinkTokenTTL,
		SiteURL:    options.SiteURL,
		PublicURL:  options.PublicURL,
	}, zapLogger)
	defectService := service.NewDefectService(defectRepo, activityRepo, zapLogger)
	storageService := service.NewStorageService(objectRepo, tokens, zapLogger)

	// Create HTTP handlers.
	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	rowHandler := &http.RowHandler{DefectService: defectService, Log: zapLogger}
	storageHandler := &http.StorageHandler{StorageService: storageService, Log: zapLogger}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, rowHandler, storageHandler, tokens, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if options.TLSCert != "" {
		// Load server TLS certificate and key.
		cert, err := tls.LoadX509KeyPair(options.TLSCert, options.TLSKey)
		if err != nil {
			zapLogger.Fatal("failed to load server TLS cert/key", zap.Error(err))
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS("", "")
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("failed to start HTTPS server", zap.Error(err))
		}
		return
	}

	zapLogger.Warn("TLS is not configured, serving plain HTTP", zap.String("addr", options.Port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
