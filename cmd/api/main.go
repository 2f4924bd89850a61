package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/parichoy/server/internal/auth"
	"github.com/parichoy/server/internal/config"
	"github.com/parichoy/server/internal/db"
	httphandler "github.com/parichoy/server/internal/http"
	"github.com/parichoy/server/internal/http/handlers"
	"github.com/parichoy/server/internal/repo"
	"github.com/parichoy/server/internal/sms"

	_ "github.com/lib/pq"
)

func main() {
	// Env vars override anything in .env
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Repositories
	authRepo := repo.NewAuthRepo(database)
	userRepo := repo.NewUserRepo(database)
	otpRepo := repo.NewOtpRepo(database)
	tokenRepo := repo.NewTokenRepo(database)

	// Services
	sender := newSMSSender(cfg, logger)
	otpService := auth.NewOTPService(otpRepo, sender, logger, cfg.OTPCooldown, cfg.OTPTTL, cfg.OTPMaxAttempts)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewAuthService(otpService, jwtService, authRepo, tokenRepo, logger, cfg.RefreshTTL, cfg.SessionTTL)

	// Handlers
	authHandler := handlers.NewAuthHandler(otpService, authService, logger, cfg.SessionTTL, !cfg.IsDev())
	usersHandler := handlers.NewUsersHandler(authService, userRepo, logger)
	healthHandler := handlers.NewHealthHandler(database, logger)

	router := httphandler.NewRouter(authHandler, usersHandler, healthHandler, jwtService, tokenRepo, userRepo, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error
	if cfg.IsDev() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// newSMSSender wires the provider gateway, falling back to the log sender in
// development or when no provider is configured.
func newSMSSender(cfg *config.Config, logger *zap.Logger) auth.SMSSender {
	if cfg.IsDev() || cfg.SMSProviderURL == "" {
		return sms.NewLogSender(logger)
	}
	return sms.NewProviderSender(cfg.SMSProviderURL, cfg.SMSAPIKey, logger)
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
