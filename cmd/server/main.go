package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/joherrer/stocks/internal/auth"
	"github.com/joherrer/stocks/internal/config"
	"github.com/joherrer/stocks/internal/database"
	"github.com/joherrer/stocks/internal/market"
	"github.com/joherrer/stocks/internal/portfolio"
	"github.com/joherrer/stocks/internal/server"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the ledger API server with graceful shutdown support
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	// .env may have set DEBUG after init ran
	if cfg.Server.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	oracle := newOracle(cfg.Oracle)

	// Initialize services
	authService := auth.NewService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Ledger.StartingCash)
	portfolioService := portfolio.NewService(db, oracle)

	// Initialize router with all API routes
	router := server.NewRouter(authService, portfolioService, server.Options{RateLimit: true})

	// Create server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown setup
	go func() {
		zlog.Info().
			Str("addr", srv.Addr).
			Str("db_driver", cfg.Database.Driver).
			Str("oracle", cfg.Oracle.Kind).
			Str("starting_cash", cfg.Ledger.StartingCash.StringFixed(2)).
			Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	zlog.Info().Msg("Server exiting")
}

// newOracle picks the configured price source
func newOracle(cfg config.OracleConfig) market.Oracle {
	if cfg.Kind == config.OracleSimulated {
		return market.NewSimulator()
	}
	return market.NewYahoo(cfg.BaseURL, cfg.Timeout)
}
