package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/config"
	"github.com/stemsi/help-queue/internal/database"
	"github.com/stemsi/help-queue/internal/handler"
	"github.com/stemsi/help-queue/internal/logger"
	"github.com/stemsi/help-queue/internal/middleware"
	"github.com/stemsi/help-queue/internal/repository"
	"github.com/stemsi/help-queue/internal/router"
	"github.com/stemsi/help-queue/internal/service"
	"github.com/stemsi/help-queue/internal/session"
	"github.com/stemsi/help-queue/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	logLevel, logFormat := "info", "pretty"
	if cfg != nil {
		logLevel, logFormat = cfg.LogLevel, cfg.LogFormat
	}
	log := logger.Setup("server", logLevel, logFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("store_driver", cfg.StoreDriver).
		Int("roster_size", len(cfg.Roster)).
		Msg("Starting help queue server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis (optional) ───────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	var sessionStore session.Store
	if rdb != nil {
		defer rdb.Close()
		sessionStore = session.NewRedisStore(rdb, cfg.SessionTTL)
	} else {
		log.Warn().Msg("REDIS_URL not set; sessions are kept in memory")
		sessionStore = session.NewMemoryStore()
	}

	// ─── Initialize Store ──────────────────────────────────────────────
	table, err := repository.NewTable(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	helpRepo := repository.NewHelpRequestRepository(table)

	// ─── Initialize Services ──────────────────────────────────────────
	queueService := service.NewQueueService(helpRepo, cfg.Roster, log)
	sessionService := service.NewSessionService(cfg, sessionStore)

	// The store may be briefly unreachable at boot; requests retry on their own.
	if err := queueService.EnsureHeaders(ctx); err != nil {
		log.Warn().Err(err).Msg("Header check failed")
	}

	submitLimiter := middleware.NewRateLimiter(cfg.SubmitRatePerMinute, time.Minute)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		UI:      handler.NewUIHandler(queueService, sessionService, submitLimiter, log),
		Queue:   handler.NewQueueHandler(queueService, log),
		Session: handler.NewSessionHandler(sessionService, log),
		WS:      handler.NewWSHandler(queueService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(rdb, cfg.StoreDriver, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(sessionService, submitLimiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
