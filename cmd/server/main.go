package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/database"
	"github.com/stemsi/exstem-adaptive/internal/handler"
	"github.com/stemsi/exstem-adaptive/internal/logger"
	"github.com/stemsi/exstem-adaptive/internal/middleware"
	"github.com/stemsi/exstem-adaptive/internal/repository"
	"github.com/stemsi/exstem-adaptive/internal/router"
	"github.com/stemsi/exstem-adaptive/internal/selection"
	"github.com/stemsi/exstem-adaptive/internal/service"
	"github.com/stemsi/exstem-adaptive/internal/validator"
	"github.com/stemsi/exstem-adaptive/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Int64("selection_seed", cfg.SelectionSeed).
		Msg("Starting ExStem Adaptive")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	questionRepo := repository.NewQuestionRepository(pool)
	questions := repository.NewQuestionCache(questionRepo, rdb, cfg.QuestionCacheTTL, log)
	answerRepo := repository.NewAnswerRepository(pool)
	examStore := repository.NewExamStore(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	selector := selection.New(selection.NewSource(cfg.SelectionSeed))
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	sessionService := service.NewExamSessionService(
		questions, answerRepo, examStore, service.NewRedisPublisher(rdb), selector, cfg.Engine, log,
	)
	roomService := service.NewRoomService(examStore, questions, selector, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:    handler.NewExamHandler(sessionService, roomService, log),
		Room:    handler.NewRoomHandler(roomService, log),
		Monitor: handler.NewMonitorHandler(rdb, roomService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	if cfg.JoinRateLimit > 0 {
		handlers.JoinLimiter = middleware.NewRateLimiter(cfg.JoinRateLimit, time.Minute, middleware.ByStudent)
		workers.Add(1)
		go func() {
			defer workers.Done()
			handlers.JoinLimiter.Run(workerCtx)
		}()
	}

	progressWorker := worker.NewProgressWorker(examStore, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		progressWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the last batch to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
