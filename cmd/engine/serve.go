package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/backend"
	"github.com/contest-maker-150/assessment/internal/data"
	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/event"
	"github.com/contest-maker-150/assessment/internal/executor"
	"github.com/contest-maker-150/assessment/internal/exporter"
	"github.com/contest-maker-150/assessment/internal/handler"
	"github.com/contest-maker-150/assessment/internal/infrastructure"
	"github.com/contest-maker-150/assessment/internal/job"
	"github.com/contest-maker-150/assessment/internal/middleware"
	"github.com/contest-maker-150/assessment/internal/repository"
	"github.com/contest-maker-150/assessment/internal/service"
	"github.com/contest-maker-150/assessment/internal/window"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and stream server",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := infrastructure.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(config)
		},
	}
}

func serve(config *infrastructure.Config) error {
	// Initialize logger
	logger, err := infrastructure.NewLogger(config.Server.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.SyncLogger(logger)

	logger.Info("Starting assessment engine",
		zap.String("environment", config.Server.Environment),
		zap.Int("port", config.Server.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry
	telemetry, err := infrastructure.NewTelemetry(ctx, &config.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	metrics, err := telemetry.CreateMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	// Session journal
	var (
		database *infrastructure.Database
		journal  domain.JournalRepository
	)
	if config.Database.Enabled {
		database, err = infrastructure.NewDatabase(&config.Database, logger)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		journal = repository.NewJournalRepository(database.DB)
	} else {
		logger.Warn("Database disabled, keeping the session journal in memory")
		journal = repository.NewMemoryJournal()
	}

	// Backend repositories
	client := backend.NewClient(config.Backend.BaseURL, infrastructure.NewHTTPClient(config.Backend.Timeout), logger)
	activities := backend.NewActivityRepository(client)
	testCases := backend.NewTestCaseRepository(client)

	cache, err := infrastructure.NewRedisClient(ctx, &config.Redis, logger)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
		activities = repository.NewCachedActivityRepository(cache, activities, config.Redis.CacheTTL, logger)
		testCases = repository.NewCachedTestCaseRepository(cache, testCases, config.Redis.CacheTTL, logger)
	}

	// Code execution
	languages, err := data.LoadLanguageTable(config.Executor.LanguagesFile)
	if err != nil {
		return err
	}
	piston := executor.NewPistonClient(config.Executor.BaseURL, infrastructure.NewHTTPClient(0))
	runner := executor.NewRunner(piston, languages, config.Executor.Timeout, logger)

	// Submission events
	var publisher event.Publisher = event.NopPublisher{}
	producer, err := infrastructure.NewSyncProducer(&config.Kafka, logger)
	if err != nil {
		return err
	}
	if producer != nil {
		publisher = event.NewKafkaPublisher(producer, config.Kafka.Topic, logger)
	}
	defer publisher.Close()

	// Services
	clock := window.SystemClock{}
	sessionService := service.NewSessionService(service.SessionDeps{
		Activities:  activities,
		TestCases:   testCases,
		Submissions: backend.NewSubmissionRepository(client),
		Progress:    backend.NewProgressRepository(client),
		Answers:     backend.NewAnswerRepository(client),
		Journal:     journal,
		Runner:      runner,
		Publisher:   publisher,
		Languages:   languages,
		Clock:       clock,
		Metrics:     metrics,
	}, telemetry.Tracer, logger)
	leaderboardService := service.NewLeaderboardService(backend.NewLeaderboardRepository(client), clock, telemetry.Tracer, logger)

	// Background jobs
	scheduler := job.NewScheduler(logger)
	if err := scheduler.Add(job.NewReaperJob(sessionService, config.Jobs.ReapSchedule)); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Handlers
	verifier := middleware.NewTokenVerifier(&config.JWT)
	sessionHandler := handler.NewSessionHandler(sessionService)
	streamHandler := handler.NewStreamHandler(sessionService, clock, config.Server.StreamInterval, config.Server.AllowedOrigins, metrics, logger)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService, exporter.NewFactory(), logger)
	languageHandler := handler.NewLanguageHandler(languages)

	if config.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware(config.Server.AllowedOrigins))
	router.Use(middleware.TracingMiddleware(telemetry.Tracer))
	router.Use(middleware.MetricsMiddleware(metrics))

	router.GET("/health", healthHandler(config, database, cache, scheduler, sessionService))
	router.GET(config.Telemetry.MetricsEndpoint, gin.WrapH(promhttp.Handler()))
	if !config.Server.IsProduction() {
		pprof.Register(router)
	}

	api := router.Group("/api")
	{
		api.GET("/languages", languageHandler.GetLanguages)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(verifier))
		{
			sessionHandler.Register(protected)
			streamHandler.Register(protected)
			leaderboardHandler.Register(protected)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Journal what is still live before exiting
	if _, err := sessionService.ReapEnded(shutdownCtx); err != nil {
		logger.Error("Failed to journal sessions on shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
	return nil
}

func healthHandler(config *infrastructure.Config, database *infrastructure.Database, cache *redis.Client, scheduler *job.Scheduler, sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if database != nil {
			if err := database.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  "database connection failed",
				})
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  "cache connection failed",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"version":  config.Telemetry.ServiceVersion,
			"sessions": sessions.LiveCount(),
			"jobs":     scheduler.Statuses(),
		})
	}
}
