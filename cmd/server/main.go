package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TechFest-2026/exam-session-service/internal/cache"
	"github.com/TechFest-2026/exam-session-service/internal/config"
	"github.com/TechFest-2026/exam-session-service/internal/handlers"
	"github.com/TechFest-2026/exam-session-service/internal/questionsource"
	"github.com/TechFest-2026/exam-session-service/internal/repositories/postgres"
	"github.com/TechFest-2026/exam-session-service/internal/services"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
	"github.com/TechFest-2026/exam-session-service/pkg"
)

const reminderSweepInterval = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	slogLogger := utils.ToSlogLogger(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	repo := postgres.NewRepository(db)

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	cacheService := cache.NewRedisCache(redisClient, slogLogger)
	defer cacheService.Close()

	publisher, err := cfg.Events.CreateEventPublisher(slogLogger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	var source questionsource.Source
	if cfg.GeminiAPIKey != "" {
		geminiSource, err := questionsource.NewGeminiSource(context.Background(), cfg.GeminiAPIKey, slogLogger)
		if err != nil {
			logger.Error("Failed to create Gemini source", "error", err)
			os.Exit(1)
		}
		defer geminiSource.Close()
		source = geminiSource
	} else {
		logger.Warn("GEMINI_API_KEY not set, question generation disabled")
	}

	validator := utils.NewValidator()
	serviceManager := services.NewServiceManager(repo, publisher, cacheService, source, slogLogger, validator,
		services.ManagerConfig{
			Session: services.SessionConfig{
				QuestionCount: cfg.QuestionCount,
				BudgetMinutes: cfg.ExamBudgetMinutes,
			},
			Reminder: services.ReminderConfig{
				ExamLabel: cfg.ExamLabel,
				StartsAt:  cfg.ExamStartsAt,
				Lead:      time.Duration(cfg.ReminderLeadMinutes) * time.Minute,
			},
			MaxViolations: cfg.MaxViolations,
		})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	verifier := handlers.NewCasdoorVerifier(cfg.Casdoor)
	handlerManager := handlers.NewHandlerManager(serviceManager, verifier, logger)
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runReminderSweep(ctx, serviceManager.Reminder(), logger)

	go func() {
		logger.Info("Starting exam session service", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
}

func runReminderSweep(ctx context.Context, reminder services.ReminderService, logger utils.Logger) {
	ticker := time.NewTicker(reminderSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := reminder.Sweep(ctx, now); err != nil {
				logger.Error("Reminder sweep failed", "error", err)
			}
		}
	}
}
