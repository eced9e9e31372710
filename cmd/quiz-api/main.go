package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/quiz-scheduler-api/api/swagger"
	"github.com/noah-isme/quiz-scheduler-api/internal/handler"
	"github.com/noah-isme/quiz-scheduler-api/internal/middleware"
	"github.com/noah-isme/quiz-scheduler-api/internal/repository"
	"github.com/noah-isme/quiz-scheduler-api/internal/service"
	"github.com/noah-isme/quiz-scheduler-api/pkg/cache"
	"github.com/noah-isme/quiz-scheduler-api/pkg/config"
	"github.com/noah-isme/quiz-scheduler-api/pkg/database"
	"github.com/noah-isme/quiz-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/quiz-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/quiz-scheduler-api/pkg/middleware/requestid"
)

// @title Quiz Scheduler API
// @version 1.0.0
// @description Timezone-correct quiz scheduling and attempt validation
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// Redis only accelerates the abuse counters; the validator falls back
	// to the database when it is absent.
	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, abuse counters fall back to the database", zap.Error(err))
		rdb = nil
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	quizzes := repository.NewQuizRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	attempts := repository.NewAttemptRepository(db)

	timezones, err := service.NewTimezoneService(cfg.Scheduling.DefaultTimezone, logr, metrics)
	if err != nil {
		logr.Fatal("failed to init timezone service", zap.Error(err))
	}
	scheduling := service.NewSchedulingService(quizzes, timezones, cfg.Scheduling, validate, logr)
	guard := service.NewAbuseGuard(rdb, attempts, cfg.AntiAbuse, logr)
	attemptSvc := service.NewAttemptService(attempts, enrollments, quizzes, guard, cfg.AntiAbuse, logr, metrics)
	enrollmentSvc := service.NewEnrollmentService(enrollments, quizzes, scheduling, validate, logr)
	exportSvc := service.NewExportService(quizzes, attempts, timezones, logr)
	tokens := service.NewTokenService(cfg.JWT.Secret)

	reaper := service.NewReaperService(attempts, cfg.Reaper, logr, metrics)
	reaper.Start()
	defer reaper.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.Dependencies{
		Tokens:      tokens,
		Quizzes:     handler.NewQuizHandler(scheduling, exportSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Attempts:    handler.NewAttemptHandler(attemptSvc, timezones),
		Reaper:      handler.NewReaperHandler(reaper, cfg.Reaper.StaleAfter),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
