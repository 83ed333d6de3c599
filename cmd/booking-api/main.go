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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/interview-slots/api/swagger"
	"github.com/noah-isme/interview-slots/internal/handler"
	"github.com/noah-isme/interview-slots/internal/middleware"
	"github.com/noah-isme/interview-slots/internal/repository"
	"github.com/noah-isme/interview-slots/internal/service"
	"github.com/noah-isme/interview-slots/pkg/cache"
	"github.com/noah-isme/interview-slots/pkg/config"
	"github.com/noah-isme/interview-slots/pkg/database"
	"github.com/noah-isme/interview-slots/pkg/jobs"
	"github.com/noah-isme/interview-slots/pkg/logger"
	corsmiddleware "github.com/noah-isme/interview-slots/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/interview-slots/pkg/middleware/requestid"
	"github.com/noah-isme/interview-slots/pkg/sheets"
)

// @title Interview Slots API
// @version 1.0.0
// @description Interview slot booking for the conversational front-end.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			logr.Fatal("failed to ensure schema", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, workflow sessions kept in process memory", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	slots := repository.NewTimeSlotRepository(db)
	sessions := repository.NewSessionRepository(redisClient, cfg.Workflow.SessionTTL, logr)
	directory, err := repository.NewCandidateDirectoryRepository(db, cfg.Database.ProfileTable)
	if err != nil {
		logr.Fatal("invalid candidate profile table", zap.Error(err))
	}

	var bookings *service.BookingService
	var mirrorQueue *jobs.Queue
	if cfg.Mirror.Enabled {
		sheetClient, err := sheets.NewClient(ctx, cfg.Mirror.SpreadsheetID, cfg.Mirror.CredentialsFile)
		if err != nil {
			logr.Fatal("failed to init sheets client", zap.Error(err))
		}
		mirror := service.NewMirrorService(sheetClient, slots, directory, metricsSvc, logr, service.MirrorConfig{
			SheetNames:          cfg.Mirror.SheetNames,
			MaxAttempts:         cfg.Mirror.MaxAttempts,
			BaseDelay:           cfg.Mirror.BaseDelay,
			MaxDelay:            cfg.Mirror.MaxDelay,
			WriteQuotaPerMinute: cfg.Mirror.WriteQuotaPerMinute,
			ReconcileInterval:   cfg.Mirror.ReconcileInterval,
			CallTimeout:         cfg.Mirror.CallTimeout,
		})
		mirrorQueue = jobs.NewQueue("mirror", mirror.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Mirror.Workers,
			BufferSize: cfg.Mirror.BufferSize,
			Logger:     logr,
			OnDone: func(_ jobs.Job, err error, took time.Duration) {
				metricsSvc.ObserveQueueJob("mirror", err, took)
			},
			OnDrop: func(jobs.Job) {
				metricsSvc.RecordQueueDrop("mirror")
			},
		})
		metricsSvc.TrackQueueDepth("mirror", mirrorQueue.Len)
		mirrorQueue.Start(ctx)
		mirror.StartReconciler(ctx)
		bookings = service.NewBookingService(slots, mirrorQueue, metricsSvc, logr)
	} else {
		logr.Info("spreadsheet mirror disabled")
		bookings = service.NewBookingService(slots, nil, metricsSvc, logr)
	}

	workflow := service.NewWorkflowService(bookings, sessions, directory, validate, logr)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
		r.Use(middleware.Metrics(metricsSvc, metricsPath, "/health", "/ready"))
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.Routes{
		Prefix:      cfg.APIPrefix,
		Auth:        middleware.JWT(tokens),
		Bookings:    handler.NewBookingHandler(bookings, directory),
		Workflow:    handler.NewWorkflowHandler(workflow),
		Metrics:     handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient)...),
		MetricsPath: metricsPath,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	if mirrorQueue != nil {
		mirrorQueue.Stop()
	}
	logr.Info("server stopped")
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) []handler.DependencyCheck {
	checks := []handler.DependencyCheck{{Name: "database", Ping: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, handler.DependencyCheck{
			Name:     "redis",
			Optional: true,
			Ping: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	return checks
}
