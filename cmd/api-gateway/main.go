package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-scheduling-api/api/swagger"
	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
	"github.com/noah-isme/sma-scheduling-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-scheduling-api/internal/middleware"
	"github.com/noah-isme/sma-scheduling-api/internal/repository"
	"github.com/noah-isme/sma-scheduling-api/internal/service"
	"github.com/noah-isme/sma-scheduling-api/pkg/cache"
	"github.com/noah-isme/sma-scheduling-api/pkg/config"
	"github.com/noah-isme/sma-scheduling-api/pkg/database"
	"github.com/noah-isme/sma-scheduling-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-scheduling-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-scheduling-api/pkg/middleware/requestid"
)

// @title SMA Scheduling API
// @version 1.0.0
// @description Exam and timetable scheduling with room, invigilator and student conflict detection
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	policy := conflict.DefaultPolicy()
	if len(cfg.Scheduling.BlockingTypes) > 0 {
		policy, err = conflict.ParsePolicy(cfg.Scheduling.BlockingTypes)
		if err != nil {
			logr.Fatal("invalid SCHEDULING_BLOCKING_TYPES", zap.Error(err))
		}
	}
	detector := conflict.NewDetector(policy)

	readiness := map[string]handler.Pinger{"postgres": db}

	var locker service.ResourceLocker = service.NewMemoryLocker()
	if cfg.Scheduling.LockBackend == config.LockBackendRedis {
		redisClient, err := cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		locker = repository.NewRedisLockRepository(redisClient, cfg.Scheduling.LockTTL, logr)
		readiness["redis"] = cache.Pinger(redisClient)
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	examRepo := repository.NewExamRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	termRepo := repository.NewTermRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	guard := service.NewMutationGuard(detector, locker, metricsSvc, logr, cfg.Scheduling.LockWait)
	examSvc := service.NewExamService(examRepo, scheduleRepo, enrollmentRepo, guard, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, examRepo, termRepo, enrollmentRepo, guard, validate, logr)

	examHandler := handler.NewExamHandler(examSvc, cfg.Scheduling.ExportEnabled)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	registerRoutes(api, examHandler, scheduleHandler, metricsHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting",
		"addr", addr,
		"env", cfg.Env,
		"lock_backend", cfg.Scheduling.LockBackend,
		"blocking_types", policy.BlockingTypes())
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func registerRoutes(api *gin.RouterGroup, exams *handler.ExamHandler, schedules *handler.ScheduleHandler, metrics *handler.MetricsHandler) {
	examGroup := api.Group("/exams")
	examGroup.GET("", exams.List)
	examGroup.POST("", exams.Create)
	examGroup.POST("/conflicts/check", exams.Check)
	examGroup.GET("/:id", exams.Get)
	examGroup.PUT("/:id", exams.Update)
	examGroup.DELETE("/:id", exams.Delete)
	examGroup.GET("/:id/conflicts", exams.Conflicts)
	examGroup.GET("/:id/conflicts/export", exams.ExportConflicts)

	scheduleGroup := api.Group("/schedules")
	scheduleGroup.GET("", schedules.List)
	scheduleGroup.POST("", schedules.Create)
	scheduleGroup.POST("/bulk", schedules.BulkCreate)
	scheduleGroup.POST("/conflicts/check", schedules.Check)
	scheduleGroup.PUT("/:id", schedules.Update)
	scheduleGroup.DELETE("/:id", schedules.Delete)

	api.GET("/classes/:id/schedules", schedules.ListByClass)
	api.GET("/teachers/:id/schedules", schedules.ListByTeacher)
	api.GET("/metrics/scheduling", metrics.Summary)
}
