package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/acadhub/timetable-api/api/swagger"
	"github.com/acadhub/timetable-api/internal/handler"
	"github.com/acadhub/timetable-api/internal/middleware"
	"github.com/acadhub/timetable-api/internal/models"
	"github.com/acadhub/timetable-api/internal/repository"
	"github.com/acadhub/timetable-api/internal/service"
	"github.com/acadhub/timetable-api/pkg/cache"
	"github.com/acadhub/timetable-api/pkg/config"
	"github.com/acadhub/timetable-api/pkg/database"
	"github.com/acadhub/timetable-api/pkg/jobs"
	"github.com/acadhub/timetable-api/pkg/logger"
	corsmiddleware "github.com/acadhub/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/acadhub/timetable-api/pkg/middleware/requestid"
)

// @title Department Timetable API
// @version 0.1.0
// @description Timetable generation and conflict-resolution engine for academic departments
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		redisClient = nil
	}

	sectionRepo := repository.NewSectionRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	entryRepo := repository.NewScheduleEntryRepository(db)
	requestRepo := repository.NewApprovalRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Timetable.CacheTTL, logr, cfg.Timetable.CacheEnabled && redisClient != nil)

	grid := models.TimeGrid{
		Days:        []int{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday, models.Saturday},
		StartMinute: cfg.Scheduler.GridStartMinute,
		EndMinute:   cfg.Scheduler.GridEndMinute,
		SlotMinutes: cfg.Scheduler.SlotMinutes,
	}

	generatorSvc := service.NewScheduleGeneratorService(
		sectionRepo, facultyRepo, classroomRepo, entryRepo, db,
		auditRepo, metricsSvc, nil, logr,
		service.ScheduleGeneratorConfig{ProposalTTL: cfg.Scheduler.ProposalTTL, Grid: grid},
	)

	queue := jobs.New("schedule-generation", generatorSvc.HandleGenerationJob, jobs.Config{
		Workers:    cfg.Scheduler.AsyncWorkers,
		BufferSize: cfg.Scheduler.AsyncQueueSize,
		Logger:     logr,
	})
	queue.Start(context.Background())
	defer queue.Stop()
	generatorSvc.AttachQueue(queue)

	timetableSvc := service.NewTimetableService(
		entryRepo, sectionRepo, facultyRepo, classroomRepo, cacheSvc, logr,
		service.TimetableConfig{CacheTTL: cfg.Timetable.CacheTTL, ExportEnabled: cfg.Export.Enabled},
	)

	approvalSvc := service.NewApprovalService(
		entryRepo, requestRepo, sectionRepo, facultyRepo, classroomRepo,
		auditRepo, timetableSvc, nil, logr,
	)

	generatorHandler := handler.NewScheduleGeneratorHandler(generatorSvc)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	schedule := api.Group("/schedule")
	{
		schedule.POST("/generate", middleware.RequireRoles(models.RoleAdmin, models.RoleChair, models.RoleDean), generatorHandler.Generate)
		schedule.GET("/proposals/:id", generatorHandler.GetProposal)
		schedule.POST("/save", middleware.RequireRoles(models.RoleAdmin, models.RoleChair, models.RoleDean), generatorHandler.Save)
		schedule.POST("/conflicts", generatorHandler.DetectConflicts)

		schedule.GET("/entries", approvalHandler.ListEntries)
		schedule.PATCH("/entries/:id/status", approvalHandler.UpdateEntryStatus)
		schedule.POST("/requests", approvalHandler.SubmitRequest)
		schedule.GET("/requests", approvalHandler.ListRequests)
		schedule.GET("/requests/:id", approvalHandler.GetRequest)
		schedule.PATCH("/requests/:id", middleware.Reviewers(), approvalHandler.ResolveRequest)
	}

	departments := api.Group("/departments")
	{
		departments.GET("/:id/timetable", timetableHandler.GetTimetable)
		departments.GET("/:id/timetable/export", timetableHandler.ExportTimetable)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
