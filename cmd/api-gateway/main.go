package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/openscholar/school-admin-api/api/swagger"
	"github.com/openscholar/school-admin-api/internal/handler"
	"github.com/openscholar/school-admin-api/internal/middleware"
	"github.com/openscholar/school-admin-api/internal/models"
	"github.com/openscholar/school-admin-api/internal/repository"
	"github.com/openscholar/school-admin-api/internal/service"
	"github.com/openscholar/school-admin-api/pkg/cache"
	"github.com/openscholar/school-admin-api/pkg/config"
	"github.com/openscholar/school-admin-api/pkg/database"
	"github.com/openscholar/school-admin-api/pkg/logger"
	corsmiddleware "github.com/openscholar/school-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/openscholar/school-admin-api/pkg/middleware/requestid"
	"github.com/openscholar/school-admin-api/pkg/storage"
)

// @title School Admin API
// @version 1.0.0
// @description Automatic timetable generation and version management
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	graphRepo := repository.NewScheduleGraphRepository(db)
	configRepo := repository.NewTimetableConfigRepository(db)
	versionRepo := repository.NewTimetableVersionRepository(db)
	slotRepo := repository.NewTimetableSlotRepository(db)
	userRepo := repository.NewUserRepository(db)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	timetableService := service.NewTimetableService(
		graphRepo, configRepo, versionRepo, slotRepo,
		db, redisClient, cfg.Timetable, logr,
	)
	timetableService.AttachMetrics(metricsService)

	exportStorage, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Export.ResultTTL)
	exportService := service.NewExportService(timetableService, exportStorage, exportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Export.ResultTTL,
		Workers:   cfg.Export.Workers,
	}, logr)
	exportService.Start(context.Background())
	defer exportService.Stop()

	authHandler := handler.NewAuthHandler(authService)
	timetableHandler := handler.NewTimetableHandler(timetableService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	staff := []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}
	tt := api.Group("/timetable", middleware.JWT(authService))
	tt.POST("/generate", middleware.RequireRoles(staff...), timetableHandler.Generate)
	tt.GET("/versions", timetableHandler.ListVersions)
	tt.GET("/versions/:id/slots", timetableHandler.Slots)
	tt.POST("/versions/:id/activate", middleware.RequireRoles(staff...), timetableHandler.Activate)
	tt.DELETE("/versions/:id", middleware.RequireRoles(staff...), timetableHandler.Delete)
	tt.GET("/versions/:id/pdf", timetableHandler.ExportPDF)
	tt.GET("/versions/:id/csv", timetableHandler.ExportCSV)
	tt.GET("/active", timetableHandler.Active)
	tt.GET("/config", timetableHandler.GetConfig)
	tt.PUT("/config", middleware.RequireRoles(staff...), timetableHandler.UpsertConfig)
	tt.POST("/versions/:id/export", middleware.RequireRoles(staff...), exportHandler.Enqueue)
	tt.GET("/exports/:jobId", exportHandler.Status)

	// Download tokens are HMAC signed; no session is required.
	api.GET("/export/:token", exportHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
