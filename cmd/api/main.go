package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gandhamprakashtech/stumart-api/api/swagger"
	"github.com/gandhamprakashtech/stumart-api/internal/handler"
	"github.com/gandhamprakashtech/stumart-api/internal/middleware"
	"github.com/gandhamprakashtech/stumart-api/internal/models"
	"github.com/gandhamprakashtech/stumart-api/internal/repository"
	"github.com/gandhamprakashtech/stumart-api/internal/service"
	"github.com/gandhamprakashtech/stumart-api/pkg/cache"
	"github.com/gandhamprakashtech/stumart-api/pkg/config"
	"github.com/gandhamprakashtech/stumart-api/pkg/database"
	"github.com/gandhamprakashtech/stumart-api/pkg/jobs"
	"github.com/gandhamprakashtech/stumart-api/pkg/logger"
	corsmiddleware "github.com/gandhamprakashtech/stumart-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gandhamprakashtech/stumart-api/pkg/middleware/requestid"
	"github.com/gandhamprakashtech/stumart-api/pkg/storage"
)

// @title StuMart API
// @version 1.0.0
// @description Campus marketplace with PIN-gated enrollment
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, true)
		}
	}

	pinRepo := repository.NewPINRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	productRepo := repository.NewProductRepository(db)
	userRepo := repository.NewUserRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	pinSvc := service.NewPINService(pinRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, pinRepo, validate, logr)
	productSvc := service.NewProductService(productRepo, studentRepo, cacheSvc, cfg.Catalog.CacheTTL, validate, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "stumart-api",
	})

	var exportSvc *service.ExportService
	var exportHandler *handler.ExportHandler
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		queue := jobs.NewQueue("roster_exports", func(ctx context.Context, job jobs.Job) error {
			return exportSvc.Handle(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc = service.NewExportService(exportJobRepo, pinRepo, queue, store, signer, service.ExportConfig{
			APIPrefix:       cfg.APIPrefix,
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		}, logr)
		queue.Start(ctx)
		defer queue.Stop()
		exportSvc.RecoverPendingJobs(ctx)
		exportSvc.StartCleanup(ctx)
		exportHandler = handler.NewExportHandler(exportSvc)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	pinHandler := handler.NewPINHandler(pinSvc, metricsSvc)
	productHandler := handler.NewProductHandler(productSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
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
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public surface: catalog browsing and signup. Browsing accepts but does
	// not require a token so logged-in requests carry their claims.
	api.GET("/products", middleware.OptionalJWT(authSvc), productHandler.Browse)
	api.POST("/students/register", studentHandler.Register)
	api.GET("/students/verify", studentHandler.Verify)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/products/mine", productHandler.Mine)
	authed.POST("/products", productHandler.Create)
	authed.PUT("/products/:id", productHandler.Update)
	authed.DELETE("/products/:id", productHandler.Deactivate)
	authed.GET("/students/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), studentHandler.Get)

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/pins/range", middleware.Audit(userRepo, models.AuditActionPINCreate, "pins"), pinHandler.CreateRange)
	admin.POST("/pins/individual", middleware.Audit(userRepo, models.AuditActionPINCreate, "pins"), pinHandler.CreateIndividual)
	admin.GET("/pins/availability/joining-years", pinHandler.JoiningYears)
	admin.GET("/pins/availability/branches", pinHandler.Branches)
	admin.GET("/pins/availability/years", pinHandler.Years)
	admin.GET("/pins/availability/sections", pinHandler.Sections)
	admin.GET("/pins/availability/pins", pinHandler.AvailablePINs)
	admin.GET("/pins/stats", pinHandler.Stats)
	admin.POST("/pins/bulk-delete", middleware.Audit(userRepo, models.AuditActionPINDelete, "pins"), pinHandler.BulkDelete)
	admin.DELETE("/pins/:pinNumber", middleware.Audit(userRepo, models.AuditActionPINDelete, "pins"), pinHandler.Delete)
	admin.POST("/pins/:pinNumber/block", middleware.Audit(userRepo, models.AuditActionPINBlock, "pins"), pinHandler.Block)
	admin.POST("/pins/:pinNumber/unblock", middleware.Audit(userRepo, models.AuditActionPINBlock, "pins"), pinHandler.Unblock)
	admin.GET("/students", studentHandler.List)
	admin.POST("/students/:id/moderate", studentHandler.Moderate)
	admin.POST("/products/:id/moderate", middleware.Audit(userRepo, models.AuditActionProductModerate, "products"), productHandler.Moderate)
	admin.GET("/system/metrics", metricsHandler.Snapshot)

	if exportHandler != nil {
		admin.POST("/exports", middleware.Audit(userRepo, models.AuditActionExportCreate, "exports"), exportHandler.Create)
		admin.GET("/exports/:id", exportHandler.Status)
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
