package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campus-adp/schedule-change-api/api/swagger"
	"github.com/campus-adp/schedule-change-api/internal/handler"
	internalmiddleware "github.com/campus-adp/schedule-change-api/internal/middleware"
	"github.com/campus-adp/schedule-change-api/internal/models"
	"github.com/campus-adp/schedule-change-api/internal/repository"
	"github.com/campus-adp/schedule-change-api/internal/service"
	"github.com/campus-adp/schedule-change-api/pkg/cache"
	"github.com/campus-adp/schedule-change-api/pkg/config"
	"github.com/campus-adp/schedule-change-api/pkg/database"
	"github.com/campus-adp/schedule-change-api/pkg/logger"
	corsmiddleware "github.com/campus-adp/schedule-change-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campus-adp/schedule-change-api/pkg/middleware/requestid"
)

// @title Schedule Change API
// @version 1.0.0
// @description Schedule change request and eligibility engine
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

	var redisClient *redis.Client
	if cfg.Eligibility.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, eligibility cache disabled", "error", err)
			redisClient = nil
		}
	}

	validate := validator.New()

	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, metricsSvc, logr)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	capacitySvc := service.NewCapacityService(enrollmentRepo, logr)
	eligibilitySvc := service.NewEligibilityService(catalogRepo, enrollmentRepo, historyRepo, capacitySvc, cacheRepo, cfg.Eligibility.CacheTTL, logr)
	requestSvc := service.NewRequestService(requestRepo, catalogRepo, enrollmentRepo, eligibilitySvc, auditRepo, validate, logr,
		service.WithDecisionRecorder(metricsSvc),
		service.WithMaxListPageSize(cfg.Requests.MaxListPageSize),
	)

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	eligibilityHandler := handler.NewEligibilityHandler(eligibilitySvc, capacitySvc, catalogRepo)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.POST("/auth/login", authHandler.Login)

	secured := r.Group("", internalmiddleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)

	if cfg.Requests.Enabled {
		secured.POST("/requests", internalmiddleware.RequireRoles(models.RoleStudent), requestHandler.Create)
		secured.GET("/requests", requestHandler.List)
		secured.GET("/requests/:id", requestHandler.Get)
		secured.POST("/requests/:id/reviews", requestHandler.Review)
		secured.POST("/requests/:id/resolve", internalmiddleware.RequireReviewer(), requestHandler.Resolve)
		secured.POST("/requests/:id/cancel", internalmiddleware.RequireRoles(models.RoleStudent), requestHandler.Cancel)
		secured.GET("/schedule", requestHandler.Schedule)
	}

	secured.GET("/eligibility/:groupId", eligibilityHandler.Evaluate)
	secured.GET("/groups/:groupId/capacity", eligibilityHandler.Capacity)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
