package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academy-admin-api/api/swagger"
	"github.com/noah-isme/academy-admin-api/internal/handler"
	"github.com/noah-isme/academy-admin-api/internal/middleware"
	"github.com/noah-isme/academy-admin-api/internal/models"
	"github.com/noah-isme/academy-admin-api/internal/repository"
	"github.com/noah-isme/academy-admin-api/internal/service"
	"github.com/noah-isme/academy-admin-api/pkg/cache"
	"github.com/noah-isme/academy-admin-api/pkg/certpdf"
	"github.com/noah-isme/academy-admin-api/pkg/config"
	"github.com/noah-isme/academy-admin-api/pkg/database"
	"github.com/noah-isme/academy-admin-api/pkg/events"
	"github.com/noah-isme/academy-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academy-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academy-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/academy-admin-api/pkg/ratelimit"
	"github.com/noah-isme/academy-admin-api/pkg/signedurl"
)

// @title Academy Admin API
// @version 1.0.0
// @description Student, course, enrollment and certificate administration for a training academy
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, verification cache disabled and rate limiting kept in memory", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)

	dispatcher := events.NewDispatcher(service.NewAuditEventHandler(userRepo, logr), events.Config{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.Retries,
		Logger:     logr,
	})
	dispatcher.Start(context.Background())
	eventSvc := service.NewEventService(dispatcher, logr)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Certificates.CacheTTL, logr, cfg.Certificates.CacheEnabled && cacheRepo != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(studentRepo, enrollmentRepo, eventSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, eventSvc, metricsSvc, validate, logr)
	certificateSvc := service.NewCertificateService(service.CertificateServiceDeps{
		Repo:        certificateRepo,
		Enrollments: enrollmentRepo,
		Students:    studentRepo,
		Courses:     courseRepo,
		Cache:       cacheSvc,
		Events:      eventSvc,
		Metrics:     metricsSvc,
		Signer:      signedurl.NewSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL),
		Renderer:    certpdf.NewRenderer(cfg.Certificates.IssuerName),
		Validator:   validate,
		Logger:      logr,
	}, service.CertificateConfig{
		CacheTTL:   cfg.Certificates.CacheTTL,
		IssuerName: cfg.Certificates.IssuerName,
		VerifyURL:  cfg.Certificates.VerifyBaseURL,
	})

	limiter := newLimiter(cfg.RateLimit, redisClient)

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc, cfg.APIPrefix+"/certificates/download")
	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", middleware.RateLimit(limiter, "login", metricsSvc, logr), authHandler.Login)
	api.GET("/certificates/verify/:code", middleware.RateLimit(limiter, "verify", metricsSvc, logr), certificateHandler.Verify)
	api.GET("/certificates/download/:token", certificateHandler.Download)

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	admin.GET("/auth/me", authHandler.Me)

	students := admin.Group("/students", middleware.Audit(userRepo, "students", logr))
	students.GET("", studentHandler.List)
	students.POST("", studentHandler.Create)
	students.GET("/:id", studentHandler.Get)
	students.PATCH("/:id/status", studentHandler.ChangeStatus)
	students.DELETE("/:id", studentHandler.Delete)

	courses := admin.Group("/courses", middleware.Audit(userRepo, "courses", logr))
	courses.GET("", courseHandler.List)
	courses.POST("", courseHandler.Create)
	courses.GET("/:id", courseHandler.Get)

	enrollments := admin.Group("/enrollments", middleware.Audit(userRepo, "enrollments", logr))
	enrollments.GET("", enrollmentHandler.List)
	enrollments.GET("/export", enrollmentHandler.Export)
	enrollments.POST("", enrollmentHandler.Create)
	enrollments.GET("/:id", enrollmentHandler.Get)
	enrollments.PATCH("/:id/status", enrollmentHandler.ChangeStatus)
	enrollments.PATCH("/:id/progress", enrollmentHandler.UpdateProgress)

	certificates := admin.Group("/certificates", middleware.Audit(userRepo, "certificates", logr))
	certificates.POST("", certificateHandler.Issue)
	certificates.GET("/:id", certificateHandler.Get)
	certificates.POST("/:id/revoke", certificateHandler.Revoke)
	certificates.GET("/:id/download-link", certificateHandler.DownloadLink)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	dispatcher.Stop()
}

func newLimiter(cfg config.RateLimitConfig, client *redis.Client) ratelimit.Limiter {
	if !cfg.Enabled {
		return nil
	}
	if client != nil {
		return ratelimit.NewRedisSlidingWindow(client, "ratelimit", cfg.Requests, cfg.Window)
	}
	return ratelimit.NewMemorySlidingWindow(cfg.Requests, cfg.Window)
}
