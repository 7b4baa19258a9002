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

	_ "github.com/noah-isme/sma-bulletin-api/api/swagger"
	"github.com/noah-isme/sma-bulletin-api/internal/handler"
	"github.com/noah-isme/sma-bulletin-api/internal/middleware"
	"github.com/noah-isme/sma-bulletin-api/internal/repository"
	"github.com/noah-isme/sma-bulletin-api/internal/service"
	"github.com/noah-isme/sma-bulletin-api/pkg/cache"
	"github.com/noah-isme/sma-bulletin-api/pkg/config"
	"github.com/noah-isme/sma-bulletin-api/pkg/database"
	"github.com/noah-isme/sma-bulletin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-bulletin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-bulletin-api/pkg/middleware/requestid"
)

// @title SMA Bulletin API
// @version 1.0.0
// @description Report-card computation, lifecycle and batch generation
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()
	bulletins, batches, refresher := buildServices(cfg, db, redisClient, metrics, logr)
	refresher.Start(ctx)
	defer refresher.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(service.NewTokenVerifier(cfg.JWT.Secret)))
	api.Use(middleware.Audit(logr.Named("audit")))
	handler.NewBulletinHandler(bulletins, batches).Register(api)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Bulletins.BatchTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildServices(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, metrics *service.MetricsService, logr *zap.Logger) (*service.BulletinService, *service.BatchGenerationService, *service.RankRefresher) {
	validate := validator.New()

	var locker service.Locker = service.NewLocalLocker()
	if redisClient != nil {
		locker = service.NewRedisLocker(repository.NewLockRepository(redisClient, "bulletin-api:lock:"), cfg.Bulletins.LockTTL, logr)
	}
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, "bulletin-api:"),
		metrics,
		cfg.Bulletins.CacheTTL,
		logr,
		redisClient != nil,
	)

	bulletins := service.NewBulletinService(service.BulletinDeps{
		Store:       repository.NewBulletinRepository(db),
		Batches:     repository.NewBatchRepository(db),
		Roster:      repository.NewEnrollmentRepository(db),
		Subjects:    repository.NewSubjectRepository(db),
		Assessments: repository.NewAssessmentRepository(db),
		Attendance:  repository.NewAttendanceRepository(db),
		Locker:      locker,
		Cache:       cacheSvc,
		Metrics:     metrics,
	}, service.NewGradeAggregator(cfg.Bulletins.MaxGrade), validate, logr.Named("bulletins"))

	refresher := service.NewRankRefresher(bulletins, service.RankRefresherConfig{
		Workers:    cfg.Bulletins.RankQueueWorkers,
		MaxRetries: cfg.Bulletins.RankQueueRetries,
	}, metrics, logr.Named("rank-queue"))
	bulletins.UseRankScheduler(refresher)

	batches := service.NewBatchGenerationService(
		bulletins,
		cfg.Bulletins.WorkerConcurrency,
		cfg.Bulletins.BatchTimeout,
		validate,
		logr.Named("batches"),
	)
	return bulletins, batches, refresher
}
