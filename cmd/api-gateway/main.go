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

	_ "github.com/noah-isme/sma-attendance-lock/api/swagger"
	"github.com/noah-isme/sma-attendance-lock/internal/handler"
	"github.com/noah-isme/sma-attendance-lock/internal/middleware"
	"github.com/noah-isme/sma-attendance-lock/internal/models"
	"github.com/noah-isme/sma-attendance-lock/internal/repository"
	"github.com/noah-isme/sma-attendance-lock/internal/service"
	"github.com/noah-isme/sma-attendance-lock/pkg/cache"
	"github.com/noah-isme/sma-attendance-lock/pkg/clock"
	"github.com/noah-isme/sma-attendance-lock/pkg/config"
	"github.com/noah-isme/sma-attendance-lock/pkg/database"
	"github.com/noah-isme/sma-attendance-lock/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-attendance-lock/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-attendance-lock/pkg/middleware/requestid"
)

// @title SMA Attendance Lock API
// @version 1.0.0
// @description Class session status and attendance unlock requests
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

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.DB, logr); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	wallClock, err := clock.NewSystem(cfg.Sessions.Timezone)
	if err != nil {
		return fmt.Errorf("load session timezone: %w", err)
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(rdb, "attendance-lock:")
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Sessions.CacheTTL, logr, rdb != nil)

	var store service.UnlockRequestStore
	switch cfg.Unlock.Store {
	case config.UnlockStoreMemory:
		logr.Warn("unlock requests are kept in memory and will not survive a restart")
		store = repository.NewMemoryUnlockRequestStore()
	default:
		store = repository.NewUnlockRequestRepository(db)
	}

	audit := service.NewAuditDispatcher(repository.NewAuditRepository(db), service.AuditDispatcherConfig{
		Workers:    2,
		BufferSize: 256,
		RetryDelay: 500 * time.Millisecond,
	}, logr)
	audit.Start(context.Background())
	sessions := service.NewSessionLookupService(repository.NewSessionRepository(db), cacheSvc, cfg.Sessions.CacheTTL, logr)
	resolver := service.NewEffectiveStatusResolver(store)
	workflow := service.NewUnlockWorkflowService(store, sessions, audit, logr,
		service.WithUnlockClock(wallClock),
		service.WithUnlockMetrics(metrics),
		service.WithReasonMaxLength(cfg.Unlock.ReasonMaxLength),
		service.WithUnlockValidator(validator.New()),
	)
	statusSvc := service.NewSessionStatusService(sessions, resolver, wallClock, metrics, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Sessions: sessions,
		Requests: store,
		Resolver: resolver,
		Clock:    wallClock,
		Metrics:  metrics,
		Logger:   logr,
	})
	exportSvc := service.NewExportService(store, audit, wallClock, logr, nil, nil)
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.Expiration,
	})

	deps := map[string]handler.Pinger{"postgres": db}
	if rdb != nil {
		deps["redis"] = cacheRepo
	}

	r := newRouter(cfg, logr, routerDeps{
		tokens:    tokens,
		metrics:   handler.NewMetricsHandler(metrics, deps),
		metricsMw: middleware.Metrics(metrics, "/metrics"),
		status:    handler.NewSessionStatusHandler(statusSvc),
		unlock:    handler.NewUnlockRequestHandler(workflow, exportSvc),
		dashboard: handler.NewDashboardHandler(dashboardSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("unlock_store", cfg.Unlock.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	audit.Stop(shutdownCtx)
	return err
}

type routerDeps struct {
	tokens    middleware.TokenValidator
	metrics   *handler.MetricsHandler
	metricsMw gin.HandlerFunc
	status    *handler.SessionStatusHandler
	unlock    *handler.UnlockRequestHandler
	dashboard *handler.DashboardHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, middleware.ContextUserKey))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(d.metricsMw)

	r.GET("/health", d.metrics.Health)
	r.GET("/ready", d.metrics.Ready)
	r.GET("/metrics", d.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(d.tokens))

	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin)
	teacher := middleware.RequireRoles(models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	sessions := api.Group("/sessions")
	sessions.GET("/:id/status", d.status.Status)
	sessions.GET("/:id/edit-check", staff, d.status.EditCheck)
	sessions.GET("/:id/unlock-requests", staff, d.unlock.History)

	unlock := api.Group("/unlock-requests", teacher)
	unlock.POST("", d.unlock.Create)
	unlock.GET("/mine", d.unlock.Mine)

	adminUnlock := api.Group("/admin/unlock-requests", admin)
	adminUnlock.GET("", d.unlock.Queue)
	adminUnlock.GET("/export", d.unlock.Export)
	adminUnlock.POST("/:id/decision", d.unlock.Decide)

	api.GET("/teacher/dashboard", teacher, d.dashboard.Teacher)

	return r
}
