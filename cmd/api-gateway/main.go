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

	_ "github.com/noah-isme/task-scheduler-api/api/swagger"
	"github.com/noah-isme/task-scheduler-api/internal/handler"
	internalmiddleware "github.com/noah-isme/task-scheduler-api/internal/middleware"
	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
	_ "github.com/noah-isme/task-scheduler-api/internal/optimizer/backends"
	"github.com/noah-isme/task-scheduler-api/internal/planner"
	"github.com/noah-isme/task-scheduler-api/internal/repository"
	"github.com/noah-isme/task-scheduler-api/internal/service"
	"github.com/noah-isme/task-scheduler-api/pkg/cache"
	"github.com/noah-isme/task-scheduler-api/pkg/config"
	"github.com/noah-isme/task-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/task-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/task-scheduler-api/pkg/middleware/requestid"
)

// @title Task Scheduler API
// @version 1.0.0
// @description Places prioritized tasks on a single-resource timeline around reserved windows and busy intervals.
// @BasePath /
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	solver, err := optimizer.New(cfg.Solver.Backend, optimizer.Params{
		TimeLimit: cfg.Solver.TimeLimit,
		Workers:   cfg.Solver.Workers,
	})
	if err != nil {
		logr.Fatal("solver backend unavailable", zap.String("backend", cfg.Solver.Backend), zap.Strings("available", optimizer.Backends()), zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()
	deps := map[string]handler.Pinger{}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis, 5*time.Second)
		if err != nil {
			logr.Warn("result cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			deps["redis"] = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cacheRepo != nil)

	schedulerSvc := service.NewTaskSchedulerService(
		planner.New(solver, planner.Options{MinHorizon: cfg.Scheduler.MinHorizon, MaxTasks: cfg.Scheduler.MaxTasks}),
		validator.New(),
		cacheSvc,
		metricsSvc,
		logr,
		service.TaskSchedulerConfig{
			SolverName: solver.Name(),
			Timeout:    cfg.Solver.Timeout,
			CacheTTL:   cfg.Cache.TTL,

			MaxConcurrent: cfg.Solver.MaxConcurrent,
		},
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, solver.Name()))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, deps)
	schedulerHandler := handler.NewTaskSchedulerHandler(schedulerSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.POST("/", schedulerHandler.Legacy)

	api := r.Group(cfg.APIPrefix)
	if cfg.JWT.Enabled {
		tokens := service.NewTokenService(cfg.JWT.Secret, "task-scheduler-api")
		api.Use(internalmiddleware.JWT(tokens))
	}
	api.GET("/metrics/summary", metricsHandler.Summary)
	schedules := api.Group("/schedules")
	if cfg.JWT.Enabled {
		schedules.Use(internalmiddleware.RequireScope(service.ScopeScheduleWrite))
	}
	schedules.POST("", schedulerHandler.Schedule)
	schedules.POST("/export", schedulerHandler.Export)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "solver", solver.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	// in-flight solves are bounded by the solve timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Solver.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
