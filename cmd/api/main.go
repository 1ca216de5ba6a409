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
	"github.com/redis/go-redis/v9"

	"github.com/edusched/timetable-api/internal/handler"
	"github.com/edusched/timetable-api/internal/middleware"
	"github.com/edusched/timetable-api/internal/repository"
	"github.com/edusched/timetable-api/internal/service"
	"github.com/edusched/timetable-api/internal/solver"
	"github.com/edusched/timetable-api/pkg/cache"
	"github.com/edusched/timetable-api/pkg/config"
	"github.com/edusched/timetable-api/pkg/database"
	"github.com/edusched/timetable-api/pkg/logger"
	corsmiddleware "github.com/edusched/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edusched/timetable-api/pkg/middleware/requestid"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	roomRepo := repository.NewRoomRepository(db)
	cohortRepo := repository.NewCohortRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	assignmentRepo := repository.NewLessonAssignmentRepository(db)
	lessonRepo := repository.NewScheduledLessonRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, cached reads disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	engine := solver.NewEngine(solver.Config{
		TimeBudget:      cfg.Solver.TimeBudget,
		IterationBudget: cfg.Solver.IterationBudget,
		Logger:          logr,
	})
	manager := solver.NewManager(solver.ManagerConfig{
		Engine:   engine,
		Workers:  cfg.Solver.MaxConcurrentRuns,
		Observer: metricsSvc,
		Logger:   logr,
	})
	manager.Start(ctx)
	defer manager.Stop()

	assignmentSvc := service.NewLessonAssignmentService(assignmentRepo, cohortRepo, subjectRepo, lessonRepo, cfg.Policy, validate, logr)
	lessonSvc := service.NewScheduledLessonService(lessonRepo, assignmentRepo, roomRepo, timetableRepo, cfg.Policy, validate, logr)
	solverSvc := service.NewSolverService(assignmentRepo, cohortRepo, roomRepo, manager, cfg.Solver, cfg.Policy, validate, logr)

	timetableSvc := service.NewTimetableService(timetableRepo, lessonRepo, manager, cacheRepo, cfg.Cache, validate, logr)

	assignmentHandler := handler.NewLessonAssignmentHandler(assignmentSvc)
	lessonHandler := handler.NewScheduledLessonHandler(lessonSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	solverHandler := handler.NewSolverHandler(solverSvc)
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
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	v1 := r.Group(cfg.APIPrefix)
	{
		assignments := v1.Group("/lesson-assignments")
		{
			assignments.GET("", assignmentHandler.List)
			assignments.POST("", assignmentHandler.Create)
			assignments.GET("/:id", assignmentHandler.Get)
			assignments.PATCH("/:id/deactivate", assignmentHandler.Deactivate)
			assignments.DELETE("/:id", assignmentHandler.Delete)
		}

		lessons := v1.Group("/scheduled-lessons")
		{
			lessons.GET("", lessonHandler.List)
			lessons.POST("", lessonHandler.Create)
			lessons.GET("/:id", lessonHandler.Get)
			lessons.PUT("/:id", lessonHandler.Update)
			lessons.DELETE("/:id", lessonHandler.Delete)
		}

		timetables := v1.Group("/timetables")
		{
			timetables.GET("", timetableHandler.List)
			timetables.POST("", timetableHandler.Create)
			timetables.GET("/:id", timetableHandler.Get)
			timetables.POST("/:id/publish", timetableHandler.Publish)
			timetables.POST("/:id/archive", timetableHandler.Archive)
			timetables.POST("/:id/revert", timetableHandler.Revert)
			timetables.POST("/:id/apply", timetableHandler.Apply)
			timetables.GET("/:id/export", timetableHandler.Export)
			timetables.DELETE("/:id", timetableHandler.Delete)
		}

		solverRoutes := v1.Group("/solver")
		{
			solverRoutes.POST("/jobs", solverHandler.Submit)
			solverRoutes.GET("/jobs/:id", solverHandler.Status)
			solverRoutes.GET("/jobs/:id/result", solverHandler.Result)
			solverRoutes.DELETE("/jobs/:id", solverHandler.Cancel)
			solverRoutes.POST("/solve", solverHandler.Solve)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
