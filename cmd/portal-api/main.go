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

	_ "github.com/noah-isme/clinic-portal-api/api/swagger"
	"github.com/noah-isme/clinic-portal-api/internal/handler"
	"github.com/noah-isme/clinic-portal-api/internal/middleware"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/repository"
	"github.com/noah-isme/clinic-portal-api/internal/semester"
	"github.com/noah-isme/clinic-portal-api/internal/service"
	"github.com/noah-isme/clinic-portal-api/pkg/cache"
	"github.com/noah-isme/clinic-portal-api/pkg/config"
	"github.com/noah-isme/clinic-portal-api/pkg/database"
	"github.com/noah-isme/clinic-portal-api/pkg/fetch"
	"github.com/noah-isme/clinic-portal-api/pkg/jobs"
	"github.com/noah-isme/clinic-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/clinic-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/clinic-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/clinic-portal-api/pkg/storage"
)

// @title Clinic Portal API
// @version 1.0.0
// @description Aggregated dashboards, debriefs, check-ins and documents for the clinic portal
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

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

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metrics := service.NewMetricsService()
	validate := validator.New()
	checks := map[string]handler.Pinger{}

	headers := http.Header{}
	if cfg.Backend.APIKey != "" {
		headers.Set("apikey", cfg.Backend.APIKey)
		headers.Set("Authorization", "Bearer "+cfg.Backend.APIKey)
	}
	client := fetch.New(fetch.Options{
		HTTPClient:      &http.Client{Timeout: cfg.Backend.Timeout},
		MaxRetries:      cfg.Backend.MaxRetries,
		BackoffBase:     cfg.Backend.BackoffBase,
		JitterMax:       cfg.Backend.JitterMax,
		SequentialDelay: cfg.Backend.SequentialDelay,
		Headers:         headers,
		Logger:          logr.Named("fetch"),
		Observer:        metrics,
	})
	backend := repository.NewBackendRepository(client, cfg.Backend.BaseURL, logr.Named("backend"))

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, logr)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(nil, logr)
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		checks["redis"] = redisPinger{client: redisClient}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	queue := jobs.NewQueue("portal", jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr.Named("jobs"),
	})
	invalidator := service.NewInvalidator(cacheSvc, queue, logr)
	queue.Start(ctx)
	defer queue.Stop()

	var db *sqlx.DB
	if cfg.Attendance.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if cfg.Database.MigrateOnStart {
			if err := database.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		checks["postgres"] = db
	}

	calendar := semester.DefaultCalendar()
	calendar.ClassHour = cfg.Syllabus.ClassHour
	calendar.ClassMinute = cfg.Syllabus.ClassMinute

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Backend:   backend,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr.Named("dashboard"),
		Config: service.DashboardServiceConfig{
			CacheTTL:               cfg.Dashboard.CacheTTL,
			TopN:                   cfg.Dashboard.TopN,
			SemesterID:             cfg.Dashboard.SemesterID,
			HoursPerStudentPerWeek: cfg.Syllabus.HoursPerStudentPerWeek,
			ClientHoursTarget:      cfg.Syllabus.ClientHoursTarget,
			Clinics:                cfg.Dashboard.Clinics,
			Calendar:               calendar,
		},
	})
	sessions := service.NewDashboardSessionService(dashboardSvc, metrics, logr.Named("sessions"), service.DashboardSessionConfig{TTL: cfg.Dashboard.SessionTTL})
	defer sessions.Close()
	go sweepSessions(ctx, sessions, cfg.Dashboard.SessionTTL, logr)

	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	debriefSvc := service.NewDebriefService(backend, invalidator, validate, cfg.Dashboard.SemesterID, logr.Named("debriefs"))

	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, nil)
	if cfg.Exports.Enabled {
		dashboardHandler = handler.NewDashboardHandler(dashboardSvc, service.NewExportService(dashboardSvc, nil, nil, logr.Named("exports")))
	}
	sessionHandler := handler.NewDashboardSessionHandler(dashboardSvc, sessions)
	debriefHandler := handler.NewDebriefHandler(debriefSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/metrics", "/health"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	dashboard := api.Group("/dashboard", middleware.RequireFeature("dashboard", cfg.Dashboard.Enabled), middleware.WithResponseMeta())
	dashboard.GET("", dashboardHandler.Dashboard)
	dashboard.GET("/weekly-summary", dashboardHandler.WeeklySummary)
	dashboard.GET("/export", middleware.RequireFeature("exports", cfg.Exports.Enabled), middleware.Staff(), dashboardHandler.Export)
	dashboard.GET("/sessions/:id", sessionHandler.Get)
	dashboard.PUT("/sessions/:id/selection", sessionHandler.UpdateSelection)
	dashboard.DELETE("/sessions/:id", sessionHandler.Delete)

	api.GET("/student/progress", middleware.WithResponseMeta(), dashboardHandler.StudentProgress)

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/audit", dashboardHandler.Audit)
	admin.GET("/status", metricsHandler.Status)
	admin.POST("/cache/invalidate", middleware.Audit(logr, "cache.invalidate"), dashboardHandler.InvalidateCache)

	api.POST("/debriefs", middleware.Audit(logr, "debrief.submit"), debriefHandler.Submit)
	api.GET("/debriefs", debriefHandler.List)
	api.PATCH("/debriefs/:id/review", middleware.Staff(), middleware.Audit(logr, "debrief.review"), debriefHandler.Review)

	attendance := api.Group("/attendance", middleware.RequireFeature("attendance", cfg.Attendance.Enabled))
	if db != nil {
		attendanceSvc := service.NewAttendanceService(
			repository.NewAttendancePasswordRepository(db),
			backend,
			invalidator,
			metrics,
			validate,
			service.AttendanceServiceConfig{SemesterID: cfg.Dashboard.SemesterID, BcryptCost: cfg.Attendance.BcryptCost},
			logr.Named("attendance"),
		)
		attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
		attendance.POST("/passwords", middleware.Staff(), middleware.Audit(logr, "attendance.password"), attendanceHandler.SetPassword)
		attendance.GET("/passwords", middleware.Staff(), attendanceHandler.ListPasswords)
		attendance.POST("/check-in", middleware.RequireRoles(models.RoleStudent), middleware.Audit(logr, "attendance.check_in"), attendanceHandler.CheckIn)
	}

	documents := api.Group("/documents", middleware.RequireFeature("uploads", cfg.Uploads.Enabled))
	if cfg.Uploads.Enabled {
		blobs, err := storage.NewLocalStorage(cfg.Uploads.StorageDir, cfg.Uploads.PublicBaseURL)
		if err != nil {
			return fmt.Errorf("init uploads storage: %w", err)
		}
		documentSvc := service.NewDocumentService(
			backend,
			blobs,
			storage.NewUploadSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
			validate,
			service.DocumentServiceConfig{
				APIPrefix:    cfg.APIPrefix,
				MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
				AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
			},
			logr.Named("documents"),
		)
		documentHandler := handler.NewDocumentHandler(documentSvc)
		documents.POST("/upload-url", documentHandler.UploadURL)
		documents.PUT("/upload/:token", documentHandler.Upload)
		documents.POST("", middleware.Audit(logr, "document.register"), documentHandler.Register)
		documents.GET("", documentHandler.List)
		documents.GET("/files/*key", documentHandler.Download)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepSessions(ctx context.Context, sessions *service.DashboardSessionService, ttl time.Duration, logr *zap.Logger) {
	interval := ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logr.Debug("expired dashboard sessions", zap.Int("count", n))
			}
		}
	}
}
