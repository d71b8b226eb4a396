package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/harmonics-id/music-school-api/api/swagger"
	"github.com/harmonics-id/music-school-api/internal/handler"
	"github.com/harmonics-id/music-school-api/internal/middleware"
	"github.com/harmonics-id/music-school-api/internal/models"
	"github.com/harmonics-id/music-school-api/internal/repository"
	"github.com/harmonics-id/music-school-api/internal/service"
	"github.com/harmonics-id/music-school-api/pkg/cache"
	"github.com/harmonics-id/music-school-api/pkg/config"
	"github.com/harmonics-id/music-school-api/pkg/database"
	"github.com/harmonics-id/music-school-api/pkg/export"
	"github.com/harmonics-id/music-school-api/pkg/jobs"
	"github.com/harmonics-id/music-school-api/pkg/logger"
	corsmiddleware "github.com/harmonics-id/music-school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/harmonics-id/music-school-api/pkg/middleware/requestid"
	"github.com/harmonics-id/music-school-api/pkg/storage"
)

// @title Music School API
// @version 1.0.0
// @description Slot booking and scheduling backend for a music school
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	catalog := service.NewSlotCatalog(cfg.Rooms.Pool)
	locker := database.NewSlotLocker(db)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	mentorRepo := repository.NewMentorRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	sessionEnrollmentRepo := repository.NewSessionEnrollmentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	billRepo := repository.NewBillRepository(db)
	reportRepo := repository.NewReportRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Availability.CacheTTL, logr, cfg.Availability.CacheEnabled)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Availability.CacheTTL, logr, false)
	}

	// Services.
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "music-school-api",
	})
	mentorSvc := service.NewMentorService(mentorRepo, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	courseSvc := service.NewCourseService(courseRepo, mentorRepo, cacheSvc, nil, logr)
	availabilitySvc := service.NewAvailabilityService(courseRepo, sessionRepo, catalog, cacheSvc, cfg.Availability.CacheTTL, logr)
	bookingSvc := service.NewBookingService(
		catalog,
		courseRepo,
		studentRepo,
		enrollmentRepo,
		sessionRepo,
		sessionEnrollmentRepo,
		billRepo,
		locker,
		cacheSvc,
		metricsSvc,
		cfg.Billing.RegistrationFee,
		cfg.Billing.DueIn,
		nil,
		logr,
	)
	rescheduleSvc := service.NewRescheduleService(catalog, sessionRepo, sessionEnrollmentRepo, locker, cacheSvc, metricsSvc, nil, logr)
	sessionSvc := service.NewSessionService(catalog, sessionRepo, sessionEnrollmentRepo, locker, cacheSvc, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, sessionRepo, sessionEnrollmentRepo, locker, cacheSvc, logr)
	billSvc := service.NewBillService(billRepo, enrollmentRepo, logr)
	dashboardSvc := service.NewDashboardService(sessionRepo, sessionEnrollmentRepo, billRepo, studentRepo, catalog, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	// Reports pipeline.
	var reportSvc *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init report storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exporter := service.NewExportService(
			sessionRepo,
			billRepo,
			store,
			signer,
			service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
			logr,
			export.NewCSVExporter(),
			export.NewPDFExporter(),
		)
		worker := service.NewReportWorker(reportRepo, exporter, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)
		reportSvc = service.NewReportService(reportRepo, reportQueue, exporter, nil, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: time.Hour,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	mentorHandler := handler.NewMentorHandler(mentorSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, availabilitySvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc, studentSvc)
	rescheduleHandler := handler.NewRescheduleHandler(rescheduleSvc, studentSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, studentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	billHandler := handler.NewBillHandler(billSvc, studentSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	adminOrMentor := middleware.RequireRoles(models.RoleAdmin, models.RoleMentor)
	studentOrAdmin := middleware.RequireRoles(models.RoleAdmin, models.RoleStudent)

	courses := authed.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.GET("/:id/availability", courseHandler.Availability)
		courses.POST("", adminOnly, middleware.Audit(userRepo, "create", "course"), courseHandler.Create)
		courses.PUT("/:id", adminOnly, middleware.Audit(userRepo, "update", "course"), courseHandler.Update)
		courses.DELETE("/:id", adminOnly, middleware.Audit(userRepo, "deactivate", "course"), courseHandler.Deactivate)
	}

	mentors := authed.Group("/mentors")
	{
		mentors.GET("", mentorHandler.List)
		mentors.GET("/:id", mentorHandler.Get)
		mentors.GET("/:id/sessions", adminOrMentor, sessionHandler.MentorSchedule)
		mentors.POST("", adminOnly, mentorHandler.Create)
		mentors.PUT("/:id", adminOnly, mentorHandler.Update)
		mentors.DELETE("/:id", adminOnly, mentorHandler.Deactivate)
	}

	students := authed.Group("/students")
	students.Use(adminOnly)
	{
		students.GET("", studentHandler.List)
		students.GET("/:id", studentHandler.Get)
		students.GET("/:id/schedule", sessionHandler.StudentSchedule)
		students.POST("", studentHandler.Create)
		students.PUT("/:id", studentHandler.Update)
	}

	authed.POST("/bookings", studentOrAdmin, middleware.Audit(userRepo, "create", "booking"), bookingHandler.Create)

	reschedules := authed.Group("/reschedules")
	{
		reschedules.POST("", studentOrAdmin, rescheduleHandler.Propose)
		reschedules.GET("/pending", adminOnly, rescheduleHandler.ListPending)
		reschedules.POST("/:id/decision", adminOnly, middleware.Audit(userRepo, "decide", "reschedule"), rescheduleHandler.Decide)
	}

	sessions := authed.Group("/sessions")
	{
		sessions.GET("", adminOrMentor, sessionHandler.List)
		sessions.GET("/:id", sessionHandler.Get)
		sessions.POST("/:id/reschedule", studentOrAdmin, rescheduleHandler.Propose)
		sessions.PUT("/:id", adminOnly, middleware.Audit(userRepo, "update", "session"), sessionHandler.Update)
		sessions.DELETE("/:id", adminOnly, middleware.Audit(userRepo, "delete", "session"), sessionHandler.Delete)
	}

	authed.GET("/me/schedule", sessionHandler.MySchedule)

	enrollments := authed.Group("/enrollments")
	enrollments.Use(adminOnly)
	{
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/:id", enrollmentHandler.Get)
		enrollments.DELETE("/:id", enrollmentHandler.Cancel)
	}

	bills := authed.Group("/bills")
	{
		bills.GET("", billHandler.List)
		bills.GET("/:id", billHandler.Get)
		bills.POST("/:id/pay", adminOnly, middleware.Audit(userRepo, "pay", "bill"), billHandler.MarkPaid)
	}

	if cfg.Dashboard.Enabled {
		authed.GET("/dashboard/summary", adminOnly, dashboardHandler.Summary)
	}

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc, mentorSvc)
		reports := api.Group("/reports")
		{
			reports.POST("", middleware.JWT(authSvc), adminOrMentor, reportHandler.Create)
			reports.GET("/:id", middleware.JWT(authSvc), reportHandler.Status)
			// Download is authorized by the signed token alone.
			reports.GET("/download/:token", reportHandler.Download)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
}
