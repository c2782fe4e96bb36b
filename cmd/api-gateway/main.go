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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/schoolcore/school-admin-api/api/swagger"
	"github.com/schoolcore/school-admin-api/internal/handler"
	"github.com/schoolcore/school-admin-api/internal/middleware"
	"github.com/schoolcore/school-admin-api/internal/models"
	"github.com/schoolcore/school-admin-api/internal/repository"
	"github.com/schoolcore/school-admin-api/internal/service"
	"github.com/schoolcore/school-admin-api/pkg/cache"
	"github.com/schoolcore/school-admin-api/pkg/config"
	"github.com/schoolcore/school-admin-api/pkg/database"
	"github.com/schoolcore/school-admin-api/pkg/export"
	"github.com/schoolcore/school-admin-api/pkg/jobs"
	"github.com/schoolcore/school-admin-api/pkg/logger"
	"github.com/schoolcore/school-admin-api/pkg/mailer"
	corsmiddleware "github.com/schoolcore/school-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schoolcore/school-admin-api/pkg/middleware/requestid"
	"github.com/schoolcore/school-admin-api/pkg/storage"
)

// @title School Admin API
// @version 1.0.0
// @description School administration backend: academic structure, registration approval and enrollments
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis is optional: the cache repository degrades to a pass-through
	// when no client is available.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	fileStore, err := storage.NewLocalStorage(cfg.Uploads.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	var mail mailer.Mailer
	if cfg.Mail.Backend == "sendgrid" {
		mail = mailer.NewSendgridMailer(cfg.Mail, logr)
	} else {
		mail = mailer.NewConsoleMailer(logr)
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	mailQueue := jobs.NewQueue("mail", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.Type)
		}
		if err := mail.Send(ctx, msg); err != nil {
			metricsService.RecordMail(0, 1)
			return err
		}
		metricsService.RecordMail(1, 0)
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
		Logger:     logr,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailQueue.Start(rootCtx)
	defer mailQueue.Stop()

	// Repositories.
	yearRepo := repository.NewAcademicYearRepository(db)
	termRepo := repository.NewTermRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	yearService := service.NewAcademicYearService(yearRepo, validate, logr)
	termService := service.NewTermService(termRepo, yearRepo, validate, logr)
	departmentService := service.NewDepartmentService(departmentRepo, validate, logr)
	subjectService := service.NewSubjectService(subjectRepo, departmentRepo, validate, logr)
	classService := service.NewClassService(classRepo, yearRepo, departmentRepo, subjectRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, userRepo, classRepo, validate, logr)
	approvalService := service.NewApprovalService(userRepo, mail, validate, logr)
	authService := service.NewAuthService(userRepo, cacheRepo, fileStore, mailQueue, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "school-admin-api",
		ResetCodeTTL:       cfg.Reset.CodeTTL,
	})
	userService := service.NewUserService(userRepo, fileStore, validate, logr)
	dashboardService := service.NewDashboardService(userRepo, cacheRepo, metricsService, cfg.Stats.CacheTTL, logr)
	exportService := service.NewExportService(enrollmentRepo, classRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	// Handlers.
	yearHandler := handler.NewAcademicYearHandler(yearService)
	termHandler := handler.NewTermHandler(termService)
	departmentHandler := handler.NewDepartmentHandler(departmentService)
	subjectHandler := handler.NewSubjectHandler(subjectService)
	classHandler := handler.NewClassHandler(classService, enrollmentService, exportService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	registrationHandler := handler.NewRegistrationHandler(approvalService)
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/verify-code", authHandler.VerifyResetCode)
	auth.POST("/reset-password", authHandler.ResetPassword)

	authenticated := api.Group("", middleware.JWT(authService))
	authenticated.POST("/auth/logout", authHandler.Logout)
	authenticated.PUT("/auth/password", authHandler.ChangePassword)

	authenticated.GET("/profile", userHandler.Profile)
	authenticated.PUT("/profile", userHandler.UpdateProfile)

	authenticated.GET("/dashboard", dashboardHandler.SchoolStats)
	authenticated.GET("/dashboard/admin", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.AdminStats)

	// The process endpoint enforces the admin check itself so that it can
	// answer with its flat status payload.
	registrations := authenticated.Group("/registrations")
	registrations.GET("/pending", middleware.RequireRoles(models.RoleAdmin), registrationHandler.ListPending)
	registrations.POST("/process", registrationHandler.Process)

	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	users := authenticated.Group("/users")
	users.GET("", adminOnly, userHandler.List)
	users.GET("/:id", middleware.RBAC("ADMIN", "SELF"), userHandler.Get)

	years := authenticated.Group("/academic-years")
	years.GET("", yearHandler.List)
	years.GET("/current", yearHandler.Current)
	years.GET("/:id", yearHandler.Get)
	years.POST("", adminOnly, yearHandler.Create)
	years.PUT("/:id", adminOnly, yearHandler.Update)
	years.PUT("/:id/current", adminOnly, yearHandler.SetCurrent)
	years.DELETE("/:id", adminOnly, yearHandler.Delete)

	terms := authenticated.Group("/terms")
	terms.GET("", termHandler.List)
	terms.GET("/:id", termHandler.Get)
	terms.POST("", adminOnly, termHandler.Create)
	terms.PUT("/:id", adminOnly, termHandler.Update)
	terms.DELETE("/:id", adminOnly, termHandler.Delete)

	departments := authenticated.Group("/departments")
	departments.GET("", departmentHandler.List)
	departments.GET("/:id", departmentHandler.Get)
	departments.POST("", adminOnly, departmentHandler.Create)
	departments.PUT("/:id", adminOnly, departmentHandler.Update)
	departments.DELETE("/:id", adminOnly, departmentHandler.Delete)

	subjects := authenticated.Group("/subjects")
	subjects.GET("", subjectHandler.List)
	subjects.GET("/:id", subjectHandler.Get)
	subjects.POST("", adminOnly, subjectHandler.Create)
	subjects.PUT("/:id", adminOnly, subjectHandler.Update)
	subjects.DELETE("/:id", adminOnly, subjectHandler.Delete)

	classes := authenticated.Group("/classes")
	classes.GET("", classHandler.List)
	classes.GET("/:id", classHandler.Get)
	classes.GET("/:id/subjects", classHandler.Subjects)
	classes.GET("/:id/roster", classHandler.Roster)
	classes.GET("/:id/roster/export", adminOnly, classHandler.ExportRoster)
	classes.POST("", adminOnly, classHandler.Create)
	classes.PUT("/:id", adminOnly, classHandler.Update)
	classes.PUT("/:id/subjects", adminOnly, classHandler.AssignSubjects)
	classes.DELETE("/:id", adminOnly, classHandler.Delete)

	enrollments := authenticated.Group("/enrollments")
	enrollments.GET("", enrollmentHandler.List)
	enrollments.GET("/:id", enrollmentHandler.Get)
	enrollments.POST("", adminOnly, enrollmentHandler.Create)
	enrollments.PUT("/:id", adminOnly, enrollmentHandler.Update)
	enrollments.PUT("/:id/status", adminOnly, enrollmentHandler.UpdateStatus)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
