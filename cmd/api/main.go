package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/config"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/handler"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/router"
	"github.com/noah-isme/edu-center-api/internal/security"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/pkg/ai"
	cloud "github.com/noah-isme/edu-center-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(ctx, database.PoolConfig{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, realtime fan-out limited to redis")
		} else {
			defer natsConn.Drain()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	transactor := database.NewTransactor(db)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)

	tokens, err := security.NewTokenManager(security.TokenConfig{
		Secret:        cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
		AccessTTL:     cfg.AccessTokenTTL,
		RememberMeTTL: cfg.RememberMeTTL(),
		RefreshTTL:    cfg.RefreshTokenTTL(),
	})
	if err != nil {
		log.Fatalf("failed to create token manager: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	denylist := repository.NewTokenDenylist(redisClient, "edu:revoked")
	activityRepo := repository.NewActivityLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	memberRepo := repository.NewCourseMemberRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	historyRepo := repository.NewGradeHistoryRepository(db)
	overviewRepo := repository.NewOverviewRepository(db)
	courseRepo := repository.NewAuditedRepository[models.Course](db)
	lessonRepo := repository.NewAuditedRepository[models.Lesson](db)
	materialRepo := repository.NewAuditedRepository[models.TeachingMaterial](db)
	staffRepo := repository.NewAuditedRepository[models.StaffAssignment](db)
	assignmentRepo := repository.NewAuditedRepository[models.Assignment](db)
	submissionRepo := repository.NewAuditedRepository[models.Submission](db)
	examRepo := repository.NewAuditedRepository[models.Exam](db)
	attemptRepo := repository.NewAuditedRepository[models.ExamSubmission](db)
	paymentRepo := repository.NewAuditedRepository[models.Payment](db)
	messageRepo := repository.NewAuditedRepository[models.Message](db)
	topicRepo := repository.NewAuditedRepository[models.ForumTopic](db)
	postRepo := repository.NewAuditedRepository[models.ForumPost](db)

	activityService := service.NewActivityService(activityRepo, logger)
	activityFeedService := service.NewActivityFeedService(activityRepo, redisClient, cfg.ActivityFeedCacheTTL, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	notificationService.Start(ctx)

	seedService := service.NewSeedService(userRepo, roleRepo, transactor, hasher, logger)
	if _, err := seedService.SeedRoles(ctx); err != nil {
		log.Fatalf("failed to seed roles: %v", err)
	}
	if cfg.BootstrapAdminEmail != "" {
		if err := seedService.BootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
			log.Fatalf("failed to bootstrap administrator: %v", err)
		}
	}

	authService := service.NewAuthService(service.AuthDependencies{
		Users:      userRepo,
		Roles:      roleRepo,
		Denylist:   denylist,
		Transactor: transactor,
		Hasher:     hasher,
		Tokens:     tokens,
		Activity:   activityService,
	}, validate, logger)
	userService := service.NewUserService(userRepo, roleRepo, transactor, activityService, validate, logger)
	courseService := service.NewCourseService(courseRepo, lessonRepo, memberRepo, activityService, validate, logger)

	var storage service.FileStorage
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Configured() {
		uploader, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured, material uploads disabled")
	}
	materialService := service.NewMaterialService(materialRepo, courseRepo, lessonRepo, storage, cfg.UploadMaxMB, validate, logger)

	staffService := service.NewStaffService(staffRepo, courseRepo, userRepo, activityService, validate, logger)
	enrollmentService := service.NewEnrollmentService(service.EnrollmentDependencies{
		Requests:   enrollmentRepo,
		Courses:    courseRepo,
		Members:    memberRepo,
		Users:      userRepo,
		Transactor: transactor,
		Notifier:   notificationService,
		Activity:   activityService,
	}, validate, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, courseRepo, lessonRepo, activityService, validate, logger)

	submissionDeps := service.SubmissionDependencies{
		Submissions: submissionRepo,
		Assignments: assignmentRepo,
		Members:     memberRepo,
		History:     historyRepo,
		Transactor:  transactor,
		Notifier:    notificationService,
		Activity:    activityService,
	}
	submissionService := service.NewSubmissionService(submissionDeps, validate, logger)

	var assistant ai.GradingAssistant
	if cfg.AIProvider == "openai" && cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAIAssistant(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create grading assistant: %v", err)
		}
		assistant = openAI
	}
	gradingService := service.NewGradingService(submissionDeps, assistant, validate, logger)

	examService := service.NewExamService(examRepo, courseRepo, activityService, validate, logger)
	attemptService := service.NewExamSubmissionService(service.ExamSubmissionDependencies{
		Attempts:   attemptRepo,
		Exams:      examRepo,
		Members:    memberRepo,
		Transactor: transactor,
		Notifier:   notificationService,
		Activity:   activityService,
	}, validate, logger)
	paymentService := service.NewPaymentService(paymentRepo, userRepo, transactor, notificationService, activityService, validate, logger)
	messageService := service.NewMessageService(service.MessageDependencies{
		Messages:    messageRepo,
		Users:       userRepo,
		Members:     memberRepo,
		Notifier:    notificationService,
		Redis:       redisClient,
		ChannelBase: cfg.RealtimeChannel,
		NATS:        natsConn,
	}, validate, logger)
	messageService.Start(ctx)
	forumService := service.NewForumService(service.ForumDependencies{
		Topics:     topicRepo,
		Posts:      postRepo,
		Courses:    courseRepo,
		Members:    memberRepo,
		Users:      userRepo,
		Transactor: transactor,
		Notifier:   notificationService,
		Activity:   activityService,
	}, validate, logger)
	overviewService := service.NewOverviewService(overviewRepo, redisClient, cfg.OverviewCacheTTL, logger)

	healthChecks := []handler.DependencyCheck{{
		Name:  "postgres",
		Check: func(ctx context.Context) error { return database.Ping(ctx, db) },
	}}
	if redisClient != nil {
		healthChecks = append(healthChecks, handler.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService, userService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		SeedHandler:         handler.NewSeedHandler(seedService, logger),
		CourseHandler:       handler.NewCourseHandler(courseService, logger),
		MaterialHandler:     handler.NewMaterialHandler(materialService, logger),
		StaffHandler:        handler.NewStaffHandler(staffService, logger),
		EnrollmentHandler:   handler.NewEnrollmentHandler(enrollmentService, logger),
		AssignmentHandler:   handler.NewAssignmentHandler(assignmentService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, gradingService, logger),
		ExamHandler:         handler.NewExamHandler(examService, attemptService, logger),
		PaymentHandler:      handler.NewPaymentHandler(paymentService, logger),
		MessageHandler:      handler.NewMessageHandler(messageService, logger),
		ForumHandler:        handler.NewForumHandler(forumService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		ActivityHandler:     handler.NewActivityHandler(activityService, activityFeedService, logger),
		OverviewHandler:     handler.NewOverviewHandler(overviewService, logger),
		Authenticate:        middleware.Authenticate(authService),
		HealthChecks:        healthChecks,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
