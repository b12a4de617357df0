package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/config"
	"github.com/noah-isme/edu-center-api/internal/handler"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/observability"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	SeedHandler         *handler.SeedHandler
	CourseHandler       *handler.CourseHandler
	MaterialHandler     *handler.MaterialHandler
	StaffHandler        *handler.StaffHandler
	EnrollmentHandler   *handler.EnrollmentHandler
	AssignmentHandler   *handler.AssignmentHandler
	SubmissionHandler   *handler.SubmissionHandler
	ExamHandler         *handler.ExamHandler
	PaymentHandler      *handler.PaymentHandler
	MessageHandler      *handler.MessageHandler
	ForumHandler        *handler.ForumHandler
	NotificationHandler *handler.NotificationHandler
	ActivityHandler     *handler.ActivityHandler
	OverviewHandler     *handler.OverviewHandler
	Authenticate        fiber.Handler
	HealthChecks        []handler.DependencyCheck
	Metrics             prometheus.Gatherer
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(deps.Metrics))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))

	// Without an authenticator every protected route answers 401.
	authenticate := deps.Authenticate
	if authenticate == nil {
		authenticate = func(c *fiber.Ctx) error {
			return utils.SendAppError(c, apperror.Unauthenticated("authentication is not configured"))
		}
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", cfg.AuthRateLimitPerMinute, time.Minute))
		deps.AuthHandler.Register(auth, authenticate)
	}

	if deps.UserHandler != nil {
		users := api.Group("/users", authenticate)
		if deps.CourseHandler != nil {
			deps.CourseHandler.RegisterUserCourses(users)
		}
		deps.UserHandler.Register(users)
		deps.UserHandler.RegisterRoles(api.Group("/roles", authenticate))
		deps.UserHandler.RegisterPermissions(api.Group("/permissions", authenticate))
	}

	if deps.SeedHandler != nil {
		seed := api.Group("/seed", authenticate, middleware.Require(models.PermissionRoleManage))
		deps.SeedHandler.Register(seed)
	}

	if deps.CourseHandler != nil {
		courses := api.Group("/courses", authenticate)
		deps.CourseHandler.Register(courses)
		if deps.MaterialHandler != nil {
			deps.MaterialHandler.RegisterCourseRoutes(courses)
		}
		if deps.StaffHandler != nil {
			deps.StaffHandler.RegisterCourseRoutes(courses)
		}
		deps.CourseHandler.RegisterLessons(api.Group("/lessons", authenticate))
	}

	if deps.MaterialHandler != nil {
		deps.MaterialHandler.Register(api.Group("/materials", authenticate))
	}

	if deps.StaffHandler != nil {
		deps.StaffHandler.Register(api.Group("/staff-assignments", authenticate))
	}

	if deps.EnrollmentHandler != nil {
		deps.EnrollmentHandler.Register(api.Group("/enrollment-requests", authenticate))
	}

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(api.Group("/assignments", authenticate))
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions", authenticate))
	}

	if deps.ExamHandler != nil {
		deps.ExamHandler.Register(api.Group("/exams", authenticate))
		deps.ExamHandler.RegisterSubmissions(api.Group("/exam-submissions", authenticate))
	}

	if deps.PaymentHandler != nil {
		deps.PaymentHandler.Register(api.Group("/payments", authenticate))
	}

	if deps.MessageHandler != nil {
		deps.MessageHandler.Register(api.Group("/messages", authenticate))
	}

	if deps.ForumHandler != nil {
		deps.ForumHandler.Register(api.Group("/forum", authenticate))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", authenticate))
	}

	admin := api.Group("/admin", authenticate)
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.RegisterFeed(api.Group("/activities", authenticate))
		deps.ActivityHandler.Register(admin.Group("/activities", middleware.Require(models.PermissionActivityView)))
	}
	if deps.OverviewHandler != nil {
		deps.OverviewHandler.Register(admin.Group("/overview", middleware.Require(models.PermissionReportView)))
	}
}
