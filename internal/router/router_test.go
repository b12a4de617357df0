package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-center-api/internal/config"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/handler"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/router"
	"github.com/noah-isme/edu-center-api/internal/security"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/testutil"
	"github.com/noah-isme/edu-center-api/internal/utils"
)

const (
	adminEmail    = "admin@edu.test"
	adminPassword = "admin-password"
)

type envelope[T any] struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Code    string             `json:"code"`
	Data    T                  `json:"data"`
	Meta    map[string]any     `json:"meta"`
	Details []utils.FieldError `json:"details"`
}

type tokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type idData struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
	Email  string `json:"email"`
}

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()

	db := testutil.NewDB(t)
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	transactor := database.NewTransactor(db)
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	cfg := config.Config{AppName: "Edu Test", AppEnv: "test", AuthRateLimitPerMinute: 1000}

	tokens, err := security.NewTokenManager(security.TokenConfig{Secret: "secret", Issuer: "edu-test", AccessTTL: time.Hour})
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	members := repository.NewCourseMemberRepository(db)
	courses := repository.NewAuditedRepository[models.Course](db)
	lessons := repository.NewAuditedRepository[models.Lesson](db)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, logger)

	seed := service.NewSeedService(users, roles, transactor, hasher, logger)
	_, err = seed.SeedRoles(ctx)
	require.NoError(t, err)
	require.NoError(t, seed.BootstrapAdmin(ctx, adminEmail, adminPassword))

	auth := service.NewAuthService(service.AuthDependencies{
		Users:      users,
		Roles:      roles,
		Denylist:   repository.NewTokenDenylist(redisClient, "test:revoked"),
		Transactor: transactor,
		Hasher:     hasher,
		Tokens:     tokens,
		Activity:   activity,
	}, validate, logger)
	userService := service.NewUserService(users, roles, transactor, activity, validate, logger)
	courseService := service.NewCourseService(courses, lessons, members, activity, validate, logger)
	enrollments := service.NewEnrollmentService(service.EnrollmentDependencies{
		Requests:   repository.NewEnrollmentRepository(db),
		Courses:    courses,
		Members:    members,
		Users:      users,
		Transactor: transactor,
		Notifier:   notifications,
		Activity:   activity,
	}, validate, logger)
	overview := service.NewOverviewService(repository.NewOverviewRepository(db), nil, 0, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(auth, userService, logger),
		UserHandler:       handler.NewUserHandler(userService, logger),
		SeedHandler:       handler.NewSeedHandler(seed, logger),
		CourseHandler:     handler.NewCourseHandler(courseService, logger),
		EnrollmentHandler: handler.NewEnrollmentHandler(enrollments, logger),
		OverviewHandler:   handler.NewOverviewHandler(overview, logger),
		Authenticate:      middleware.Authenticate(auth),
	})
	return app
}

func call[T any](t *testing.T, app *fiber.App, method, path, token string, body any) (int, envelope[T]) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope[T]
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp.StatusCode, out
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	status, out := call[tokenData](t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status, out.Message)
	require.NotEmpty(t, out.Data.AccessToken)
	return out.Data.AccessToken
}

func registerStudent(t *testing.T, app *fiber.App, name string) string {
	t.Helper()
	email := name + "@edu.test"
	status, out := call[idData](t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":     email,
		"username":  name,
		"password":  "student-password",
		"full_name": "Student " + name,
	})
	require.Equal(t, http.StatusCreated, status, out.Message)
	return login(t, app, email, "student-password")
}

func TestHealthIsPublic(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Edu Test", resp.Header.Get("X-Application"))
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
}

func TestProtectedRoutesRejectMissingAndForgedTokens(t *testing.T) {
	app := setupApp(t)

	status, out := call[any](t, app, http.MethodGet, "/api/v1/courses", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.False(t, out.Success)
	require.Equal(t, "unauthenticated", out.Code)

	status, out = call[any](t, app, http.MethodGet, "/api/v1/courses", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "unauthenticated", out.Code)
}

func TestRegisterLoginMeAndLogout(t *testing.T) {
	app := setupApp(t)
	token := registerStudent(t, app, "siti")

	status, me := call[idData](t, app, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "siti@edu.test", me.Data.Email)

	status, dup := call[any](t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":     "siti@edu.test",
		"username":  "siti2",
		"password":  "student-password",
		"full_name": "Siti Again",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "conflict", dup.Code)

	status, invalid := call[any](t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":     "not-an-email",
		"username":  "budi",
		"password":  "student-password",
		"full_name": "Budi",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "validation_error", invalid.Code)
	require.NotEmpty(t, invalid.Details)
	require.Equal(t, "email", invalid.Details[0].Field)

	status, _ = call[any](t, app, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, after := call[any](t, app, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "unauthenticated", after.Code)
}

func TestEnrollmentWorkflowOverHTTP(t *testing.T) {
	app := setupApp(t)
	adminToken := login(t, app, adminEmail, adminPassword)
	studentToken := registerStudent(t, app, "rina")

	coursePayload := map[string]any{"code": "GO-101", "title": "Go Fundamentals", "max_students": 10}

	status, forbidden := call[any](t, app, http.MethodPost, "/api/v1/courses", studentToken, coursePayload)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "forbidden", forbidden.Code)

	status, course := call[idData](t, app, http.MethodPost, "/api/v1/courses", adminToken, coursePayload)
	require.Equal(t, http.StatusCreated, status, course.Message)
	require.NotZero(t, course.Data.ID)

	status, request := call[idData](t, app, http.MethodPost, "/api/v1/enrollment-requests", studentToken, map[string]any{"course_id": course.Data.ID})
	require.Equal(t, http.StatusCreated, status, request.Message)
	require.Equal(t, string(models.EnrollmentStatusPending), request.Data.Status)

	status, duplicate := call[any](t, app, http.MethodPost, "/api/v1/enrollment-requests", studentToken, map[string]any{"course_id": course.Data.ID})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "conflict", duplicate.Code)

	decisionPath := fmt.Sprintf("/api/v1/enrollment-requests/%d/decision", request.Data.ID)
	status, _ = call[any](t, app, http.MethodPost, decisionPath, studentToken, map[string]any{"outcome": "approved"})
	require.Equal(t, http.StatusForbidden, status)

	status, decided := call[idData](t, app, http.MethodPost, decisionPath, adminToken, map[string]any{"outcome": "approved"})
	require.Equal(t, http.StatusOK, status, decided.Message)
	require.Equal(t, string(models.EnrollmentStatusApproved), decided.Data.Status)

	status, again := call[any](t, app, http.MethodPost, decisionPath, adminToken, map[string]any{"outcome": "rejected"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "invalid_state", again.Code)

	status, roster := call[[]map[string]any](t, app, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/members", course.Data.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, roster.Data, 1)
	require.NotNil(t, roster.Meta)

	status, mine := call[[]map[string]any](t, app, http.MethodGet, "/api/v1/users/me/courses", studentToken, nil)
	require.Equal(t, http.StatusOK, status, mine.Message)
	require.Len(t, mine.Data, 1)
	require.EqualValues(t, course.Data.ID, mine.Data[0]["course_id"])
	studentID := uint(mine.Data[0]["user_id"].(float64))

	memberPath := fmt.Sprintf("/api/v1/courses/%d/members/%d", course.Data.ID, studentID)
	status, _ = call[any](t, app, http.MethodPatch, memberPath, studentToken, map[string]any{"is_active": false})
	require.Equal(t, http.StatusForbidden, status)

	status, suspended := call[map[string]any](t, app, http.MethodPatch, memberPath, adminToken, map[string]any{"role": "auditor", "is_active": false})
	require.Equal(t, http.StatusOK, status, suspended.Message)
	require.Equal(t, "auditor", suspended.Data["role"])
	require.Equal(t, false, suspended.Data["is_active"])

	status, _ = call[any](t, app, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/courses", studentID), adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = call[any](t, app, http.MethodDelete, memberPath, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, gone := call[any](t, app, http.MethodDelete, memberPath, adminToken, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "not_found", gone.Code)

	status, mine = call[[]map[string]any](t, app, http.MethodGet, "/api/v1/users/me/courses", studentToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, mine.Data)

	status, missing := call[any](t, app, http.MethodGet, "/api/v1/courses/9999", adminToken, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "not_found", missing.Code)
}

func TestAdminRoutesEnforcePermissions(t *testing.T) {
	app := setupApp(t)
	adminToken := login(t, app, adminEmail, adminPassword)
	studentToken := registerStudent(t, app, "dewi")

	status, _ := call[any](t, app, http.MethodGet, "/api/v1/admin/overview", studentToken, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, overview := call[map[string]any](t, app, http.MethodGet, "/api/v1/admin/overview", adminToken, nil)
	require.Equal(t, http.StatusOK, status, overview.Message)
	require.Contains(t, overview.Data, "active_users_by_role")

	status, _ = call[any](t, app, http.MethodPost, "/api/v1/seed/roles", studentToken, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, seeded := call[[]map[string]any](t, app, http.MethodPost, "/api/v1/seed/roles", adminToken, nil)
	require.Equal(t, http.StatusOK, status, seeded.Message)
	require.Len(t, seeded.Data, len(models.DefaultRolePermissions()))
}

func TestRoleAndPermissionCatalogOverHTTP(t *testing.T) {
	app := setupApp(t)
	adminToken := login(t, app, adminEmail, adminPassword)
	studentToken := registerStudent(t, app, "ayu")

	status, _ := call[any](t, app, http.MethodGet, "/api/v1/permissions", studentToken, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, permission := call[map[string]any](t, app, http.MethodPost, "/api/v1/permissions", adminToken, map[string]any{"code": "Report.Export"})
	require.Equal(t, http.StatusCreated, status, permission.Message)
	require.Equal(t, "report.export", permission.Data["code"])
	require.Equal(t, "report", permission.Data["module"])
	permissionID := uint(permission.Data["id"].(float64))

	status, role := call[map[string]any](t, app, http.MethodPost, "/api/v1/roles", adminToken, map[string]any{"name": "registrar"})
	require.Equal(t, http.StatusCreated, status, role.Message)
	rolePath := fmt.Sprintf("/api/v1/roles/%d", uint(role.Data["id"].(float64)))

	status, granted := call[map[string]any](t, app, http.MethodPost, rolePath+"/permissions", adminToken, map[string]any{"permission": "report.export"})
	require.Equal(t, http.StatusOK, status, granted.Message)
	require.Equal(t, []any{"report.export"}, granted.Data["permissions"])

	status, unknown := call[any](t, app, http.MethodPost, rolePath+"/permissions", adminToken, map[string]any{"permission": "nope.nothing"})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "not_found", unknown.Code)

	status, renamed := call[map[string]any](t, app, http.MethodPatch, rolePath, adminToken, map[string]any{"name": "Registry", "description": "front office"})
	require.Equal(t, http.StatusOK, status, renamed.Message)
	require.Equal(t, "registry", renamed.Data["name"])

	status, revoked := call[map[string]any](t, app, http.MethodDelete, rolePath+"/permissions/report.export", adminToken, nil)
	require.Equal(t, http.StatusOK, status, revoked.Message)
	require.Empty(t, revoked.Data["permissions"])

	status, _ = call[any](t, app, http.MethodDelete, fmt.Sprintf("/api/v1/permissions/%d", permissionID), adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = call[any](t, app, http.MethodDelete, rolePath, adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, roles := call[[]map[string]any](t, app, http.MethodGet, "/api/v1/roles", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, roles.Data, len(models.DefaultRolePermissions()))

	var adminRoleID uint
	for _, item := range roles.Data {
		if item["name"] == models.RoleAdmin {
			adminRoleID = uint(item["id"].(float64))
		}
	}
	status, locked := call[any](t, app, http.MethodDelete, fmt.Sprintf("/api/v1/roles/%d/permissions/%s", adminRoleID, models.PermissionRoleManage), adminToken, nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "invalid_state", locked.Code)

	status, _ = call[any](t, app, http.MethodDelete, fmt.Sprintf("/api/v1/roles/%d", adminRoleID), adminToken, nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
}
