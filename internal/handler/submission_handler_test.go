package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/handler"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/security"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/internal/testutil"
)

const actorHeader = "X-Test-Actor"

type submissionEnvelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    struct {
		ID      uint `json:"id"`
		Grading struct {
			Status string   `json:"status"`
			Score  *float64 `json:"score"`
		} `json:"grading"`
	} `json:"data"`
}

type submissionApp struct {
	app        *fiber.App
	assignment models.Assignment
}

func newSubmissionApp(t *testing.T) *submissionApp {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	db := testutil.NewDB(t)
	transactor := database.NewTransactor(db)
	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	_, err := service.NewSeedService(users, roles, transactor, hasher, logger).SeedRoles(ctx)
	require.NoError(t, err)

	actors := map[string]service.Actor{}
	for name, role := range map[string]string{"teacher": models.RoleTeacher, "student": models.RoleStudent, "outsider": models.RoleStudent} {
		user := models.User{Email: name + "@edu.test", Username: name, PasswordHash: "x", FullName: name, IsActive: true}
		require.NoError(t, users.Create(ctx, &user))
		roleModel, err := roles.GetByName(ctx, role)
		require.NoError(t, err)
		require.NoError(t, users.ReplaceRoles(ctx, &user, []models.Role{roleModel}))
		loaded, err := users.GetByID(ctx, user.ID, false)
		require.NoError(t, err)
		actors[name] = service.NewActor(loaded)
	}

	now := time.Now().UTC()
	courses := repository.NewAuditedRepository[models.Course](db)
	course := models.Course{Code: "PHY-110", Title: "Mechanics", Status: models.CourseStatusPublished, IsPublished: true}
	course.StampCreated(actors["teacher"].ID, now)
	require.NoError(t, courses.Create(ctx, &course))

	members := repository.NewCourseMemberRepository(db)
	require.NoError(t, members.Create(ctx, &models.CourseMember{
		CourseID: course.ID, UserID: actors["student"].ID, Role: models.MemberRoleStudent, IsActive: true, JoinedAt: now,
	}))

	assignments := repository.NewAuditedRepository[models.Assignment](db)
	assignment := models.Assignment{
		CourseID: course.ID,
		Title:    "Projectile motion",
		DueDate:  now.Add(72 * time.Hour),
		MaxScore: 20,
		Status:   models.AssignmentStatusPublished,
	}
	assignment.StampCreated(actors["teacher"].ID, now)
	require.NoError(t, assignments.Create(ctx, &assignment))

	deps := service.SubmissionDependencies{
		Submissions: repository.NewAuditedRepository[models.Submission](db),
		Assignments: assignments,
		Members:     members,
		History:     repository.NewGradeHistoryRepository(db),
		Transactor:  transactor,
		Activity:    service.NewActivityService(repository.NewActivityLogRepository(db), logger),
	}
	submissions := service.NewSubmissionService(deps, validate, logger)
	grading := service.NewGradingService(deps, nil, validate, logger)

	app := fiber.New()
	group := app.Group("/api/v1/submissions", func(c *fiber.Ctx) error {
		return middleware.WithActor(actors[c.Get(actorHeader)])(c)
	})
	handler.NewSubmissionHandler(submissions, grading, logger).Register(group)

	return &submissionApp{app: app, assignment: assignment}
}

func (s *submissionApp) do(t *testing.T, as, method, path string, body interface{}) (int, submissionEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "/api/v1/submissions"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorHeader, as)

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope submissionEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func TestSubmissionGradingFlowOverHTTP(t *testing.T) {
	s := newSubmissionApp(t)

	status, envelope := s.do(t, "outsider", http.MethodPost, "", map[string]interface{}{"assignment_id": s.assignment.ID, "content": "v = d/t"})
	require.Equal(t, fiber.StatusForbidden, status)
	require.Equal(t, "forbidden", envelope.Code)

	status, envelope = s.do(t, "student", http.MethodPost, "", map[string]interface{}{"assignment_id": s.assignment.ID, "content": "range = v^2 sin(2a) / g"})
	require.Equal(t, fiber.StatusCreated, status)
	id := strconv.FormatUint(uint64(envelope.Data.ID), 10)

	status, envelope = s.do(t, "teacher", http.MethodPost, "/"+id+"/grade", map[string]interface{}{"score": 10})
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.Equal(t, "invalid_state", envelope.Code)

	status, _ = s.do(t, "student", http.MethodPost, "/"+id+"/submit", nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(t, "student", http.MethodPost, "/"+id+"/grade", map[string]interface{}{"score": 20})
	require.Equal(t, fiber.StatusForbidden, status)

	status, envelope = s.do(t, "teacher", http.MethodPost, "/"+id+"/grade", map[string]interface{}{})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "validation_error", envelope.Code)

	status, envelope = s.do(t, "teacher", http.MethodPost, "/"+id+"/grade", map[string]interface{}{"score": 16, "feedback": "check units"})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, string(models.GradingStatusGraded), envelope.Data.Grading.Status)
	require.Equal(t, 16.0, *envelope.Data.Grading.Score)

	status, _ = s.do(t, "teacher", http.MethodPost, "/"+id+"/grade", map[string]interface{}{"score": 18})
	require.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, envelope = s.do(t, "teacher", http.MethodPost, "/"+id+"/regrade", map[string]interface{}{"score": 18})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, 18.0, *envelope.Data.Grading.Score)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+id+"/history", nil)
	req.Header.Set(actorHeader, "student")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var history struct {
		Data []struct {
			Score   float64 `json:"score"`
			Regrade bool    `json:"regrade"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history.Data, 2)
	require.False(t, history.Data[0].Regrade)
	require.True(t, history.Data[1].Regrade)

	status, envelope = s.do(t, "teacher", http.MethodPost, "/"+id+"/suggestion", nil)
	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.Equal(t, "unavailable", envelope.Code)
}
