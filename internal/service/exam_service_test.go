package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

const sampleQuestions = `[
  {"id": "q1", "type": "multiple_choice", "prompt": "2 + 2?", "points": 5, "options": ["3", "4"], "answer": "4"},
  {"id": "q2", "type": "essay", "prompt": "Explain limits.", "points": 5}
]`

type examHarness struct {
	*fixture
	exams    *examService
	attempts *examSubmissionService
	notifier *recordingNotifier
	course   models.Course
	teacher  Actor
	student  Actor
	clock    time.Time
}

func newExamHarness(t *testing.T) *examHarness {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()

	courses := repository.NewAuditedRepository[models.Course](f.db)
	members := repository.NewCourseMemberRepository(f.db)
	teacher := f.actorFor(t, "teacher@edu.test", models.RoleTeacher)
	student := f.actorFor(t, "student@edu.test", models.RoleStudent)

	course := models.Course{Code: "PHY-110", Title: "Physics", Status: models.CourseStatusPublished, IsPublished: true}
	course.StampCreated(teacher.ID, testEpoch)
	require.NoError(t, courses.Create(ctx, &course))
	require.NoError(t, members.Create(ctx, &models.CourseMember{CourseID: course.ID, UserID: student.ID, Role: models.MemberRoleStudent, IsActive: true, JoinedAt: testEpoch}))

	h := &examHarness{fixture: f, notifier: &recordingNotifier{}, course: course, teacher: teacher, student: student, clock: testEpoch.Add(time.Hour)}
	clock := func() time.Time { return h.clock }
	recorder := NewActivityService(&memoryActivityRepo{}, testLogger())
	examRepo := repository.NewAuditedRepository[models.Exam](f.db)

	h.exams = newExamService(examRepo, courses, recorder, testValidator(), testLogger(), clock)
	h.attempts = newExamSubmissionService(ExamSubmissionDependencies{
		Attempts:   repository.NewAuditedRepository[models.ExamSubmission](f.db),
		Exams:      examRepo,
		Members:    members,
		Transactor: f.transactor,
		Notifier:   h.notifier,
		Activity:   recorder,
	}, testValidator(), testLogger(), clock)
	return h
}

func (h *examHarness) openExam(t *testing.T, req dto.ExamCreateRequest) models.Exam {
	t.Helper()
	ctx := context.Background()
	req.CourseID = h.course.ID
	if req.Title == "" {
		req.Title = "Kinematics quiz"
	}
	if req.Type == "" {
		req.Type = models.ExamTypeQuiz
	}
	exam, err := h.exams.Create(ctx, h.teacher, req)
	require.NoError(t, err)
	exam, err = h.exams.ChangeStatus(ctx, h.teacher, exam.ID, dto.ExamStatusRequest{Status: string(models.ExamStatusPublished)})
	require.NoError(t, err)
	return exam
}

func TestExamQuestionsAreValidatedAgainstSchema(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()

	_, err := h.exams.Create(ctx, h.teacher, dto.ExamCreateRequest{
		CourseID:  h.course.ID,
		Title:     "Broken",
		Type:      models.ExamTypeQuiz,
		Questions: json.RawMessage(`[{"id": "q1", "type": "multiple_choice", "prompt": "pick", "points": 1}]`),
	})
	require.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = h.exams.Create(ctx, h.teacher, dto.ExamCreateRequest{
		CourseID:  h.course.ID,
		Title:     "Not JSON",
		Type:      models.ExamTypeQuiz,
		Questions: json.RawMessage(`{"questions": 1}`),
	})
	require.True(t, errors.Is(err, apperror.ErrValidation))

	exam, err := h.exams.Create(ctx, h.teacher, dto.ExamCreateRequest{
		CourseID:  h.course.ID,
		Title:     "Valid",
		Type:      models.ExamTypeQuiz,
		Questions: json.RawMessage(sampleQuestions),
	})
	require.NoError(t, err)
	require.True(t, exam.ShowResults)
	require.Equal(t, float64(100), exam.MaxScore)
}

func TestExamStatusMovesForwardOnlyAndHidesAnswers(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()

	draft, err := h.exams.Create(ctx, h.teacher, dto.ExamCreateRequest{
		CourseID: h.course.ID, Title: "Midterm", Type: models.ExamTypeMidterm, Questions: json.RawMessage(sampleQuestions),
	})
	require.NoError(t, err)

	_, err = h.exams.Get(ctx, h.student, draft.ID, false)
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	active, err := h.exams.ChangeStatus(ctx, h.teacher, draft.ID, dto.ExamStatusRequest{Status: string(models.ExamStatusActive)})
	require.NoError(t, err)
	require.Equal(t, models.ExamStatusActive, active.Status)

	_, err = h.exams.ChangeStatus(ctx, h.teacher, draft.ID, dto.ExamStatusRequest{Status: string(models.ExamStatusPublished)})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	seen, err := h.exams.Get(ctx, h.student, draft.ID, false)
	require.NoError(t, err)
	require.NotContains(t, string(seen.Questions), "answer")

	full, err := h.exams.Get(ctx, h.teacher, draft.ID, false)
	require.NoError(t, err)
	require.Contains(t, string(full.Questions), "answer")

	_, err = h.exams.ChangeStatus(ctx, h.teacher, draft.ID, dto.ExamStatusRequest{Status: string(models.ExamStatusClosed)})
	require.NoError(t, err)
	_, err = h.exams.Update(ctx, h.teacher, draft.ID, dto.ExamPatch{Title: ptrString("Renamed")})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))
}

func TestExamAttemptLimitsAndLateness(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()
	end := testEpoch.Add(3 * time.Hour)
	exam := h.openExam(t, dto.ExamCreateRequest{EndDate: &end, MaxAttempts: 2, AllowMultipleAttempts: true, MaxScore: 20})

	outsider := h.actorFor(t, "outsider@edu.test", models.RoleStudent)
	_, err := h.attempts.Start(ctx, outsider, exam.ID)
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	first, err := h.attempts.Start(ctx, h.student, exam.ID)
	require.NoError(t, err)
	require.Equal(t, 1, first.Attempt)

	_, err = h.attempts.Start(ctx, h.student, exam.ID)
	require.True(t, errors.Is(err, apperror.ErrConflict))

	h.clock = h.clock.Add(30 * time.Minute)
	submitted, err := h.attempts.Submit(ctx, h.student, first.ID, dto.ExamSubmitRequest{Answers: json.RawMessage(`{"q1": "4"}`)})
	require.NoError(t, err)
	require.Equal(t, string(models.GradingStatusSubmitted), submitted.Grading.Status)
	require.Equal(t, 1800, submitted.TimeSpentSeconds)

	second, err := h.attempts.Start(ctx, h.student, exam.ID)
	require.NoError(t, err)
	require.Equal(t, 2, second.Attempt)

	h.clock = end.Add(time.Minute)
	late, err := h.attempts.Submit(ctx, h.student, second.ID, dto.ExamSubmitRequest{Answers: json.RawMessage(`{}`), TimeSpentSeconds: 60})
	require.NoError(t, err)
	require.Equal(t, string(models.GradingStatusLate), late.Grading.Status)

	h.clock = testEpoch.Add(2 * time.Hour)
	_, err = h.attempts.Start(ctx, h.student, exam.ID)
	require.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestExamAttemptRejectedOutsideWindow(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()
	start := testEpoch.Add(24 * time.Hour)
	exam := h.openExam(t, dto.ExamCreateRequest{StartDate: &start})

	_, err := h.attempts.Start(ctx, h.student, exam.ID)
	require.True(t, errors.Is(err, apperror.ErrInvalidState))
}

func TestExamAttemptGradingRespectsShowResults(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()
	hidden := false
	exam := h.openExam(t, dto.ExamCreateRequest{DurationMinutes: 10, ShowResults: &hidden, MaxScore: 50})

	attempt, err := h.attempts.Start(ctx, h.student, exam.ID)
	require.NoError(t, err)

	h.clock = h.clock.Add(15 * time.Minute)
	submitted, err := h.attempts.Submit(ctx, h.student, attempt.ID, dto.ExamSubmitRequest{Answers: json.RawMessage(`{"q1": "4"}`)})
	require.NoError(t, err)
	require.True(t, submitted.Grading.IsLate)

	_, err = h.attempts.Regrade(ctx, h.teacher, attempt.ID, dto.GradeRequest{Score: ptrFloat(10)})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	graded, err := h.attempts.Grade(ctx, h.teacher, attempt.ID, dto.GradeRequest{Score: ptrFloat(40), Feedback: "good"})
	require.NoError(t, err)
	require.Equal(t, 50.0, *graded.Grading.MaxScore)

	regraded, err := h.attempts.Regrade(ctx, h.teacher, attempt.ID, dto.GradeRequest{Score: ptrFloat(45)})
	require.NoError(t, err)
	require.Equal(t, 45.0, *regraded.Grading.Score)

	own, err := h.attempts.Get(ctx, h.student, attempt.ID, false)
	require.NoError(t, err)
	require.Nil(t, own.Grading.Score)
	require.Equal(t, string(models.GradingStatusGraded), own.Grading.Status)

	require.Equal(t, []string{NotificationExamGraded, NotificationExamGraded}, h.notifier.types())

	page, err := h.attempts.List(ctx, h.student, dto.ExamSubmissionListRequest{ExamID: exam.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Nil(t, page.Items[0].Grading.Score)
	require.Empty(t, page.Items[0].Grading.Feedback)

	page, err = h.attempts.List(ctx, h.teacher, dto.ExamSubmissionListRequest{ExamID: exam.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, 45.0, *page.Items[0].Grading.Score)

	stored, err := repository.NewAuditedRepository[models.Exam](h.db).Get(ctx, exam.ID, false)
	require.NoError(t, err)
	require.False(t, stored.ShowResults)
}

func TestExamAttemptDeleteFreesSlotButKeepsNumber(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()
	exam := h.openExam(t, dto.ExamCreateRequest{MaxAttempts: 2, AllowMultipleAttempts: true})

	first, err := h.attempts.Start(ctx, h.student, exam.ID)
	require.NoError(t, err)
	_, err = h.attempts.Submit(ctx, h.student, first.ID, dto.ExamSubmitRequest{Answers: json.RawMessage(`{}`)})
	require.NoError(t, err)

	err = h.attempts.Delete(ctx, h.student, first.ID)
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	second, err := h.attempts.Start(ctx, h.student, exam.ID)
	require.NoError(t, err)

	outsider := h.actorFor(t, "outsider@edu.test", models.RoleStudent)
	err = h.attempts.Delete(ctx, outsider, second.ID)
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = h.attempts.Start(ctx, h.student, exam.ID)
	require.True(t, errors.Is(err, apperror.ErrConflict))

	require.NoError(t, h.attempts.Delete(ctx, h.student, second.ID))
	err = h.attempts.Delete(ctx, h.student, second.ID)
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	third, err := h.attempts.Start(ctx, h.student, exam.ID)
	require.NoError(t, err)
	require.Equal(t, 3, third.Attempt)

	require.NoError(t, h.attempts.Delete(ctx, h.teacher, first.ID))
	page, err := h.attempts.List(ctx, h.student, dto.ExamSubmissionListRequest{ExamID: exam.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, third.ID, page.Items[0].ID)
}
