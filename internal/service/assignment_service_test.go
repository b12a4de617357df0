package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/pkg/ai"
)

type stubAssistant struct {
	suggestion ai.GradingSuggestion
	err        error
	inputs     []ai.GradingInput
}

func (s *stubAssistant) Suggest(ctx context.Context, input ai.GradingInput) (ai.GradingSuggestion, error) {
	s.inputs = append(s.inputs, input)
	return s.suggestion, s.err
}

func (s *stubAssistant) Provider() string {
	return "stub"
}

type gradingHarness struct {
	*fixture
	assignments AssignmentService
	submissions *submissionService
	grading     *gradingService
	notifier    *recordingNotifier
	activity    *memoryActivityRepo
	assistant   *stubAssistant
	course      models.Course
	teacher     Actor
	student     Actor
	clock       time.Time
}

func newGradingHarness(t *testing.T) *gradingHarness {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()

	courses := repository.NewAuditedRepository[models.Course](f.db)
	lessons := repository.NewAuditedRepository[models.Lesson](f.db)
	members := repository.NewCourseMemberRepository(f.db)

	teacher := f.actorFor(t, "teacher@edu.test", models.RoleTeacher)
	student := f.actorFor(t, "student@edu.test", models.RoleStudent)

	course := models.Course{Code: "MTH-201", Title: "Algebra", Status: models.CourseStatusPublished, IsPublished: true}
	course.StampCreated(teacher.ID, testEpoch)
	require.NoError(t, courses.Create(ctx, &course))
	require.NoError(t, members.Create(ctx, &models.CourseMember{CourseID: course.ID, UserID: student.ID, Role: models.MemberRoleStudent, IsActive: true, JoinedAt: testEpoch}))

	notifier := &recordingNotifier{}
	activity := &memoryActivityRepo{}
	recorder := NewActivityService(activity, testLogger())
	deps := SubmissionDependencies{
		Submissions: repository.NewAuditedRepository[models.Submission](f.db),
		Assignments: repository.NewAuditedRepository[models.Assignment](f.db),
		Members:     members,
		History:     repository.NewGradeHistoryRepository(f.db),
		Transactor:  f.transactor,
		Notifier:    notifier,
		Activity:    recorder,
	}

	h := &gradingHarness{
		fixture:     f,
		assignments: NewAssignmentService(deps.Assignments, courses, lessons, recorder, testValidator(), testLogger()),
		notifier:    notifier,
		activity:    activity,
		assistant:   &stubAssistant{suggestion: ai.GradingSuggestion{Score: 8, MaxScore: 10, Feedback: "solid"}},
		course:      course,
		teacher:     teacher,
		student:     student,
		clock:       testEpoch.Add(time.Hour),
	}
	clock := func() time.Time { return h.clock }
	h.submissions = newSubmissionService(deps, testValidator(), testLogger(), clock)
	h.grading = newGradingService(deps, h.assistant, testValidator(), testLogger(), clock)
	return h
}

func (h *gradingHarness) publishedAssignment(t *testing.T, due time.Time) models.Assignment {
	t.Helper()
	ctx := context.Background()
	assignment, err := h.assignments.Create(ctx, h.teacher, dto.AssignmentCreateRequest{
		CourseID: h.course.ID,
		Title:    "Quadratic equations",
		DueDate:  due,
		MaxScore: 10,
	})
	require.NoError(t, err)

	published, err := h.assignments.Update(ctx, h.teacher, assignment.ID, dto.AssignmentPatch{Status: ptrString(models.AssignmentStatusPublished)})
	require.NoError(t, err)
	return published
}

func TestAssignmentVisibilityAndPermissions(t *testing.T) {
	h := newGradingHarness(t)
	ctx := context.Background()

	_, err := h.assignments.Create(ctx, h.student, dto.AssignmentCreateRequest{CourseID: h.course.ID, Title: "Nope", DueDate: testEpoch})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = h.assignments.Create(ctx, h.teacher, dto.AssignmentCreateRequest{CourseID: 999, Title: "Ghost", DueDate: testEpoch})
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	draft, err := h.assignments.Create(ctx, h.teacher, dto.AssignmentCreateRequest{CourseID: h.course.ID, Title: "Draft work", DueDate: testEpoch})
	require.NoError(t, err)
	require.Equal(t, float64(100), draft.MaxScore)
	require.Equal(t, models.AssignmentStatusDraft, draft.Status)

	_, err = h.assignments.Get(ctx, h.student, draft.ID, false)
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	published := h.publishedAssignment(t, testEpoch.Add(48*time.Hour))

	page, err := h.assignments.List(ctx, h.student, dto.AssignmentListRequest{CourseID: h.course.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, published.ID, page.Items[0].ID)

	page, err = h.assignments.List(ctx, h.teacher, dto.AssignmentListRequest{CourseID: h.course.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	require.NoError(t, h.assignments.Delete(ctx, h.teacher, draft.ID))
	err = h.assignments.Delete(ctx, h.teacher, draft.ID)
	require.True(t, errors.Is(err, apperror.ErrInvalidState))
}

func TestSubmissionDraftSubmitAndLateness(t *testing.T) {
	h := newGradingHarness(t)
	ctx := context.Background()
	assignment := h.publishedAssignment(t, testEpoch.Add(2*time.Hour))

	outsider := h.actorFor(t, "outsider@edu.test", models.RoleStudent)
	_, err := h.submissions.CreateDraft(ctx, outsider, dto.SubmissionDraftRequest{AssignmentID: assignment.ID})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	draft, err := h.submissions.CreateDraft(ctx, h.student, dto.SubmissionDraftRequest{AssignmentID: assignment.ID, Content: "x = 2"})
	require.NoError(t, err)
	require.Equal(t, string(models.GradingStatusDraft), draft.Grading.Status)
	require.Equal(t, models.SubmissionTypeText, draft.Type)

	_, err = h.submissions.CreateDraft(ctx, h.student, dto.SubmissionDraftRequest{AssignmentID: assignment.ID})
	require.True(t, errors.Is(err, apperror.ErrConflict))

	_, err = h.submissions.UpdateDraft(ctx, outsider, draft.ID, dto.SubmissionDraftPatch{Content: ptrString("stolen")})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	updated, err := h.submissions.UpdateDraft(ctx, h.student, draft.ID, dto.SubmissionDraftPatch{Content: ptrString("x = 2 or x = -2")})
	require.NoError(t, err)
	require.Equal(t, "x = 2 or x = -2", updated.Content)

	h.clock = testEpoch.Add(3 * time.Hour)
	submitted, err := h.submissions.Submit(ctx, h.student, draft.ID, dto.SubmitRequest{})
	require.NoError(t, err)
	require.Equal(t, string(models.GradingStatusLate), submitted.Grading.Status)
	require.True(t, submitted.Grading.IsLate)
	require.NotNil(t, submitted.Grading.SubmittedAt)

	_, err = h.submissions.Submit(ctx, h.student, draft.ID, dto.SubmitRequest{})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	_, err = h.submissions.UpdateDraft(ctx, h.student, draft.ID, dto.SubmissionDraftPatch{Content: ptrString("too late")})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	err = h.submissions.Delete(ctx, h.student, draft.ID)
	require.True(t, errors.Is(err, apperror.ErrInvalidState))
}

func TestSubmissionRejectedForUnpublishedAssignment(t *testing.T) {
	h := newGradingHarness(t)
	ctx := context.Background()

	assignment, err := h.assignments.Create(ctx, h.teacher, dto.AssignmentCreateRequest{CourseID: h.course.ID, Title: "Hidden", DueDate: testEpoch})
	require.NoError(t, err)

	_, err = h.submissions.CreateDraft(ctx, h.student, dto.SubmissionDraftRequest{AssignmentID: assignment.ID})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))
}

func TestGradingRecordsHistoryAndNotifies(t *testing.T) {
	h := newGradingHarness(t)
	ctx := context.Background()
	assignment := h.publishedAssignment(t, testEpoch.Add(48*time.Hour))

	draft, err := h.submissions.CreateDraft(ctx, h.student, dto.SubmissionDraftRequest{AssignmentID: assignment.ID, Content: "answer"})
	require.NoError(t, err)

	_, err = h.grading.Grade(ctx, h.teacher, draft.ID, dto.GradeRequest{Score: ptrFloat(5)})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	_, err = h.grading.Suggest(ctx, h.teacher, draft.ID)
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	_, err = h.submissions.Submit(ctx, h.student, draft.ID, dto.SubmitRequest{})
	require.NoError(t, err)

	_, err = h.grading.Grade(ctx, h.student, draft.ID, dto.GradeRequest{Score: ptrFloat(5)})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = h.grading.Grade(ctx, h.teacher, draft.ID, dto.GradeRequest{Score: ptrFloat(11)})
	require.True(t, errors.Is(err, apperror.ErrValidation))

	graded, err := h.grading.Grade(ctx, h.teacher, draft.ID, dto.GradeRequest{Score: ptrFloat(7), Feedback: "good"})
	require.NoError(t, err)
	require.Equal(t, string(models.GradingStatusGraded), graded.Grading.Status)
	require.Equal(t, 7.0, *graded.Grading.Score)
	require.Equal(t, 10.0, *graded.Grading.MaxScore)
	require.Equal(t, h.teacher.ID, *graded.Grading.GradedBy)

	_, err = h.grading.Grade(ctx, h.teacher, draft.ID, dto.GradeRequest{Score: ptrFloat(8)})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	h.clock = h.clock.Add(time.Hour)
	regraded, err := h.grading.Regrade(ctx, h.teacher, draft.ID, dto.GradeRequest{Score: ptrFloat(9), Feedback: "better on review"})
	require.NoError(t, err)
	require.Equal(t, 9.0, *regraded.Grading.Score)

	history, err := h.grading.History(ctx, h.student, draft.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.False(t, history[0].Regrade)
	require.True(t, history[1].Regrade)
	require.Equal(t, 7.0, history[0].Score)

	fetched, err := h.submissions.Get(ctx, h.student, draft.ID, false)
	require.NoError(t, err)
	require.Len(t, fetched.History, 2)

	require.Equal(t, []string{NotificationSubmissionGraded, NotificationSubmissionGraded}, h.notifier.types())
	require.Contains(t, h.activity.actions(), "submission.regraded")
}

func TestGradingSuggestionIsAdvisory(t *testing.T) {
	h := newGradingHarness(t)
	ctx := context.Background()
	assignment := h.publishedAssignment(t, testEpoch.Add(48*time.Hour))

	draft, err := h.submissions.CreateDraft(ctx, h.student, dto.SubmissionDraftRequest{AssignmentID: assignment.ID, Content: "answer"})
	require.NoError(t, err)
	_, err = h.submissions.Submit(ctx, h.student, draft.ID, dto.SubmitRequest{})
	require.NoError(t, err)

	suggestion, err := h.grading.Suggest(ctx, h.teacher, draft.ID)
	require.NoError(t, err)
	require.Equal(t, "stub", suggestion.Provider)
	require.Equal(t, 8.0, suggestion.Score)
	require.Len(t, h.assistant.inputs, 1)
	require.Equal(t, "answer", h.assistant.inputs[0].Content)

	fetched, err := h.submissions.Get(ctx, h.teacher, draft.ID, false)
	require.NoError(t, err)
	require.Equal(t, string(models.GradingStatusSubmitted), fetched.Grading.Status)

	h.grading.assistant = nil
	_, err = h.grading.Suggest(ctx, h.teacher, draft.ID)
	require.True(t, errors.Is(err, apperror.ErrUnavailable))
}

func TestSubmissionListScopedToOwnerForStudents(t *testing.T) {
	h := newGradingHarness(t)
	ctx := context.Background()
	assignment := h.publishedAssignment(t, testEpoch.Add(48*time.Hour))

	classmate := h.actorFor(t, "classmate@edu.test", models.RoleStudent)
	members := repository.NewCourseMemberRepository(h.db)
	require.NoError(t, members.Create(ctx, &models.CourseMember{CourseID: h.course.ID, UserID: classmate.ID, Role: models.MemberRoleStudent, IsActive: true, JoinedAt: testEpoch}))

	_, err := h.submissions.CreateDraft(ctx, h.student, dto.SubmissionDraftRequest{AssignmentID: assignment.ID})
	require.NoError(t, err)
	other, err := h.submissions.CreateDraft(ctx, classmate, dto.SubmissionDraftRequest{AssignmentID: assignment.ID})
	require.NoError(t, err)

	page, err := h.submissions.List(ctx, h.student, dto.SubmissionListRequest{AssignmentID: assignment.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, h.student.ID, page.Items[0].UserID)

	page, err = h.submissions.List(ctx, h.teacher, dto.SubmissionListRequest{AssignmentID: assignment.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	_, err = h.submissions.Get(ctx, h.student, other.ID, false)
	require.True(t, errors.Is(err, apperror.ErrForbidden))
}
