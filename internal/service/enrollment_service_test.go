package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []dto.NotificationCreateRequest
}

func (r *recordingNotifier) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, payload)
	return dto.NotificationResponse{UserID: payload.UserID, Type: payload.Type, Message: payload.Message}, nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.sent))
	for _, payload := range r.sent {
		kinds = append(kinds, payload.Type)
	}
	return kinds
}

type staleEnrollmentRepo struct {
	repository.EnrollmentRepository
}

func (s staleEnrollmentRepo) WithTx(tx *gorm.DB) repository.EnrollmentRepository {
	return staleEnrollmentRepo{EnrollmentRepository: s.EnrollmentRepository.WithTx(tx)}
}

func (s staleEnrollmentRepo) SaveIfStatus(ctx context.Context, request *models.EnrollmentRequest, expected models.EnrollmentStatus) (bool, error) {
	return false, nil
}

type enrollmentHarness struct {
	*fixture
	deps     EnrollmentDependencies
	service  EnrollmentService
	notifier *recordingNotifier
	activity *memoryActivityRepo
	course   models.Course
	staff    Actor
}

func newEnrollmentHarness(t *testing.T, maxStudents int) *enrollmentHarness {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()

	courses := repository.NewAuditedRepository[models.Course](f.db)
	staff := f.actorFor(t, "staff@edu.test", models.RoleStaff)
	course := models.Course{Code: "ENG-101", Title: "English", Status: models.CourseStatusPublished, IsPublished: true, MaxStudents: maxStudents}
	course.StampCreated(staff.ID, testEpoch)
	require.NoError(t, courses.Create(ctx, &course))

	notifier := &recordingNotifier{}
	activity := &memoryActivityRepo{}
	deps := EnrollmentDependencies{
		Requests:   repository.NewEnrollmentRepository(f.db),
		Courses:    courses,
		Members:    repository.NewCourseMemberRepository(f.db),
		Users:      f.users,
		Transactor: f.transactor,
		Notifier:   notifier,
		Activity:   NewActivityService(activity, testLogger()),
	}
	svc := NewEnrollmentService(deps, testValidator(), testLogger())
	svc.(*enrollmentService).now = fixedClock(testEpoch.Add(time.Hour))

	return &enrollmentHarness{fixture: f, deps: deps, service: svc, notifier: notifier, activity: activity, course: course, staff: staff}
}

func TestEnrollmentCreateRejectsActiveDuplicates(t *testing.T) {
	h := newEnrollmentHarness(t, 0)
	ctx := context.Background()
	student := h.actorFor(t, "student@edu.test", models.RoleStudent)

	created, err := h.service.Create(ctx, student, dto.EnrollmentCreateRequest{CourseID: h.course.ID, Notes: "please"})
	require.NoError(t, err)
	require.Equal(t, string(models.EnrollmentStatusPending), created.Status)
	require.Nil(t, created.ResponseDate)

	_, err = h.service.Create(ctx, student, dto.EnrollmentCreateRequest{CourseID: h.course.ID})
	require.True(t, errors.Is(err, apperror.ErrConflict))

	_, err = h.service.Create(ctx, student, dto.EnrollmentCreateRequest{CourseID: 4242})
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = h.service.Decide(ctx, h.staff, created.ID, dto.EnrollmentDecisionRequest{Outcome: "approved"})
	require.NoError(t, err)

	_, err = h.service.Create(ctx, student, dto.EnrollmentCreateRequest{CourseID: h.course.ID})
	require.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestEnrollmentDecideApprovesOnceAndAdmitsMember(t *testing.T) {
	h := newEnrollmentHarness(t, 0)
	ctx := context.Background()
	student := h.actorFor(t, "student@edu.test", models.RoleStudent)

	created, err := h.service.Create(ctx, student, dto.EnrollmentCreateRequest{CourseID: h.course.ID})
	require.NoError(t, err)

	_, err = h.service.Decide(ctx, student, created.ID, dto.EnrollmentDecisionRequest{Outcome: "approved"})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = h.service.Decide(ctx, h.staff, created.ID, dto.EnrollmentDecisionRequest{Outcome: "maybe"})
	require.True(t, errors.Is(err, apperror.ErrValidation))

	decided, err := h.service.Decide(ctx, h.staff, created.ID, dto.EnrollmentDecisionRequest{Outcome: "approved", Notes: "welcome"})
	require.NoError(t, err)
	require.Equal(t, string(models.EnrollmentStatusApproved), decided.Status)
	require.NotNil(t, decided.ResponseDate)
	require.Equal(t, testEpoch.Add(time.Hour), decided.ResponseDate.UTC())
	require.Equal(t, h.staff.ID, *decided.AssignedStaffID)

	_, err = h.service.Decide(ctx, h.staff, created.ID, dto.EnrollmentDecisionRequest{Outcome: "rejected"})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	member, err := h.deps.Members.IsMember(ctx, h.course.ID, student.ID)
	require.NoError(t, err)
	require.True(t, member)

	require.Equal(t, []string{NotificationEnrollmentDecided}, h.notifier.types())
	require.Equal(t, []string{"enrollment.requested", "enrollment.approved"}, h.activity.actions())

	_, err = h.service.Decide(ctx, h.staff, 999, dto.EnrollmentDecisionRequest{Outcome: "approved"})
	require.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestEnrollmentApprovalReactivatesSuspendedMember(t *testing.T) {
	h := newEnrollmentHarness(t, 0)
	ctx := context.Background()
	student := h.actorFor(t, "student@edu.test", models.RoleStudent)
	require.NoError(t, h.deps.Members.Create(ctx, &models.CourseMember{
		CourseID: h.course.ID, UserID: student.ID, Role: models.MemberRoleAuditor, JoinedAt: testEpoch,
	}))

	created, err := h.service.Create(ctx, student, dto.EnrollmentCreateRequest{CourseID: h.course.ID})
	require.NoError(t, err)
	_, err = h.service.Decide(ctx, h.staff, created.ID, dto.EnrollmentDecisionRequest{Outcome: "approved"})
	require.NoError(t, err)

	member, err := h.deps.Members.Get(ctx, h.course.ID, student.ID)
	require.NoError(t, err)
	require.True(t, member.IsActive)
	require.Equal(t, models.MemberRoleStudent, member.Role)
	require.Equal(t, testEpoch, member.JoinedAt.UTC())
}

func TestEnrollmentApprovalFailsWhenCourseIsFull(t *testing.T) {
	h := newEnrollmentHarness(t, 1)
	ctx := context.Background()
	first := h.actorFor(t, "first@edu.test", models.RoleStudent)
	second := h.actorFor(t, "second@edu.test", models.RoleStudent)

	one, err := h.service.Create(ctx, first, dto.EnrollmentCreateRequest{CourseID: h.course.ID})
	require.NoError(t, err)
	two, err := h.service.Create(ctx, second, dto.EnrollmentCreateRequest{CourseID: h.course.ID})
	require.NoError(t, err)

	_, err = h.service.Decide(ctx, h.staff, one.ID, dto.EnrollmentDecisionRequest{Outcome: "approved"})
	require.NoError(t, err)

	_, err = h.service.Decide(ctx, h.staff, two.ID, dto.EnrollmentDecisionRequest{Outcome: "approved"})
	require.True(t, errors.Is(err, apperror.ErrConflict))

	stillPending, err := h.service.Get(ctx, h.staff, two.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.EnrollmentStatusPending), stillPending.Status)
	require.Nil(t, stillPending.ResponseDate)

	rejected, err := h.service.Decide(ctx, h.staff, two.ID, dto.EnrollmentDecisionRequest{Outcome: "rejected"})
	require.NoError(t, err)
	require.Equal(t, string(models.EnrollmentStatusRejected), rejected.Status)
}

func TestEnrollmentDecideReportsConcurrentModification(t *testing.T) {
	h := newEnrollmentHarness(t, 0)
	ctx := context.Background()
	student := h.actorFor(t, "student@edu.test", models.RoleStudent)

	created, err := h.service.Create(ctx, student, dto.EnrollmentCreateRequest{CourseID: h.course.ID})
	require.NoError(t, err)

	deps := h.deps
	deps.Requests = staleEnrollmentRepo{EnrollmentRepository: deps.Requests}
	racing := NewEnrollmentService(deps, testValidator(), testLogger())

	_, err = racing.Decide(ctx, h.staff, created.ID, dto.EnrollmentDecisionRequest{Outcome: "approved"})
	require.True(t, errors.Is(err, apperror.ErrConflict))

	member, err := h.deps.Members.IsMember(ctx, h.course.ID, student.ID)
	require.NoError(t, err)
	require.False(t, member)
}

func TestEnrollmentCancelAndListVisibility(t *testing.T) {
	h := newEnrollmentHarness(t, 0)
	ctx := context.Background()
	owner := h.actorFor(t, "owner@edu.test", models.RoleStudent)
	other := h.actorFor(t, "other@edu.test", models.RoleStudent)

	mine, err := h.service.Create(ctx, owner, dto.EnrollmentCreateRequest{CourseID: h.course.ID})
	require.NoError(t, err)
	_, err = h.service.Create(ctx, other, dto.EnrollmentCreateRequest{CourseID: h.course.ID})
	require.NoError(t, err)

	_, err = h.service.Cancel(ctx, other, mine.ID, dto.EnrollmentCancelRequest{})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = h.service.Get(ctx, other, mine.ID)
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	cancelled, err := h.service.Cancel(ctx, owner, mine.ID, dto.EnrollmentCancelRequest{Notes: "changed my mind"})
	require.NoError(t, err)
	require.Equal(t, string(models.EnrollmentStatusCancelled), cancelled.Status)
	require.NotNil(t, cancelled.ResponseDate)

	_, err = h.service.Cancel(ctx, owner, mine.ID, dto.EnrollmentCancelRequest{})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	own, err := h.service.List(ctx, owner, dto.EnrollmentListRequest{})
	require.NoError(t, err)
	require.Len(t, own.Items, 1)

	all, err := h.service.List(ctx, h.staff, dto.EnrollmentListRequest{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
	require.Equal(t, other.ID, all.Items[0].UserID)

	handler := h.actorFor(t, "handler@edu.test", models.RoleStaff)
	assigned, err := h.service.AssignHandler(ctx, h.staff, all.Items[0].ID, dto.EnrollmentAssignRequest{StaffID: handler.ID})
	require.NoError(t, err)
	require.Equal(t, handler.ID, *assigned.AssignedStaffID)

	byHandler, err := h.service.List(ctx, h.staff, dto.EnrollmentListRequest{AssignedStaffID: handler.ID})
	require.NoError(t, err)
	require.Len(t, byHandler.Items, 1)

	_, err = h.service.AssignHandler(ctx, h.staff, all.Items[0].ID, dto.EnrollmentAssignRequest{StaffID: owner.ID})
	require.True(t, errors.Is(err, apperror.ErrValidation))
}
