package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/observability"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

// EnrollmentService runs the enrollment request workflow.
type EnrollmentService interface {
	Create(ctx context.Context, actor Actor, req dto.EnrollmentCreateRequest) (dto.EnrollmentResponse, error)
	Decide(ctx context.Context, actor Actor, id uint, req dto.EnrollmentDecisionRequest) (dto.EnrollmentResponse, error)
	Cancel(ctx context.Context, actor Actor, id uint, req dto.EnrollmentCancelRequest) (dto.EnrollmentResponse, error)
	AssignHandler(ctx context.Context, actor Actor, id uint, req dto.EnrollmentAssignRequest) (dto.EnrollmentResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.EnrollmentResponse, error)
	List(ctx context.Context, actor Actor, req dto.EnrollmentListRequest) (dto.ListResponse[dto.EnrollmentResponse], error)
}

// EnrollmentDependencies groups collaborators of the enrollment workflow.
type EnrollmentDependencies struct {
	Requests   repository.EnrollmentRepository
	Courses    repository.AuditedRepository[models.Course]
	Members    repository.CourseMemberRepository
	Users      repository.UserRepository
	Transactor database.Transactor
	Notifier   Notifier
	Activity   ActivityRecorder
}

type enrollmentService struct {
	requests   repository.EnrollmentRepository
	courses    repository.AuditedRepository[models.Course]
	members    repository.CourseMemberRepository
	users      repository.UserRepository
	transactor database.Transactor
	notifier   Notifier
	activity   ActivityRecorder
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewEnrollmentService constructs the enrollment workflow service.
func NewEnrollmentService(deps EnrollmentDependencies, validate *validator.Validate, logger zerolog.Logger) EnrollmentService {
	return &enrollmentService{
		requests:   deps.Requests,
		courses:    deps.Courses,
		members:    deps.Members,
		users:      deps.Users,
		transactor: deps.Transactor,
		notifier:   deps.Notifier,
		activity:   deps.Activity,
		validator:  validate,
		logger:     logger.With().Str("component", "enrollment_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/edu-center-api/internal/service/enrollment"),
		now:        time.Now,
	}
}

func (s *enrollmentService) Create(ctx context.Context, actor Actor, req dto.EnrollmentCreateRequest) (dto.EnrollmentResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "enrollment.create", trace.WithAttributes(
		attribute.Int64("enrollment.user_id", int64(actor.ID)),
		attribute.Int64("enrollment.course_id", int64(req.CourseID)),
	))
	defer span.End()

	request := models.NewEnrollmentRequest(actor.ID, req.CourseID, strings.TrimSpace(req.Notes), s.now().UTC())
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		course, err := s.courses.WithTx(tx).Get(ctx, req.CourseID, false)
		if err != nil {
			return apperror.FromStorage(err, "course")
		}
		if course.Status == models.CourseStatusArchived {
			return apperror.InvalidState("course is archived")
		}

		member, err := s.members.WithTx(tx).IsMember(ctx, course.ID, actor.ID)
		if err != nil {
			return apperror.Internal(err)
		}
		if member {
			return apperror.Conflict("already a member of this course")
		}

		requests := s.requests.WithTx(tx)
		pending, err := requests.HasPending(ctx, actor.ID, course.ID)
		if err != nil {
			return apperror.Internal(err)
		}
		if pending {
			return apperror.Conflict("a pending enrollment request already exists for this course")
		}

		if err := requests.Create(ctx, &request); err != nil {
			return apperror.FromStorage(err, "pending enrollment request")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return dto.EnrollmentResponse{}, err
	}

	observability.EnrollmentTransitions().WithLabelValues(string(models.EnrollmentStatusPending)).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "enrollment.requested",
		EntityType: "enrollment_request",
		EntityID:   &request.ID,
		Metadata:   map[string]interface{}{"course_id": request.CourseID},
	})

	return dto.NewEnrollmentResponse(request), nil
}

func (s *enrollmentService) Decide(ctx context.Context, actor Actor, id uint, req dto.EnrollmentDecisionRequest) (dto.EnrollmentResponse, error) {
	if err := Authorize(actor, models.PermissionEnrollmentDecide); err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	outcome := models.EnrollmentStatus(req.Outcome)
	ctx, span := s.tracer.Start(ctx, "enrollment.decide", trace.WithAttributes(
		attribute.Int64("enrollment.id", int64(id)),
		attribute.String("enrollment.outcome", req.Outcome),
	))
	defer span.End()

	var request models.EnrollmentRequest
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		loaded, err := requests.GetByID(ctx, id)
		if err != nil {
			return apperror.FromStorage(err, "enrollment request")
		}
		request = loaded

		now := s.now().UTC()
		if err := request.Decide(outcome, actor.ID, strings.TrimSpace(req.Notes), now); err != nil {
			return err
		}
		request.AdditionalRequirements = strings.TrimSpace(req.AdditionalRequirements)

		if outcome == models.EnrollmentStatusApproved {
			if err := s.admit(ctx, tx, request, now); err != nil {
				return err
			}
		}

		saved, err := requests.SaveIfStatus(ctx, &request, models.EnrollmentStatusPending)
		if err != nil {
			return apperror.Internal(err)
		}
		if !saved {
			return apperror.Conflict("enrollment request was decided concurrently")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return dto.EnrollmentResponse{}, err
	}

	observability.EnrollmentTransitions().WithLabelValues(string(request.Status)).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "enrollment." + string(request.Status),
		EntityType: "enrollment_request",
		EntityID:   &request.ID,
		Metadata:   map[string]interface{}{"course_id": request.CourseID, "user_id": request.UserID},
	})
	notify(ctx, s.notifier, s.logger, request.UserID, NotificationEnrollmentDecided,
		fmt.Sprintf("Your enrollment request for course %d was %s.", request.CourseID, request.Status))

	return dto.NewEnrollmentResponse(request), nil
}

// admit creates the course membership for an approved request inside tx.
func (s *enrollmentService) admit(ctx context.Context, tx *gorm.DB, request models.EnrollmentRequest, now time.Time) error {
	course, err := s.courses.WithTx(tx).Get(ctx, request.CourseID, false)
	if err != nil {
		return apperror.FromStorage(err, "course")
	}

	members := s.members.WithTx(tx)
	already, err := members.IsMember(ctx, course.ID, request.UserID)
	if err != nil {
		return apperror.Internal(err)
	}
	if already {
		return nil
	}

	count, err := members.CountActive(ctx, course.ID)
	if err != nil {
		return apperror.Internal(err)
	}
	if !course.HasCapacity(count) {
		return apperror.Conflict("course is full")
	}

	suspended, err := members.Get(ctx, course.ID, request.UserID)
	switch {
	case err == nil:
		suspended.Role = models.MemberRoleStudent
		suspended.IsActive = true
		suspended.UpdatedAt = now
		return apperror.FromStorage(members.Update(ctx, &suspended), "course member")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.Internal(err)
	}

	member := models.CourseMember{
		CourseID: course.ID,
		UserID:   request.UserID,
		Role:     models.MemberRoleStudent,
		IsActive: true,
		JoinedAt: now,
	}
	return apperror.FromStorage(members.Create(ctx, &member), "course member")
}

func (s *enrollmentService) Cancel(ctx context.Context, actor Actor, id uint, req dto.EnrollmentCancelRequest) (dto.EnrollmentResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	var request models.EnrollmentRequest
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		loaded, err := requests.GetByID(ctx, id)
		if err != nil {
			return apperror.FromStorage(err, "enrollment request")
		}
		if loaded.UserID != actor.ID {
			return apperror.Forbidden("only the requester can cancel an enrollment request")
		}
		request = loaded

		if err := request.Cancel(strings.TrimSpace(req.Notes), s.now().UTC()); err != nil {
			return err
		}
		saved, err := requests.SaveIfStatus(ctx, &request, models.EnrollmentStatusPending)
		if err != nil {
			return apperror.Internal(err)
		}
		if !saved {
			return apperror.Conflict("enrollment request was decided concurrently")
		}
		return nil
	})
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}

	observability.EnrollmentTransitions().WithLabelValues(string(request.Status)).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "enrollment.cancelled",
		EntityType: "enrollment_request",
		EntityID:   &request.ID,
	})
	return dto.NewEnrollmentResponse(request), nil
}

func (s *enrollmentService) AssignHandler(ctx context.Context, actor Actor, id uint, req dto.EnrollmentAssignRequest) (dto.EnrollmentResponse, error) {
	if err := Authorize(actor, models.PermissionEnrollmentDecide); err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	handler, err := s.users.GetByID(ctx, req.StaffID, false)
	if err != nil {
		return dto.EnrollmentResponse{}, apperror.FromStorage(err, "staff member")
	}
	if !NewActor(handler).Can(models.PermissionEnrollmentDecide) {
		return dto.EnrollmentResponse{}, apperror.Validation("assigned user cannot decide enrollment requests")
	}

	var request models.EnrollmentRequest
	err = s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		loaded, err := requests.GetByID(ctx, id)
		if err != nil {
			return apperror.FromStorage(err, "enrollment request")
		}
		request = loaded

		if err := request.AssignHandler(handler.ID); err != nil {
			return err
		}
		saved, err := requests.SaveIfStatus(ctx, &request, models.EnrollmentStatusPending)
		if err != nil {
			return apperror.Internal(err)
		}
		if !saved {
			return apperror.Conflict("enrollment request was decided concurrently")
		}
		return nil
	})
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "enrollment.assigned",
		EntityType: "enrollment_request",
		EntityID:   &request.ID,
		Metadata:   map[string]interface{}{"assigned_staff_id": handler.ID},
	})
	return dto.NewEnrollmentResponse(request), nil
}

func (s *enrollmentService) Get(ctx context.Context, actor Actor, id uint) (dto.EnrollmentResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return dto.EnrollmentResponse{}, apperror.FromStorage(err, "enrollment request")
	}
	if err := authorizeOwnerOr(actor, request.UserID, models.PermissionEnrollmentDecide); err != nil {
		return dto.EnrollmentResponse{}, err
	}
	return dto.NewEnrollmentResponse(request), nil
}

// List restricts actors without decision rights to their own requests.
func (s *enrollmentService) List(ctx context.Context, actor Actor, req dto.EnrollmentListRequest) (dto.ListResponse[dto.EnrollmentResponse], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[dto.EnrollmentResponse]{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.ListResponse[dto.EnrollmentResponse]{}, err
	}

	filter := repository.EnrollmentFilter{}
	if req.UserID > 0 {
		filter.UserID = &req.UserID
	}
	if req.CourseID > 0 {
		filter.CourseID = &req.CourseID
	}
	if req.AssignedStaffID > 0 {
		filter.AssignedStaffID = &req.AssignedStaffID
	}
	if req.Status != "" {
		status := models.EnrollmentStatus(req.Status)
		filter.Status = &status
	}
	if !actor.Can(models.PermissionEnrollmentDecide) {
		own := actor.ID
		filter.UserID = &own
	}

	offset, limit := req.Window()
	opts := repository.ListOptions{Offset: offset, Limit: limit}.Normalize()
	requests, total, err := s.requests.List(ctx, filter, opts)
	if err != nil {
		return dto.ListResponse[dto.EnrollmentResponse]{}, apperror.Internal(err)
	}

	return dto.NewListResponse(dto.NewEnrollmentResponseSlice(requests), opts.Offset, opts.Limit, total), nil
}
