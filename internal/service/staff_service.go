package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

// StaffService attaches instructors, assistants, graders and mentors to courses.
type StaffService interface {
	Assign(ctx context.Context, actor Actor, courseID uint, req dto.StaffAssignmentCreateRequest) (models.StaffAssignment, error)
	List(ctx context.Context, actor Actor, courseID uint, query dto.ListQuery) (dto.ListResponse[models.StaffAssignment], error)
	Update(ctx context.Context, actor Actor, id uint, patch dto.StaffAssignmentPatch) (models.StaffAssignment, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type staffService struct {
	assignments *lifecycle[models.StaffAssignment, *models.StaffAssignment]
	courses     *lifecycle[models.Course, *models.Course]
	users       repository.UserRepository
	activity    ActivityRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewStaffService constructs the staff assignment service.
func NewStaffService(assignments repository.AuditedRepository[models.StaffAssignment], courses repository.AuditedRepository[models.Course], users repository.UserRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) StaffService {
	return &staffService{
		assignments: newLifecycle[models.StaffAssignment](assignments, "staff assignment", time.Now),
		courses:     newLifecycle[models.Course](courses, "course", time.Now),
		users:       users,
		activity:    activity,
		validator:   validate,
		logger:      logger.With().Str("component", "staff_service").Logger(),
	}
}

func (s *staffService) Assign(ctx context.Context, actor Actor, courseID uint, req dto.StaffAssignmentCreateRequest) (models.StaffAssignment, error) {
	if err := Authorize(actor, models.PermissionStaffManage); err != nil {
		return models.StaffAssignment{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.StaffAssignment{}, err
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return models.StaffAssignment{}, apperror.Validation("end date must not precede start date")
	}

	if _, err := s.courses.get(ctx, courseID); err != nil {
		return models.StaffAssignment{}, err
	}

	member, err := s.users.GetByID(ctx, req.StaffID, false)
	if err != nil {
		return models.StaffAssignment{}, apperror.FromStorage(err, "staff member")
	}
	staffActor := NewActor(member)
	if !staffActor.HasRole(models.RoleStaff) && !staffActor.HasRole(models.RoleTeacher) && !staffActor.IsAdmin() {
		return models.StaffAssignment{}, apperror.Validation("user is not a staff member or teacher")
	}

	assignment := models.StaffAssignment{
		StaffID:   req.StaffID,
		CourseID:  courseID,
		LessonID:  req.LessonID,
		Role:      req.Role,
		Status:    models.StaffStatusAssigned,
		IsPrimary: req.IsPrimary,
		Notes:     strings.TrimSpace(req.Notes),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.assignments.create(ctx, actor, &assignment); err != nil {
		return models.StaffAssignment{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "staff.assigned",
		EntityType: "staff_assignment",
		EntityID:   &assignment.ID,
		Metadata:   map[string]interface{}{"course_id": courseID, "staff_id": req.StaffID, "role": req.Role},
	})
	return assignment, nil
}

func (s *staffService) List(ctx context.Context, actor Actor, courseID uint, query dto.ListQuery) (dto.ListResponse[models.StaffAssignment], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[models.StaffAssignment]{}, err
	}
	return s.assignments.list(ctx, actor, query, repository.FieldEquals("course_id", courseID))
}

func (s *staffService) Update(ctx context.Context, actor Actor, id uint, patch dto.StaffAssignmentPatch) (models.StaffAssignment, error) {
	if err := validatePayload(s.validator, patch); err != nil {
		return models.StaffAssignment{}, err
	}

	assignment, err := s.assignments.get(ctx, id)
	if err != nil {
		return models.StaffAssignment{}, err
	}

	// The assigned staff member may only progress their own status.
	if actor.ID != assignment.StaffID || patch.Role != nil || patch.IsPrimary != nil {
		if err := Authorize(actor, models.PermissionStaffManage); err != nil {
			return models.StaffAssignment{}, err
		}
	}

	expected := assignment.Status
	if patch.Status != nil {
		if err := assignment.TransitionTo(*patch.Status); err != nil {
			return models.StaffAssignment{}, err
		}
	}
	if patch.Role != nil {
		assignment.Role = *patch.Role
	}
	if patch.IsPrimary != nil {
		assignment.IsPrimary = *patch.IsPrimary
	}
	if patch.Notes != nil {
		assignment.Notes = strings.TrimSpace(*patch.Notes)
	}

	if err := s.assignments.updateIfStatus(ctx, actor, &assignment, expected); err != nil {
		return models.StaffAssignment{}, err
	}
	return assignment, nil
}

func (s *staffService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionStaffManage); err != nil {
		return err
	}
	_, err := s.assignments.softDelete(ctx, actor, id)
	return err
}
