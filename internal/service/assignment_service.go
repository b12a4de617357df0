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

// AssignmentService exposes CRUD for course assignments.
type AssignmentService interface {
	Create(ctx context.Context, actor Actor, req dto.AssignmentCreateRequest) (models.Assignment, error)
	Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Assignment, error)
	List(ctx context.Context, actor Actor, req dto.AssignmentListRequest) (dto.ListResponse[models.Assignment], error)
	Update(ctx context.Context, actor Actor, id uint, patch dto.AssignmentPatch) (models.Assignment, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type assignmentService struct {
	assignments *lifecycle[models.Assignment, *models.Assignment]
	courses     *lifecycle[models.Course, *models.Course]
	lessons     *lifecycle[models.Lesson, *models.Lesson]
	activity    ActivityRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(assignments repository.AuditedRepository[models.Assignment], courses repository.AuditedRepository[models.Course], lessons repository.AuditedRepository[models.Lesson], activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		assignments: newLifecycle[models.Assignment](assignments, "assignment", time.Now),
		courses:     newLifecycle[models.Course](courses, "course", time.Now),
		lessons:     newLifecycle[models.Lesson](lessons, "lesson", time.Now),
		activity:    activity,
		validator:   validate,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) Create(ctx context.Context, actor Actor, req dto.AssignmentCreateRequest) (models.Assignment, error) {
	if err := Authorize(actor, models.PermissionAssignmentManage); err != nil {
		return models.Assignment{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.Assignment{}, err
	}

	if _, err := s.courses.get(ctx, req.CourseID); err != nil {
		return models.Assignment{}, err
	}
	if req.LessonID != nil {
		lesson, err := s.lessons.get(ctx, *req.LessonID)
		if err != nil {
			return models.Assignment{}, err
		}
		if lesson.CourseID != req.CourseID {
			return models.Assignment{}, apperror.Validation("lesson does not belong to course")
		}
	}

	maxScore := req.MaxScore
	if maxScore <= 0 {
		maxScore = 100
	}
	teacherID := actor.ID
	assignment := models.Assignment{
		CourseID:      req.CourseID,
		LessonID:      req.LessonID,
		TeacherID:     &teacherID,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Instructions:  req.Instructions,
		DueDate:       req.DueDate.UTC(),
		MaxScore:      maxScore,
		AttachmentURL: req.AttachmentURL,
		Status:        models.AssignmentStatusDraft,
	}
	if err := s.assignments.create(ctx, actor, &assignment); err != nil {
		return models.Assignment{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "assignment.created",
		EntityType: "assignment",
		EntityID:   &assignment.ID,
		Metadata:   map[string]interface{}{"course_id": assignment.CourseID},
	})
	return assignment, nil
}

func (s *assignmentService) Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Assignment, error) {
	if err := Authorize(actor); err != nil {
		return models.Assignment{}, err
	}
	assignment, err := s.assignments.getVisible(ctx, actor, id, includeDeleted)
	if err != nil {
		return models.Assignment{}, err
	}
	if assignment.Status == models.AssignmentStatusDraft && !actor.Can(models.PermissionAssignmentManage) {
		return models.Assignment{}, apperror.NotFound("assignment")
	}
	return assignment, nil
}

func (s *assignmentService) List(ctx context.Context, actor Actor, req dto.AssignmentListRequest) (dto.ListResponse[models.Assignment], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[models.Assignment]{}, err
	}

	var scopes []repository.Scope
	if req.CourseID > 0 {
		scopes = append(scopes, repository.FieldEquals("course_id", req.CourseID))
	}
	if req.LessonID > 0 {
		scopes = append(scopes, repository.FieldEquals("lesson_id", req.LessonID))
	}
	if req.Status != "" {
		scopes = append(scopes, repository.FieldEquals("status", req.Status))
	}
	if !actor.Can(models.PermissionAssignmentManage) {
		scopes = append(scopes, repository.FieldIn("status", models.AssignmentStatusPublished, models.AssignmentStatusClosed))
	}

	return s.assignments.listOrdered(ctx, actor, req.ListQuery, "due_date ASC, id ASC", scopes...)
}

func (s *assignmentService) Update(ctx context.Context, actor Actor, id uint, patch dto.AssignmentPatch) (models.Assignment, error) {
	if err := Authorize(actor, models.PermissionAssignmentManage); err != nil {
		return models.Assignment{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return models.Assignment{}, err
	}

	assignment, err := s.assignments.get(ctx, id)
	if err != nil {
		return models.Assignment{}, err
	}

	if patch.Title != nil {
		assignment.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		assignment.Description = *patch.Description
	}
	if patch.Instructions != nil {
		assignment.Instructions = *patch.Instructions
	}
	if patch.DueDate != nil {
		assignment.DueDate = patch.DueDate.UTC()
	}
	if patch.MaxScore != nil {
		assignment.MaxScore = *patch.MaxScore
	}
	if patch.AttachmentURL != nil {
		assignment.AttachmentURL = *patch.AttachmentURL
	}
	if patch.Status != nil {
		assignment.Status = *patch.Status
	}

	if err := s.assignments.update(ctx, actor, &assignment); err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (s *assignmentService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionAssignmentManage); err != nil {
		return err
	}
	assignment, err := s.assignments.softDelete(ctx, actor, id)
	if err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "assignment.deleted",
		EntityType: "assignment",
		EntityID:   &assignment.ID,
	})
	return nil
}
