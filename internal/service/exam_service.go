package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

// ExamService manages exams and their forward-only lifecycle.
type ExamService interface {
	Create(ctx context.Context, actor Actor, req dto.ExamCreateRequest) (models.Exam, error)
	Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Exam, error)
	List(ctx context.Context, actor Actor, req dto.ExamListRequest) (dto.ListResponse[models.Exam], error)
	Update(ctx context.Context, actor Actor, id uint, patch dto.ExamPatch) (models.Exam, error)
	ChangeStatus(ctx context.Context, actor Actor, id uint, req dto.ExamStatusRequest) (models.Exam, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type examService struct {
	exams     *lifecycle[models.Exam, *models.Exam]
	courses   *lifecycle[models.Course, *models.Course]
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewExamService constructs the exam service.
func NewExamService(exams repository.AuditedRepository[models.Exam], courses repository.AuditedRepository[models.Course], activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ExamService {
	return newExamService(exams, courses, activity, validate, logger, time.Now)
}

func newExamService(exams repository.AuditedRepository[models.Exam], courses repository.AuditedRepository[models.Course], activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger, now func() time.Time) *examService {
	return &examService{
		exams:     newLifecycle[models.Exam](exams, "exam", now),
		courses:   newLifecycle[models.Course](courses, "course", now),
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "exam_service").Logger(),
	}
}

func (s *examService) Create(ctx context.Context, actor Actor, req dto.ExamCreateRequest) (models.Exam, error) {
	if err := Authorize(actor, models.PermissionExamManage); err != nil {
		return models.Exam{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.Exam{}, err
	}
	if err := validateQuestions(req.Questions); err != nil {
		return models.Exam{}, err
	}
	if _, err := s.courses.get(ctx, req.CourseID); err != nil {
		return models.Exam{}, err
	}

	maxScore := req.MaxScore
	if maxScore <= 0 {
		maxScore = 100
	}
	showResults := true
	if req.ShowResults != nil {
		showResults = *req.ShowResults
	}
	teacherID := actor.ID

	exam := models.Exam{
		CourseID:              req.CourseID,
		TeacherID:             &teacherID,
		Title:                 strings.TrimSpace(req.Title),
		Description:           req.Description,
		Instructions:          req.Instructions,
		Type:                  req.Type,
		Status:                models.ExamStatusDraft,
		DurationMinutes:       req.DurationMinutes,
		MaxScore:              maxScore,
		PassingScore:          req.PassingScore,
		StartDate:             utcPtr(req.StartDate),
		EndDate:               utcPtr(req.EndDate),
		Questions:             questionsColumn(req.Questions),
		MaxAttempts:           req.MaxAttempts,
		AllowMultipleAttempts: req.AllowMultipleAttempts,
		ShuffleQuestions:      req.ShuffleQuestions,
		ShowResults:           showResults,
	}
	if err := exam.ValidateWindow(); err != nil {
		return models.Exam{}, err
	}

	if err := s.exams.create(ctx, actor, &exam); err != nil {
		return models.Exam{}, err
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "exam.created",
		EntityType: "exam",
		EntityID:   &exam.ID,
		Metadata:   map[string]interface{}{"course_id": exam.CourseID, "type": exam.Type},
	})
	return exam, nil
}

// Get hides drafts and answer keys from actors who cannot manage exams.
func (s *examService) Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (models.Exam, error) {
	if err := Authorize(actor); err != nil {
		return models.Exam{}, err
	}
	exam, err := s.exams.getVisible(ctx, actor, id, includeDeleted)
	if err != nil {
		return models.Exam{}, err
	}
	if actor.Can(models.PermissionExamManage) {
		return exam, nil
	}
	if exam.Status == models.ExamStatusDraft {
		return models.Exam{}, apperror.NotFound("exam")
	}
	exam.Questions = redactAnswers(exam.Questions)
	return exam, nil
}

func (s *examService) List(ctx context.Context, actor Actor, req dto.ExamListRequest) (dto.ListResponse[models.Exam], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[models.Exam]{}, err
	}

	var scopes []repository.Scope
	if req.CourseID > 0 {
		scopes = append(scopes, repository.FieldEquals("course_id", req.CourseID))
	}
	if req.Status != "" {
		scopes = append(scopes, repository.FieldEquals("status", req.Status))
	}
	if req.Type != "" {
		scopes = append(scopes, repository.FieldEquals("type", req.Type))
	}
	manager := actor.Can(models.PermissionExamManage)
	if !manager {
		scopes = append(scopes, repository.FieldIn("status",
			models.ExamStatusPublished, models.ExamStatusActive, models.ExamStatusClosed))
	}

	page, err := s.exams.listOrdered(ctx, actor, req.ListQuery, "start_date ASC, id ASC", scopes...)
	if err != nil {
		return dto.ListResponse[models.Exam]{}, err
	}
	if !manager {
		for i := range page.Items {
			page.Items[i].Questions = redactAnswers(page.Items[i].Questions)
		}
	}
	return page, nil
}

// Update edits exam settings until the exam is closed.
func (s *examService) Update(ctx context.Context, actor Actor, id uint, patch dto.ExamPatch) (models.Exam, error) {
	if err := Authorize(actor, models.PermissionExamManage); err != nil {
		return models.Exam{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return models.Exam{}, err
	}
	if err := validateQuestions(patch.Questions); err != nil {
		return models.Exam{}, err
	}

	exam, err := s.exams.get(ctx, id)
	if err != nil {
		return models.Exam{}, err
	}
	if exam.Status == models.ExamStatusClosed || exam.Status == models.ExamStatusArchived {
		return models.Exam{}, apperror.Newf(apperror.KindInvalidState, "exam is %s", exam.Status)
	}

	if patch.Title != nil {
		exam.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		exam.Description = *patch.Description
	}
	if patch.Instructions != nil {
		exam.Instructions = *patch.Instructions
	}
	if patch.DurationMinutes != nil {
		exam.DurationMinutes = *patch.DurationMinutes
	}
	if patch.MaxScore != nil {
		exam.MaxScore = *patch.MaxScore
	}
	if patch.PassingScore != nil {
		exam.PassingScore = *patch.PassingScore
	}
	if patch.StartDate != nil {
		exam.StartDate = utcPtr(patch.StartDate)
	}
	if patch.EndDate != nil {
		exam.EndDate = utcPtr(patch.EndDate)
	}
	if len(patch.Questions) > 0 {
		exam.Questions = questionsColumn(patch.Questions)
	}
	if patch.MaxAttempts != nil {
		exam.MaxAttempts = *patch.MaxAttempts
	}
	if patch.AllowMultipleAttempts != nil {
		exam.AllowMultipleAttempts = *patch.AllowMultipleAttempts
	}
	if patch.ShuffleQuestions != nil {
		exam.ShuffleQuestions = *patch.ShuffleQuestions
	}
	if patch.ShowResults != nil {
		exam.ShowResults = *patch.ShowResults
	}
	if err := exam.ValidateWindow(); err != nil {
		return models.Exam{}, err
	}

	if err := s.exams.updateIfStatus(ctx, actor, &exam, string(exam.Status)); err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

func (s *examService) ChangeStatus(ctx context.Context, actor Actor, id uint, req dto.ExamStatusRequest) (models.Exam, error) {
	if err := Authorize(actor, models.PermissionExamManage); err != nil {
		return models.Exam{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.Exam{}, err
	}

	exam, err := s.exams.get(ctx, id)
	if err != nil {
		return models.Exam{}, err
	}
	previous := exam.Status
	if err := exam.AdvanceTo(models.ExamStatus(req.Status)); err != nil {
		return models.Exam{}, err
	}
	if err := s.exams.updateIfStatus(ctx, actor, &exam, string(previous)); err != nil {
		return models.Exam{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "exam." + string(exam.Status),
		EntityType: "exam",
		EntityID:   &exam.ID,
		Metadata:   map[string]interface{}{"from": string(previous)},
	})
	return exam, nil
}

func (s *examService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionExamManage); err != nil {
		return err
	}
	exam, err := s.exams.softDelete(ctx, actor, id)
	if err != nil {
		return err
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "exam.deleted",
		EntityType: "exam",
		EntityID:   &exam.ID,
	})
	return nil
}

func questionsColumn(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
