package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/observability"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

// ExamSubmissionService runs exam attempts from start to grade.
type ExamSubmissionService interface {
	Start(ctx context.Context, actor Actor, examID uint) (dto.ExamSubmissionResponse, error)
	Submit(ctx context.Context, actor Actor, id uint, req dto.ExamSubmitRequest) (dto.ExamSubmissionResponse, error)
	Grade(ctx context.Context, actor Actor, id uint, req dto.GradeRequest) (dto.ExamSubmissionResponse, error)
	Regrade(ctx context.Context, actor Actor, id uint, req dto.GradeRequest) (dto.ExamSubmissionResponse, error)
	Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (dto.ExamSubmissionResponse, error)
	List(ctx context.Context, actor Actor, req dto.ExamSubmissionListRequest) (dto.ListResponse[dto.ExamSubmissionResponse], error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

// ExamSubmissionDependencies groups the collaborators of exam attempts.
type ExamSubmissionDependencies struct {
	Attempts   repository.AuditedRepository[models.ExamSubmission]
	Exams      repository.AuditedRepository[models.Exam]
	Members    repository.CourseMemberRepository
	Transactor database.Transactor
	Notifier   Notifier
	Activity   ActivityRecorder
}

type examSubmissionService struct {
	attempts   *lifecycle[models.ExamSubmission, *models.ExamSubmission]
	exams      *lifecycle[models.Exam, *models.Exam]
	members    repository.CourseMemberRepository
	transactor database.Transactor
	notifier   Notifier
	activity   ActivityRecorder
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewExamSubmissionService constructs the exam attempt service.
func NewExamSubmissionService(deps ExamSubmissionDependencies, validate *validator.Validate, logger zerolog.Logger) ExamSubmissionService {
	return newExamSubmissionService(deps, validate, logger, time.Now)
}

func newExamSubmissionService(deps ExamSubmissionDependencies, validate *validator.Validate, logger zerolog.Logger, now func() time.Time) *examSubmissionService {
	return &examSubmissionService{
		attempts:   newLifecycle[models.ExamSubmission](deps.Attempts, "exam submission", now),
		exams:      newLifecycle[models.Exam](deps.Exams, "exam", now),
		members:    deps.Members,
		transactor: deps.Transactor,
		notifier:   deps.Notifier,
		activity:   deps.Activity,
		validator:  validate,
		logger:     logger.With().Str("component", "exam_submission_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/edu-center-api/internal/service/exam_submission"),
		now:        now,
	}
}

// Start opens a new attempt. Deleted attempts free their slot but keep their number.
func (s *examSubmissionService) Start(ctx context.Context, actor Actor, examID uint) (dto.ExamSubmissionResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "exam_submission.start", trace.WithAttributes(
		attribute.Int64("exam.id", int64(examID)),
		attribute.Int64("exam.student_id", int64(actor.ID)),
	))
	defer span.End()

	now := s.now().UTC()
	var attempt models.ExamSubmission
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		exam, err := s.exams.withRepo(s.exams.repo.WithTx(tx)).get(ctx, examID)
		if err != nil {
			return err
		}
		if !exam.IsOpen(now) {
			return apperror.InvalidState("exam is not open for attempts")
		}

		member, err := s.members.WithTx(tx).IsMember(ctx, exam.CourseID, actor.ID)
		if err != nil {
			return apperror.Internal(err)
		}
		if !member {
			return apperror.Forbidden("only course members can take this exam")
		}

		attempts := s.attempts.withRepo(s.attempts.repo.WithTx(tx))
		ownAttempts := []repository.Scope{
			repository.FieldEquals("exam_id", exam.ID),
			repository.FieldEquals("student_id", actor.ID),
		}

		active, _, err := attempts.repo.List(ctx, repository.ListOptions{Limit: 1}, append(ownAttempts,
			repository.FieldEquals("status", models.GradingStatusDraft))...)
		if err != nil {
			return apperror.Internal(err)
		}
		if len(active) > 0 {
			return apperror.Conflict("an attempt is already in progress")
		}

		_, used, err := attempts.repo.List(ctx, repository.ListOptions{Limit: 1}, ownAttempts...)
		if err != nil {
			return apperror.Internal(err)
		}
		if used >= int64(exam.AttemptLimit()) {
			return apperror.Conflict("attempt limit reached")
		}

		latest, _, err := attempts.repo.List(ctx, repository.ListOptions{Limit: 1, IncludeDeleted: true, Order: "attempt DESC"}, ownAttempts...)
		if err != nil {
			return apperror.Internal(err)
		}
		number := 1
		if len(latest) > 0 {
			number = latest[0].Attempt + 1
		}

		attempt = models.ExamSubmission{
			ExamID:    exam.ID,
			StudentID: actor.ID,
			Attempt:   number,
			StartedAt: now,
			Grading:   models.Grading{Status: models.GradingStatusDraft},
		}
		return attempts.create(ctx, actor, &attempt)
	})
	if err != nil {
		span.RecordError(err)
		return dto.ExamSubmissionResponse{}, err
	}

	observability.GradingOperations().WithLabelValues("exam", "start").Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "exam_submission.started",
		EntityType: "exam_submission",
		EntityID:   &attempt.ID,
		Metadata:   map[string]interface{}{"exam_id": attempt.ExamID, "attempt": attempt.Attempt},
	})
	return dto.NewExamSubmissionResponse(attempt), nil
}

// Submit hands in an attempt. It is late after the exam window or the attempt's duration.
func (s *examSubmissionService) Submit(ctx context.Context, actor Actor, id uint, req dto.ExamSubmitRequest) (dto.ExamSubmissionResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}

	now := s.now().UTC()
	var attempt models.ExamSubmission
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		attempts := s.attempts.withRepo(s.attempts.repo.WithTx(tx))
		loaded, err := attempts.get(ctx, id)
		if err != nil {
			return err
		}
		if loaded.StudentID != actor.ID {
			return apperror.Forbidden("only the student can submit this attempt")
		}
		attempt = loaded

		exam, err := s.exams.withRepo(s.exams.repo.WithTx(tx)).get(ctx, attempt.ExamID)
		if err != nil {
			return err
		}

		attempt.Answers = datatypes.JSON(req.Answers)
		attempt.TimeSpentSeconds = req.TimeSpentSeconds
		if attempt.TimeSpentSeconds == 0 {
			attempt.TimeSpentSeconds = int(now.Sub(attempt.StartedAt).Seconds())
		}

		if err := attempt.Grading.Submit(now, attemptDeadline(exam, attempt)); err != nil {
			return err
		}
		return attempts.updateIfStatus(ctx, actor, &attempt, string(models.GradingStatusDraft))
	})
	if err != nil {
		return dto.ExamSubmissionResponse{}, err
	}

	observability.GradingOperations().WithLabelValues("exam", "submit").Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "exam_submission." + string(attempt.Status),
		EntityType: "exam_submission",
		EntityID:   &attempt.ID,
		Metadata:   map[string]interface{}{"exam_id": attempt.ExamID, "is_late": attempt.IsLate},
	})
	return dto.NewExamSubmissionResponse(attempt), nil
}

// attemptDeadline is the earlier of the exam end date and the attempt's time allowance.
func attemptDeadline(exam models.Exam, attempt models.ExamSubmission) *time.Time {
	var deadline *time.Time
	if exam.EndDate != nil {
		end := *exam.EndDate
		deadline = &end
	}
	if exam.DurationMinutes > 0 {
		allowance := attempt.StartedAt.Add(time.Duration(exam.DurationMinutes) * time.Minute)
		if deadline == nil || allowance.Before(*deadline) {
			deadline = &allowance
		}
	}
	return deadline
}

func (s *examSubmissionService) Grade(ctx context.Context, actor Actor, id uint, req dto.GradeRequest) (dto.ExamSubmissionResponse, error) {
	return s.grade(ctx, actor, id, req, false)
}

// Regrade overwrites the previous grade of an attempt.
func (s *examSubmissionService) Regrade(ctx context.Context, actor Actor, id uint, req dto.GradeRequest) (dto.ExamSubmissionResponse, error) {
	return s.grade(ctx, actor, id, req, true)
}

func (s *examSubmissionService) grade(ctx context.Context, actor Actor, id uint, req dto.GradeRequest, regrade bool) (dto.ExamSubmissionResponse, error) {
	if err := Authorize(actor, models.PermissionSubmissionGrade); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}

	operation := gradeOperation(regrade)
	var attempt models.ExamSubmission
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		attempts := s.attempts.withRepo(s.attempts.repo.WithTx(tx))
		loaded, err := attempts.get(ctx, id)
		if err != nil {
			return err
		}
		attempt = loaded

		exam, err := s.exams.withRepo(s.exams.repo.WithTx(tx)).get(ctx, attempt.ExamID)
		if err != nil {
			return err
		}

		expected, err := applyGrade(&attempt.Grading, regrade, actor.ID, req, exam.MaxScore, s.now().UTC())
		if err != nil {
			return err
		}
		return attempts.updateIfStatus(ctx, actor, &attempt, string(expected))
	})
	if err != nil {
		return dto.ExamSubmissionResponse{}, err
	}

	observability.GradingOperations().WithLabelValues("exam", operation).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "exam_submission." + operation + "d",
		EntityType: "exam_submission",
		EntityID:   &attempt.ID,
		Metadata:   map[string]interface{}{"exam_id": attempt.ExamID, "score": *attempt.Score},
	})
	notify(ctx, s.notifier, s.logger, attempt.StudentID, NotificationExamGraded,
		fmt.Sprintf("Your attempt %d for exam %d was graded.", attempt.Attempt, attempt.ExamID))

	return dto.NewExamSubmissionResponse(attempt), nil
}

// Get withholds score and feedback from students when the exam hides results.
func (s *examSubmissionService) Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (dto.ExamSubmissionResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}
	attempt, err := s.attempts.getVisible(ctx, actor, id, includeDeleted)
	if err != nil {
		return dto.ExamSubmissionResponse{}, err
	}
	if err := authorizeOwnerOr(actor, attempt.StudentID, models.PermissionSubmissionGrade); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}

	responses := []dto.ExamSubmissionResponse{dto.NewExamSubmissionResponse(attempt)}
	if err := s.withholdHiddenResults(ctx, actor, responses); err != nil {
		return dto.ExamSubmissionResponse{}, err
	}
	return responses[0], nil
}

// withholdHiddenResults blanks score and feedback on attempts of exams that
// hide results, unless the actor grades submissions.
func (s *examSubmissionService) withholdHiddenResults(ctx context.Context, actor Actor, responses []dto.ExamSubmissionResponse) error {
	if actor.Can(models.PermissionSubmissionGrade) || len(responses) == 0 {
		return nil
	}

	seen := make(map[uint]struct{}, len(responses))
	ids := make([]interface{}, 0, len(responses))
	for _, response := range responses {
		if _, ok := seen[response.ExamID]; ok {
			continue
		}
		seen[response.ExamID] = struct{}{}
		ids = append(ids, response.ExamID)
	}

	exams, _, err := s.exams.repo.List(ctx, repository.ListOptions{Limit: len(ids), IncludeDeleted: true}, repository.FieldIn("id", ids...))
	if err != nil {
		return apperror.Internal(err)
	}
	visible := make(map[uint]bool, len(exams))
	for _, exam := range exams {
		visible[exam.ID] = exam.ShowResults
	}

	for i := range responses {
		if !visible[responses[i].ExamID] {
			responses[i].Grading.Score = nil
			responses[i].Grading.Feedback = ""
		}
	}
	return nil
}

func (s *examSubmissionService) List(ctx context.Context, actor Actor, req dto.ExamSubmissionListRequest) (dto.ListResponse[dto.ExamSubmissionResponse], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[dto.ExamSubmissionResponse]{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.ListResponse[dto.ExamSubmissionResponse]{}, err
	}

	studentID := req.StudentID
	if !actor.Can(models.PermissionSubmissionGrade) {
		studentID = actor.ID
	}

	var scopes []repository.Scope
	if req.ExamID > 0 {
		scopes = append(scopes, repository.FieldEquals("exam_id", req.ExamID))
	}
	if studentID > 0 {
		scopes = append(scopes, repository.FieldEquals("student_id", studentID))
	}
	if req.Status != "" {
		scopes = append(scopes, repository.FieldEquals("status", req.Status))
	}

	page, err := s.attempts.listOrdered(ctx, actor, req.ListQuery, "exam_id ASC, attempt ASC", scopes...)
	if err != nil {
		return dto.ListResponse[dto.ExamSubmissionResponse]{}, err
	}
	responses := dto.MapList(page, dto.NewExamSubmissionResponse)
	if err := s.withholdHiddenResults(ctx, actor, responses.Items); err != nil {
		return dto.ListResponse[dto.ExamSubmissionResponse]{}, err
	}
	return responses, nil
}

// Delete discards an attempt. Students may only discard their own attempt in
// progress; graders may discard any. The slot is freed but the attempt number
// is never reused.
func (s *examSubmissionService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor); err != nil {
		return err
	}

	attempt, err := s.attempts.get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Can(models.PermissionSubmissionGrade) {
		if attempt.StudentID != actor.ID {
			return apperror.Forbidden("insufficient permissions")
		}
		if attempt.Status != models.GradingStatusDraft {
			return apperror.InvalidState("only attempts in progress can be discarded")
		}
	}

	if _, err := s.attempts.softDelete(ctx, actor, id); err != nil {
		return err
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "exam_submission.deleted",
		EntityType: "exam_submission",
		EntityID:   &attempt.ID,
		Metadata:   map[string]interface{}{"exam_id": attempt.ExamID, "attempt": attempt.Attempt},
	})
	return nil
}
