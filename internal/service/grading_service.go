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
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/observability"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/pkg/ai"
)

// GradingService scores submitted assignment work.
type GradingService interface {
	Grade(ctx context.Context, actor Actor, submissionID uint, req dto.GradeRequest) (dto.SubmissionResponse, error)
	Regrade(ctx context.Context, actor Actor, submissionID uint, req dto.GradeRequest) (dto.SubmissionResponse, error)
	History(ctx context.Context, actor Actor, submissionID uint) ([]dto.GradeHistoryResponse, error)
	Suggest(ctx context.Context, actor Actor, submissionID uint) (dto.GradeSuggestionResponse, error)
}

type gradingService struct {
	submissions *lifecycle[models.Submission, *models.Submission]
	assignments *lifecycle[models.Assignment, *models.Assignment]
	history     repository.GradeHistoryRepository
	transactor  database.Transactor
	notifier    Notifier
	activity    ActivityRecorder
	assistant   ai.GradingAssistant
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradingService constructs the grading service. assistant may be nil when
// no grading model is configured.
func NewGradingService(deps SubmissionDependencies, assistant ai.GradingAssistant, validate *validator.Validate, logger zerolog.Logger) GradingService {
	return newGradingService(deps, assistant, validate, logger, time.Now)
}

func newGradingService(deps SubmissionDependencies, assistant ai.GradingAssistant, validate *validator.Validate, logger zerolog.Logger, now func() time.Time) *gradingService {
	return &gradingService{
		submissions: newLifecycle[models.Submission](deps.Submissions, "submission", now),
		assignments: newLifecycle[models.Assignment](deps.Assignments, "assignment", now),
		history:     deps.History,
		transactor:  deps.Transactor,
		notifier:    deps.Notifier,
		activity:    deps.Activity,
		assistant:   assistant,
		validator:   validate,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/edu-center-api/internal/service/grading"),
		now:         now,
	}
}

func (s *gradingService) Grade(ctx context.Context, actor Actor, submissionID uint, req dto.GradeRequest) (dto.SubmissionResponse, error) {
	return s.grade(ctx, actor, submissionID, req, false)
}

func (s *gradingService) Regrade(ctx context.Context, actor Actor, submissionID uint, req dto.GradeRequest) (dto.SubmissionResponse, error) {
	return s.grade(ctx, actor, submissionID, req, true)
}

func (s *gradingService) grade(ctx context.Context, actor Actor, submissionID uint, req dto.GradeRequest, regrade bool) (dto.SubmissionResponse, error) {
	if err := Authorize(actor, models.PermissionSubmissionGrade); err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	operation := gradeOperation(regrade)
	ctx, span := s.tracer.Start(ctx, "submission."+operation, trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.Int64("grader.id", int64(actor.ID)),
	))
	defer span.End()

	var submission models.Submission
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		submissions := s.submissions.withRepo(s.submissions.repo.WithTx(tx))
		loaded, err := submissions.get(ctx, submissionID)
		if err != nil {
			return err
		}
		submission = loaded

		assignment, err := s.assignments.withRepo(s.assignments.repo.WithTx(tx)).get(ctx, submission.AssignmentID)
		if err != nil {
			return err
		}

		expected, err := applyGrade(&submission.Grading, regrade, actor.ID, req, assignment.MaxScore, s.now().UTC())
		if err != nil {
			return err
		}
		if err := submissions.updateIfStatus(ctx, actor, &submission, string(expected)); err != nil {
			return err
		}

		entry := models.NewGradeHistory(submission.ID, submission.Grading, regrade)
		return apperror.FromStorage(s.history.WithTx(tx).Create(ctx, &entry), "grade history")
	})
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	observability.GradingOperations().WithLabelValues("submission", operation).Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "submission." + operation + "d",
		EntityType: "submission",
		EntityID:   &submission.ID,
		Metadata: map[string]interface{}{
			"assignment_id": submission.AssignmentID,
			"score":         *submission.Score,
			"max_score":     *submission.MaxScore,
		},
	})
	notify(ctx, s.notifier, s.logger, submission.UserID, NotificationSubmissionGraded,
		fmt.Sprintf("Your submission for assignment %d was graded: %g/%g.", submission.AssignmentID, *submission.Score, *submission.MaxScore))

	return dto.NewSubmissionResponse(submission), nil
}

func (s *gradingService) History(ctx context.Context, actor Actor, submissionID uint) ([]dto.GradeHistoryResponse, error) {
	if err := Authorize(actor); err != nil {
		return nil, err
	}

	submission, err := s.submissions.get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwnerOr(actor, submission.UserID, models.PermissionSubmissionGrade); err != nil {
		return nil, err
	}

	entries, err := s.history.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	submission.History = entries
	response := dto.NewSubmissionResponse(submission).History
	if response == nil {
		response = []dto.GradeHistoryResponse{}
	}
	return response, nil
}

// Suggest asks the grading assistant for a proposal. Nothing is persisted.
func (s *gradingService) Suggest(ctx context.Context, actor Actor, submissionID uint) (dto.GradeSuggestionResponse, error) {
	if err := Authorize(actor, models.PermissionSubmissionGrade); err != nil {
		return dto.GradeSuggestionResponse{}, err
	}
	if s.assistant == nil {
		return dto.GradeSuggestionResponse{}, apperror.New(apperror.KindUnavailable, "grading assistant is not configured")
	}

	submission, err := s.submissions.get(ctx, submissionID)
	if err != nil {
		return dto.GradeSuggestionResponse{}, err
	}
	if submission.Status == models.GradingStatusDraft {
		return dto.GradeSuggestionResponse{}, apperror.InvalidState("draft submissions cannot be assessed")
	}

	assignment, err := s.assignments.get(ctx, submission.AssignmentID)
	if err != nil {
		return dto.GradeSuggestionResponse{}, err
	}

	suggestion, err := s.assistant.Suggest(ctx, ai.GradingInput{
		AssignmentTitle: assignment.Title,
		Instructions:    assignment.Instructions,
		SubmissionType:  submission.Type,
		Content:         submission.Content,
		FileURL:         submission.FileURL,
		MaxScore:        assignment.MaxScore,
		LateSubmission:  submission.IsLate,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("grading assistant failed")
		return dto.GradeSuggestionResponse{}, apperror.Wrap(apperror.KindUnavailable, err, "grading assistant unavailable")
	}

	observability.GradingOperations().WithLabelValues("submission", "suggest").Inc()
	return dto.GradeSuggestionResponse{
		SubmissionID: submission.ID,
		Score:        suggestion.Score,
		MaxScore:     suggestion.MaxScore,
		Feedback:     suggestion.Feedback,
		Provider:     s.assistant.Provider(),
	}, nil
}
