package service

import (
	"context"
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

// SubmissionService manages the student side of assignment work.
type SubmissionService interface {
	CreateDraft(ctx context.Context, actor Actor, req dto.SubmissionDraftRequest) (dto.SubmissionResponse, error)
	UpdateDraft(ctx context.Context, actor Actor, id uint, patch dto.SubmissionDraftPatch) (dto.SubmissionResponse, error)
	Submit(ctx context.Context, actor Actor, id uint, req dto.SubmitRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (dto.SubmissionResponse, error)
	List(ctx context.Context, actor Actor, req dto.SubmissionListRequest) (dto.ListResponse[dto.SubmissionResponse], error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

// SubmissionDependencies groups the collaborators of the submission and grading services.
type SubmissionDependencies struct {
	Submissions repository.AuditedRepository[models.Submission]
	Assignments repository.AuditedRepository[models.Assignment]
	Members     repository.CourseMemberRepository
	History     repository.GradeHistoryRepository
	Transactor  database.Transactor
	Notifier    Notifier
	Activity    ActivityRecorder
}

type submissionService struct {
	submissions *lifecycle[models.Submission, *models.Submission]
	assignments *lifecycle[models.Assignment, *models.Assignment]
	members     repository.CourseMemberRepository
	history     repository.GradeHistoryRepository
	transactor  database.Transactor
	activity    ActivityRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(deps SubmissionDependencies, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return newSubmissionService(deps, validate, logger, time.Now)
}

func newSubmissionService(deps SubmissionDependencies, validate *validator.Validate, logger zerolog.Logger, now func() time.Time) *submissionService {
	return &submissionService{
		submissions: newLifecycle[models.Submission](deps.Submissions, "submission", now),
		assignments: newLifecycle[models.Assignment](deps.Assignments, "assignment", now),
		members:     deps.Members,
		history:     deps.History,
		transactor:  deps.Transactor,
		activity:    deps.Activity,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/edu-center-api/internal/service/submission"),
		now:         now,
	}
}

func (s *submissionService) CreateDraft(ctx context.Context, actor Actor, req dto.SubmissionDraftRequest) (dto.SubmissionResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "submission.create_draft", trace.WithAttributes(
		attribute.Int64("submission.user_id", int64(actor.ID)),
		attribute.Int64("submission.assignment_id", int64(req.AssignmentID)),
	))
	defer span.End()

	submissionType := req.Type
	if submissionType == "" {
		submissionType = models.SubmissionTypeText
	}

	var submission models.Submission
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		assignment, err := s.assignments.withRepo(s.assignments.repo.WithTx(tx)).get(ctx, req.AssignmentID)
		if err != nil {
			return err
		}
		if !assignment.AcceptsSubmissions() {
			return apperror.InvalidState("assignment is not accepting submissions")
		}

		member, err := s.members.WithTx(tx).IsMember(ctx, assignment.CourseID, actor.ID)
		if err != nil {
			return apperror.Internal(err)
		}
		if !member {
			return apperror.Forbidden("only course members can submit work")
		}

		submissions := s.submissions.withRepo(s.submissions.repo.WithTx(tx))
		_, total, err := submissions.repo.List(ctx, repository.ListOptions{Limit: 1},
			repository.FieldEquals("assignment_id", assignment.ID),
			repository.FieldEquals("user_id", actor.ID),
		)
		if err != nil {
			return apperror.Internal(err)
		}
		if total > 0 {
			return apperror.Conflict("a submission already exists for this assignment")
		}

		submission = models.Submission{
			UserID:       actor.ID,
			CourseID:     assignment.CourseID,
			LessonID:     assignment.LessonID,
			AssignmentID: assignment.ID,
			Type:         submissionType,
			Title:        strings.TrimSpace(req.Title),
			Content:      req.Content,
			FileURL:      req.FileURL,
			Grading:      models.Grading{Status: models.GradingStatusDraft},
		}
		return submissions.create(ctx, actor, &submission)
	})
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	observability.GradingOperations().WithLabelValues("submission", "draft").Inc()
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) UpdateDraft(ctx context.Context, actor Actor, id uint, patch dto.SubmissionDraftPatch) (dto.SubmissionResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.ownedSubmission(ctx, actor, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if submission.Status != models.GradingStatusDraft {
		return dto.SubmissionResponse{}, apperror.InvalidState("only drafts can be edited")
	}

	if patch.Type != nil {
		submission.Type = *patch.Type
	}
	if patch.Title != nil {
		submission.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		submission.Content = *patch.Content
	}
	if patch.FileURL != nil {
		submission.FileURL = *patch.FileURL
	}

	if err := s.submissions.updateIfStatus(ctx, actor, &submission, string(models.GradingStatusDraft)); err != nil {
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(submission), nil
}

// Submit hands in a draft. Work handed in after the due date is marked late.
func (s *submissionService) Submit(ctx context.Context, actor Actor, id uint, req dto.SubmitRequest) (dto.SubmissionResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(attribute.Int64("submission.id", int64(id))))
	defer span.End()

	var submission models.Submission
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		submissions := s.submissions.withRepo(s.submissions.repo.WithTx(tx))
		loaded, err := submissions.get(ctx, id)
		if err != nil {
			return err
		}
		if loaded.UserID != actor.ID {
			return apperror.Forbidden("only the author can submit this work")
		}
		submission = loaded

		assignment, err := s.assignments.withRepo(s.assignments.repo.WithTx(tx)).get(ctx, submission.AssignmentID)
		if err != nil {
			return err
		}

		if req.Content != nil {
			submission.Content = *req.Content
		}
		if req.FileURL != nil {
			submission.FileURL = *req.FileURL
		}

		deadline := assignment.DueDate
		if err := submission.Grading.Submit(s.now().UTC(), &deadline); err != nil {
			return err
		}
		return submissions.updateIfStatus(ctx, actor, &submission, string(models.GradingStatusDraft))
	})
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	observability.GradingOperations().WithLabelValues("submission", "submit").Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "submission." + string(submission.Status),
		EntityType: "submission",
		EntityID:   &submission.ID,
		Metadata:   map[string]interface{}{"assignment_id": submission.AssignmentID, "is_late": submission.IsLate},
	})
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (dto.SubmissionResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.getVisible(ctx, actor, id, includeDeleted)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := authorizeOwnerOr(actor, submission.UserID, models.PermissionSubmissionGrade); err != nil {
		return dto.SubmissionResponse{}, err
	}

	history, err := s.history.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, apperror.Internal(err)
	}
	submission.History = history
	return dto.NewSubmissionResponse(submission), nil
}

// List restricts actors without grading rights to their own submissions.
func (s *submissionService) List(ctx context.Context, actor Actor, req dto.SubmissionListRequest) (dto.ListResponse[dto.SubmissionResponse], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[dto.SubmissionResponse]{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.ListResponse[dto.SubmissionResponse]{}, err
	}

	userID := req.UserID
	if !actor.Can(models.PermissionSubmissionGrade) {
		userID = actor.ID
	}

	var scopes []repository.Scope
	if req.AssignmentID > 0 {
		scopes = append(scopes, repository.FieldEquals("assignment_id", req.AssignmentID))
	}
	if req.CourseID > 0 {
		scopes = append(scopes, repository.FieldEquals("course_id", req.CourseID))
	}
	if userID > 0 {
		scopes = append(scopes, repository.FieldEquals("user_id", userID))
	}
	if req.Status != "" {
		scopes = append(scopes, repository.FieldEquals("status", req.Status))
	}

	page, err := s.submissions.list(ctx, actor, req.ListQuery, scopes...)
	if err != nil {
		return dto.ListResponse[dto.SubmissionResponse]{}, err
	}
	return dto.MapList(page, dto.NewSubmissionResponse), nil
}

// Delete lets the author discard a draft; graders may delete any submission.
func (s *submissionService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor); err != nil {
		return err
	}

	submission, err := s.submissions.get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Can(models.PermissionSubmissionGrade) {
		if submission.UserID != actor.ID {
			return apperror.Forbidden("insufficient permissions")
		}
		if submission.Status != models.GradingStatusDraft {
			return apperror.InvalidState("only drafts can be discarded")
		}
	}

	if _, err := s.submissions.softDelete(ctx, actor, id); err != nil {
		return err
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "submission.deleted",
		EntityType: "submission",
		EntityID:   &submission.ID,
	})
	return nil
}

func (s *submissionService) ownedSubmission(ctx context.Context, actor Actor, id uint) (models.Submission, error) {
	submission, err := s.submissions.get(ctx, id)
	if err != nil {
		return models.Submission{}, err
	}
	if submission.UserID != actor.ID {
		return models.Submission{}, apperror.Forbidden("only the author can edit this work")
	}
	return submission, nil
}
