package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// GradeHistoryRepository keeps the grading trail of submissions.
type GradeHistoryRepository interface {
	Create(ctx context.Context, entry *models.SubmissionGradeHistory) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.SubmissionGradeHistory, error)
	WithTx(tx *gorm.DB) GradeHistoryRepository
}

type gradeHistoryRepository struct {
	db *gorm.DB
}

// NewGradeHistoryRepository constructs the history repository.
func NewGradeHistoryRepository(db *gorm.DB) GradeHistoryRepository {
	return &gradeHistoryRepository{db: db}
}

func (r *gradeHistoryRepository) WithTx(tx *gorm.DB) GradeHistoryRepository {
	return &gradeHistoryRepository{db: tx}
}

func (r *gradeHistoryRepository) Create(ctx context.Context, entry *models.SubmissionGradeHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gradeHistoryRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.SubmissionGradeHistory, error) {
	var entries []models.SubmissionGradeHistory
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("graded_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
