package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// GroupCount is one bucket of a grouped count.
type GroupCount struct {
	Name  string
	Total int64
}

// CurrencyTotal sums completed payments in one currency.
type CurrencyTotal struct {
	Currency string
	Total    float64
}

// GradedScore is the score pair of a graded submission.
type GradedScore struct {
	Score    float64
	MaxScore *float64
}

// OverviewRepository supplies data for the administrator overview.
type OverviewRepository interface {
	CountActiveUsersByRole(ctx context.Context) ([]GroupCount, error)
	CountCoursesByStatus(ctx context.Context) ([]GroupCount, error)
	CountPendingEnrollments(ctx context.Context) (int64, error)
	CountAwaitingGrade(ctx context.Context) (int64, error)
	ListGradedScores(ctx context.Context) ([]GradedScore, error)
	ListSubmittedSince(ctx context.Context, since time.Time) ([]time.Time, error)
	SumCompletedPayments(ctx context.Context) ([]CurrencyTotal, error)
}

type overviewRepository struct {
	db *gorm.DB
}

// NewOverviewRepository constructs the overview repository.
func NewOverviewRepository(db *gorm.DB) OverviewRepository {
	return &overviewRepository{db: db}
}

func (r *overviewRepository) CountActiveUsersByRole(ctx context.Context) ([]GroupCount, error) {
	var rows []GroupCount
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Select("roles.name AS name, COUNT(DISTINCT users.id) AS total").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("users.is_active = ? AND users.is_deleted = ?", true, false).
		Group("roles.name").
		Order("roles.name").
		Scan(&rows).Error
	return rows, err
}

func (r *overviewRepository) CountCoursesByStatus(ctx context.Context) ([]GroupCount, error) {
	var rows []GroupCount
	err := r.db.WithContext(ctx).
		Model(&models.Course{}).
		Select("status AS name, COUNT(*) AS total").
		Where("is_deleted = ?", false).
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}

func (r *overviewRepository) CountPendingEnrollments(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EnrollmentRequest{}).
		Where("status = ?", models.EnrollmentStatusPending).
		Count(&count).Error
	return count, err
}

func (r *overviewRepository) CountAwaitingGrade(ctx context.Context) (int64, error) {
	awaiting := []models.GradingStatus{models.GradingStatusSubmitted, models.GradingStatusLate}

	var assignments int64
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("status IN ? AND is_deleted = ?", awaiting, false).
		Count(&assignments).Error; err != nil {
		return 0, err
	}

	var exams int64
	if err := r.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("status IN ? AND is_deleted = ?", awaiting, false).
		Count(&exams).Error; err != nil {
		return 0, err
	}

	return assignments + exams, nil
}

func (r *overviewRepository) ListGradedScores(ctx context.Context) ([]GradedScore, error) {
	var rows []GradedScore
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("score, max_score").
		Where("status = ? AND is_deleted = ? AND score IS NOT NULL", models.GradingStatusGraded, false).
		Scan(&rows).Error
	return rows, err
}

func (r *overviewRepository) ListSubmittedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var submitted []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("submitted_at >= ? AND is_deleted = ?", since, false).
		Pluck("submitted_at", &submitted).Error
	return submitted, err
}

func (r *overviewRepository) SumCompletedPayments(ctx context.Context) ([]CurrencyTotal, error) {
	var rows []CurrencyTotal
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("currency, SUM(amount + tax_amount - discount_amount) AS total").
		Where("status = ? AND is_deleted = ?", models.PaymentStatusCompleted, false).
		Group("currency").
		Order("currency").
		Scan(&rows).Error
	return rows, err
}
