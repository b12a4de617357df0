package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// EnrollmentFilter narrows enrollment request listings.
type EnrollmentFilter struct {
	UserID          *uint
	CourseID        *uint
	AssignedStaffID *uint
	Status          *models.EnrollmentStatus
}

// EnrollmentRepository persists enrollment requests.
type EnrollmentRepository interface {
	Create(ctx context.Context, request *models.EnrollmentRequest) error
	GetByID(ctx context.Context, id uint) (models.EnrollmentRequest, error)
	HasPending(ctx context.Context, userID, courseID uint) (bool, error)
	List(ctx context.Context, filter EnrollmentFilter, opts ListOptions) ([]models.EnrollmentRequest, int64, error)
	SaveIfStatus(ctx context.Context, request *models.EnrollmentRequest, expected models.EnrollmentStatus) (bool, error)
	WithTx(tx *gorm.DB) EnrollmentRepository
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository constructs an enrollment repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) WithTx(tx *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: tx}
}

func (r *enrollmentRepository) Create(ctx context.Context, request *models.EnrollmentRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *enrollmentRepository) GetByID(ctx context.Context, id uint) (models.EnrollmentRequest, error) {
	var request models.EnrollmentRequest
	if err := r.db.WithContext(ctx).First(&request, id).Error; err != nil {
		return models.EnrollmentRequest{}, err
	}
	return request, nil
}

func (r *enrollmentRepository) HasPending(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EnrollmentRequest{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, models.EnrollmentStatusPending).
		Count(&count).Error
	return count > 0, err
}

func (r *enrollmentRepository) List(ctx context.Context, filter EnrollmentFilter, opts ListOptions) ([]models.EnrollmentRequest, int64, error) {
	opts = opts.Normalize()
	query := r.db.WithContext(ctx).Model(&models.EnrollmentRequest{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.AssignedStaffID != nil {
		query = query.Where("assigned_staff_id = ?", *filter.AssignedStaffID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []models.EnrollmentRequest
	if err := query.Order("request_date DESC, id DESC").Offset(opts.Offset).Limit(opts.Limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *enrollmentRepository) SaveIfStatus(ctx context.Context, request *models.EnrollmentRequest, expected models.EnrollmentStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(request).
		Where("status = ?", expected).
		Select("*").
		Omit("id", "created_at").
		Updates(request)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
