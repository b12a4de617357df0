package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// CourseMemberRepository persists course membership.
type CourseMemberRepository interface {
	Create(ctx context.Context, member *models.CourseMember) error
	Get(ctx context.Context, courseID, userID uint) (models.CourseMember, error)
	Update(ctx context.Context, member *models.CourseMember) error
	Delete(ctx context.Context, courseID, userID uint) (bool, error)
	IsMember(ctx context.Context, courseID, userID uint) (bool, error)
	CountActive(ctx context.Context, courseID uint) (int64, error)
	ListByCourse(ctx context.Context, courseID uint, opts ListOptions) ([]models.CourseMember, int64, error)
	ListByUser(ctx context.Context, userID uint, opts ListOptions) ([]models.CourseMember, int64, error)
	ActiveUserIDs(ctx context.Context, courseID uint) ([]uint, error)
	CourseIDsForUser(ctx context.Context, userID uint) ([]uint, error)
	WithTx(tx *gorm.DB) CourseMemberRepository
}

type courseMemberRepository struct {
	db *gorm.DB
}

// NewCourseMemberRepository constructs a member repository.
func NewCourseMemberRepository(db *gorm.DB) CourseMemberRepository {
	return &courseMemberRepository{db: db}
}

func (r *courseMemberRepository) WithTx(tx *gorm.DB) CourseMemberRepository {
	return &courseMemberRepository{db: tx}
}

func (r *courseMemberRepository) Create(ctx context.Context, member *models.CourseMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *courseMemberRepository) Get(ctx context.Context, courseID, userID uint) (models.CourseMember, error) {
	var member models.CourseMember
	err := r.db.WithContext(ctx).Where("course_id = ? AND user_id = ?", courseID, userID).First(&member).Error
	return member, err
}

func (r *courseMemberRepository) Update(ctx context.Context, member *models.CourseMember) error {
	return r.db.WithContext(ctx).Model(member).Select("role", "is_active", "updated_at").Updates(member).Error
}

// Delete removes the membership row and reports whether one existed.
func (r *courseMemberRepository) Delete(ctx context.Context, courseID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).Where("course_id = ? AND user_id = ?", courseID, userID).Delete(&models.CourseMember{})
	return result.RowsAffected > 0, result.Error
}

func (r *courseMemberRepository) IsMember(ctx context.Context, courseID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CourseMember{}).
		Where("course_id = ? AND user_id = ? AND is_active = ?", courseID, userID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *courseMemberRepository) CountActive(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CourseMember{}).
		Where("course_id = ? AND is_active = ? AND role = ?", courseID, true, models.MemberRoleStudent).
		Count(&count).Error
	return count, err
}

func (r *courseMemberRepository) ListByCourse(ctx context.Context, courseID uint, opts ListOptions) ([]models.CourseMember, int64, error) {
	opts = opts.Normalize()
	query := r.db.WithContext(ctx).Model(&models.CourseMember{}).Where("course_id = ?", courseID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []models.CourseMember
	if err := query.Order("joined_at ASC, id ASC").Offset(opts.Offset).Limit(opts.Limit).Find(&members).Error; err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// ListByUser pages through every membership of a user, active or not.
func (r *courseMemberRepository) ListByUser(ctx context.Context, userID uint, opts ListOptions) ([]models.CourseMember, int64, error) {
	opts = opts.Normalize()
	query := r.db.WithContext(ctx).Model(&models.CourseMember{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []models.CourseMember
	if err := query.Order("joined_at DESC, id DESC").Offset(opts.Offset).Limit(opts.Limit).Find(&members).Error; err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// ActiveUserIDs returns every active member of a course.
func (r *courseMemberRepository) ActiveUserIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.CourseMember{}).
		Where("course_id = ? AND is_active = ?", courseID, true).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// CourseIDsForUser returns the courses a user is an active member of.
func (r *courseMemberRepository) CourseIDsForUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.CourseMember{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("course_id ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}
