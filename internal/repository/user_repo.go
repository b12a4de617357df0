package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role     string
	IsActive *bool
	Search   string
}

// UserRepository persists actors and their role assignments.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint, includeDeleted bool) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	ActiveIDsByUsernames(ctx context.Context, usernames []string) ([]uint, error)
	List(ctx context.Context, filter UserFilter, opts ListOptions) ([]models.User, int64, error)
	Update(ctx context.Context, user *models.User) error
	ReplaceRoles(ctx context.Context, user *models.User, roles []models.Role) error
	WithTx(tx *gorm.DB) UserRepository
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Preload("Roles").
		Preload("Roles.Permissions")
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint, includeDeleted bool) (models.User, error) {
	query := r.baseQuery(ctx)
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}

	var user models.User
	if err := query.First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := r.baseQuery(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ? OR LOWER(username) = ?", strings.ToLower(email), strings.ToLower(username)).
		Count(&count).Error
	return count > 0, err
}

// ActiveIDsByUsernames resolves usernames case-insensitively, skipping inactive or deleted users.
func (r *userRepository) ActiveIDsByUsernames(ctx context.Context, usernames []string) ([]uint, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	lowered := make([]string, 0, len(usernames))
	for _, username := range usernames {
		lowered = append(lowered, strings.ToLower(username))
	}

	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) IN ? AND is_active = ? AND is_deleted = ?", lowered, true, false).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *userRepository) List(ctx context.Context, filter UserFilter, opts ListOptions) ([]models.User, int64, error) {
	opts = opts.Normalize()
	query := r.db.WithContext(ctx).Model(&models.User{})

	if !opts.IncludeDeleted {
		query = query.Where("users.is_deleted = ?", false)
	}
	if filter.IsActive != nil {
		query = query.Where("users.is_active = ?", *filter.IsActive)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(users.email) LIKE ? OR LOWER(users.username) LIKE ? OR LOWER(users.full_name) LIKE ?", like, like, like)
	}
	if role := strings.TrimSpace(filter.Role); role != "" {
		query = query.Where("users.id IN (?)",
			r.db.Table("user_roles").
				Select("user_roles.user_id").
				Joins("JOIN roles ON roles.id = user_roles.role_id").
				Where("roles.name = ?", strings.ToLower(role)))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := query.
		Preload("Roles").
		Order("users.id ASC").
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error
}

func (r *userRepository) ReplaceRoles(ctx context.Context, user *models.User, roles []models.Role) error {
	if err := r.db.WithContext(ctx).Model(user).Association("Roles").Replace(roles); err != nil {
		return err
	}
	user.Roles = roles
	return nil
}
