package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// ActivityLogFilter narrows the audit trail.
type ActivityLogFilter struct {
	ActorID    *uint
	Action     string
	EntityType string
	EntityID   *uint
	Since      *time.Time
}

// ActivityLogRepository appends and reads workflow audit entries. Entries are immutable.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter, opts ListOptions) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter, opts ListOptions) ([]models.ActivityLog, int64, error) {
	opts = opts.Normalize()
	query := r.db.WithContext(ctx).Model(&models.ActivityLog{})

	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if action := strings.ToLower(strings.TrimSpace(filter.Action)); action != "" {
		if strings.HasSuffix(action, ".") {
			query = query.Where("action LIKE ?", action+"%")
		} else {
			query = query.Where("action = ?", action)
		}
	}
	if entityType := strings.ToLower(strings.TrimSpace(filter.EntityType)); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.ActivityLog
	if err := query.Order("created_at DESC, id DESC").
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
