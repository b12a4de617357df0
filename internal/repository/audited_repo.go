package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// Scope narrows a query, typically from a filter struct.
type Scope func(*gorm.DB) *gorm.DB

// ListOptions controls pagination and soft-delete visibility.
type ListOptions struct {
	Offset         int
	Limit          int
	IncludeDeleted bool
	Order          string
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Normalize clamps offset and limit to sane bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Order == "" {
		o.Order = "created_at DESC, id DESC"
	}
	return o
}

// ErrStaleWrite reports a write that matched no live row: the row was
// soft-deleted or removed after it was read.
var ErrStaleWrite = errors.New("row is no longer live")

// AuditedRepository persists entities that embed models.Audit. Reads exclude
// soft-deleted rows unless includeDeleted is requested.
type AuditedRepository[T any] interface {
	Get(ctx context.Context, id uint, includeDeleted bool) (T, error)
	List(ctx context.Context, opts ListOptions, scopes ...Scope) ([]T, int64, error)
	Create(ctx context.Context, entity *T) error
	// Save writes a live row. It never touches is_deleted and fails with
	// ErrStaleWrite once the stored row is deleted.
	Save(ctx context.Context, entity *T) error
	SaveIfStatus(ctx context.Context, entity *T, expectedStatus string) (bool, error)
	// SoftDelete flags a live row as deleted and reports whether this call did it.
	SoftDelete(ctx context.Context, id uint, actorID uint, at time.Time) (bool, error)
	WithTx(tx *gorm.DB) AuditedRepository[T]
}

type auditedRepository[T any] struct {
	db *gorm.DB
}

// NewAuditedRepository constructs a generic repository for T.
func NewAuditedRepository[T any](db *gorm.DB) AuditedRepository[T] {
	return &auditedRepository[T]{db: db}
}

func (r *auditedRepository[T]) WithTx(tx *gorm.DB) AuditedRepository[T] {
	return &auditedRepository[T]{db: tx}
}

func (r *auditedRepository[T]) query(ctx context.Context, includeDeleted bool) *gorm.DB {
	var model T
	query := r.db.WithContext(ctx).Model(&model)
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	return query
}

func (r *auditedRepository[T]) Get(ctx context.Context, id uint, includeDeleted bool) (T, error) {
	var entity T
	if err := r.query(ctx, includeDeleted).Where("id = ?", id).First(&entity).Error; err != nil {
		return entity, err
	}
	return entity, nil
}

func (r *auditedRepository[T]) List(ctx context.Context, opts ListOptions, scopes ...Scope) ([]T, int64, error) {
	opts = opts.Normalize()

	query := r.query(ctx, opts.IncludeDeleted)
	for _, scope := range scopes {
		if scope != nil {
			query = scope(query)
		}
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entities []T
	if err := query.Order(opts.Order).Offset(opts.Offset).Limit(opts.Limit).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return entities, total, nil
}

func (r *auditedRepository[T]) Create(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(entity).Error
}

// liveUpdate updates every column of entity except the primary key and the
// deletion flag, restricted to rows that are not soft-deleted.
func (r *auditedRepository[T]) liveUpdate(ctx context.Context, entity *T, scopes ...Scope) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(entity).
		Where("is_deleted = ?", false)
	for _, scope := range scopes {
		query = scope(query)
	}
	return query.
		Select("*").
		Omit(clause.Associations, "id", "is_deleted").
		Updates(entity)
}

func (r *auditedRepository[T]) Save(ctx context.Context, entity *T) error {
	result := r.liveUpdate(ctx, entity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}

// SaveIfStatus writes entity only while the stored row is live and its status
// still equals expectedStatus. It reports false when another writer got there first.
func (r *auditedRepository[T]) SaveIfStatus(ctx context.Context, entity *T, expectedStatus string) (bool, error) {
	result := r.liveUpdate(ctx, entity, FieldEquals("status", expectedStatus))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *auditedRepository[T]) SoftDelete(ctx context.Context, id uint, actorID uint, at time.Time) (bool, error) {
	var model T
	result := r.db.WithContext(ctx).
		Model(&model).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_by": actorID,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Compile-time checks that the audited models satisfy models.Audited.
var (
	_ models.Audited = (*models.Course)(nil)
	_ models.Audited = (*models.Lesson)(nil)
	_ models.Audited = (*models.TeachingMaterial)(nil)
	_ models.Audited = (*models.StaffAssignment)(nil)
	_ models.Audited = (*models.Assignment)(nil)
	_ models.Audited = (*models.Submission)(nil)
	_ models.Audited = (*models.Exam)(nil)
	_ models.Audited = (*models.ExamSubmission)(nil)
	_ models.Audited = (*models.Payment)(nil)
	_ models.Audited = (*models.Message)(nil)
	_ models.Audited = (*models.ForumTopic)(nil)
	_ models.Audited = (*models.ForumPost)(nil)
)

// FieldEquals filters column = value.
func FieldEquals(column string, value interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: clause.Column{Name: column}, Value: value})
	}
}

// FieldIn filters column IN values.
func FieldIn(column string, values ...interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.IN{Column: clause.Column{Name: column}, Values: values})
	}
}

// Search matches term case-insensitively against any of columns.
func Search(term string, columns ...string) Scope {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || len(columns) == 0 {
		return nil
	}
	like := "%" + term + "%"
	return func(db *gorm.DB) *gorm.DB {
		conditions := make([]string, 0, len(columns))
		args := make([]interface{}, 0, len(columns))
		for _, column := range columns {
			conditions = append(conditions, "LOWER("+column+") LIKE ?")
			args = append(args, like)
		}
		return db.Where(strings.Join(conditions, " OR "), args...)
	}
}
