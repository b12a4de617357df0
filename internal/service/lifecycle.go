package service

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

type auditedPtr[T any] interface {
	*T
	AuditFields() *models.Audit
}

// lifecycle applies audit stamping and soft-delete rules on top of an audited repository.
type lifecycle[T any, PT auditedPtr[T]] struct {
	repo   repository.AuditedRepository[T]
	entity string
	now    func() time.Time
}

func newLifecycle[T any, PT auditedPtr[T]](repo repository.AuditedRepository[T], entity string, now func() time.Time) *lifecycle[T, PT] {
	if now == nil {
		now = time.Now
	}
	return &lifecycle[T, PT]{repo: repo, entity: entity, now: now}
}

func (l *lifecycle[T, PT]) withRepo(repo repository.AuditedRepository[T]) *lifecycle[T, PT] {
	return &lifecycle[T, PT]{repo: repo, entity: l.entity, now: l.now}
}

func (l *lifecycle[T, PT]) timestamp() time.Time {
	return l.now().UTC()
}

func (l *lifecycle[T, PT]) create(ctx context.Context, actor Actor, entity *T) error {
	PT(entity).AuditFields().StampCreated(actor.ID, l.timestamp())
	return apperror.FromStorage(l.repo.Create(ctx, entity), l.entity)
}

func (l *lifecycle[T, PT]) get(ctx context.Context, id uint) (T, error) {
	entity, err := l.repo.Get(ctx, id, false)
	if err != nil {
		return entity, apperror.FromStorage(err, l.entity)
	}
	return entity, nil
}

// getVisible honours include-deleted only for actors allowed to see deleted records.
func (l *lifecycle[T, PT]) getVisible(ctx context.Context, actor Actor, id uint, includeDeleted bool) (T, error) {
	if includeDeleted {
		if err := Authorize(actor, models.PermissionIncludeDeleted); err != nil {
			var zero T
			return zero, err
		}
	}
	entity, err := l.repo.Get(ctx, id, includeDeleted)
	if err != nil {
		return entity, apperror.FromStorage(err, l.entity)
	}
	return entity, nil
}

// update stamps and writes entity. A row deleted since it was read is never
// written back.
func (l *lifecycle[T, PT]) update(ctx context.Context, actor Actor, entity *T) error {
	PT(entity).AuditFields().StampUpdated(actor.ID, l.timestamp())
	if err := l.repo.Save(ctx, entity); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return apperror.Conflict(l.entity + " was deleted concurrently")
		}
		return apperror.FromStorage(err, l.entity)
	}
	return nil
}

// updateIfStatus stamps and writes entity only while the stored status is still expected.
func (l *lifecycle[T, PT]) updateIfStatus(ctx context.Context, actor Actor, entity *T, expected string) error {
	PT(entity).AuditFields().StampUpdated(actor.ID, l.timestamp())
	saved, err := l.repo.SaveIfStatus(ctx, entity, expected)
	if err != nil {
		return apperror.FromStorage(err, l.entity)
	}
	if !saved {
		return apperror.Conflict(l.entity + " was modified concurrently")
	}
	return nil
}

func (l *lifecycle[T, PT]) softDelete(ctx context.Context, actor Actor, id uint) (T, error) {
	entity, err := l.repo.Get(ctx, id, true)
	if err != nil {
		return entity, apperror.FromStorage(err, l.entity)
	}
	audit := PT(&entity).AuditFields()
	if err := audit.MarkDeleted(actor.ID, l.timestamp()); err != nil {
		return entity, err
	}
	deleted, err := l.repo.SoftDelete(ctx, id, actor.ID, audit.UpdatedAt)
	if err != nil {
		return entity, apperror.FromStorage(err, l.entity)
	}
	if !deleted {
		return entity, apperror.InvalidState(l.entity + " is already deleted")
	}
	return entity, nil
}

func (l *lifecycle[T, PT]) list(ctx context.Context, actor Actor, query dto.ListQuery, scopes ...repository.Scope) (dto.ListResponse[T], error) {
	return l.listOrdered(ctx, actor, query, "", scopes...)
}

func (l *lifecycle[T, PT]) listOrdered(ctx context.Context, actor Actor, query dto.ListQuery, order string, scopes ...repository.Scope) (dto.ListResponse[T], error) {
	if query.IncludeDeleted {
		if err := Authorize(actor, models.PermissionIncludeDeleted); err != nil {
			return dto.ListResponse[T]{}, err
		}
	}

	offset, limit := query.Window()
	opts := repository.ListOptions{Offset: offset, Limit: limit, IncludeDeleted: query.IncludeDeleted, Order: order}.Normalize()
	items, total, err := l.repo.List(ctx, opts, scopes...)
	if err != nil {
		return dto.ListResponse[T]{}, apperror.FromStorage(err, l.entity)
	}
	return dto.NewListResponse(items, opts.Offset, opts.Limit, total), nil
}
