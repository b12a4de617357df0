package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/testutil"
)

// interleavedRepo runs afterGet once, right after the next read returns, to
// simulate another request landing between read and write.
type interleavedRepo[T any] struct {
	repository.AuditedRepository[T]
	afterGet func()
}

func (r *interleavedRepo[T]) Get(ctx context.Context, id uint, includeDeleted bool) (T, error) {
	entity, err := r.AuditedRepository.Get(ctx, id, includeDeleted)
	if hook := r.afterGet; hook != nil {
		r.afterGet = nil
		hook()
	}
	return entity, err
}

func newInterleavedCourse(t *testing.T) (*interleavedRepo[models.Course], *lifecycle[models.Course, *models.Course], models.Course) {
	t.Helper()
	repo := &interleavedRepo[models.Course]{AuditedRepository: repository.NewAuditedRepository[models.Course](testutil.NewDB(t))}
	courses := newLifecycle[models.Course](repo, "course", fixedClock(testEpoch.Add(time.Hour)))

	course := models.Course{Code: "GEO-101", Title: "Geography", Status: models.CourseStatusDraft}
	require.NoError(t, courses.create(context.Background(), adminActor(1), &course))
	return repo, courses, course
}

func TestLifecycleUpdateNeverRevivesConcurrentlyDeletedRow(t *testing.T) {
	repo, courses, course := newInterleavedCourse(t)
	ctx := context.Background()

	repo.afterGet = func() {
		_, err := courses.softDelete(ctx, adminActor(2), course.ID)
		require.NoError(t, err)
	}

	loaded, err := courses.get(ctx, course.ID)
	require.NoError(t, err)
	loaded.Title = "Renamed"
	err = courses.update(ctx, adminActor(3), &loaded)
	require.True(t, errors.Is(err, apperror.ErrConflict))

	stored, err := repo.AuditedRepository.Get(ctx, course.ID, true)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
	require.Equal(t, "Geography", stored.Title)
	require.Equal(t, uint(2), *stored.UpdatedBy)
}

func TestLifecycleConcurrentSoftDeleteFailsOnce(t *testing.T) {
	repo, courses, course := newInterleavedCourse(t)
	ctx := context.Background()

	repo.afterGet = func() {
		_, err := courses.softDelete(ctx, adminActor(2), course.ID)
		require.NoError(t, err)
	}

	_, err := courses.softDelete(ctx, adminActor(3), course.ID)
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	stored, err := repo.AuditedRepository.Get(ctx, course.ID, true)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
	require.Equal(t, uint(2), *stored.UpdatedBy)
}
