package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/testutil"
)

func TestAuditedRepositoryHidesSoftDeletedRows(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAuditedRepository[models.Course](db)
	ctx := context.Background()
	now := time.Now().UTC()

	live := models.Course{Code: "MATH-101", Title: "Algebra", Status: models.CourseStatusDraft}
	live.StampCreated(1, now)
	gone := models.Course{Code: "HIST-101", Title: "History", Status: models.CourseStatusDraft}
	gone.StampCreated(1, now.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, &live))
	require.NoError(t, repo.Create(ctx, &gone))

	deleted, err := repo.SoftDelete(ctx, gone.ID, 2, now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, deleted)

	items, total, err := repo.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	require.Equal(t, "MATH-101", items[0].Code)

	_, err = repo.Get(ctx, gone.ID, false)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	stored, err := repo.Get(ctx, gone.ID, true)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
	require.Equal(t, uint(2), *stored.UpdatedBy)

	items, total, err = repo.List(ctx, ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)
}

func TestAuditedRepositoryListAppliesScopesAndPaging(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAuditedRepository[models.Lesson](db)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		lesson := models.Lesson{CourseID: uint(1 + i%2), Title: "Lesson", Order: i}
		lesson.StampCreated(1, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, &lesson))
	}

	items, total, err := repo.List(ctx, ListOptions{Limit: 2, Order: "lesson_order ASC"}, FieldEquals("course_id", uint(1)))
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	require.Equal(t, 0, items[0].Order)
	require.Equal(t, 2, items[1].Order)
}

func TestAuditedRepositorySaveIfStatusDetectsConcurrentChange(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAuditedRepository[models.Submission](db)
	ctx := context.Background()
	now := time.Now().UTC()

	submission := models.Submission{UserID: 3, CourseID: 1, AssignmentID: 1, Type: models.SubmissionTypeText}
	submission.Status = models.GradingStatusSubmitted
	submission.StampCreated(3, now)
	require.NoError(t, repo.Create(ctx, &submission))

	first := submission
	second := submission

	require.NoError(t, first.Grade(9, 85, 100, "first", now))
	saved, err := repo.SaveIfStatus(ctx, &first, string(models.GradingStatusSubmitted))
	require.NoError(t, err)
	require.True(t, saved)

	require.NoError(t, second.Grade(10, 40, 100, "second", now))
	saved, err = repo.SaveIfStatus(ctx, &second, string(models.GradingStatusSubmitted))
	require.NoError(t, err)
	require.False(t, saved)

	stored, err := repo.Get(ctx, submission.ID, false)
	require.NoError(t, err)
	require.Equal(t, 85.0, *stored.Score)
	require.Equal(t, "first", stored.Feedback)
}

func TestAuditedRepositoryNeverWritesBackDeletedRows(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAuditedRepository[models.Course](db)
	ctx := context.Background()
	now := time.Now().UTC()

	course := models.Course{Code: "CHEM-101", Title: "Chemistry", Status: models.CourseStatusDraft}
	course.StampCreated(1, now)
	require.NoError(t, repo.Create(ctx, &course))

	stale, err := repo.Get(ctx, course.ID, false)
	require.NoError(t, err)

	deleted, err := repo.SoftDelete(ctx, course.ID, 2, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, deleted)

	stale.Title = "Renamed"
	stale.StampUpdated(3, now.Add(2*time.Minute))
	require.ErrorIs(t, repo.Save(ctx, &stale), ErrStaleWrite)

	saved, err := repo.SaveIfStatus(ctx, &stale, models.CourseStatusDraft)
	require.NoError(t, err)
	require.False(t, saved)

	deleted, err = repo.SoftDelete(ctx, course.ID, 4, now.Add(3*time.Minute))
	require.NoError(t, err)
	require.False(t, deleted)

	stored, err := repo.Get(ctx, course.ID, true)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
	require.Equal(t, "Chemistry", stored.Title)
	require.Equal(t, uint(2), *stored.UpdatedBy)
}

func TestAuditedRepositorySaveKeepsLiveRowsLive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAuditedRepository[models.Course](db)
	ctx := context.Background()
	now := time.Now().UTC()

	course := models.Course{Code: "BIO-101", Title: "Biology", Status: models.CourseStatusDraft}
	course.StampCreated(1, now)
	require.NoError(t, repo.Create(ctx, &course))

	course.Title = "Cell Biology"
	course.IsDeleted = true
	course.StampUpdated(1, now.Add(time.Minute))
	require.NoError(t, repo.Save(ctx, &course))

	stored, err := repo.Get(ctx, course.ID, false)
	require.NoError(t, err)
	require.Equal(t, "Cell Biology", stored.Title)
	require.False(t, stored.IsDeleted)
}
