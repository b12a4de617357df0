package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := NotFound("course")
	require.True(t, errors.Is(err, ErrNotFound))
	require.False(t, errors.Is(err, ErrConflict))
	require.Equal(t, "course not found", err.Error())

	wrapped := fmt.Errorf("lookup: %w", err)
	require.True(t, errors.Is(wrapped, ErrNotFound))
	require.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestFromStorageTranslatesGormErrors(t *testing.T) {
	require.True(t, errors.Is(FromStorage(gorm.ErrRecordNotFound, "lesson"), ErrNotFound))
	require.True(t, errors.Is(FromStorage(gorm.ErrDuplicatedKey, "course"), ErrConflict))

	internal := FromStorage(errors.New("disk full"), "course")
	require.True(t, errors.Is(internal, ErrInternal))
	require.Nil(t, FromStorage(nil, "course"))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.Equal(t, KindInvalidState, KindOf(InvalidState("already graded")))
	require.Equal(t, Kind(""), KindOf(nil))
}
