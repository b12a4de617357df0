package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicIDStripsUnsafeCharacters(t *testing.T) {
	at := time.Unix(1700000000, 0)
	require.Equal(t, "week-1-notes-1700000000", PublicID("../Week 1 Notes.pdf", at))
	require.Equal(t, "material-1700000000", PublicID("???.pdf", at))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
	require.False(t, Config{CloudName: "demo"}.Configured())
}
