package security

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, now *time.Time) *TokenManager {
	t.Helper()
	manager, err := NewTokenManager(TokenConfig{
		Secret:        "test-secret",
		Issuer:        "edu-test",
		AccessTTL:     30 * time.Minute,
		RememberMeTTL: 7 * 24 * time.Hour,
		RefreshTTL:    14 * 24 * time.Hour,
		Now:           func() time.Time { return *now },
	})
	require.NoError(t, err)
	return manager
}

func TestTokenManagerIssuesAndVerifiesAccessTokens(t *testing.T) {
	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	manager := newTestManager(t, &now)

	issued, err := manager.IssueAccess(42, []string{"teacher"}, false)
	require.NoError(t, err)
	require.Equal(t, now.Add(30*time.Minute), issued.ExpiresAt)

	claims, err := manager.Verify(issued.Value, TokenTypeAccess)
	require.NoError(t, err)
	userID, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, uint(42), userID)
	require.Equal(t, []string{"teacher"}, claims.Roles)
	require.Equal(t, issued.ID, claims.ID)

	_, err = manager.Verify(issued.Value, TokenTypeRefresh)
	require.True(t, errors.Is(err, ErrTokenInvalid))
}

func TestTokenManagerRememberMeUsesDays(t *testing.T) {
	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	manager := newTestManager(t, &now)

	issued, err := manager.IssueAccess(1, nil, true)
	require.NoError(t, err)
	require.Equal(t, now.Add(7*24*time.Hour), issued.ExpiresAt)
}

func TestTokenManagerRejectsExpiredAndTamperedTokens(t *testing.T) {
	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	manager := newTestManager(t, &now)

	issued, err := manager.IssueAccess(1, nil, false)
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	_, err = manager.Verify(issued.Value, TokenTypeAccess)
	require.True(t, errors.Is(err, ErrTokenExpired))

	other, err := NewTokenManager(TokenConfig{Secret: "other", Issuer: "edu-test", AccessTTL: time.Hour})
	require.NoError(t, err)
	forged, err := other.IssueAccess(1, []string{"admin"}, false)
	require.NoError(t, err)
	_, err = manager.Verify(forged.Value, TokenTypeAccess)
	require.True(t, errors.Is(err, ErrTokenInvalid))
}

func TestTokenManagerRefreshCarriesRememberMe(t *testing.T) {
	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	manager := newTestManager(t, &now)

	issued, err := manager.IssueRefresh(9, true)
	require.NoError(t, err)
	require.Equal(t, now.Add(14*24*time.Hour), issued.ExpiresAt)

	claims, err := manager.Verify(issued.Value, TokenTypeRefresh)
	require.NoError(t, err)
	require.True(t, claims.RememberMe)
}
