package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("EDU_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaultsAndExplicitExpiry(t *testing.T) {
	t.Setenv("EDU_JWT_SECRET", "secret")
	t.Setenv("EDU_JWT_ACCESS_TTL", "15m")
	t.Setenv("EDU_JWT_REMEMBER_ME_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RememberMeTTL())
	require.Equal(t, 14*24*time.Hour, cfg.RefreshTokenTTL())
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 45*time.Second, cfg.ActivityFeedCacheTTL)
	require.Equal(t, 5*time.Minute, cfg.OverviewCacheTTL)
	require.Equal(t, 25, cfg.DatabaseMaxOpenConns)
	require.Equal(t, 30*time.Minute, cfg.DatabaseConnLifetime)
}

func TestLoadRejectsMalformedCacheTTL(t *testing.T) {
	t.Setenv("EDU_JWT_SECRET", "secret")
	t.Setenv("EDU_CACHE_OVERVIEW_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsMalformedConnectionLifetime(t *testing.T) {
	t.Setenv("EDU_JWT_SECRET", "secret")
	t.Setenv("EDU_DATABASE_CONN_LIFETIME", "forever")

	_, err := Load()
	require.Error(t, err)
}
