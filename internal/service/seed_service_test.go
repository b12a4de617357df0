package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
)

func TestSeedRolesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	seeder := NewSeedService(f.users, f.roles, f.transactor, f.hasher, testLogger())

	roles, err := seeder.SeedRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 4)

	listed, err := f.roles.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 4)

	admin, err := f.roles.GetByName(context.Background(), models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admin.Permissions, len(models.DefaultRolePermissions()[models.RoleAdmin]))
}

func TestBootstrapAdminCreatesAccountOnce(t *testing.T) {
	f := newFixture(t)
	seeder := NewSeedService(f.users, f.roles, f.transactor, f.hasher, testLogger())
	ctx := context.Background()

	require.NoError(t, seeder.BootstrapAdmin(ctx, "Root@Edu.test", "changeme123"))
	require.NoError(t, seeder.BootstrapAdmin(ctx, "root@edu.test", "changeme123"))

	admin, err := f.users.GetByEmail(ctx, "root@edu.test")
	require.NoError(t, err)
	require.Equal(t, []string{models.RoleAdmin}, admin.RoleNames())
	require.NoError(t, f.hasher.Compare(admin.PasswordHash, "changeme123"))

	require.NoError(t, seeder.BootstrapAdmin(ctx, "", ""))
}
