package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/security"
	"github.com/noah-isme/edu-center-api/internal/testutil"
)

var testEpoch = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	transactor database.Transactor
	users      repository.UserRepository
	roles      repository.RoleRepository
	hasher     security.PasswordHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	f := &fixture{
		db:         db,
		transactor: database.NewTransactor(db),
		users:      repository.NewUserRepository(db),
		roles:      repository.NewRoleRepository(db),
		hasher:     security.NewPasswordHasher(bcrypt.MinCost),
	}

	seeder := NewSeedService(f.users, f.roles, f.transactor, f.hasher, testLogger())
	_, err := seeder.SeedRoles(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) createUser(t *testing.T, email, role string) models.User {
	t.Helper()
	ctx := context.Background()

	hash, err := f.hasher.Hash("password123")
	require.NoError(t, err)

	user := models.User{
		Email:        email,
		Username:     email[:len(email)-len("@edu.test")],
		PasswordHash: hash,
		FullName:     "Test " + role,
		IsActive:     true,
	}
	require.NoError(t, f.users.Create(ctx, &user))

	roleModel, err := f.roles.GetByName(ctx, role)
	require.NoError(t, err)
	require.NoError(t, f.users.ReplaceRoles(ctx, &user, []models.Role{roleModel}))

	loaded, err := f.users.GetByID(ctx, user.ID, false)
	require.NoError(t, err)
	return loaded
}

func (f *fixture) actorFor(t *testing.T, email, role string) Actor {
	t.Helper()
	return NewActor(f.createUser(t, email, role))
}

func newTestDenylist(t *testing.T) (repository.TokenDenylist, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewTokenDenylist(client, "test:revoked"), server
}

func newTestTokens(t *testing.T, now func() time.Time) *security.TokenManager {
	t.Helper()
	tokens, err := security.NewTokenManager(security.TokenConfig{
		Secret:        "test-secret",
		Issuer:        "edu-test",
		AccessTTL:     15 * time.Minute,
		RememberMeTTL: 7 * 24 * time.Hour,
		RefreshTTL:    14 * 24 * time.Hour,
		Now:           now,
	})
	require.NoError(t, err)
	return tokens
}
