package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/security"
)

// SeedService installs the built-in roles and the optional bootstrap administrator.
type SeedService interface {
	SeedRoles(ctx context.Context) ([]models.Role, error)
	BootstrapAdmin(ctx context.Context, email, password string) error
}

type seedService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	transactor database.Transactor
	hasher     security.PasswordHasher
	logger     zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(users repository.UserRepository, roles repository.RoleRepository, transactor database.Transactor, hasher security.PasswordHasher, logger zerolog.Logger) SeedService {
	return &seedService{
		users:      users,
		roles:      roles,
		transactor: transactor,
		hasher:     hasher,
		logger:     logger.With().Str("component", "seed_service").Logger(),
	}
}

// SeedRoles is idempotent: existing roles keep their extra permissions.
func (s *seedService) SeedRoles(ctx context.Context) ([]models.Role, error) {
	defaults := models.DefaultRolePermissions()
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	seeded := make([]models.Role, 0, len(names))
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		roles := s.roles.WithTx(tx)
		for _, name := range names {
			permissions, err := roles.EnsurePermissions(ctx, defaults[name])
			if err != nil {
				return err
			}
			role, err := roles.EnsureRole(ctx, name, permissions)
			if err != nil {
				return err
			}
			seeded = append(seeded, role)
		}
		return nil
	})
	if err != nil {
		return nil, apperror.FromStorage(err, "role")
	}

	s.logger.Info().Int("roles", len(seeded)).Msg("roles seeded")
	return seeded, nil
}

func (s *seedService) BootstrapAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.logger.Debug().Str("email", email).Msg("bootstrap admin already present")
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.Internal(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperror.Internal(err)
	}

	username := strings.Split(email, "@")[0]
	admin := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     "Administrator",
		IsActive:     true,
	}

	err = s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		role, err := s.roles.WithTx(tx).GetByName(ctx, models.RoleAdmin)
		if err != nil {
			return err
		}
		users := s.users.WithTx(tx)
		if err := users.Create(ctx, &admin); err != nil {
			return err
		}
		return users.ReplaceRoles(ctx, &admin, []models.Role{role})
	})
	if err != nil {
		return apperror.FromStorage(err, "admin role")
	}

	s.logger.Info().Str("email", email).Msg("bootstrap admin created")
	return nil
}
