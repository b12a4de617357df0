package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/observability"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/security"
)

const invalidCredentialsMessage = "invalid email or password"

// AuthService is the authorization gate plus the credential lifecycle.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error)
	Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenResponse, error)
	Logout(ctx context.Context, accessToken string, refreshToken string) error
	Authenticate(ctx context.Context, credential string) (Actor, error)
	Authorize(actor Actor, required ...string) error
}

// AuthDependencies groups collaborators of the auth service.
type AuthDependencies struct {
	Users      repository.UserRepository
	Roles      repository.RoleRepository
	Denylist   repository.TokenDenylist
	Transactor database.Transactor
	Hasher     security.PasswordHasher
	Tokens     *security.TokenManager
	Activity   ActivityRecorder
}

type authService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	denylist   repository.TokenDenylist
	transactor database.Transactor
	hasher     security.PasswordHasher
	tokens     *security.TokenManager
	activity   ActivityRecorder
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAuthService constructs the auth service.
func NewAuthService(deps AuthDependencies, validate *validator.Validate, logger zerolog.Logger) AuthService {
	return &authService{
		users:      deps.Users,
		roles:      deps.Roles,
		denylist:   deps.Denylist,
		transactor: deps.Transactor,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		activity:   deps.Activity,
		validator:  validate,
		logger:     logger.With().Str("component", "auth_service").Logger(),
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error) {
	if err := validatePayload(s.validator, payload); err != nil {
		return dto.UserResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	username := strings.TrimSpace(payload.Username)

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return dto.UserResponse{}, apperror.Internal(err)
	}
	if exists {
		return dto.UserResponse{}, apperror.Conflict("email or username already registered")
	}

	hash, err := s.hasher.Hash(payload.Password)
	if err != nil {
		return dto.UserResponse{}, apperror.Internal(err)
	}

	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(payload.FullName),
		Phone:        strings.TrimSpace(payload.Phone),
		IsActive:     true,
	}

	err = s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		studentRole, err := s.roles.WithTx(tx).GetByName(ctx, models.RoleStudent)
		if err != nil {
			return apperror.FromStorage(err, "student role")
		}
		users := s.users.WithTx(tx)
		if err := users.Create(ctx, &user); err != nil {
			return apperror.FromStorage(err, "user")
		}
		return users.ReplaceRoles(ctx, &user, []models.Role{studentRole})
	})
	if err != nil {
		return dto.UserResponse{}, apperror.FromStorage(err, "user")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      Actor{ID: user.ID, Roles: user.RoleNames()},
		Action:     "auth.registered",
		EntityType: "user",
		EntityID:   &user.ID,
	})

	return dto.NewUserResponse(user), nil
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error) {
	if err := validatePayload(s.validator, payload); err != nil {
		return dto.TokenResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.AuthFailures().WithLabelValues("unknown_email").Inc()
			return dto.TokenResponse{}, apperror.Unauthenticated(invalidCredentialsMessage)
		}
		return dto.TokenResponse{}, apperror.Internal(err)
	}

	if err := s.hasher.Compare(user.PasswordHash, payload.Password); err != nil {
		observability.AuthFailures().WithLabelValues("wrong_password").Inc()
		return dto.TokenResponse{}, apperror.Unauthenticated(invalidCredentialsMessage)
	}

	if !user.CanAuthenticate() {
		observability.AuthFailures().WithLabelValues("inactive").Inc()
		return dto.TokenResponse{}, apperror.Unauthenticated(invalidCredentialsMessage)
	}

	loginAt := s.now().UTC()
	user.LastLoginAt = &loginAt
	if err := s.users.Update(ctx, &user); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record last login")
	}

	return s.issuePair(user, payload.RememberMe)
}

func (s *authService) Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenResponse, error) {
	if err := validatePayload(s.validator, payload); err != nil {
		return dto.TokenResponse{}, err
	}

	claims, err := s.verify(ctx, payload.RefreshToken, security.TokenTypeRefresh)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	user, err := s.loadActiveUser(ctx, claims)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	claimed, err := s.revoke(ctx, claims)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	if !claimed {
		observability.AuthFailures().WithLabelValues("revoked").Inc()
		return dto.TokenResponse{}, apperror.Unauthenticated("token revoked")
	}

	return s.issuePair(user, claims.RememberMe)
}

func (s *authService) Logout(ctx context.Context, accessToken string, refreshToken string) error {
	claims, err := s.verify(ctx, accessToken, security.TokenTypeAccess)
	if err != nil {
		return err
	}
	if _, err := s.revoke(ctx, claims); err != nil {
		return err
	}

	if strings.TrimSpace(refreshToken) != "" {
		refreshClaims, err := s.tokens.Verify(refreshToken, security.TokenTypeRefresh)
		if err == nil && refreshClaims.Subject == claims.Subject {
			if _, err := s.revoke(ctx, refreshClaims); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *authService) Authenticate(ctx context.Context, credential string) (Actor, error) {
	claims, err := s.verify(ctx, credential, security.TokenTypeAccess)
	if err != nil {
		return Actor{}, err
	}

	user, err := s.loadActiveUser(ctx, claims)
	if err != nil {
		return Actor{}, err
	}

	return NewActor(user), nil
}

func (s *authService) Authorize(actor Actor, required ...string) error {
	return Authorize(actor, required...)
}

func (s *authService) verify(ctx context.Context, token string, tokenType string) (*security.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.Unauthenticated("missing credential")
	}

	claims, err := s.tokens.Verify(token, tokenType)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			observability.AuthFailures().WithLabelValues("expired").Inc()
			return nil, apperror.Unauthenticated("token expired")
		}
		observability.AuthFailures().WithLabelValues("invalid").Inc()
		return nil, apperror.Unauthenticated("invalid token")
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnavailable, err, "token revocation check unavailable")
	}
	if revoked {
		observability.AuthFailures().WithLabelValues("revoked").Inc()
		return nil, apperror.Unauthenticated("token revoked")
	}

	return claims, nil
}

func (s *authService) loadActiveUser(ctx context.Context, claims *security.Claims) (models.User, error) {
	userID, err := claims.UserID()
	if err != nil {
		return models.User{}, apperror.Unauthenticated("invalid token")
	}

	user, err := s.users.GetByID(ctx, userID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.AuthFailures().WithLabelValues("unknown_user").Inc()
			return models.User{}, apperror.Unauthenticated("account no longer exists")
		}
		return models.User{}, apperror.Internal(err)
	}

	if !user.CanAuthenticate() {
		observability.AuthFailures().WithLabelValues("inactive").Inc()
		return models.User{}, apperror.Unauthenticated("account is inactive")
	}

	return user, nil
}

// revoke denylists the token and reports whether this call claimed it. Refresh
// rotation relies on the claim so a token can be exchanged only once.
func (s *authService) revoke(ctx context.Context, claims *security.Claims) (bool, error) {
	if claims.ExpiresAt == nil {
		return true, nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	claimed, err := s.denylist.Revoke(ctx, claims.ID, ttl)
	if err != nil {
		return false, apperror.Wrap(apperror.KindUnavailable, err, "token revocation unavailable")
	}
	return claimed, nil
}

func (s *authService) issuePair(user models.User, rememberMe bool) (dto.TokenResponse, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.RoleNames(), rememberMe)
	if err != nil {
		return dto.TokenResponse{}, apperror.Internal(err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID, rememberMe)
	if err != nil {
		return dto.TokenResponse{}, apperror.Internal(err)
	}

	return dto.TokenResponse{
		AccessToken:      access.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
		TokenType:        "Bearer",
		User:             dto.NewUserResponse(user),
	}, nil
}
