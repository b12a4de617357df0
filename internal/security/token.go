package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and unexpected token types.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the signed payload of access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Roles      []string `json:"roles,omitempty"`
	TokenType  string   `json:"token_type"`
	RememberMe bool     `json:"remember_me,omitempty"`
}

// UserID parses the subject claim.
func (c Claims) UserID() (uint, error) {
	parsed, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return uint(parsed), nil
}

// TokenConfig configures the token manager. Access and remember-me lifetimes are independent.
type TokenConfig struct {
	Secret        string
	Issuer        string
	AccessTTL     time.Duration
	RememberMeTTL time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// IssuedToken is a signed token plus the metadata needed for revocation.
type IssuedToken struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret        []byte
	issuer        string
	accessTTL     time.Duration
	rememberMeTTL time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenManager validates the configuration and builds a manager.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	if cfg.RememberMeTTL <= 0 {
		cfg.RememberMeTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 14 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		secret:        []byte(cfg.Secret),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		rememberMeTTL: cfg.RememberMeTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           cfg.Now,
	}, nil
}

// IssueAccess signs an access token for userID.
func (m *TokenManager) IssueAccess(userID uint, roles []string, rememberMe bool) (IssuedToken, error) {
	ttl := m.accessTTL
	if rememberMe {
		ttl = m.rememberMeTTL
	}
	return m.issue(userID, roles, TokenTypeAccess, rememberMe, ttl)
}

// IssueRefresh signs a refresh token for userID. rememberMe is carried so the
// access tokens minted on rotation keep the session's lifetime.
func (m *TokenManager) IssueRefresh(userID uint, rememberMe bool) (IssuedToken, error) {
	return m.issue(userID, nil, TokenTypeRefresh, rememberMe, m.refreshTTL)
}

func (m *TokenManager) issue(userID uint, roles []string, tokenType string, rememberMe bool, ttl time.Duration) (IssuedToken, error) {
	now := m.now()
	expiresAt := now.Add(ttl)
	id := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Roles:      roles,
		TokenType:  tokenType,
		RememberMe: rememberMe,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}

	return IssuedToken{Value: signed, ID: id, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, expiry, issuer and token type.
func (m *TokenManager) Verify(token string, expectedType string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if expectedType != "" && claims.TokenType != expectedType {
		return nil, ErrTokenInvalid
	}
	if claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}

	return claims, nil
}
