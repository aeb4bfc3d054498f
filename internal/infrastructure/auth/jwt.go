// Package auth issues and verifies HS256 access tokens that carry a
// shared.Principal.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// AccessTokenType is the token_type claim of access tokens.
const AccessTokenType = "access"

var signingMethod = jwt.SigningMethodHS256

var (
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = shared.NewDomainError("auth", "Verify", shared.ErrUnauthenticated, "token expired")

	// ErrInvalidToken is returned for any other token that fails verification.
	ErrInvalidToken = shared.NewDomainError("auth", "Verify", shared.ErrUnauthenticated, "invalid token")
)

// Config holds token settings.
type Config struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
}

// AccessClaims are the claims of an access token.
type AccessClaims struct {
	TokenType string `json:"token_type"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies access tokens.
type JWTManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewJWTManager creates a JWTManager. The secret must not be empty.
func NewJWTManager(cfg Config) (*JWTManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "coursehub"
	}
	return &JWTManager{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		accessTTL: cfg.AccessTTL,
		now:       time.Now,
	}, nil
}

// WithClock returns a copy that reads time from now.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	c := *m
	c.now = now
	return &c
}

// Issue signs an access token for p.
func (m *JWTManager) Issue(p shared.Principal) (string, time.Time, error) {
	if err := p.Validate(); err != nil {
		return "", time.Time{}, err
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.accessTTL)
	token := jwt.NewWithClaims(signingMethod, AccessClaims{
		TokenType: AccessTokenType,
		Username:  p.Username,
		Role:      string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(p.ID),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses an access token and returns its principal.
func (m *JWTManager) Verify(token string) (shared.Principal, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return shared.Principal{}, ErrTokenExpired
		}
		return shared.Principal{}, shared.WrapError("auth", "Verify", shared.ErrUnauthenticated, "invalid token", err)
	}

	if claims.TokenType != AccessTokenType {
		return shared.Principal{}, ErrInvalidToken
	}

	p := shared.Principal{
		ID:       shared.UserID(claims.Subject),
		Username: claims.Username,
		Role:     shared.Role(claims.Role),
	}
	if err := p.Validate(); err != nil {
		return shared.Principal{}, err
	}
	return p, nil
}
