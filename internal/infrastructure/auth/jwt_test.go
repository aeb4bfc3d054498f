package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

func newManager(t *testing.T, now time.Time) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(Config{Secret: "test-secret", AccessTTL: time.Hour})
	require.NoError(t, err)
	return m.WithClock(func() time.Time { return now })
}

func TestJWTManager_IssueVerify(t *testing.T) {
	now := time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)
	m := newManager(t, now)
	p := shared.Principal{ID: shared.UserID(uuid.NewString()), Username: "alice", Role: shared.RoleStudent}

	token, exp, err := m.Issue(p)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	got, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestJWTManager_RejectsInvalidPrincipal(t *testing.T) {
	m := newManager(t, time.Now())
	_, _, err := m.Issue(shared.Principal{Username: "ghost", Role: shared.RoleStudent})
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestJWTManager_Expired(t *testing.T) {
	issued := time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)
	p := shared.Principal{ID: shared.UserID(uuid.NewString()), Username: "alice", Role: shared.RoleStudent}

	token, _, err := newManager(t, issued).Issue(p)
	require.NoError(t, err)

	_, err = newManager(t, issued.Add(2*time.Hour)).Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.True(t, shared.IsUnauthenticated(err))
}

func TestJWTManager_RejectsForeignTokens(t *testing.T) {
	now := time.Now()
	m := newManager(t, now)
	p := shared.Principal{ID: shared.UserID(uuid.NewString()), Username: "alice", Role: shared.RoleTeacher}

	other, err := NewJWTManager(Config{Secret: "other-secret"})
	require.NoError(t, err)
	token, _, err := other.Issue(p)
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = m.Verify("not-a-jwt")
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		TokenType: "refresh",
		Role:      string(shared.RoleTeacher),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p.ID),
			Issuer:    "coursehub",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := refresh.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = m.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTManager_RequiresSecret(t *testing.T) {
	_, err := NewJWTManager(Config{})
	assert.Error(t, err)
}
