package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherspace/realtime-service/internal/apperr"
)

const secret = "test-secret"

func signToken(t *testing.T, userID string, expiry time.Duration) string {
	t.Helper()
	claims := Claims{
		UserUUID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestResolve_ValidToken(t *testing.T) {
	v := NewVerifier(secret)
	uid, err := v.Resolve(signToken(t, "user-1", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestResolve_MissingCredential(t *testing.T) {
	v := NewVerifier(secret)
	_, err := v.Resolve("")
	assert.ErrorIs(t, err, apperr.ErrNoCredential)
}

func TestResolve_ExpiredToken(t *testing.T) {
	v := NewVerifier(secret)
	_, err := v.Resolve(signToken(t, "user-1", -time.Hour))
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)
}

func TestResolve_BadSignature(t *testing.T) {
	other := NewVerifier("other-secret")
	_, err := other.Resolve(signToken(t, "user-1", time.Hour))
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)
}

func TestResolve_SubjectFallback(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	v := NewVerifier(secret)
	uid, err := v.Resolve(s)
	require.NoError(t, err)
	assert.Equal(t, "user-2", uid)
}

func TestResolve_DevTokenGated(t *testing.T) {
	// without the gate the dev token is just an invalid credential
	v := NewVerifier(secret)
	_, err := v.Resolve("letmein")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)

	gated := NewVerifier(secret).WithDevToken("letmein", "dev-user")
	uid, err := gated.Resolve("letmein")
	require.NoError(t, err)
	assert.Equal(t, "dev-user", uid)
}

func TestParseBearerToken(t *testing.T) {
	tok, err := ParseBearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = ParseBearerToken("")
	assert.ErrorIs(t, err, apperr.ErrNoCredential)

	_, err = ParseBearerToken("Basic abc")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)
}
