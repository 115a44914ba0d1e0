package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestIdentity_VerifyToken(t *testing.T) {
	identity := NewIdentity("test-secret")
	userID := uuid.New()

	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	got, err := identity.VerifyToken(token)

	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestIdentity_RejectsEmptyToken(t *testing.T) {
	identity := NewIdentity("test-secret")

	_, err := identity.VerifyToken("")

	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIdentity_RejectsWrongSecret(t *testing.T) {
	identity := NewIdentity("test-secret")
	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := identity.VerifyToken(token)

	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIdentity_RejectsExpiredToken(t *testing.T) {
	identity := NewIdentity("test-secret")
	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := identity.VerifyToken(token)

	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIdentity_RejectsMissingSubject(t *testing.T) {
	identity := NewIdentity("test-secret")
	token := signToken(t, "test-secret", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := identity.VerifyToken(token)

	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIdentity_RejectsGarbage(t *testing.T) {
	identity := NewIdentity("test-secret")

	_, err := identity.VerifyToken("not.a.token")

	assert.ErrorIs(t, err, ErrUnauthenticated)
}
