package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2!", hash)

	assert.NoError(t, CheckPassword("hunter2!", hash))
	assert.ErrorIs(t, CheckPassword("hunter3!", hash), ErrInvalidPassword)
}

func TestGenerateAPIToken(t *testing.T) {
	plaintext, digest, err := GenerateAPIToken("ora_")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plaintext, "ora_"))
	assert.Len(t, plaintext, 4+64)
	assert.Equal(t, HashToken(plaintext), digest)
	assert.NotContains(t, digest, "ora_")

	other, _, err := GenerateAPIToken("ora_")
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, other)
}

func TestClassifyCredential(t *testing.T) {
	assert.Equal(t, CredentialAPIToken, ClassifyCredential("ora_abc123", "ora_"))
	assert.Equal(t, CredentialSessionJWT, ClassifyCredential("eyJhbGciOi...", "ora_"))
	assert.Equal(t, CredentialSessionJWT, ClassifyCredential("", "ora_"))
}

func TestSessionTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := CreateSessionToken("secret", userID, 15*time.Minute)
	require.NoError(t, err)

	got, err := ValidateSessionToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := CreateSessionToken("secret", uuid.New(), 15*time.Minute)
	require.NoError(t, err)

	_, err = ValidateSessionToken("other-secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionTokenExpired(t *testing.T) {
	token, err := CreateSessionToken("secret", uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = ValidateSessionToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionTokenRejectsWrongType(t *testing.T) {
	claims := SessionClaims{
		Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ValidateSessionToken("secret", signed)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestSessionTokenRejectsGarbage(t *testing.T) {
	_, err := ValidateSessionToken("secret", "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
