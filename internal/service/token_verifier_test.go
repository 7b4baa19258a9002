package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims *models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() *models.JWTClaims {
	now := time.Now().UTC()
	return &models.JWTClaims{
		UserID: "teacher-1",
		Role:   models.RoleTeacher,
		Email:  "teacher@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestTokenVerifierAcceptsValidToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	claims, err := verifier.ValidateToken(signToken(t, "secret", jwt.SigningMethodHS256, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestTokenVerifierRejectsBadTokens(t *testing.T) {
	verifier := NewTokenVerifier("secret")

	_, err := verifier.ValidateToken(signToken(t, "other", jwt.SigningMethodHS256, validClaims()))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = verifier.ValidateToken(signToken(t, "secret", jwt.SigningMethodHS512, validClaims()))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = verifier.ValidateToken(signToken(t, "secret", jwt.SigningMethodHS256, expired))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	anonymous := validClaims()
	anonymous.Role = ""
	_, err = verifier.ValidateToken(signToken(t, "secret", jwt.SigningMethodHS256, anonymous))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = verifier.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
