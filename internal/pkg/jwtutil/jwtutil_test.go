package jwtutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, expiresAt, err := GenerateToken("s3cret", time.Hour, "operator", RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := GenerateToken("s3cret", time.Hour, "operator", RoleAdmin)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	token, _, err := GenerateToken("s3cret", -time.Minute, "operator", RoleAdmin)
	require.NoError(t, err)

	_, err = ParseToken("s3cret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken("s3cret", unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateRequiresSecret(t *testing.T) {
	_, _, err := GenerateToken("", time.Hour, "operator", RoleAdmin)
	assert.ErrorIs(t, err, ErrEmptySecret)
}
