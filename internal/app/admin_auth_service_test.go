package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/pkg/jwtutil"
)

func newTestAdminAuth(t *testing.T) *AdminAuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	svc, err := NewAdminAuthService(string(hash), "test-secret", time.Hour)
	require.NoError(t, err)
	return svc
}

func TestIssueTokenForCorrectPassword(t *testing.T) {
	svc := newTestAdminAuth(t)

	token, err := svc.IssueToken("correct horse")
	require.NoError(t, err)

	claims, err := jwtutil.ParseToken("test-secret", token.Token)
	require.NoError(t, err)
	assert.Equal(t, jwtutil.RoleAdmin, claims.Role)
	assert.True(t, token.ExpiresAt.After(time.Now()))
}

func TestIssueTokenRejectsWrongPassword(t *testing.T) {
	svc := newTestAdminAuth(t)

	_, err := svc.IssueToken("battery staple")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = svc.IssueToken("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewAdminAuthServiceValidatesConfig(t *testing.T) {
	_, err := NewAdminAuthService("", "secret", time.Hour)
	assert.Error(t, err)

	_, err = NewAdminAuthService("plaintext", "secret", time.Hour)
	assert.Error(t, err)
}
