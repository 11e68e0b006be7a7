package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/pkg/jwtutil"
)

const adminSubject = "admin"

// AdminAuthService exchanges the operator password for a short-lived admin
// token. There is a single operator account, configured by bcrypt hash.
type AdminAuthService struct {
	passwordHash  []byte
	jwtSecret     string
	jwtExpiration time.Duration
}

type AdminToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewAdminAuthService(passwordHash, jwtSecret string, jwtExpiration time.Duration) (*AdminAuthService, error) {
	passwordHash = strings.TrimSpace(passwordHash)
	if passwordHash == "" || jwtSecret == "" {
		return nil, errors.New("admin password hash and jwt secret are required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash is not a bcrypt hash: %w", err)
	}
	if jwtExpiration <= 0 {
		jwtExpiration = 2 * time.Hour
	}
	return &AdminAuthService{
		passwordHash:  []byte(passwordHash),
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}, nil
}

func (s *AdminAuthService) IssueToken(password string) (*AdminToken, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	token, expiresAt, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, adminSubject, jwtutil.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &AdminToken{Token: token, ExpiresAt: expiresAt}, nil
}
