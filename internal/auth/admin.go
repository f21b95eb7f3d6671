package auth

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nahueltrek/api/internal/rbac"
	"nahueltrek/api/internal/util"
)

const adminSubject = "admin"

var (
	// ErrInvalidCredentials is returned for a wrong admin password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAdminDisabled is returned when no admin password hash is configured.
	ErrAdminDisabled = errors.New("admin login disabled")
)

// Admin checks the single operator password and mints bearer tokens for it.
type Admin struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAdmin(passwordHash, secret string, ttl time.Duration) *Admin {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Admin{
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Enabled reports whether a password hash and a signing secret are configured.
func (a *Admin) Enabled() bool {
	return len(a.passwordHash) > 0 && len(a.secret) > 0
}

// Login verifies password and returns a signed token with its expiry.
func (a *Admin) Login(password string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrAdminDisabled
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	exp := a.now().Add(a.ttl)
	token, err := IssueToken(a.secret, Claims{
		Sub:  adminSubject,
		Name: "Administrador",
		Role: string(rbac.RoleAdmin),
		JTI:  util.NewRandomID("jti"),
		Exp:  exp.Unix(),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Verify returns the role carried by token. Callers treat any error as public access.
func (a *Admin) Verify(token string) (rbac.Role, error) {
	if !a.Enabled() {
		return rbac.RolePublic, ErrAdminDisabled
	}
	claims, err := parseTokenAt(a.secret, token, a.now())
	if err != nil {
		return rbac.RolePublic, err
	}
	return rbac.Normalize(claims.Role), nil
}

// HashPassword produces the bcrypt hash expected in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
