package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nahueltrek/api/internal/rbac"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "admin",
		Name: "Administrador",
		Role: "admin",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "admin" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "admin",
		Role: "admin",
		JTI:  "jti-1",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	_, err = ParseToken(secret, issued)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	issued, err := IssueToken([]byte("secret"), Claims{Sub: "admin", Role: "admin", JTI: "j", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	for _, token := range []string{"", "abc", issued + "x", issued + ".extra"} {
		if _, err := ParseToken([]byte("secret"), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("ParseToken(%q) = %v, want ErrInvalidToken", token, err)
		}
	}
	if _, err := ParseToken([]byte("other"), issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret must be rejected, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc.def": "abc.def",
		"bearer abc":     "abc",
		"Basic abc":      "",
		"":               "",
		"Bearer":         "",
	}
	for header, want := range cases {
		if got := BearerToken(header); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func newTestAdmin(t *testing.T, password string) *Admin {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return NewAdmin(string(hash), "token-secret", time.Hour)
}

func TestAdminLoginAndVerify(t *testing.T) {
	admin := newTestAdmin(t, "cordillera")

	token, exp, err := admin.Login("cordillera")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", exp)
	}
	role, err := admin.Verify(token)
	if err != nil || role != rbac.RoleAdmin {
		t.Fatalf("Verify() = %q, %v", role, err)
	}

	if _, _, err := admin.Login("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAdminTokenExpires(t *testing.T) {
	admin := newTestAdmin(t, "cordillera")
	token, _, err := admin.Login("cordillera")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	admin.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	role, err := admin.Verify(token)
	if !errors.Is(err, ErrExpiredToken) || role != rbac.RolePublic {
		t.Fatalf("expected expired token to degrade to public, got %q %v", role, err)
	}
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	admin := NewAdmin("", "secret", 0)
	if admin.Enabled() {
		t.Fatal("admin without a hash must be disabled")
	}
	if _, _, err := admin.Login("anything"); !errors.Is(err, ErrAdminDisabled) {
		t.Fatalf("expected ErrAdminDisabled, got %v", err)
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
	hash, err := HashPassword("cordillera")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("cordillera")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}
