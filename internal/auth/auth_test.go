package auth

import (
	"errors"
	"testing"
	"time"
)

func TestAuthenticate_ValidCredentials(t *testing.T) {
	a := New(Config{Enabled: true, Username: "admin", Password: "secret", JWTSecret: "test-secret"})

	token, expiresAt, err := a.Authenticate("admin", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if expiresAt <= time.Now().Unix() {
		t.Errorf("expiry %d should be in the future", expiresAt)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("claims username %q, want admin", claims.Username)
	}
}

func TestAuthenticate_WrongCredentials(t *testing.T) {
	a := New(Config{Enabled: true, Username: "admin", Password: "secret"})

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "nope"},
		{"wrong username", "root", "secret"},
		{"empty password", "admin", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := a.Authenticate(tt.username, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestAuthenticate_Disabled(t *testing.T) {
	a := New(Config{Enabled: false})
	if _, _, err := a.Authenticate("admin", "secret"); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("expected ErrAuthDisabled, got %v", err)
	}
	if a.IsEnabled() {
		t.Error("IsEnabled should be false")
	}
}

func TestNew_AcceptsBcryptHash(t *testing.T) {
	// Pre-hashed "secret" must be used verbatim, not re-hashed.
	hashed := New(Config{Enabled: true, Password: "secret"})
	a := New(Config{Enabled: true, Password: string(hashed.passwordHash)})

	if _, _, err := a.Authenticate("admin", "secret"); err != nil {
		t.Errorf("authenticate with stored hash: %v", err)
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	a := New(Config{Enabled: true, Password: "secret", JWTSecret: "s1"})

	if _, err := a.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}

	// A token signed with a different secret must be rejected.
	other := New(Config{Enabled: true, Password: "secret", JWTSecret: "s2"})
	token, _, err := other.Authenticate("admin", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := a.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for foreign token, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	m := NewJWTManager("test-secret", time.Nanosecond)
	token, _, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := m.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}
