package service_test

import (
	"testing"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newAdminAuth(t *testing.T, apiKey string) *service.AdminAuth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing failed: %v", err)
	}
	return service.NewAdminAuth(string(hash), "test-secret", 15*time.Minute, zap.NewNop())
}

func TestAdminAuth_DisabledWithoutHash(t *testing.T) {
	auth := service.NewAdminAuth("", "secret", time.Minute, zap.NewNop())

	if auth.Enabled() {
		t.Fatal("expected auth disabled with empty hash")
	}
	if _, err := auth.Login("anything"); err == nil {
		t.Fatal("expected login to fail when disabled")
	}
}

func TestAdminAuth_LoginAndValidate(t *testing.T) {
	auth := newAdminAuth(t, "super-secret-key")

	token, err := auth.Login("super-secret-key")
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	subject, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected token to validate, got %v", err)
	}
	if subject != "admin" {
		t.Errorf("expected subject 'admin', got '%s'", subject)
	}
}

func TestAdminAuth_WrongKey(t *testing.T) {
	auth := newAdminAuth(t, "super-secret-key")

	if _, err := auth.Login("wrong-key"); err == nil {
		t.Fatal("expected login to fail with wrong key")
	}
}

func TestAdminAuth_RejectsForeignToken(t *testing.T) {
	issuer := newAdminAuth(t, "key")
	verifier := service.NewAdminAuth("some-hash", "different-secret", time.Minute, zap.NewNop())

	token, err := issuer.Login("key")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Fatal("expected validation to fail across secrets")
	}
}

func TestAdminAuth_RejectsGarbageToken(t *testing.T) {
	auth := newAdminAuth(t, "key")

	if _, err := auth.ValidateToken("not.a.token"); err == nil {
		t.Fatal("expected validation to fail for garbage input")
	}
}
