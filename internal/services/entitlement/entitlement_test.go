package entitlement

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNewService_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewService([]byte("short"), 0); err == nil {
		t.Fatal("Expected error for short secret")
	}
}

func TestIssueAndVerifyPremium(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testSecret, 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	token, err := svc.IssuePremium("session-123")
	if err != nil {
		t.Fatalf("IssuePremium: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("Token does not look like a JWT: %q", token)
	}

	if err := svc.VerifyPremium(token); err != nil {
		t.Errorf("VerifyPremium: %v", err)
	}
}

func TestVerifyPremium_RejectsTamperedToken(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(testSecret, 0)
	token, err := svc.IssuePremium("session-123")
	if err != nil {
		t.Fatalf("IssuePremium: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if err := svc.VerifyPremium(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyPremium_RejectsWrongSecret(t *testing.T) {
	t.Parallel()

	issuer, _ := NewService(testSecret, 0)
	verifier, _ := NewService([]byte("ffffffffffffffffffffffffffffffff"), 0)

	token, err := issuer.IssuePremium("session-123")
	if err != nil {
		t.Fatalf("IssuePremium: %v", err)
	}
	if err := verifier.VerifyPremium(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyPremium_RejectsExpiredToken(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(testSecret, time.Nanosecond)
	token, err := svc.IssuePremium("session-123")
	if err != nil {
		t.Fatalf("IssuePremium: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := svc.VerifyPremium(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyPremium_RejectsGarbage(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(testSecret, 0)
	if err := svc.VerifyPremium("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}
