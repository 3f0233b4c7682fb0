package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/studygenius/studygenius/internal/request"
	"github.com/studygenius/studygenius/internal/services/entitlement"
	"go.uber.org/zap"
)

func TestSessionID_AssignsFreshID(t *testing.T) {
	t.Parallel()

	var captured string
	handler := SessionID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = request.SessionIDFromContext(r)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if captured == "" {
		t.Fatal("Expected a session ID in the request context")
	}
	if uuid.Validate(captured) != nil {
		t.Errorf("Session ID is not a UUID: %q", captured)
	}
	if got := rec.Header().Get(SessionHeader); got != captured {
		t.Errorf("Response header = %q, want the assigned ID %q", got, captured)
	}
}

func TestSessionID_KeepsProvidedID(t *testing.T) {
	t.Parallel()

	id := uuid.NewString()
	var captured string
	handler := SessionID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = request.SessionIDFromContext(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(SessionHeader, id)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if captured != id {
		t.Errorf("Session ID = %q, want the provided %q", captured, id)
	}
}

func TestSessionID_ReplacesMalformedID(t *testing.T) {
	t.Parallel()

	var captured string
	handler := SessionID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = request.SessionIDFromContext(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(SessionHeader, "../../etc/passwd")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if captured == "../../etc/passwd" {
		t.Error("Malformed session ID should be replaced")
	}
	if uuid.Validate(captured) != nil {
		t.Errorf("Replacement session ID is not a UUID: %q", captured)
	}
}

func TestEntitlement_FlagsPremiumRequests(t *testing.T) {
	t.Parallel()

	svc, err := entitlement.NewService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	token, err := svc.IssuePremium("s1")
	if err != nil {
		t.Fatalf("IssuePremium: %v", err)
	}

	var premium bool
	handler := Entitlement(svc, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		premium = request.IsPremium(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !premium {
		t.Error("Request with valid token should be flagged premium")
	}
}

func TestEntitlement_InvalidTokenDowngradesToFree(t *testing.T) {
	t.Parallel()

	svc, _ := entitlement.NewService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)

	var premium bool
	var reached bool
	handler := Entitlement(svc, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		premium = request.IsPremium(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !reached {
		t.Fatal("Invalid token should not block the request")
	}
	if premium {
		t.Error("Invalid token should not grant premium")
	}
}

func TestRequirePremium(t *testing.T) {
	t.Parallel()

	handler := RequirePremium()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("Status = %d, want 402 without entitlement", rec.Code)
	}

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(request.WithPremium(r.Context(), true))
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200 with entitlement", rec.Code)
	}
}
