package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/studygenius/studygenius/internal/models"
	"github.com/studygenius/studygenius/internal/request"
	"github.com/studygenius/studygenius/internal/services/chat"
	"github.com/studygenius/studygenius/internal/session"
	"go.uber.org/zap"
)

// staticChatGenerator answers every chat call with a fixed reply
type staticChatGenerator struct {
	reply string
	err   error
}

func (g *staticChatGenerator) Chat(ctx context.Context, doc *models.Document, history []models.ChatMessage, message string) (string, error) {
	return g.reply, g.err
}

func newSessionTestEnv(t *testing.T) (*session.Manager, *chat.Service) {
	t.Helper()
	store := session.NewMemoryStore()
	manager := session.NewManager(store, zap.NewNop(), session.DefaultDebounce)
	chatService := chat.NewService(store, &staticChatGenerator{reply: "ok"}, zap.NewNop())
	return manager, chatService
}

func withSession(r *http.Request, id string) *http.Request {
	return r.WithContext(request.WithSessionID(r.Context(), id))
}

func testDocument() *models.Document {
	return &models.Document{
		Name:      "cours.pdf",
		Data:      "JVBERi0=",
		MediaType: models.PDFMediaType,
		Pages:     3,
		Text:      "contenu du cours",
	}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("Response has no data object: %v", body)
	}
	return data
}

func TestGetSession_FreshSessionStartsInUpload(t *testing.T) {
	t.Parallel()

	manager, chatService := newSessionTestEnv(t)
	handler := NewSessionHandler(manager, chatService, zap.NewNop())

	router := mux.NewRouter()
	handler.RegisterRoutes(router.PathPrefix("/session").Subrouter())

	rec := httptest.NewRecorder()
	r := withSession(httptest.NewRequest(http.MethodGet, "/session", nil), uuid.NewString())
	router.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	data := decodeData(t, rec)
	if data["mode"] != string(models.ModeUpload) {
		t.Errorf("Mode = %v, want upload", data["mode"])
	}
	if _, hasDoc := data["document"]; hasDoc {
		t.Error("Fresh session should have no document")
	}
}

func TestSetMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		loadDoc    bool
		wantStatus int
		wantMode   models.Mode
	}{
		{
			name:       "feature mode with document",
			body:       `{"mode":"quiz"}`,
			loadDoc:    true,
			wantStatus: http.StatusOK,
			wantMode:   models.ModeQuiz,
		},
		{
			name:       "feature mode without document",
			body:       `{"mode":"chat"}`,
			loadDoc:    false,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown mode",
			body:       `{"mode":"settings"}`,
			loadDoc:    true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing mode",
			body:       `{}`,
			loadDoc:    true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"mode":`,
			loadDoc:    true,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			manager, chatService := newSessionTestEnv(t)
			handler := NewSessionHandler(manager, chatService, zap.NewNop())
			router := mux.NewRouter()
			handler.RegisterRoutes(router.PathPrefix("/session").Subrouter())

			id := uuid.NewString()
			if tt.loadDoc {
				sess, err := manager.Get(context.Background(), id)
				if err != nil {
					t.Fatalf("Get: %v", err)
				}
				sess.SetDocument(testDocument())
			}

			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPatch, "/session/mode", bytes.NewBufferString(tt.body))
			r.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(rec, withSession(r, id))

			if rec.Code != tt.wantStatus {
				t.Fatalf("Status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				data := decodeData(t, rec)
				if data["mode"] != string(tt.wantMode) {
					t.Errorf("Mode = %v, want %s", data["mode"], tt.wantMode)
				}
			}
		})
	}
}

func TestClearSession(t *testing.T) {
	t.Parallel()

	manager, chatService := newSessionTestEnv(t)
	handler := NewSessionHandler(manager, chatService, zap.NewNop())
	router := mux.NewRouter()
	handler.RegisterRoutes(router.PathPrefix("/session").Subrouter())

	id := uuid.NewString()
	sess, err := manager.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	sess.SetDocument(testDocument())

	rec := httptest.NewRecorder()
	r := withSession(httptest.NewRequest(http.MethodDelete, "/session", nil), id)
	router.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	data := decodeData(t, rec)
	if data["mode"] != string(models.ModeUpload) {
		t.Errorf("Mode after clear = %v, want upload", data["mode"])
	}
	if _, hasDoc := data["document"]; hasDoc {
		t.Error("Cleared session should have no document")
	}
}
