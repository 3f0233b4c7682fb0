package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/studygenius/studygenius/internal/models"
	"github.com/studygenius/studygenius/internal/request"
	"github.com/studygenius/studygenius/internal/services/chat"
	"github.com/studygenius/studygenius/internal/session"
	"github.com/studygenius/studygenius/internal/validation"
	"go.uber.org/zap"
)

// SessionHandler serves the current session's state and mode transitions
type SessionHandler struct {
	manager *session.Manager
	chat    *chat.Service
	logger  *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager, chatService *chat.Service, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{manager: manager, chat: chatService, logger: logger}
}

// RegisterRoutes registers session routes on the given router.
// The router should already carry the /session prefix.
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetSession).Methods("GET")
	r.HandleFunc("/mode", h.SetMode).Methods("PATCH")
	r.HandleFunc("", h.ClearSession).Methods("DELETE")
}

// DocumentView is the document metadata exposed over the API. The raw
// payload stays server-side; clients only need the identity.
type DocumentView struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Pages     int    `json:"pages,omitempty"`
}

// SessionView is the API shape of a session snapshot
type SessionView struct {
	SessionID   string        `json:"sessionId"`
	Mode        models.Mode   `json:"mode"`
	Description string        `json:"description"`
	Document    *DocumentView `json:"document,omitempty"`
	Restorable  bool          `json:"restorable"`
}

func sessionView(sess *session.Session) SessionView {
	snap := sess.Snapshot()
	view := SessionView{
		SessionID:   sess.ID(),
		Mode:        snap.Mode,
		Description: snap.Description,
		Restorable:  sess.Restorable(),
	}
	if snap.HasDocument() {
		view.Document = &DocumentView{
			Name:      snap.Document.Name,
			MediaType: snap.Document.MediaType,
			Pages:     snap.Document.Pages,
		}
	}
	return view
}

// GetSession returns the current session's snapshot
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.manager.Get(ctx, request.SessionIDFromContext(r))
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load session")
		return
	}

	// The background describer may have finished since the last read
	sess.RefreshDescription(ctx)

	respondJSON(w, http.StatusOK, sessionView(sess))
}

// SetModeRequest selects the active mode
type SetModeRequest struct {
	Mode string `json:"mode" validate:"required,app_mode"`
}

// SetMode switches the session's active mode
func (h *SessionHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req SetModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed: "+validationErrors[0].Error())
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return
	}

	ctx := r.Context()
	sess, err := h.manager.Get(ctx, request.SessionIDFromContext(r))
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load session")
		return
	}

	if err := sess.SetMode(models.Mode(req.Mode)); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidMode):
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Unknown mode")
		case errors.Is(err, session.ErrModeRequiresDocument):
			respondJSONError(w, http.StatusConflict, "Conflict", "A document must be loaded before entering this mode")
		default:
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to switch mode")
		}
		return
	}

	respondJSON(w, http.StatusOK, sessionView(sess))
}

// ClearSession wipes the session's persisted and in-memory state
func (h *SessionHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := request.SessionIDFromContext(r)
	sess, err := h.manager.Get(ctx, id)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load session")
		return
	}

	if err := sess.Clear(ctx); err != nil {
		h.logger.Error("failed to clear session",
			zap.String("session_id", id),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to clear session")
		return
	}
	h.chat.Forget(id)

	view := sessionView(sess)

	// The session is empty now; release it instead of keeping it live
	if err := h.manager.Drop(ctx, id); err != nil {
		h.logger.Warn("failed to drop cleared session",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}

	respondJSON(w, http.StatusOK, view)
}
