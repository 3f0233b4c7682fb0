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

// MaxChatMessageLength caps a single chat message
const MaxChatMessageLength = 4000

// ChatHandler serves the per-document chat conversation
type ChatHandler struct {
	manager *session.Manager
	chat    *chat.Service
	logger  *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(manager *session.Manager, chatService *chat.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{manager: manager, chat: chatService, logger: logger}
}

// RegisterRoutes registers chat routes on the given router.
// The router should already carry the /chat prefix.
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Open).Methods("GET")
	r.HandleFunc("/messages", h.SendMessage).Methods("POST")
	r.HandleFunc("/restore", h.Restore).Methods("POST")
	r.HandleFunc("/reset", h.Reset).Methods("POST")
}

// ChatView is the API shape of a conversation
type ChatView struct {
	Messages         models.Transcript `json:"messages"`
	State            chat.State        `json:"state"`
	RestoreAvailable bool              `json:"restoreAvailable,omitempty"`
	LastUserText     string            `json:"lastUserText,omitempty"`
}

// chatView builds the response shape. After a failed exchange the last user
// message is surfaced separately so clients can prefill the input for a retry.
func (h *ChatHandler) chatView(sessionID string, transcript models.Transcript) ChatView {
	view := ChatView{
		Messages: transcript,
		State:    h.chat.State(sessionID),
	}
	if view.State == chat.StateErrorDisplayed {
		view.LastUserText = transcript.LastUserText()
	}
	return view
}

// session loads the live session, writing the error response itself on
// failure
func (h *ChatHandler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, err := h.manager.Get(r.Context(), request.SessionIDFromContext(r))
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load session")
		return nil
	}
	return sess
}

// Open returns the conversation for the current document, starting it with
// the greeting when none exists yet
func (h *ChatHandler) Open(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	transcript, restoreAvailable, err := h.chat.Open(r.Context(), sess)
	if err != nil {
		if errors.Is(err, chat.ErrNoDocument) {
			respondJSONError(w, http.StatusConflict, "Conflict", "A document must be loaded first")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to open conversation")
		return
	}

	view := h.chatView(sess.ID(), transcript)
	view.RestoreAvailable = restoreAvailable
	respondJSON(w, http.StatusOK, view)
}

// SendMessageRequest carries one user chat message
type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// SendMessage appends the user's message and the model's answer to the
// conversation. While a response is pending, further messages get 409.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
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

	message := validation.SanitizeText(req.Message)
	if message == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Message cannot be empty")
		return
	}

	sess := h.session(w, r)
	if sess == nil {
		return
	}

	transcript, err := h.chat.Send(r.Context(), sess, message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrBusy):
			respondJSONError(w, http.StatusConflict, "Conflict", "A response is already pending")
		case errors.Is(err, chat.ErrNoDocument):
			respondJSONError(w, http.StatusConflict, "Conflict", "A document must be loaded first")
		default:
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to send message")
		}
		return
	}

	respondJSON(w, http.StatusOK, h.chatView(sess.ID(), transcript))
}

// Restore brings back the saved conversation for the current document
func (h *ChatHandler) Restore(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	transcript, err := h.chat.Restore(r.Context(), sess)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNothingToRestore):
			respondJSONError(w, http.StatusNotFound, "Not Found", "No saved conversation to restore")
		case errors.Is(err, chat.ErrNoDocument):
			respondJSONError(w, http.StatusConflict, "Conflict", "A document must be loaded first")
		default:
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to restore conversation")
		}
		return
	}

	respondJSON(w, http.StatusOK, h.chatView(sess.ID(), transcript))
}

// Reset discards the conversation, live and saved, leaving only the greeting
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	transcript, err := h.chat.Reset(r.Context(), sess)
	if err != nil {
		if errors.Is(err, chat.ErrNoDocument) {
			respondJSONError(w, http.StatusConflict, "Conflict", "A document must be loaded first")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to reset conversation")
		return
	}

	respondJSON(w, http.StatusOK, h.chatView(sess.ID(), transcript))
}
