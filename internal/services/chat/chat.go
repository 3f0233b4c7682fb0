package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/studygenius/studygenius/internal/models"
	"github.com/studygenius/studygenius/internal/session"
	"go.uber.org/zap"
)

// State is the chat conversation state for one session
type State string

const (
	// StateIdle means the chat accepts a new message
	StateIdle State = "idle"
	// StateAwaitingResponse means a model call is in flight
	StateAwaitingResponse State = "awaiting_response"
	// StateErrorDisplayed means the last exchange failed and the transcript
	// ends with an error entry. A new message is accepted.
	StateErrorDisplayed State = "error_displayed"
)

// ErrorText is shown in the transcript when the model call fails
const ErrorText = "Une erreur technique est survenue lors de la communication avec l'IA."

var (
	// ErrBusy is returned when a message arrives while a response is pending
	ErrBusy = errors.New("a response is already pending")
	// ErrNoDocument is returned when chat is used without a loaded document
	ErrNoDocument = errors.New("no document loaded")
	// ErrNothingToRestore is returned when no saved conversation exists
	ErrNothingToRestore = errors.New("no saved conversation to restore")
)

// Generator is the model call the chat depends on
type Generator interface {
	Chat(ctx context.Context, doc *models.Document, history []models.ChatMessage, message string) (string, error)
}

// Service drives the per-session chat conversation. At most one model call
// is in flight per session; everything else queues behind a conflict error.
type Service struct {
	store     session.Store
	generator Generator
	logger    *zap.Logger

	mu     sync.Mutex
	states map[string]State
}

// NewService creates the chat service
func NewService(store session.Store, generator Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		generator: generator,
		logger:    logger,
		states:    make(map[string]State),
	}
}

// Greeting builds the synthetic opening message for a document
func Greeting(documentName string) models.ChatMessage {
	return models.ChatMessage{
		Role: models.ChatRoleModel,
		Text: fmt.Sprintf("Bonjour ! J'ai analysé **%s**. Que souhaitez-vous savoir ?", documentName),
	}
}

// State returns the conversation state for a session
func (s *Service) State(sessionID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[sessionID]; ok {
		return state
	}
	return StateIdle
}

func (s *Service) setState(sessionID string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == StateIdle {
		delete(s.states, sessionID)
		return
	}
	s.states[sessionID] = state
}

// tryBeginSend transitions to AwaitingResponse, failing when a call is
// already in flight
func (s *Service) tryBeginSend(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[sessionID] == StateAwaitingResponse {
		return ErrBusy
	}
	s.states[sessionID] = StateAwaitingResponse
	return nil
}

// Open prepares the conversation for the session's current document. The
// transcript always starts with the greeting; the second return reports
// whether a saved conversation exists that a restore would bring back.
func (s *Service) Open(ctx context.Context, sess *session.Session) (models.Transcript, bool, error) {
	snap := sess.Snapshot()
	if !snap.HasDocument() {
		return nil, false, ErrNoDocument
	}

	transcript := sess.Transcript()
	if len(transcript) == 0 {
		transcript = models.Transcript{Greeting(snap.Document.Name)}
		sess.SetTranscript(transcript)
	}

	restoreAvailable := false
	if !transcript.HasHistory() {
		saved, err := s.store.LoadTranscript(ctx, sess.ID(), snap.Document.Name)
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			return nil, false, err
		}
		// Saved transcripts never include the greeting, so any saved
		// message is a real turn worth offering back
		restoreAvailable = len(saved) > 0
	}

	return transcript, restoreAvailable, nil
}

// Send appends the user message, calls the model, and appends the answer.
// The user message lands in the transcript before the model call, so the
// conversation shows it even when the call fails. A failed call appends an
// error entry instead of an answer.
func (s *Service) Send(ctx context.Context, sess *session.Session, text string) (models.Transcript, error) {
	snap := sess.Snapshot()
	if !snap.HasDocument() {
		return nil, ErrNoDocument
	}

	if err := s.tryBeginSend(sess.ID()); err != nil {
		return nil, err
	}

	transcript := sess.Transcript()
	if len(transcript) == 0 {
		transcript = models.Transcript{Greeting(snap.Document.Name)}
	}

	// Prior turns, without the synthetic greeting and without error entries
	history := make([]models.ChatMessage, 0, len(transcript))
	for i, msg := range transcript {
		if i == 0 || msg.IsError {
			continue
		}
		history = append(history, msg)
	}

	transcript = append(transcript, models.ChatMessage{Role: models.ChatRoleUser, Text: text})
	sess.SetTranscript(transcript)

	answer, err := s.callGenerator(ctx, snap.Document, history, text)
	if err != nil {
		s.logger.Warn("chat generation failed",
			zap.String("session_id", sess.ID()),
			zap.String("document", snap.Document.Name),
			zap.Error(err),
		)
		transcript = append(transcript, models.ChatMessage{
			Role:    models.ChatRoleModel,
			Text:    ErrorText,
			IsError: true,
		})
		sess.SetTranscript(transcript)
		s.setState(sess.ID(), StateErrorDisplayed)
		return transcript, nil
	}

	transcript = append(transcript, models.ChatMessage{Role: models.ChatRoleModel, Text: answer})
	sess.SetTranscript(transcript)
	s.setState(sess.ID(), StateIdle)
	return transcript, nil
}

// callGenerator invokes the model, converting a panic into an error. A panic
// that escaped here would leave the session in AwaitingResponse forever and
// every later message would bounce with a conflict.
func (s *Service) callGenerator(ctx context.Context, doc *models.Document, history []models.ChatMessage, message string) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chat generator panicked: %v", r)
		}
	}()
	return s.generator.Chat(ctx, doc, history, message)
}

// Restore replaces the live transcript with the saved conversation for the
// current document, greeting first
func (s *Service) Restore(ctx context.Context, sess *session.Session) (models.Transcript, error) {
	snap := sess.Snapshot()
	if !snap.HasDocument() {
		return nil, ErrNoDocument
	}

	saved, err := s.store.LoadTranscript(ctx, sess.ID(), snap.Document.Name)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNothingToRestore
	}
	if err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, ErrNothingToRestore
	}

	transcript := make(models.Transcript, 0, len(saved)+1)
	transcript = append(transcript, Greeting(snap.Document.Name))
	transcript = append(transcript, saved...)
	sess.SetTranscript(transcript)
	s.setState(sess.ID(), StateIdle)
	return transcript, nil
}

// Reset discards the conversation, both live and saved, and returns the
// transcript to the greeting alone
func (s *Service) Reset(ctx context.Context, sess *session.Session) (models.Transcript, error) {
	snap := sess.Snapshot()
	if !snap.HasDocument() {
		return nil, ErrNoDocument
	}

	if err := s.store.DeleteTranscript(ctx, sess.ID(), snap.Document.Name); err != nil {
		return nil, err
	}

	transcript := models.Transcript{Greeting(snap.Document.Name)}
	sess.SetTranscript(transcript)
	s.setState(sess.ID(), StateIdle)
	return transcript, nil
}

// Forget drops the in-memory conversation state for a session
func (s *Service) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
}
