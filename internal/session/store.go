package session

import (
	"context"
	"errors"

	"github.com/studygenius/studygenius/internal/models"
)

// ErrNotFound is returned when no persisted state exists for a session
var ErrNotFound = errors.New("session state not found")

// Store persists session snapshots and chat transcripts. Transcripts are
// keyed per document so a re-uploaded document finds its prior conversation.
type Store interface {
	// SaveSnapshot persists the session snapshot
	SaveSnapshot(ctx context.Context, sessionID string, snap *models.SessionSnapshot) error

	// LoadSnapshot retrieves a persisted snapshot, ErrNotFound when absent
	LoadSnapshot(ctx context.Context, sessionID string) (*models.SessionSnapshot, error)

	// DeleteSnapshot removes the persisted snapshot
	DeleteSnapshot(ctx context.Context, sessionID string) error

	// SaveTranscript persists the chat transcript for one document
	SaveTranscript(ctx context.Context, sessionID, documentName string, transcript models.Transcript) error

	// LoadTranscript retrieves a document's transcript, ErrNotFound when absent
	LoadTranscript(ctx context.Context, sessionID, documentName string) (models.Transcript, error)

	// DeleteTranscript removes the transcript for one document
	DeleteTranscript(ctx context.Context, sessionID, documentName string) error

	// DeleteAll removes every key belonging to a session
	DeleteAll(ctx context.Context, sessionID string) error
}
