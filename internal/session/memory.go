package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/studygenius/studygenius/internal/models"
)

// MemoryStore is an in-process Store used in tests and single-node
// development setups. Values are copied through JSON so callers cannot
// mutate stored state by reference.
type MemoryStore struct {
	mu          sync.RWMutex
	snapshots   map[string][]byte
	transcripts map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:   make(map[string][]byte),
		transcripts: make(map[string]map[string][]byte),
	}
}

// SaveSnapshot persists the session snapshot
func (s *MemoryStore) SaveSnapshot(_ context.Context, sessionID string, snap *models.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[sessionID] = data
	return nil
}

// LoadSnapshot retrieves a persisted snapshot, ErrNotFound when absent
func (s *MemoryStore) LoadSnapshot(_ context.Context, sessionID string) (*models.SessionSnapshot, error) {
	s.mu.RLock()
	data, ok := s.snapshots[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var snap models.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteSnapshot removes the persisted snapshot
func (s *MemoryStore) DeleteSnapshot(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, sessionID)
	return nil
}

// SaveTranscript persists the chat transcript for one document
func (s *MemoryStore) SaveTranscript(_ context.Context, sessionID, documentName string, transcript models.Transcript) error {
	data, err := json.Marshal(transcript)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcripts[sessionID] == nil {
		s.transcripts[sessionID] = make(map[string][]byte)
	}
	s.transcripts[sessionID][documentName] = data
	return nil
}

// LoadTranscript retrieves a document's transcript, ErrNotFound when absent
func (s *MemoryStore) LoadTranscript(_ context.Context, sessionID, documentName string) (models.Transcript, error) {
	s.mu.RLock()
	data, ok := s.transcripts[sessionID][documentName]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var transcript models.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, err
	}
	return transcript, nil
}

// DeleteTranscript removes the transcript for one document
func (s *MemoryStore) DeleteTranscript(_ context.Context, sessionID, documentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts[sessionID], documentName)
	return nil
}

// DeleteAll removes every key belonging to a session
func (s *MemoryStore) DeleteAll(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, sessionID)
	delete(s.transcripts, sessionID)
	return nil
}
