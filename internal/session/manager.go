package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/studygenius/studygenius/internal/models"
	"go.uber.org/zap"
)

// DefaultDebounce is the write-coalescing window for session persistence.
// Rapid state changes produce at most one store write per window.
const DefaultDebounce = 500 * time.Millisecond

var (
	// ErrModeRequiresDocument is returned when a feature mode is requested
	// with no document loaded
	ErrModeRequiresDocument = errors.New("mode requires a loaded document")
	// ErrInvalidMode is returned for a mode outside the known set
	ErrInvalidMode = errors.New("invalid mode")
)

// Manager owns the live sessions. Each session's state lives in memory and
// is flushed to the store through a debounce timer, so the store sees
// coalesced writes rather than every mutation.
type Manager struct {
	store    Store
	logger   *zap.Logger
	debounce time.Duration

	mu     sync.Mutex
	active map[string]*Session
}

// NewManager creates a session manager over the given store
func NewManager(store Store, logger *zap.Logger, debounce time.Duration) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Manager{
		store:    store,
		logger:   logger,
		debounce: debounce,
		active:   make(map[string]*Session),
	}
}

// Get returns the live session for id, hydrating it from the store on first
// access. A session with no persisted state starts empty in upload mode.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.active[id]; ok {
		m.mu.Unlock()
		sess.touch()
		return sess, nil
	}
	m.mu.Unlock()

	// Hydrate outside the manager lock; a racing Get for the same id is
	// resolved below by keeping whichever session registered first.
	snap, err := m.store.LoadSnapshot(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	sess := &Session{
		id:         id,
		manager:    m,
		snapshot:   models.SessionSnapshot{Mode: models.ModeUpload},
		lastAccess: time.Now(),
	}
	if snap != nil {
		sess.snapshot = *snap
		sess.restorable = snap.HasDocument()
		if !snap.HasDocument() {
			sess.snapshot.Mode = models.ModeUpload
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.active[id]; ok {
		return existing, nil
	}
	m.active[id] = sess
	return sess, nil
}

// Drop removes a session from the active set after flushing pending state
func (m *Manager) Drop(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return sess.Flush(ctx)
}

// EvictIdle flushes and drops every session untouched for at least idleFor,
// returning how many were evicted. The store keeps the state; a later Get
// re-hydrates it. Without eviction, anonymous traffic pins one document per
// minted session ID in memory indefinitely.
func (m *Manager) EvictIdle(ctx context.Context, idleFor time.Duration) int {
	cutoff := time.Now().Add(-idleFor)

	m.mu.Lock()
	idle := make([]*Session, 0)
	for id, sess := range m.active {
		if !sess.accessedAfter(cutoff) {
			idle = append(idle, sess)
			delete(m.active, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range idle {
		if err := sess.Flush(ctx); err != nil {
			m.logger.Warn("failed to flush idle session",
				zap.String("session_id", sess.id),
				zap.Error(err),
			)
		}
	}
	return len(idle)
}

// StartEvictor sweeps idle sessions until ctx is cancelled
func (m *Manager) StartEvictor(ctx context.Context, interval, idleFor time.Duration) {
	if interval <= 0 || idleFor <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(ctx, idleFor); n > 0 {
				m.logger.Info("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Shutdown flushes every active session. Used on server stop so the
// debounce window cannot swallow the last writes.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.active))
	for _, sess := range m.active {
		sessions = append(sessions, sess)
	}
	m.active = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		if err := sess.Flush(ctx); err != nil {
			m.logger.Warn("failed to flush session on shutdown",
				zap.String("session_id", sess.id),
				zap.Error(err),
			)
		}
	}
}

// Session is one user's live state: the snapshot, the current document's
// transcript, and the debounced persistence machinery.
type Session struct {
	id      string
	manager *Manager

	mu         sync.Mutex
	snapshot   models.SessionSnapshot
	transcript models.Transcript
	restorable bool
	timer      *time.Timer
	dirty      bool
	lastAccess time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

func (s *Session) accessedAfter(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess.After(cutoff)
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Snapshot returns a copy of the current session snapshot
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Restorable reports whether persisted state with a document existed when
// the session was hydrated. The restore offer keys off this.
func (s *Session) Restorable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restorable
}

// SetDocument loads a new document. The mode is forced to dashboard and the
// description reset; it is filled in later by the describer.
func (s *Session) SetDocument(doc *models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Document = doc
	s.snapshot.Mode = models.ModeDashboard
	s.snapshot.Description = ""
	s.transcript = nil
	s.restorable = false
	s.scheduleSaveLocked()
}

// SetMode switches the active mode. Feature modes require a loaded
// document; without one the only reachable mode is upload.
func (s *Session) SetMode(mode models.Mode) error {
	if !mode.IsValid() {
		return ErrInvalidMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snapshot.HasDocument() && mode != models.ModeUpload {
		return ErrModeRequiresDocument
	}
	s.snapshot.Mode = mode
	s.scheduleSaveLocked()
	return nil
}

// RefreshDescription adopts a description written to the store by the
// background describer when the live session does not have one yet
func (s *Session) RefreshDescription(ctx context.Context) {
	s.mu.Lock()
	needsDescription := s.snapshot.HasDocument() && s.snapshot.Description == ""
	var docName string
	if needsDescription {
		docName = s.snapshot.Document.Name
	}
	s.mu.Unlock()
	if !needsDescription {
		return
	}

	stored, err := s.manager.store.LoadSnapshot(ctx, s.id)
	if err != nil || !stored.HasDocument() || stored.Document.Name != docName || stored.Description == "" {
		return
	}

	s.mu.Lock()
	if s.snapshot.HasDocument() && s.snapshot.Document.Name == docName && s.snapshot.Description == "" {
		s.snapshot.Description = stored.Description
	}
	s.mu.Unlock()
}

// SetDescription records the generated document description
func (s *Session) SetDescription(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Description = description
	s.scheduleSaveLocked()
}

// Transcript returns a copy of the current document's chat transcript
func (s *Session) Transcript() models.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(models.Transcript, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// SetTranscript replaces the current document's chat transcript
func (s *Session) SetTranscript(transcript models.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = transcript
	s.scheduleSaveLocked()
}

// scheduleSaveLocked arms (or re-arms) the debounce timer. Callers hold s.mu.
func (s *Session) scheduleSaveLocked() {
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.manager.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			s.manager.logger.Warn("debounced session save failed",
				zap.String("session_id", s.id),
				zap.Error(err),
			)
		}
	})
}

// Flush writes pending state to the store immediately, cancelling any armed
// debounce timer. A clean session is a no-op.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.dirty = false
	snap := s.snapshot
	snap.SavedAt = time.Now().UTC()
	s.snapshot.SavedAt = snap.SavedAt

	var (
		docName        string
		transcript     models.Transcript
		saveTranscript bool
	)
	if snap.HasDocument() && s.transcript.HasHistory() {
		docName = snap.Document.Name
		// Index 0 is the synthetic greeting; persist only real turns
		transcript = make(models.Transcript, len(s.transcript)-1)
		copy(transcript, s.transcript[1:])
		saveTranscript = true
	}
	s.mu.Unlock()

	// The background describer writes descriptions straight to the store.
	// Adopt one rather than overwriting it with an empty value.
	if snap.HasDocument() && snap.Description == "" {
		if stored, err := s.manager.store.LoadSnapshot(ctx, s.id); err == nil &&
			stored.HasDocument() && stored.Document.Name == snap.Document.Name && stored.Description != "" {
			snap.Description = stored.Description
			s.mu.Lock()
			if s.snapshot.HasDocument() && s.snapshot.Document.Name == snap.Document.Name && s.snapshot.Description == "" {
				s.snapshot.Description = stored.Description
			}
			s.mu.Unlock()
		}
	}

	if err := s.manager.store.SaveSnapshot(ctx, s.id, &snap); err != nil {
		s.markDirty()
		return err
	}
	if saveTranscript {
		if err := s.manager.store.SaveTranscript(ctx, s.id, docName, transcript); err != nil {
			s.markDirty()
			return err
		}
	}
	return nil
}

func (s *Session) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Clear wipes the session: pending saves are cancelled, persisted state is
// deleted, and the in-memory state returns to an empty upload session. The
// delete completes before Clear returns, so a crash right after cannot
// resurrect the old state.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.dirty = false
	s.snapshot = models.SessionSnapshot{Mode: models.ModeUpload}
	s.transcript = nil
	s.restorable = false
	s.mu.Unlock()

	return s.manager.store.DeleteAll(ctx, s.id)
}
