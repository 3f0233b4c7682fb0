package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studygenius/studygenius/internal/models"
)

// countingStore wraps a MemoryStore and counts snapshot writes
type countingStore struct {
	*MemoryStore
	mu            sync.Mutex
	snapshotSaves int
}

func (c *countingStore) SaveSnapshot(ctx context.Context, sessionID string, snap *models.SessionSnapshot) error {
	c.mu.Lock()
	c.snapshotSaves++
	c.mu.Unlock()
	return c.MemoryStore.SaveSnapshot(ctx, sessionID, snap)
}

func (c *countingStore) saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotSaves
}

func testDoc(name string) *models.Document {
	return &models.Document{
		Name:      name,
		Data:      "JVBERi0xLjQ=",
		MediaType: models.PDFMediaType,
	}
}

func TestGet_NewSessionStartsInUploadMode(t *testing.T) {
	t.Parallel()

	mgr := NewManager(NewMemoryStore(), nil, time.Hour)
	sess, err := mgr.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	snap := sess.Snapshot()
	if snap.Mode != models.ModeUpload {
		t.Errorf("Mode = %q, want upload", snap.Mode)
	}
	if snap.HasDocument() {
		t.Error("New session should have no document")
	}
	if sess.Restorable() {
		t.Error("New session should not be restorable")
	}
}

func TestGet_HydratesPersistedSnapshot(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	saved := &models.SessionSnapshot{
		Document:    testDoc("cours.pdf"),
		Mode:        models.ModeQuiz,
		Description: "Un cours.",
	}
	if err := store.SaveSnapshot(context.Background(), "s1", saved); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	mgr := NewManager(store, nil, time.Hour)
	sess, err := mgr.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	snap := sess.Snapshot()
	if snap.Document == nil || snap.Document.Name != "cours.pdf" {
		t.Errorf("Document not hydrated: %+v", snap.Document)
	}
	if snap.Mode != models.ModeQuiz {
		t.Errorf("Mode = %q, want quiz", snap.Mode)
	}
	if !sess.Restorable() {
		t.Error("Hydrated session with a document should be restorable")
	}
}

func TestGet_DocumentlessSnapshotForcedToUpload(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.SaveSnapshot(context.Background(), "s1", &models.SessionSnapshot{Mode: models.ModeChat}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	mgr := NewManager(store, nil, time.Hour)
	sess, err := mgr.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := sess.Snapshot().Mode; got != models.ModeUpload {
		t.Errorf("Mode = %q, want upload when no document is loaded", got)
	}
}

func TestGet_ReturnsSameLiveSession(t *testing.T) {
	t.Parallel()

	mgr := NewManager(NewMemoryStore(), nil, time.Hour)
	a, _ := mgr.Get(context.Background(), "s1")
	b, _ := mgr.Get(context.Background(), "s1")
	if a != b {
		t.Error("Expected the same live session for the same id")
	}
}

func TestSetMode_RequiresDocumentForFeatureModes(t *testing.T) {
	t.Parallel()

	mgr := NewManager(NewMemoryStore(), nil, time.Hour)
	sess, _ := mgr.Get(context.Background(), "s1")

	if err := sess.SetMode(models.ModeQuiz); !errors.Is(err, ErrModeRequiresDocument) {
		t.Errorf("Expected ErrModeRequiresDocument, got %v", err)
	}
	if err := sess.SetMode(models.ModeUpload); err != nil {
		t.Errorf("Upload mode should always be reachable, got %v", err)
	}
	if err := sess.SetMode(models.Mode("bogus")); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("Expected ErrInvalidMode, got %v", err)
	}

	sess.SetDocument(testDoc("cours.pdf"))
	if err := sess.SetMode(models.ModeQuiz); err != nil {
		t.Errorf("Quiz mode with document should work, got %v", err)
	}
}

func TestSetDocument_ForcesDashboardAndResetsState(t *testing.T) {
	t.Parallel()

	mgr := NewManager(NewMemoryStore(), nil, time.Hour)
	sess, _ := mgr.Get(context.Background(), "s1")

	sess.SetDocument(testDoc("premier.pdf"))
	sess.SetDescription("Premier document.")
	if err := sess.SetMode(models.ModeChat); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	sess.SetTranscript(models.Transcript{
		{Role: models.ChatRoleModel, Text: "Bonjour"},
		{Role: models.ChatRoleUser, Text: "Salut"},
	})

	sess.SetDocument(testDoc("second.pdf"))

	snap := sess.Snapshot()
	if snap.Mode != models.ModeDashboard {
		t.Errorf("Mode = %q, want dashboard after new document", snap.Mode)
	}
	if snap.Description != "" {
		t.Errorf("Description = %q, want empty after new document", snap.Description)
	}
	if len(sess.Transcript()) != 0 {
		t.Error("Transcript should reset when the document changes")
	}
}

func TestDebounce_CoalescesRapidWrites(t *testing.T) {
	t.Parallel()

	store := &countingStore{MemoryStore: NewMemoryStore()}
	mgr := NewManager(store, nil, 30*time.Millisecond)
	sess, _ := mgr.Get(context.Background(), "s1")

	sess.SetDocument(testDoc("cours.pdf"))
	sess.SetDescription("v1")
	sess.SetDescription("v2")
	if err := sess.SetMode(models.ModeHighlights); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	if got := store.saves(); got != 0 {
		t.Errorf("Expected no writes inside the debounce window, got %d", got)
	}

	deadline := time.After(2 * time.Second)
	for store.saves() == 0 {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for the debounced save")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Settle, then check the burst collapsed into one write
	time.Sleep(100 * time.Millisecond)
	if got := store.saves(); got != 1 {
		t.Errorf("Expected 1 coalesced write, got %d", got)
	}

	snap, err := store.LoadSnapshot(context.Background(), "s1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Description != "v2" {
		t.Errorf("Persisted description = %q, want the last value v2", snap.Description)
	}
	if snap.Mode != models.ModeHighlights {
		t.Errorf("Persisted mode = %q, want highlights", snap.Mode)
	}
}

func TestFlush_WritesImmediatelyAndCancelsTimer(t *testing.T) {
	t.Parallel()

	store := &countingStore{MemoryStore: NewMemoryStore()}
	mgr := NewManager(store, nil, time.Hour)
	sess, _ := mgr.Get(context.Background(), "s1")

	sess.SetDocument(testDoc("cours.pdf"))
	if err := sess.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := store.saves(); got != 1 {
		t.Errorf("Expected 1 write after Flush, got %d", got)
	}

	// A clean flush is a no-op
	if err := sess.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := store.saves(); got != 1 {
		t.Errorf("Expected no additional write for a clean session, got %d", got)
	}
}

func TestFlush_PersistsTranscriptWithoutGreeting(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	mgr := NewManager(store, nil, time.Hour)
	sess, _ := mgr.Get(context.Background(), "s1")

	sess.SetDocument(testDoc("cours.pdf"))
	sess.SetTranscript(models.Transcript{
		{Role: models.ChatRoleModel, Text: "Bonjour !"},
		{Role: models.ChatRoleUser, Text: "Quel est le sujet ?"},
		{Role: models.ChatRoleModel, Text: "L'histoire."},
	})
	if err := sess.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	saved, err := store.LoadTranscript(context.Background(), "s1", "cours.pdf")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("Expected 2 persisted messages (greeting dropped), got %d", len(saved))
	}
	if saved[0].Role != models.ChatRoleUser {
		t.Errorf("First persisted message role = %q, want user", saved[0].Role)
	}
}

func TestFlush_GreetingOnlyTranscriptNotPersisted(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	mgr := NewManager(store, nil, time.Hour)
	sess, _ := mgr.Get(context.Background(), "s1")

	sess.SetDocument(testDoc("cours.pdf"))
	sess.SetTranscript(models.Transcript{
		{Role: models.ChatRoleModel, Text: "Bonjour !"},
	})
	if err := sess.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if _, err := store.LoadTranscript(context.Background(), "s1", "cours.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Greeting-only transcript should not persist, got %v", err)
	}
}

func TestClear_DeletesPersistedStateAndResets(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	mgr := NewManager(store, nil, time.Hour)
	sess, _ := mgr.Get(context.Background(), "s1")

	sess.SetDocument(testDoc("cours.pdf"))
	if err := sess.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := sess.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, err := store.LoadSnapshot(context.Background(), "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Snapshot should be deleted, got %v", err)
	}

	snap := sess.Snapshot()
	if snap.Mode != models.ModeUpload || snap.HasDocument() {
		t.Errorf("Cleared session should be an empty upload session: %+v", snap)
	}
}

func TestClear_CancelsPendingDebouncedSave(t *testing.T) {
	t.Parallel()

	store := &countingStore{MemoryStore: NewMemoryStore()}
	mgr := NewManager(store, nil, 30*time.Millisecond)
	sess, _ := mgr.Get(context.Background(), "s1")

	sess.SetDocument(testDoc("cours.pdf"))
	if err := sess.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := store.saves(); got != 0 {
		t.Errorf("Pending save should be cancelled by Clear, got %d writes", got)
	}
	if _, err := store.LoadSnapshot(context.Background(), "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("No snapshot should exist after Clear, got %v", err)
	}
}

func TestDrop_FlushesBeforeRemoval(t *testing.T) {
	t.Parallel()

	store := &countingStore{MemoryStore: NewMemoryStore()}
	mgr := NewManager(store, nil, time.Hour)
	sess, _ := mgr.Get(context.Background(), "s1")
	sess.SetDocument(testDoc("cours.pdf"))

	if err := mgr.Drop(context.Background(), "s1"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if got := store.saves(); got != 1 {
		t.Errorf("Expected 1 write on Drop, got %d", got)
	}

	// A fresh Get re-hydrates from the store
	again, err := mgr.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again == sess {
		t.Error("Dropped session should not be returned again")
	}
	snap := again.Snapshot()
	if !snap.HasDocument() {
		t.Error("Re-hydrated session should carry the persisted document")
	}
}

func TestEvictIdle_DropsUntouchedSessions(t *testing.T) {
	t.Parallel()

	store := &countingStore{MemoryStore: NewMemoryStore()}
	mgr := NewManager(store, nil, time.Hour)

	for _, id := range []string{"s1", "s2", "s3"} {
		sess, err := mgr.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		sess.SetDocument(testDoc(id + ".pdf"))
	}

	if n := mgr.EvictIdle(context.Background(), 0); n != 3 {
		t.Fatalf("EvictIdle = %d, want 3", n)
	}

	mgr.mu.Lock()
	live := len(mgr.active)
	mgr.mu.Unlock()
	if live != 0 {
		t.Errorf("Active sessions after eviction = %d, want 0", live)
	}

	// Eviction flushes pending state, so each session is persisted
	if got := store.saves(); got != 3 {
		t.Errorf("Expected 3 writes on eviction, got %d", got)
	}

	// A later Get re-hydrates the evicted state from the store
	sess, err := mgr.Get(context.Background(), "s2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	snap := sess.Snapshot()
	if !snap.HasDocument() || snap.Document.Name != "s2.pdf" {
		t.Errorf("Re-hydrated session lost its document: %+v", snap.Document)
	}
}

func TestEvictIdle_KeepsRecentlyUsedSessions(t *testing.T) {
	t.Parallel()

	mgr := NewManager(NewMemoryStore(), nil, time.Hour)
	if _, err := mgr.Get(context.Background(), "s1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if n := mgr.EvictIdle(context.Background(), time.Hour); n != 0 {
		t.Fatalf("EvictIdle = %d, want 0 for a fresh session", n)
	}

	mgr.mu.Lock()
	live := len(mgr.active)
	mgr.mu.Unlock()
	if live != 1 {
		t.Errorf("Active sessions = %d, want 1", live)
	}
}
