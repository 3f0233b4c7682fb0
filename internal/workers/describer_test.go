package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/studygenius/studygenius/internal/models"
	"github.com/studygenius/studygenius/internal/queue"
	"github.com/studygenius/studygenius/internal/services/ai"
	"github.com/studygenius/studygenius/internal/session"
)

type fakeGenerator struct {
	description string
	err         error
	calls       int
}

func (f *fakeGenerator) Describe(_ context.Context, _ *models.Document) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.description, nil
}

func seedSnapshot(t *testing.T, store session.Store, sessionID, docName string) {
	t.Helper()
	err := store.SaveSnapshot(context.Background(), sessionID, &models.SessionSnapshot{
		Document: &models.Document{
			Name:      docName,
			Data:      "JVBERi0xLjQ=",
			MediaType: models.PDFMediaType,
		},
		Mode: models.ModeDashboard,
	})
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
}

func TestProcessDescribeJob_WritesDescription(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	seedSnapshot(t, store, "s1", "cours.pdf")

	gen := &fakeGenerator{description: "Un cours d'histoire."}
	describer := NewDescriber(gen, store, nil, nil)

	job := queue.NewJob(queue.JobTypeDescribeDocument, "s1", "cours.pdf")
	if err := describer.ProcessDescribeJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessDescribeJob: %v", err)
	}

	snap, err := store.LoadSnapshot(context.Background(), "s1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Description != "Un cours d'histoire." {
		t.Errorf("Description = %q, want the generated one", snap.Description)
	}
}

func TestProcessDescribeJob_SkipsWhenSessionGone(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	gen := &fakeGenerator{description: "..."}
	describer := NewDescriber(gen, store, nil, nil)

	job := queue.NewJob(queue.JobTypeDescribeDocument, "missing", "cours.pdf")
	if err := describer.ProcessDescribeJob(context.Background(), job); err != nil {
		t.Fatalf("A vanished session should not fail the job: %v", err)
	}
	if gen.calls != 0 {
		t.Error("Generator should not run for a vanished session")
	}
}

func TestProcessDescribeJob_SkipsWhenDocumentReplaced(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	seedSnapshot(t, store, "s1", "nouveau.pdf")

	gen := &fakeGenerator{description: "..."}
	describer := NewDescriber(gen, store, nil, nil)

	job := queue.NewJob(queue.JobTypeDescribeDocument, "s1", "ancien.pdf")
	if err := describer.ProcessDescribeJob(context.Background(), job); err != nil {
		t.Fatalf("A replaced document should not fail the job: %v", err)
	}
	if gen.calls != 0 {
		t.Error("Generator should not run for a replaced document")
	}

	snap, _ := store.LoadSnapshot(context.Background(), "s1")
	if snap.Description != "" {
		t.Errorf("Description should stay empty, got %q", snap.Description)
	}
}

func TestProcessDescribeJob_PropagatesGeneratorError(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	seedSnapshot(t, store, "s1", "cours.pdf")

	gen := &fakeGenerator{err: errors.New("upstream exploded")}
	describer := NewDescriber(gen, store, nil, nil)

	job := queue.NewJob(queue.JobTypeDescribeDocument, "s1", "cours.pdf")
	if err := describer.ProcessDescribeJob(context.Background(), job); err == nil {
		t.Fatal("Expected the generator error to propagate for retry handling")
	}
}

func TestProcessDescribeJob_RequiresSessionID(t *testing.T) {
	t.Parallel()

	describer := NewDescriber(&fakeGenerator{}, session.NewMemoryStore(), nil, nil)
	job := queue.NewJob(queue.JobTypeDescribeDocument, "", "")
	if err := describer.ProcessDescribeJob(context.Background(), job); err == nil {
		t.Fatal("Expected error for missing session id")
	}
}

func TestWriteFallbackDescription(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	seedSnapshot(t, store, "s1", "cours.pdf")

	describer := NewDescriber(&fakeGenerator{}, store, nil, nil)
	job := queue.NewJob(queue.JobTypeDescribeDocument, "s1", "cours.pdf")
	describer.writeFallbackDescription(context.Background(), job)

	snap, err := store.LoadSnapshot(context.Background(), "s1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Description != ai.DescriptionFallback {
		t.Errorf("Description = %q, want the fallback", snap.Description)
	}
}

func TestWriteFallbackDescription_KeepsExistingDescription(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	err := store.SaveSnapshot(context.Background(), "s1", &models.SessionSnapshot{
		Document: &models.Document{
			Name:      "cours.pdf",
			Data:      "JVBERi0xLjQ=",
			MediaType: models.PDFMediaType,
		},
		Mode:        models.ModeDashboard,
		Description: "Un cours d'histoire.",
	})
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	describer := NewDescriber(&fakeGenerator{}, store, nil, nil)
	job := queue.NewJob(queue.JobTypeDescribeDocument, "s1", "cours.pdf")
	describer.writeFallbackDescription(context.Background(), job)

	snap, err := store.LoadSnapshot(context.Background(), "s1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Description != "Un cours d'histoire." {
		t.Errorf("Description = %q, want it untouched", snap.Description)
	}
}
