package ai

import (
	"context"

	"github.com/studygenius/studygenius/internal/models"
)

// Request is a single call to the generative API. Providers decide how to
// attach the document: Gemini sends the PDF bytes inline, OpenAI prompts over
// the extracted text.
type Request struct {
	// System is the system instruction for this call
	System string
	// Prompt is the user-facing instruction
	Prompt string
	// Document is the study document providing context. Never nil; callers
	// enforce that generators do not run without a document.
	Document *models.Document
	// History carries prior chat turns (chat feature only)
	History []models.ChatMessage
	// WantJSON asks the provider to answer with bare JSON
	WantJSON bool
	// MaxTokens caps the response length when > 0
	MaxTokens int64
}

// Provider is the interface to the external generative-language API.
// Calls are fallible and non-deterministic; no retries happen at this layer.
type Provider interface {
	// Generate performs one model call and returns the raw response text
	Generate(ctx context.Context, req *Request) (string, error)

	// Name identifies the provider for logging
	Name() string
}

// ProviderFactory creates a provider from a flat config map
type ProviderFactory func(config map[string]string) (Provider, error)

// ProviderRegistry stores available provider factories by name
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates an empty registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory under a name
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider builds a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (Provider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return factory(config)
}

// ErrProviderNotFound is returned when a provider name is not registered
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
