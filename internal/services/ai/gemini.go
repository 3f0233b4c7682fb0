package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studygenius/studygenius/internal/documents"
	"github.com/studygenius/studygenius/internal/models"
	"go.uber.org/zap"
	genai "google.golang.org/genai"
)

const (
	// DefaultGeminiModel is the default Gemini model, a fast model suited
	// to interactive use
	DefaultGeminiModel = "gemini-2.5-flash"
)

// GeminiProvider implements the Provider interface using Google's
// generative-language API. Unlike chat completions, Gemini accepts the PDF
// bytes inline, so the model reads the document directly.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	return NewGeminiProviderWithLogger(ctx, apiKey, model, nil, false)
}

// NewGeminiProviderWithLogger creates a new Gemini provider with logger support
func NewGeminiProviderWithLogger(ctx context.Context, apiKey, model string, logger *zap.Logger, debugMode bool) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}, nil
}

// Name identifies the provider for logging
func (p *GeminiProvider) Name() string { return "gemini" }

// Generate performs one model call and returns the raw response text
func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (string, error) {
	contents, err := p.buildContents(req)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.WantJSON {
		config.ResponseMIMEType = "application/json"
	}

	requestID := ExtractRequestID(ctx)
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.String("document", req.Document.Name),
			zap.String("prompt_preview", SanitizePrompt(req.Prompt, true)),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	res, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	latency := time.Since(start)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("provider", p.Name()),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("generation failed: %w", apiErr)
		}
		return "", fmt.Errorf("generation failed: %w", err)
	}

	content := res.Text()

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return content, nil
}

// buildContents assembles the stateless conversation: the PDF is pinned as
// the first user turn, followed by a model acknowledgement, prior chat
// history, and the new prompt.
func (p *GeminiProvider) buildContents(req *Request) ([]*genai.Content, error) {
	raw, err := documents.Bytes(req.Document)
	if err != nil {
		return nil, err
	}

	pdfPart := &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: req.Document.MediaType,
			Data:     raw,
		},
	}

	contents := make([]*genai.Content, 0, len(req.History)+3)

	if len(req.History) > 0 {
		contents = append(contents,
			&genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{
					pdfPart,
					{Text: "Voici le document de référence pour notre conversation."},
				},
			},
			&genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: "Bien reçu. Je suis prêt à répondre à vos questions sur ce document."}},
			},
		)
		for _, msg := range req.History {
			role := genai.RoleUser
			if msg.Role == models.ChatRoleModel {
				role = genai.RoleModel
			}
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: []*genai.Part{{Text: msg.Text}},
			})
		}
		contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
		return contents, nil
	}

	contents = append(contents, &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			pdfPart,
			{Text: req.Prompt},
		},
	})
	return contents, nil
}

// RegisterGemini registers the Gemini provider with the registry
func RegisterGemini(registry *ProviderRegistry) {
	registry.Register("gemini", func(config map[string]string) (Provider, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("gemini api_key is required")
		}
		return NewGeminiProvider(context.Background(), apiKey, config["model"])
	})
}
