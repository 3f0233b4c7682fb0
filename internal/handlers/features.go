package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/studygenius/studygenius/internal/middleware"
	"github.com/studygenius/studygenius/internal/models"
	"github.com/studygenius/studygenius/internal/request"
	"github.com/studygenius/studygenius/internal/services/ai"
	"github.com/studygenius/studygenius/internal/session"
	"github.com/studygenius/studygenius/internal/validation"
	"go.uber.org/zap"
)

const (
	// DefaultQuizCount is the number of quiz questions generated for free users
	DefaultQuizCount = 5
	// MaxQuizCount caps quiz size for premium users
	MaxQuizCount = 20
	// DefaultFlashcardCount is the default flashcard deck size
	DefaultFlashcardCount = 10
	// MaxFlashcardCount caps the flashcard deck size
	MaxFlashcardCount = 30
)

// FeatureHandler serves the study content generators. Every endpoint needs
// a loaded document; generation runs synchronously on the request.
type FeatureHandler struct {
	manager   *session.Manager
	generator *ai.Service
	logger    *zap.Logger
}

// NewFeatureHandler creates a new feature handler
func NewFeatureHandler(manager *session.Manager, generator *ai.Service, logger *zap.Logger) *FeatureHandler {
	return &FeatureHandler{manager: manager, generator: generator, logger: logger}
}

// RegisterRoutes registers feature routes on the given router.
// The router should already carry the /features prefix.
func (h *FeatureHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/quiz", h.Quiz).Methods("POST")
	r.HandleFunc("/flashcards", h.Flashcards).Methods("POST")
	r.HandleFunc("/guide", h.StudyGuide).Methods("POST")
	r.Handle("/guide/export", middleware.RequirePremium()(http.HandlerFunc(h.ExportStudyGuide))).Methods("POST")
	r.HandleFunc("/highlights", h.Highlights).Methods("POST")
	r.HandleFunc("/mindmap", h.Mindmap).Methods("POST")
	r.HandleFunc("/quotes", h.KeyQuotes).Methods("POST")
	r.HandleFunc("/faq", h.FAQ).Methods("POST")
	r.HandleFunc("/suggestions", h.Suggestions).Methods("POST")
}

// document loads the session's document, writing the error response itself
// when there is none
func (h *FeatureHandler) document(w http.ResponseWriter, r *http.Request) *models.Document {
	sess, err := h.manager.Get(r.Context(), request.SessionIDFromContext(r))
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load session")
		return nil
	}
	snap := sess.Snapshot()
	if !snap.HasDocument() {
		respondJSONError(w, http.StatusConflict, "Conflict", "A document must be loaded first")
		return nil
	}
	return snap.Document
}

// respondGenerationError maps a generator failure to a response. Upstream
// throttling surfaces as 429 so clients back off instead of retrying hot.
func (h *FeatureHandler) respondGenerationError(w http.ResponseWriter, r *http.Request, feature string, err error) {
	h.logger.Warn("generation failed",
		zap.String("feature", feature),
		zap.String("session_id", request.SessionIDFromContext(r)),
		zap.Error(err),
	)
	if ai.IsQuotaError(err) || ai.IsRateLimitError(err) {
		w.Header().Set("Retry-After", "60")
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "The generation service is throttled, try again shortly")
		return
	}
	respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Generation failed")
}

func respondPremiumRequired(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_, _ = w.Write([]byte(`{"error":"premium required","code":"PREMIUM_REQUIRED"}`))
}

// QuizRequest selects the quiz size
type QuizRequest struct {
	Count int `json:"count" validate:"omitempty,gte=1"`
}

// Quiz generates a multiple-choice quiz from the document. Decks beyond the
// free size need a premium entitlement.
func (h *FeatureHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	var req QuizRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
			return
		}
	}
	if req.Count <= 0 {
		req.Count = DefaultQuizCount
	}
	if req.Count > MaxQuizCount {
		req.Count = MaxQuizCount
	}
	if req.Count > DefaultQuizCount && !request.IsPremium(r) {
		respondPremiumRequired(w)
		return
	}

	doc := h.document(w, r)
	if doc == nil {
		return
	}

	questions, err := h.generator.Quiz(r.Context(), doc, req.Count)
	if err != nil {
		h.respondGenerationError(w, r, "quiz", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// FlashcardsRequest selects the flashcard deck size
type FlashcardsRequest struct {
	Count int `json:"count" validate:"omitempty,gte=1"`
}

// Flashcards generates a front/back study deck from the document
func (h *FeatureHandler) Flashcards(w http.ResponseWriter, r *http.Request) {
	var req FlashcardsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
			return
		}
	}
	if req.Count <= 0 {
		req.Count = DefaultFlashcardCount
	}
	if req.Count > MaxFlashcardCount {
		req.Count = MaxFlashcardCount
	}

	doc := h.document(w, r)
	if doc == nil {
		return
	}

	cards, err := h.generator.Flashcards(r.Context(), doc, req.Count)
	if err != nil {
		h.respondGenerationError(w, r, "flashcards", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

// StudyGuide generates a sectioned study guide from the document
func (h *FeatureHandler) StudyGuide(w http.ResponseWriter, r *http.Request) {
	doc := h.document(w, r)
	if doc == nil {
		return
	}

	sections, err := h.generator.StudyGuide(r.Context(), doc)
	if err != nil {
		h.respondGenerationError(w, r, "guide", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

// ExportStudyGuide renders the study guide as a downloadable Markdown file.
// Export is a premium feature.
func (h *FeatureHandler) ExportStudyGuide(w http.ResponseWriter, r *http.Request) {
	doc := h.document(w, r)
	if doc == nil {
		return
	}

	sections, err := h.generator.StudyGuide(r.Context(), doc)
	if err != nil {
		h.respondGenerationError(w, r, "guide_export", err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Guide d'étude : %s\n\n", doc.Name)
	for _, section := range sections {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", section.Title, section.Content)
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="guide-etude.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

// HighlightsRequest selects the summary variant and output language
type HighlightsRequest struct {
	Length string `json:"length" validate:"required,summary_length"`
	Lang   string `json:"lang" validate:"omitempty,language"`
}

// Highlights generates a summary of the document in the requested variant.
// The long variant is a premium feature.
func (h *FeatureHandler) Highlights(w http.ResponseWriter, r *http.Request) {
	var req HighlightsRequest
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
	if req.Lang == "" {
		req.Lang = string(models.LanguageFrench)
	}

	if models.SummaryLength(req.Length) == models.SummaryLong && !request.IsPremium(r) {
		respondPremiumRequired(w)
		return
	}

	doc := h.document(w, r)
	if doc == nil {
		return
	}

	summary, err := h.generator.Highlights(r.Context(), doc, models.SummaryLength(req.Length), models.Language(req.Lang))
	if err != nil {
		h.respondGenerationError(w, r, "highlights", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

// Mindmap generates a Mermaid mindmap of the document's structure
func (h *FeatureHandler) Mindmap(w http.ResponseWriter, r *http.Request) {
	doc := h.document(w, r)
	if doc == nil {
		return
	}

	mermaid, err := h.generator.Mindmap(r.Context(), doc)
	if err != nil {
		h.respondGenerationError(w, r, "mindmap", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"mermaid": mermaid})
}

// KeyQuotes extracts verbatim citations from the document
func (h *FeatureHandler) KeyQuotes(w http.ResponseWriter, r *http.Request) {
	doc := h.document(w, r)
	if doc == nil {
		return
	}

	quotes, err := h.generator.KeyQuotes(r.Context(), doc)
	if err != nil {
		h.respondGenerationError(w, r, "quotes", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

// FAQ generates likely questions and answers about the document
func (h *FeatureHandler) FAQ(w http.ResponseWriter, r *http.Request) {
	doc := h.document(w, r)
	if doc == nil {
		return
	}

	pairs, err := h.generator.FAQ(r.Context(), doc)
	if err != nil {
		h.respondGenerationError(w, r, "faq", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"faq": pairs})
}

// Suggestions returns starter questions for the chat. Generation failures
// degrade to an empty list rather than an error.
func (h *FeatureHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	doc := h.document(w, r)
	if doc == nil {
		return
	}

	questions := h.generator.SuggestedQuestions(r.Context(), doc)
	respondJSON(w, http.StatusOK, map[string]any{"questions": questions})
}
