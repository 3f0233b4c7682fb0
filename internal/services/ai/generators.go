package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/studygenius/studygenius/internal/models"
	"github.com/studygenius/studygenius/internal/validation"
	"go.uber.org/zap"
)

const (
	// DefaultQuizQuestionCount is the question count when the caller does not
	// choose one
	DefaultQuizQuestionCount = 5
	// DefaultFlashcardCount is the card count for a flashcard deck
	DefaultFlashcardCount = 10

	// DescriptionFallback is returned when the model answers with nothing
	DescriptionFallback = "Description indisponible."
	// DescriptionErrorFallback is returned when description generation fails
	DescriptionErrorFallback = "Impossible de générer la description."
	// HighlightsFallback is returned when the model answers with nothing
	HighlightsFallback = "Impossible d'extraire les points clés."
	// ChatFallback is returned when the model answers with nothing
	ChatFallback = "Désolé, je n'ai pas pu générer de réponse."
)

// ErrNoDocument is returned when a generator is invoked without a document
var ErrNoDocument = errors.New("no document loaded")

// Service exposes the per-feature generators. Every method is a fresh,
// independent call to the provider; nothing is cached here.
type Service struct {
	provider Provider
	logger   *zap.Logger
}

// NewService creates a generator service backed by the given provider
func NewService(provider Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: provider, logger: logger}
}

func (s *Service) generate(ctx context.Context, req *Request) (string, error) {
	if req.Document == nil {
		return "", ErrNoDocument
	}
	return s.provider.Generate(ctx, req)
}

func docName(doc *models.Document) string {
	if doc == nil {
		return ""
	}
	return doc.Name
}

// Describe produces a one-to-two sentence description of the document,
// surfacing generation errors to the caller. Workers use this to drive
// their retry logic.
func (s *Service) Describe(ctx context.Context, doc *models.Document) (string, error) {
	raw, err := s.generate(ctx, &Request{
		Prompt:   "Génère une description très concise (1 à 2 phrases maximum) du sujet principal et du type de ce document.",
		Document: doc,
	})
	if err != nil {
		return "", err
	}
	if raw == "" {
		return DescriptionFallback, nil
	}
	return raw, nil
}

// Description is the fallible-free form of Describe: generation errors
// degrade to a fallback string instead of failing the caller
func (s *Service) Description(ctx context.Context, doc *models.Document) string {
	raw, err := s.Describe(ctx, doc)
	if err != nil {
		s.logger.Warn("description generation failed",
			zap.String("document", docName(doc)),
			zap.Error(err),
		)
		return DescriptionErrorFallback
	}
	return raw
}

// SuggestedQuestions proposes three short conversation starters about the
// document. Failures degrade to an empty list.
func (s *Service) SuggestedQuestions(ctx context.Context, doc *models.Document) []string {
	raw, err := s.generate(ctx, &Request{
		Prompt:   "Suggère 3 questions courtes, intrigantes et pertinentes (max 12 mots) que l'utilisateur pourrait poser pour démarrer une conversation sur ce document.",
		Document: doc,
		WantJSON: true,
	})
	if err != nil {
		s.logger.Warn("suggested questions generation failed",
			zap.String("document", docName(doc)),
			zap.Error(err),
		)
		return nil
	}
	questions, err := DecodeStringList(raw)
	if err != nil {
		s.logger.Warn("suggested questions response did not parse",
			zap.String("document", docName(doc)),
			zap.Error(err),
		)
		return nil
	}
	return questions
}

// Quiz generates a multiple-choice quiz of count questions
func (s *Service) Quiz(ctx context.Context, doc *models.Document, count int) ([]models.QuizQuestion, error) {
	if count <= 0 {
		count = DefaultQuizQuestionCount
	}
	raw, err := s.generate(ctx, &Request{
		System: "Tu réponds uniquement avec un tableau JSON d'objets {question, options, correctAnswerIndex, explanation}. " +
			"correctAnswerIndex est l'index (base zéro) de la bonne option.",
		Prompt:   fmt.Sprintf("Crée un quiz de %d questions à choix multiples basé sur ce document.", count),
		Document: doc,
		WantJSON: true,
	})
	if err != nil {
		return nil, err
	}
	return DecodeList[models.QuizQuestion](raw, validation.ValidateQuizQuestion)
}

// Flashcards generates a deck of front/back study cards
func (s *Service) Flashcards(ctx context.Context, doc *models.Document, count int) ([]models.Flashcard, error) {
	if count <= 0 {
		count = DefaultFlashcardCount
	}
	raw, err := s.generate(ctx, &Request{
		System: "Tu réponds uniquement avec un tableau JSON d'objets {front, back}.",
		Prompt: fmt.Sprintf("Crée %d flashcards (cartes mémoire) pour étudier ce document. "+
			"Chaque carte doit avoir une question/concept au recto (front) et la réponse/définition au verso (back).", count),
		Document: doc,
		WantJSON: true,
	})
	if err != nil {
		return nil, err
	}
	return DecodeList[models.Flashcard](raw, func(c *models.Flashcard) error {
		return validation.Validate.Struct(c)
	})
}

// StudyGuide generates a structured revision guide split into titled sections
func (s *Service) StudyGuide(ctx context.Context, doc *models.Document) ([]models.StudyGuideSection, error) {
	raw, err := s.generate(ctx, &Request{
		System: "Tu es un expert pédagogique. Crée des guides de révision structurés en JSON. " +
			"Tu réponds uniquement avec un tableau JSON d'objets {title, content}.",
		Prompt: "Génère un guide d'étude structuré pour ce document. " +
			"Divise-le en sections logiques (ex: Résumé Exécutif, Concepts Clés, Analyse, Conclusion). " +
			"Pour chaque section, fournis un titre clair et le contenu en Markdown.",
		Document: doc,
		WantJSON: true,
	})
	if err != nil {
		return nil, err
	}
	return DecodeList[models.StudyGuideSection](raw, func(sec *models.StudyGuideSection) error {
		return validation.Validate.Struct(sec)
	})
}

// FAQ generates essential question/answer pairs for the document
func (s *Service) FAQ(ctx context.Context, doc *models.Document) ([]models.QAPair, error) {
	raw, err := s.generate(ctx, &Request{
		System: "Tu réponds uniquement avec un tableau JSON d'objets {question, answer}.",
		Prompt: "Génère une liste de 8 Questions et Réponses (FAQ) essentielles pour comprendre ce document. " +
			"Les réponses doivent être complètes mais concises.",
		Document: doc,
		WantJSON: true,
	})
	if err != nil {
		return nil, err
	}
	return DecodeList[models.QAPair](raw, func(qa *models.QAPair) error {
		return validation.Validate.Struct(qa)
	})
}

// KeyQuotes extracts verbatim citations from the document
func (s *Service) KeyQuotes(ctx context.Context, doc *models.Document) ([]models.Quote, error) {
	raw, err := s.generate(ctx, &Request{
		System: "Tu réponds uniquement avec un tableau JSON d'objets {text, author, context}. author est optionnel.",
		Prompt: "Extrais 5 à 8 citations textuelles marquantes (verbatim) de ce document. " +
			"Pour chaque citation, fournis le contexte (de quoi ça parle) et si possible l'auteur ou la section.",
		Document: doc,
		WantJSON: true,
	})
	if err != nil {
		return nil, err
	}
	return DecodeList[models.Quote](raw, func(q *models.Quote) error {
		return validation.Validate.Struct(q)
	})
}

// Highlights generates a summary in the requested variant and language.
// The variant selects both the prompt and the persona of the system
// instruction.
func (s *Service) Highlights(ctx context.Context, doc *models.Document, length models.SummaryLength, lang models.Language) (string, error) {
	if !length.IsValid() {
		length = models.SummaryMedium
	}
	if !lang.IsValid() {
		lang = models.LanguageFrench
	}

	prompt, system := highlightsPrompt(length, lang)

	raw, err := s.generate(ctx, &Request{
		System:   system,
		Prompt:   prompt + " Formatte le résultat en Markdown propre.",
		Document: doc,
	})
	if err != nil {
		return "", err
	}
	if raw == "" {
		return HighlightsFallback, nil
	}
	return raw, nil
}

func highlightsPrompt(length models.SummaryLength, lang models.Language) (prompt, system string) {
	creole := lang == models.LanguageCreole

	langInstruction := " Réponds en Français."
	if creole {
		langInstruction = " REPONN TOUT AN KREYÒL AYISYEN SÈLMAN. Sèvi ak yon langaj klè ak natirèl."
	}

	switch length {
	case models.SummaryAnalyst:
		if creole {
			prompt = "Aji tankou yon analis estratejik. \n" +
				"1. **Tèz Prensipal:** Ki sa otè a vle di prensipalman? (Max 2 fraz).\n" +
				"2. **Objektif:** Poukisa dokiman sa a ekri e pou ki moun?\n" +
				"3. **Konklizyon Kle:** Bay 3 pwen enpòtan nou dwe kenbe."
		} else {
			prompt = "À partir du document ci-joint, agis comme un analyste et génère une section \"HIGHLIGHTS\" structurée :\n" +
				"1. **Thèse Principale :** Quel est le message central ? (Max. 2 phrases).\n" +
				"2. **Objectif du Document :** Quel est le but et le public cible ?\n" +
				"3. **Conclusions Clés :** 3 points d'action ou résultats majeurs."
		}
		system = "Tu es un analyste expert, précis et structuré." + langInstruction

	case models.SummarySimple:
		if creole {
			prompt = "Fè yon rezime trè senp nan yon sèl paragraf pou yon timoun 12 an ka konprann."
		} else {
			prompt = "Fais un résumé très simple, en langage clair (vulgarisation), compréhensible par un collégien. Un seul paragraphe fluide."
		}
		system = "Tu es un vulgarisateur qui simplifie les concepts complexes." + langInstruction

	case models.SummaryKeyPoints:
		if creole {
			prompt = "Bay lis 7 pwen ki pi enpòtan nan tèks la. Itilize 'Bullet points'."
		} else {
			prompt = "Liste les 7 à 10 points clés essentiels du document sous forme de liste à puces (Bullet points)."
		}
		system = "Tu es synthétique et vas droit au but." + langInstruction

	case models.SummaryDescriptive:
		if creole {
			prompt = "Fè yon rezime deskriptif sou dokiman sa a. Dekri de kisa l ap pale an jeneral, ki jan li òganize, ak ki ton otè a itilize. Pa fè lis, fè paragraf ki byen ekri."
		} else {
			prompt = "Génère un résumé descriptif du document. Décris le sujet général, la structure (comment il est organisé) et l'approche de l'auteur. Utilise des paragraphes fluides, évite les listes à puces."
		}
		system = "Tu es un bibliothécaire expert qui décrit le contenu des ouvrages." + langInstruction

	case models.SummaryTeacher:
		if creole {
			prompt = "Aji tankou yon pwofesè. Bay 5 konsèp kle ak definisyon yo nan yon tablo."
		} else {
			prompt = "Extrais 5 à 7 concepts fondamentaux avec leur définition courte basée sur le texte. Format Table Markdown."
		}
		system = "Tu es un professeur pédagogique." + langInstruction

	default:
		// short, medium, long, exam and applications share the generic form
		if creole {
			prompt = "Fè yon rezime konplè sou dokiman sa a. Divize l an Tit ak Paragraf."
		} else {
			prompt = "Analyses ce document et fournis une synthèse structurée."
		}
		system = "Tu es un assistant expert." + langInstruction
	}

	return prompt, system
}

// Mindmap generates a Mermaid 'graph TD' source for the document
func (s *Service) Mindmap(ctx context.Context, doc *models.Document) (string, error) {
	raw, err := s.generate(ctx, &Request{
		System: "Tu es un expert en synthèse visuelle. Tu crées des Mindmaps Mermaid claires, lisibles et concises.",
		Prompt: "Génère un diagramme Mermaid 'graph TD' pour ce document. \n\n" +
			"CRITÈRES DE LISIBILITÉ :\n" +
			"1. Utilise des labels TRÈS COURTS (max 3-5 mots par nœud).\n" +
			"2. Évite les phrases complètes, utilise des mots-clés.\n" +
			"3. Structure hiérarchique claire.\n\n" +
			"RÈGLES TECHNIQUES :\n" +
			"1. Commence par 'graph TD'.\n" +
			"2. PAS de 'classDef' avant le graphe.\n" +
			"3. PAS de styles CSS complexes, je gère le style côté client.",
		Document: doc,
	})
	if err != nil {
		return "", err
	}
	cleaned := StripMermaidFences(raw)
	if cleaned == "" {
		return "", fmt.Errorf("empty mindmap response")
	}
	return cleaned, nil
}

// Chat answers a user message grounded in the document, with prior turns
// replayed for context
func (s *Service) Chat(ctx context.Context, doc *models.Document, history []models.ChatMessage, message string) (string, error) {
	raw, err := s.generate(ctx, &Request{
		System:   "Réponds de manière concise et précise en français en te basant sur le document fourni.",
		Prompt:   message,
		Document: doc,
		History:  history,
	})
	if err != nil {
		return "", err
	}
	if raw == "" {
		return ChatFallback, nil
	}
	return raw, nil
}
