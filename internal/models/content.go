package models

// Feature content payloads returned by the generators. These shapes are the
// contract given to the generative API as response schemas; anything that
// comes back not conforming is treated as a generation failure.

// QuizQuestion is one multiple-choice quiz item
type QuizQuestion struct {
	Question           string   `json:"question" validate:"required"`
	Options            []string `json:"options" validate:"required,min=2"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex" validate:"gte=0"`
	Explanation        string   `json:"explanation" validate:"required"`
}

// Flashcard is a front/back study card
type Flashcard struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

// QAPair is a question with its answer, used by the FAQ feature
type QAPair struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// StudyGuideSection is one titled section of a generated study guide
type StudyGuideSection struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// Quote is a verbatim citation extracted from the document
type Quote struct {
	Text    string `json:"text" validate:"required"`
	Author  string `json:"author,omitempty"`
	Context string `json:"context" validate:"required"`
}

// SummaryLength selects the highlights/summary variant
type SummaryLength string

const (
	SummaryShort        SummaryLength = "short"
	SummaryMedium       SummaryLength = "medium"
	SummaryLong         SummaryLength = "long"
	SummaryAnalyst      SummaryLength = "analyst"
	SummaryTeacher      SummaryLength = "teacher"
	SummaryExam         SummaryLength = "exam"
	SummaryApplications SummaryLength = "applications"
	SummarySimple       SummaryLength = "simple"
	SummaryKeyPoints    SummaryLength = "key_points"
	SummaryDescriptive  SummaryLength = "descriptive"
)

// IsValid reports whether l is a known summary variant
func (l SummaryLength) IsValid() bool {
	switch l {
	case SummaryShort, SummaryMedium, SummaryLong, SummaryAnalyst,
		SummaryTeacher, SummaryExam, SummaryApplications,
		SummarySimple, SummaryKeyPoints, SummaryDescriptive:
		return true
	}
	return false
}

// Language selects the output language for summary-style features
type Language string

const (
	LanguageFrench Language = "fr"
	LanguageCreole Language = "ht"
)

// IsValid reports whether lang is a supported output language
func (lang Language) IsValid() bool {
	return lang == LanguageFrench || lang == LanguageCreole
}
