package models

// Mode selects the active feature view for a session
type Mode string

const (
	ModeUpload      Mode = "upload"
	ModeDashboard   Mode = "dashboard"
	ModeChat        Mode = "chat"
	ModeQuiz        Mode = "quiz"
	ModeFlashcards  Mode = "flashcards"
	ModeGuide       Mode = "guide"
	ModeHighlights  Mode = "highlights"
	ModeStrategic   Mode = "strategic"
	ModeMindmap     Mode = "mindmap"
	ModeQuotes      Mode = "quotes"
	ModeFAQ         Mode = "faq"
	ModeMethodology Mode = "methodology"
)

// AllModes lists every valid mode value
var AllModes = []Mode{
	ModeUpload,
	ModeDashboard,
	ModeChat,
	ModeQuiz,
	ModeFlashcards,
	ModeGuide,
	ModeHighlights,
	ModeStrategic,
	ModeMindmap,
	ModeQuotes,
	ModeFAQ,
	ModeMethodology,
}

// IsValid reports whether m is a member of the closed mode set
func (m Mode) IsValid() bool {
	for _, known := range AllModes {
		if m == known {
			return true
		}
	}
	return false
}
