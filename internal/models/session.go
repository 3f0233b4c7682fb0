package models

import "time"

// SessionSnapshot is the persisted (document, mode, description) triple that
// survives reloads. One record per session ID, written as a whole.
type SessionSnapshot struct {
	Document    *Document `json:"document,omitempty"`
	Mode        Mode      `json:"mode"`
	Description string    `json:"description"`
	SavedAt     time.Time `json:"savedAt"`
}

// HasDocument reports whether a document is loaded in the snapshot
func (s *SessionSnapshot) HasDocument() bool {
	return s != nil && s.Document != nil
}
