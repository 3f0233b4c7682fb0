package models

// Chat message roles. The "model" role matches the upstream generative API
// convention rather than OpenAI's "assistant".
const (
	ChatRoleUser  = "user"
	ChatRoleModel = "model"
)

// ChatMessage is one entry in a chat transcript
type ChatMessage struct {
	Role    string `json:"role"`
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

// Transcript is the ordered message history for a document's chat.
// Index 0 is always the synthetic greeting, which is never persisted.
type Transcript []ChatMessage

// HasHistory reports whether the transcript holds anything beyond the
// greeting. Persistence and the restore offer both key off this.
func (t Transcript) HasHistory() bool {
	return len(t) > 1
}

// LastUserText returns the text of the most recent user message, or ""
func (t Transcript) LastUserText() string {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == ChatRoleUser {
			return t[i].Text
		}
	}
	return ""
}
