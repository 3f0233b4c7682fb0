package models

import "testing"

func TestModeIsValid(t *testing.T) {
	t.Parallel()

	for _, mode := range AllModes {
		if !mode.IsValid() {
			t.Errorf("Expected mode %q to be valid", mode)
		}
	}

	invalid := []Mode{"", "UPLOAD", "settings", "dashboard "}
	for _, mode := range invalid {
		if mode.IsValid() {
			t.Errorf("Expected mode %q to be invalid", mode)
		}
	}
}

func TestTranscriptHasHistory(t *testing.T) {
	t.Parallel()

	greeting := ChatMessage{Role: ChatRoleModel, Text: "Bonjour !"}

	tests := []struct {
		name       string
		transcript Transcript
		want       bool
	}{
		{name: "empty", transcript: nil, want: false},
		{name: "greeting only", transcript: Transcript{greeting}, want: false},
		{
			name: "greeting plus user message",
			transcript: Transcript{
				greeting,
				{Role: ChatRoleUser, Text: "Quel est le sujet ?"},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.transcript.HasHistory(); got != tt.want {
				t.Errorf("HasHistory() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTranscriptLastUserText(t *testing.T) {
	t.Parallel()

	transcript := Transcript{
		{Role: ChatRoleModel, Text: "Bonjour !"},
		{Role: ChatRoleUser, Text: "première question"},
		{Role: ChatRoleModel, Text: "réponse"},
		{Role: ChatRoleUser, Text: "deuxième question"},
		{Role: ChatRoleModel, Text: "Une erreur technique est survenue.", IsError: true},
	}

	if got := transcript.LastUserText(); got != "deuxième question" {
		t.Errorf("LastUserText() = %q, want %q", got, "deuxième question")
	}

	var empty Transcript
	if got := empty.LastUserText(); got != "" {
		t.Errorf("LastUserText() on empty transcript = %q, want empty", got)
	}
}

func TestSummaryLengthIsValid(t *testing.T) {
	t.Parallel()

	valid := []SummaryLength{
		SummaryShort, SummaryMedium, SummaryLong, SummaryAnalyst,
		SummaryTeacher, SummaryExam, SummaryApplications,
		SummarySimple, SummaryKeyPoints, SummaryDescriptive,
	}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("Expected summary length %q to be valid", l)
		}
	}

	if SummaryLength("LONG").IsValid() {
		t.Error("Expected uppercase variant to be invalid")
	}
	if SummaryLength("").IsValid() {
		t.Error("Expected empty variant to be invalid")
	}
}
