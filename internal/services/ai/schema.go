package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Model responses frequently arrive wrapped in markdown code fences even when
// bare JSON was requested. Parsing is a strict two-stage pipeline: strip the
// known wrapping conventions, then decode against the fixed per-feature
// schema. Anything that still fails to conform is a generation failure, never
// a silently empty result.

var mermaidFenceRe = regexp.MustCompile("```(?:mermaid)?\\s*([\\s\\S]*?)\\s*```")

// StripCodeFences removes a leading ```json / ``` fence and the matching
// closing fence from a model response
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// StripMermaidFences extracts the graph source from a ```mermaid block,
// falling back to trimming unclosed fences from the raw text
func StripMermaidFences(s string) string {
	if s == "" {
		return ""
	}
	if m := mermaidFenceRe.FindStringSubmatch(s); len(m) > 1 && m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	s = strings.TrimSpace(s)
	s = regexp.MustCompile("^```(?:mermaid)?\\s*").ReplaceAllString(s, "")
	s = regexp.MustCompile("\\s*```$").ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// extractJSONSlice recovers the first top-level JSON array from surrounding
// prose, for models that ignore the bare-JSON instruction
func extractJSONSlice(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

// DecodeList decodes a model response into a list of schema records.
// The per-item validate func rejects records that decode but do not conform
// (e.g. an out-of-range answer index).
func DecodeList[T any](raw string, validate func(*T) error) ([]T, error) {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var items []T
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		// Second chance: dig the array out of surrounding prose
		if err2 := json.Unmarshal([]byte(extractJSONSlice(cleaned)), &items); err2 != nil {
			return nil, fmt.Errorf("response does not match schema: %w", err)
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("response contains no items")
	}

	if validate != nil {
		for i := range items {
			if err := validate(&items[i]); err != nil {
				return nil, fmt.Errorf("item %d does not conform: %w", i, err)
			}
		}
	}

	return items, nil
}

// DecodeStringList decodes a model response into a plain list of strings,
// dropping blank entries
func DecodeStringList(raw string) ([]string, error) {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var items []string
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		if err2 := json.Unmarshal([]byte(extractJSONSlice(cleaned)), &items); err2 != nil {
			return nil, fmt.Errorf("response does not match schema: %w", err)
		}
	}

	out := items[:0]
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
