package artifact

import "time"

// MessageCount is the fixed number of problematic messages a session
// produces; corrections must match them one-to-one.
const MessageCount = 4

// Artifact is the validated structured output of one stage for one session.
// Created once per (session, stage) pair; re-running a stage replaces the
// prior artifact rather than appending.
type Artifact struct {
	SessionID string         `json:"session_id"`
	Stage     Stage          `json:"stage"`
	Fields    map[string]any `json:"fields"`
	Valid     bool           `json:"valid"`
	CreatedAt time.Time      `json:"created_at"`
}

// StringField returns the named field as a string, or "" when absent or not
// a string. Renderers use this; validation has already guaranteed required
// fields for valid artifacts.
func (a *Artifact) StringField(name string) string {
	s, _ := a.Fields[name].(string)
	return s
}

// ListField returns the named field as a string slice, dropping non-string
// entries.
func (a *Artifact) ListField(name string) []string {
	return toStringList(a.Fields[name])
}

// RecordsField returns the named field as a slice of nested records.
func (a *Artifact) RecordsField(name string) []map[string]any {
	raw, ok := a.Fields[name].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

func toStringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
