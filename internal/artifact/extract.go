package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first JSON object out of raw LLM output and parses
// it. Models wrap their JSON in prose and markdown fences; the extractor
// tolerates both and only fails when no parsable object exists at all.
func ExtractJSON(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty output")
	}

	candidate := extractObject(raw)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON object found in output")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse JSON object: %w", err)
	}
	return fields, nil
}

// extractObject returns the first balanced top-level {...} span,
// brace-matching with string and escape awareness.
func extractObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return ""
}
