package llm

import (
	"encoding/json"
	"strings"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
)

// ExtractJSON implements the pipeline's JSON extraction rule (spec.md
// §4.3): strip any surrounding markdown code fence, take the first
// balanced {...} substring, and parse it. A model that wraps its answer in
// prose or fences still yields a clean object; anything else is a
// STAGE_PARSE_ERROR the caller retries once with a stricter reminder.
func ExtractJSON(raw string, out any) error {
	candidate := firstBalancedObject(stripCodeFences(raw))
	if candidate == "" {
		return caseerrors.Parse("no JSON object found in model output", nil)
	}
	if err := json.Unmarshal([]byte(candidate), out); err != nil {
		return caseerrors.Parse("model output was not valid JSON", err)
	}
	return nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if last := len(lines) - 1; last >= 0 && strings.TrimSpace(lines[last]) == "```" {
		lines = lines[:last]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// firstBalancedObject scans s for the first top-level {...} span, honoring
// nested braces and string-quoted braces so a nested object or a brace
// inside a string value doesn't cut the span short.
func firstBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
