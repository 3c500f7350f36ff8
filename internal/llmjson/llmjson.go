// Package llmjson extracts JSON objects from LLM output. Models wrap JSON
// in markdown fences, prefix it with prose, or append explanations despite
// instructions not to; every caller that parses model output goes through
// this one utility instead of doing its own string surgery.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON reports raw text that contains no parseable JSON object.
// Callers decide their own fallback; the utility never guesses.
var ErrNoJSON = errors.New("no JSON object found")

// Unmarshal finds the first JSON object in raw and unmarshals it into v.
func Unmarshal(raw string, v any) error {
	obj, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return nil
}

// Extract returns the first complete JSON object embedded in raw. Markdown
// code fences are stripped first, then braces are matched with string
// awareness so a "{" inside a JSON string does not confuse the scan.
func Extract(raw string) (string, error) {
	s := stripFences(strings.TrimSpace(raw))
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
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
				candidate := s[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return "", ErrNoJSON
				}
				return candidate, nil
			}
		}
	}
	return "", ErrNoJSON
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
