// Package extract recovers structured JSON from free-form LLM output.
//
// Models are prompted to answer with bare JSON but routinely wrap it in
// markdown fences or surround it with prose. Extraction is generic: it
// strips fences, then falls back to bracket slicing. It never invents
// domain defaults; a caller that cannot live with ErrNoJSON supplies its
// own fallback value.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when the input contains no parseable JSON value.
var ErrNoJSON = errors.New("no JSON value found in response")

// Object parses a JSON object out of raw model output.
func Object(raw string) (map[string]interface{}, error) {
	cleaned := Clean(raw)
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return out, nil
}

// Into parses a JSON value out of raw model output into dst.
func Into(raw string, dst interface{}) error {
	cleaned := Clean(raw)
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return nil
}

// StringList parses a JSON array of strings out of raw model output.
// Non-string elements are stringified rather than rejected; models
// occasionally emit numbers or nested objects inside query lists.
func StringList(raw string) ([]string, error) {
	cleaned := Clean(raw)
	var generic []interface{}
	if err := json.Unmarshal([]byte(cleaned), &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	out := make([]string, 0, len(generic))
	for _, v := range generic {
		switch s := v.(type) {
		case string:
			out = append(out, s)
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out, nil
}

// Clean strips markdown code fences and surrounding prose from a model
// response, returning the innermost JSON-looking slice. If the input has
// no JSON markers at all the trimmed input is returned unchanged, so the
// caller's parse error carries the original text.
func Clean(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
			lines = lines[1:]
		}
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			lines = lines[:len(lines)-1]
		}
		cleaned = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	startBrace := strings.IndexByte(cleaned, '{')
	startBracket := strings.IndexByte(cleaned, '[')

	var start int
	var closing byte
	switch {
	case startBrace == -1 && startBracket == -1:
		return cleaned
	case startBrace == -1:
		start, closing = startBracket, ']'
	case startBracket == -1:
		start, closing = startBrace, '}'
	case startBrace < startBracket:
		start, closing = startBrace, '}'
	default:
		start, closing = startBracket, ']'
	}

	end := strings.LastIndexByte(cleaned, closing)
	if end > start {
		cleaned = cleaned[start : end+1]
	}
	return strings.TrimSpace(cleaned)
}
