package jsonutil

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoObject is returned when no balanced JSON object can be located.
var ErrNoObject = errors.New("jsonutil: no JSON object found")

// ExtractObject returns the first balanced JSON object embedded in text.
// The model is not trusted to return only JSON, so the scan tolerates prose
// and code fences around the payload. String literals and escapes are honored
// while matching braces.
func ExtractObject(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, ErrNoObject
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				candidate := text[start : i+1]
				if !json.Valid([]byte(candidate)) {
					// Malformed despite balanced braces; try again past it.
					rest, err := ExtractObject(text[i+1:])
					if err != nil {
						return nil, ErrNoObject
					}
					return rest, nil
				}
				return json.RawMessage(candidate), nil
			}
		}
	}
	return nil, ErrNoObject
}

// ExtractInto locates the first JSON object in text and decodes it into v.
func ExtractInto(text string, v any) error {
	raw, err := ExtractObject(text)
	if err != nil {
		return err
	}
	return Unmarshal(raw, v)
}

// Unmarshal decodes JSON with one recovery pass: payloads that arrive as a
// JSON-encoded string (double-encoded model output) are unwrapped and retried.
func Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return json.Unmarshal(data, v)
	}
	return json.Unmarshal([]byte(s), v)
}
