package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrParse is returned when generated text holds no usable JSON object.
var ErrParse = errors.New("no valid JSON object in upstream output")

// ExtractJSON returns the first balanced {...} object found in text. Models
// often wrap the object in prose or code fences; braces inside string
// literals are ignored.
func ExtractJSON(text string) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if start < 0 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := []byte(text[start : i+1])
				if json.Valid(candidate) {
					return candidate, nil
				}
				// Not JSON (e.g. a brace in prose); look for the next object.
				return ExtractJSON(text[start+1:])
			}
		}
	}

	return nil, ErrParse
}

// DecodeJSON extracts the first JSON object from text and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}
