// Package normalize converts heterogeneous raw tool output into a small
// set of envelope shapes so callers downstream see uniform payloads.
package normalize

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Format names a normalization mode.
type Format string

const (
	// FormatJSON passes structured maps through and decodes structured
	// text; structured envelopes carry no format key by convention.
	FormatJSON Format = "json"
	// FormatStructured is an alias accepted for FormatJSON.
	FormatStructured Format = "structured"
	FormatText       Format = "text"
	FormatBinary     Format = "binary"
	FormatRaw        Format = "raw"
	// FormatAuto tries structured pass-through, structured-text decode,
	// then binary detection, and falls back to raw.
	FormatAuto Format = "auto"
)

// contentKeys is the priority order ExtractContent searches.
var contentKeys = []string{"content", "value", "data", "result", "raw"}

// Normalize converts input into the envelope shape for format.
func Normalize(input any, format Format) (any, error) {
	switch format {
	case FormatJSON, FormatStructured, "":
		return normalizeStructured(input)
	case FormatText:
		return map[string]any{"content": stringify(input), "format": "text"}, nil
	case FormatBinary:
		return normalizeBinary(input), nil
	case FormatRaw:
		return map[string]any{"raw": input, "format": "raw"}, nil
	case FormatAuto:
		return normalizeAuto(input), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func normalizeStructured(input any) (any, error) {
	switch v := input.(type) {
	case map[string]any:
		return v, nil
	case []byte:
		return decodeStructuredText(string(v))
	case string:
		return decodeStructuredText(v)
	default:
		return nil, fmt.Errorf("cannot normalize %T as structured data", input)
	}
}

func decodeStructuredText(text string) (any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, fmt.Errorf("malformed structured text: %w", err)
	}
	return decoded, nil
}

func normalizeBinary(input any) map[string]any {
	encoded := ""
	switch v := input.(type) {
	case []byte:
		encoded = base64.StdEncoding.EncodeToString(v)
	case string:
		// Already-encoded text passes through untouched.
		if _, err := base64.StdEncoding.DecodeString(v); err == nil && v != "" {
			encoded = v
		} else {
			encoded = base64.StdEncoding.EncodeToString([]byte(v))
		}
	default:
		encoded = base64.StdEncoding.EncodeToString([]byte(stringify(v)))
	}
	return map[string]any{"data": encoded, "encoding": "base64", "format": "binary"}
}

func normalizeAuto(input any) any {
	if m, ok := input.(map[string]any); ok {
		return m
	}
	if s, ok := input.(string); ok {
		if decoded, err := decodeStructuredText(s); err == nil {
			return decoded
		}
	}
	if b, ok := input.([]byte); ok {
		return normalizeBinary(b)
	}
	return map[string]any{"raw": input, "format": "raw"}
}

// Validate reports whether envelope is a well-formed normalized payload:
// a non-empty map whose format key, when present, names a known mode.
func Validate(envelope any) bool {
	m, ok := envelope.(map[string]any)
	if !ok || len(m) == 0 {
		return false
	}
	if format, present := m["format"]; present {
		switch format {
		case "text", "binary", "raw":
			return true
		default:
			return false
		}
	}
	return true
}

// ExtractContent returns the first present of the fixed priority keys
// {content, value, data, result, raw}; when none is present the envelope
// itself is returned.
func ExtractContent(envelope any) any {
	m, ok := envelope.(map[string]any)
	if !ok {
		return envelope
	}
	for _, key := range contentKeys {
		if v, present := m[key]; present {
			return v
		}
	}
	return envelope
}

func stringify(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		if b, err := json.Marshal(v); err == nil && !strings.HasPrefix(string(b), "\"") {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}
