package tracking

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Field names that are always redacted, regardless of per-tracker
// configuration. Matching is case-insensitive.
var baseSensitiveFields = map[string]struct{}{
	"api":       {},
	"key":       {},
	"password":  {},
	"signature": {},
	"secret":    {},
}

// CleanData redacts sensitive fields from a raw payload and returns
// the result serialized back to a string. Payloads that are not JSON
// objects or arrays are stored as-is (invalid UTF-8 replaced).
func (t *Tracker) CleanData(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	decoded, ok := decodeContainer(string(raw))
	if !ok {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}

	cleaned := t.cleanValue(decoded)
	out, err := json.Marshal(cleaned)
	if err != nil {
		return ""
	}
	return string(out)
}

// CleanParams redacts a flat set of query parameters. Multi-valued
// parameters keep their first value, matching what gets persisted for
// form-style payloads.
func (t *Tracker) CleanParams(params map[string][]string) string {
	if len(params) == 0 {
		return "{}"
	}

	flat := make(map[string]any, len(params))
	for key, values := range params {
		if len(values) > 0 {
			flat[key] = values[0]
		} else {
			flat[key] = ""
		}
	}

	out, err := json.Marshal(t.cleanValue(flat))
	if err != nil {
		return "{}"
	}
	return string(out)
}

func (t *Tracker) cleanValue(value any) any {
	switch v := value.(type) {
	case []any:
		for i, item := range v {
			v[i] = t.cleanValue(item)
		}
		return v

	case map[string]any:
		for key, item := range v {
			// String values may themselves carry encoded structures
			if s, isString := item.(string); isString {
				if nested, ok := decodeContainer(s); ok {
					item = nested
				}
			}

			switch item.(type) {
			case map[string]any, []any:
				v[key] = t.cleanValue(item)
			default:
				v[key] = item
			}

			if t.isSensitive(key) {
				v[key] = t.substitute
			}
		}
		return v
	}

	return value
}

func (t *Tracker) isSensitive(field string) bool {
	lower := strings.ToLower(field)
	if _, ok := baseSensitiveFields[lower]; ok {
		return true
	}
	_, ok := t.sensitiveFields[lower]
	return ok
}

// decodeContainer decodes a string into a JSON object or array. Scalar
// JSON values are left alone so numbers and quoted strings round-trip
// unchanged.
func decodeContainer(s string) (any, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 0 {
		return nil, false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, false
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, false
	}

	switch decoded.(type) {
	case map[string]any, []any:
		return decoded, true
	}
	return nil, false
}
