package draft

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips markup from free-text values before they are stored.
// A nil Sanitizer returns values unchanged.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a Sanitizer backed by bluemonday's strict policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses bounds how often escaped markup is decoded and cleaned
// again.
const maxSanitizePasses = 4

// String sanitizes a single value. Entities are unescaped so plain text such
// as "R&D" survives untouched, and the result is cleaned again until it is
// stable, so encoded markup like "&lt;script&gt;" cannot come back as a tag.
// Input that does not settle is returned in its escaped form.
func (s *Sanitizer) String(value string) string {
	if s == nil || s.policy == nil || !strings.ContainsAny(value, "<>&") {
		return value
	}
	current := value
	for range maxSanitizePasses {
		cleaned := s.policy.Sanitize(current)
		plain := html.UnescapeString(cleaned)
		if plain == current {
			return plain
		}
		current = plain
	}
	return s.policy.Sanitize(current)
}

// Values returns a sanitized deep copy of values.
func (s *Sanitizer) Values(values map[string]any) map[string]any {
	if s == nil {
		return values
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = s.value(v)
	}
	return out
}

func (s *Sanitizer) value(v any) any {
	switch typed := v.(type) {
	case string:
		return s.String(typed)
	case map[string]any:
		return s.Values(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = s.value(item)
		}
		return out
	case []string:
		out := make([]string, len(typed))
		for i, item := range typed {
			out[i] = s.String(item)
		}
		return out
	default:
		return typed
	}
}
