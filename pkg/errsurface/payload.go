package errsurface

import (
	"sort"
	"strconv"
	"strings"
)

// FromPayload maps a server error payload onto the known field paths of a
// wizard. Payload keys may be JSON pointers (`/body/requester/name`), JSONPath
// style (`$.businessOwner.component`) or bracketed (`teams[1].name`), with
// wrapper segments such as `body` or `input`. Known paths may use `*` for an
// array index (`governanceTeams.teams.*.collaborator`); the concrete index is
// kept in the mapped path so the field can still be scrolled into view.
// Unknown paths become form-level messages so nothing is lost.
func FromPayload(payload map[string][]string, known []string) *Tree {
	tree := New()
	if len(payload) == 0 {
		return tree
	}

	patterns := make([][]string, 0, len(known))
	for _, path := range known {
		if segments := SplitPath(path); len(segments) > 0 {
			patterns = append(patterns, segments)
		}
	}

	for _, raw := range sortedKeys(payload) {
		messages := normalizeMessages(payload[raw])
		if len(messages) == 0 {
			continue
		}
		mapped, formLevel := mapPayloadPath(raw, patterns)
		for _, message := range messages {
			if formLevel {
				tree.Add("", message)
				continue
			}
			tree.Add(mapped, message)
		}
	}
	return tree
}

func sortedKeys(payload map[string][]string) []string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func mapPayloadPath(raw string, patterns [][]string) (string, bool) {
	if isFormLevelKey(raw) {
		return "", true
	}
	segments := parsePayloadSegments(raw)
	if len(segments) == 0 {
		return "", true
	}

	best := []string(nil)
	for _, variant := range [][]string{segments, dropWrapperSegments(segments)} {
		if match := longestMatch(variant, patterns); len(match) > len(best) {
			best = match
		}
	}
	if len(best) == 0 {
		return "", true
	}
	return strings.Join(best, "."), false
}

func parsePayloadSegments(path string) []string {
	clean := strings.TrimSpace(path)
	for _, prefix := range []string{"#/", "$/", "$."} {
		clean = strings.TrimPrefix(clean, prefix)
	}
	clean = strings.TrimLeft(clean, "#/.$")
	clean = strings.NewReplacer("[", ".", "]", "", "//", "/").Replace(clean)
	clean = strings.Trim(clean, "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

var wrapperSegments = map[string]struct{}{
	"body":       {},
	"request":    {},
	"payload":    {},
	"data":       {},
	"input":      {},
	"attributes": {},
}

func dropWrapperSegments(segments []string) []string {
	out := segments
	for len(out) > 0 {
		if _, ok := wrapperSegments[strings.ToLower(out[0])]; !ok {
			break
		}
		out = out[1:]
	}
	return out
}

// longestMatch returns the longest prefix of segments that equals some known
// pattern, with `*` pattern segments matching numeric indices.
func longestMatch(segments []string, patterns [][]string) []string {
	for end := len(segments); end > 0; end-- {
		candidate := segments[:end]
		for _, pattern := range patterns {
			if matches(candidate, pattern) {
				return append([]string(nil), candidate...)
			}
		}
	}
	return nil
}

func matches(segments, pattern []string) bool {
	if len(segments) != len(pattern) {
		return false
	}
	for i, want := range pattern {
		if want == "*" {
			if _, err := strconv.Atoi(segments[i]); err != nil {
				return false
			}
			continue
		}
		if segments[i] != want {
			return false
		}
	}
	return true
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
