package draft

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a record as far as the wizard is concerned.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
)

// Record is the in-progress data of one request. Values holds the union of
// every page's fields keyed by their dotted paths.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	Kind      string         `json:"kind"`
	Status    Status         `json:"status"`
	Values    map[string]any `json:"values"`
	Revision  int64          `json:"revision"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewRecord starts a draft with a fresh client-side id.
func NewRecord(kind string, values map[string]any) Record {
	return Record{
		ID:     uuid.New(),
		Kind:   kind,
		Status: StatusDraft,
		Values: cloneValues(values),
	}
}

// HasID reports whether the record carries a usable identifier.
func (r Record) HasID() bool {
	return r.ID != uuid.Nil
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	out.Values = cloneValues(r.Values)
	return out
}

// Get resolves a dotted path. Numeric segments index arrays.
func (r Record) Get(path string) (any, bool) {
	return getPath(r.Values, path)
}

// String returns the value at path as a trimmed string, or "" when absent.
func (r Record) String(path string) string {
	value, ok := r.Get(path)
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(value)
}

// Set writes value at path, creating intermediate maps and slices.
func (r *Record) Set(path string, value any) error {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	return setPath(r.Values, path, value)
}

// Fingerprint is a stable digest of Values used for change detection.
func (r Record) Fingerprint() string {
	return Fingerprint(r.Values)
}

// Fingerprint digests a value map. encoding/json sorts map keys, so equal maps
// always produce equal digests.
func Fingerprint(values map[string]any) string {
	if len(values) == 0 {
		return ""
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func cloneValues(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = deepCopy(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopy(v)
		}
		return clone
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)
	return strings.Split(strings.Trim(path, "."), ".")
}

func getPath(root map[string]any, path string) (any, bool) {
	segments := splitPath(path)
	if root == nil || len(segments) == 0 {
		return nil, false
	}
	var current any = root
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// setPath walks segments recursively so slices grown on the way are written
// back into their parent container.
func setPath(root map[string]any, path string, value any) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return fmt.Errorf("draft: empty path")
	}
	_, err := assign(root, segments, value, path)
	return err
}

func assign(node any, segments []string, value any, path string) (any, error) {
	if len(segments) == 0 {
		return value, nil
	}
	segment := segments[0]

	if idx, err := strconv.Atoi(segment); err == nil {
		if idx < 0 {
			return nil, fmt.Errorf("draft: negative index in path %q", path)
		}
		list, ok := node.([]any)
		if !ok {
			if node != nil {
				return nil, fmt.Errorf("draft: %q indexes a non-list value in path %q", segment, path)
			}
			list = nil
		}
		if len(list) <= idx {
			list = append(list, make([]any, idx+1-len(list))...)
		}
		child, err := assign(list[idx], segments[1:], value, path)
		if err != nil {
			return nil, err
		}
		list[idx] = child
		return list, nil
	}

	obj, ok := node.(map[string]any)
	if !ok {
		if node != nil {
			return nil, fmt.Errorf("draft: %q descends into a scalar in path %q", segment, path)
		}
		obj = make(map[string]any)
	}
	child, err := assign(obj[segment], segments[1:], value, path)
	if err != nil {
		return nil, err
	}
	obj[segment] = child
	return obj, nil
}
