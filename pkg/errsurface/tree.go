// Package errsurface models validation errors as a typed tree keyed by
// dotted field paths and flattens it into the ordered (path, message) list a
// page shows above the form. Each entry carries the anchor the view scrolls to
// when the message is clicked.
package errsurface

import (
	"sort"
	"strconv"
	"strings"
)

// Entry is a single flattened error.
type Entry struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Anchor  string `json:"anchor"`
}

// Tree is a nested error structure. The zero value is an empty tree ready for
// use. Children keep insertion order so flattening is deterministic.
type Tree struct {
	messages []string
	children map[string]*Tree
	order    []string
}

// New returns an empty tree.
func New() *Tree { return &Tree{} }

// Add records message at path. An empty path records a form-level message.
// Blank messages mean "no error" and are not recorded.
func (t *Tree) Add(path, message string) {
	if t == nil {
		return
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	node := t
	for _, segment := range SplitPath(path) {
		node = node.child(segment)
	}
	node.messages = append(node.messages, message)
}

func (t *Tree) child(segment string) *Tree {
	if t.children == nil {
		t.children = make(map[string]*Tree)
	}
	next, ok := t.children[segment]
	if !ok {
		next = &Tree{}
		t.children[segment] = next
		t.order = append(t.order, segment)
	}
	return next
}

// Merge appends every message of other into t, preserving other's order.
func (t *Tree) Merge(other *Tree) {
	if t == nil || other == nil {
		return
	}
	for _, entry := range other.Flatten() {
		t.Add(entry.Path, entry.Message)
	}
}

// Empty reports whether the tree holds no messages.
func (t *Tree) Empty() bool {
	return t.Len() == 0
}

// Len returns the number of leaf messages in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	count := len(t.messages)
	for _, key := range t.order {
		count += t.children[key].Len()
	}
	return count
}

// At returns the messages recorded exactly at path.
func (t *Tree) At(path string) []string {
	if t == nil {
		return nil
	}
	node := t
	for _, segment := range SplitPath(path) {
		next, ok := node.children[segment]
		if !ok {
			return nil
		}
		node = next
	}
	return append([]string(nil), node.messages...)
}

// Paths lists every path that carries at least one message, in flatten order.
func (t *Tree) Paths() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, entry := range t.Flatten() {
		if _, ok := seen[entry.Path]; ok {
			continue
		}
		seen[entry.Path] = struct{}{}
		out = append(out, entry.Path)
	}
	return out
}

// Flatten returns the leaf (path, message) pairs depth first. Messages on a
// node come before those of its children.
func (t *Tree) Flatten() []Entry {
	if t == nil {
		return nil
	}
	var out []Entry
	t.flatten(nil, &out)
	return out
}

func (t *Tree) flatten(prefix []string, out *[]Entry) {
	path := strings.Join(prefix, ".")
	for _, message := range t.messages {
		*out = append(*out, Entry{Path: path, Message: message, Anchor: Anchor(path)})
	}
	for _, key := range t.order {
		t.children[key].flatten(append(prefix[:len(prefix):len(prefix)], key), out)
	}
}

// FromEntries rebuilds a tree from flattened entries.
func FromEntries(entries []Entry) *Tree {
	tree := New()
	for _, entry := range entries {
		tree.Add(entry.Path, entry.Message)
	}
	return tree
}

// FromNested builds a tree from an untyped nested error object such as a
// decoded JSON payload. Maps descend by key (sorted for determinism), slices
// descend by index, strings and string slices are leaf messages. A blank
// string means the field has no error, as form libraries report cleared
// errors, so it is not a leaf. Any other value is ignored.
func FromNested(value any) *Tree {
	tree := New()
	collectNested(tree, nil, value)
	return tree
}

func collectNested(tree *Tree, prefix []string, value any) {
	path := strings.Join(prefix, ".")
	switch typed := value.(type) {
	case string:
		tree.Add(path, typed)
	case []string:
		for _, message := range typed {
			tree.Add(path, message)
		}
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			collectNested(tree, appendSegments(prefix, key), typed[key])
		}
	case map[string]string:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			tree.Add(strings.Join(appendSegments(prefix, key), "."), typed[key])
		}
	case []any:
		for idx, item := range typed {
			collectNested(tree, appendSegments(prefix, strconv.Itoa(idx)), item)
		}
	case []map[string]any:
		for idx, item := range typed {
			collectNested(tree, appendSegments(prefix, strconv.Itoa(idx)), item)
		}
	}
}

func appendSegments(prefix []string, key string) []string {
	out := append(prefix[:len(prefix):len(prefix)], SplitPath(key)...)
	return out
}

// SplitPath splits a dotted path, accepting bracket indices (`teams[0].name`).
func SplitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)
	parts := strings.Split(path, ".")
	out := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FormAnchor is the anchor of form-level messages.
const FormAnchor = "form-errors"

// Anchor converts a field path into the element id a view scrolls to.
func Anchor(path string) string {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return FormAnchor
	}
	return "field-" + strings.Join(segments, "-")
}
