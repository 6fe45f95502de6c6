package definition_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-intake/pkg/definition"
	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/wizard"
)

const sampleYAML = `
name: sample
basePath: /sample
autosaveDelay: 2s
bindings:
  - flag: sameAsRequester
    clearOnDisable: true
    copies:
      owner.name: requester.name
pages:
  - slug: contact
    title: Contact
    autosaveDelay: 500ms
    fields:
      - path: requester.name
        label: Name
        type: text
      - path: owner.name
        label: Owner
        type: text
        when: "!sameAsRequester"
    rules:
      - path: requester.name
        required: true
        message: Enter a name
  - slug: review
    title: Review
    kind: review
    template: "{{ values.requester.name }}"
`

const sampleJSON = `{
  "name": "other",
  "basePath": "/other",
  "autosaveDelay": 1500,
  "pages": [{"slug": "only", "title": "Only", "rules": [{"path": "x", "required": true}]}]
}`

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"sample.yaml":   {Data: []byte(sampleYAML)},
		"nested/o.json": {Data: []byte(sampleJSON)},
		"README.md":     {Data: []byte("ignored")},
	}

	store, err := definition.LoadFS(fsys)
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if diff := cmp.Diff([]string{"other", "sample"}, store.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	file, ok := store.File("sample")
	if !ok {
		t.Fatalf("sample missing")
	}
	if file.Source != "sample.yaml" {
		t.Fatalf("source = %q", file.Source)
	}

	other, err := store.Compile("other")
	if err != nil {
		t.Fatalf("Compile other: %v", err)
	}
	if other.AutosaveDelay != 1500*time.Millisecond {
		t.Fatalf("integer delay should be milliseconds, got %v", other.AutosaveDelay)
	}
}

func TestLoadFSNil(t *testing.T) {
	store, err := definition.LoadFS(nil)
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if !store.Empty() {
		t.Fatalf("expected empty store")
	}
	if _, err := store.Compile("missing"); !errors.Is(err, definition.ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestLoadFSDuplicateName(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml": {Data: []byte(sampleYAML)},
		"b.yaml": {Data: []byte(sampleYAML)},
	}
	if _, err := definition.LoadFS(fsys); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestCompileSample(t *testing.T) {
	file, err := definition.Parse([]byte(sampleYAML), "sample.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	exit := func(rec draft.Record) string { return "/done/" + rec.ID.String() }
	def, err := definition.Compile(file, definition.WithExit(exit))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if def.Name != "sample" || def.BasePath != "/sample" || def.AutosaveDelay != 2*time.Second {
		t.Fatalf("unexpected header: %+v", def)
	}
	if len(def.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(def.Pages))
	}
	contact := def.Pages[0]
	if contact.Kind() != wizard.KindForm || contact.AutosaveDelay != 500*time.Millisecond {
		t.Fatalf("unexpected contact page: %+v", contact)
	}
	if got := len(contact.Fields()); got != 2 {
		t.Fatalf("expected 2 fields, got %d", got)
	}
	if diff := cmp.Diff([]string{"requester.name"}, contact.Schema.Paths()); diff != "" {
		t.Fatalf("schema paths mismatch (-want +got):\n%s", diff)
	}
	review, ok := def.Pages[1].View.(wizard.ReviewView)
	if !ok || review.Template == "" {
		t.Fatalf("expected review view with template, got %#v", def.Pages[1].View)
	}
	want := []wizard.Mirror{{
		Flag:           "sameAsRequester",
		Copies:         map[string]string{"owner.name": "requester.name"},
		ClearOnDisable: true,
	}}
	if diff := cmp.Diff(want, def.Bindings); diff != "" {
		t.Fatalf("bindings mismatch (-want +got):\n%s", diff)
	}

	rec := draft.NewRecord("sample", nil)
	if got := def.ExitPath(rec); got != "/done/"+rec.ID.String() {
		t.Fatalf("exit = %q", got)
	}

	result, err := contact.Schema.Validate(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid() {
		t.Fatalf("expected missing name to fail")
	}
}

func TestCompileRemoteChecks(t *testing.T) {
	file, err := definition.Parse([]byte(sampleJSON), "o.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	check := func(context.Context, map[string]any) (map[string]string, error) {
		return map[string]string{"x": "taken"}, nil
	}

	def, err := definition.Compile(file, definition.WithRemoteChecks("only", check))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result, err := def.Pages[0].Schema.Validate(context.Background(), map[string]any{"x": "value"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Errors.Len() != 1 {
		t.Fatalf("expected remote error, got %v", result.Errors.Flatten())
	}

	if _, err := definition.Compile(file, definition.WithRemoteChecks("nope", check)); err == nil {
		t.Fatalf("expected error for remote checks on unknown page")
	}
}

func TestCompileRejectsBrokenDefinitions(t *testing.T) {
	cases := map[string]string{
		"bad kind": `
name: x
pages:
  - slug: a
    kind: wizard
`,
		"bad condition": `
name: x
pages:
  - slug: a
    fields:
      - path: a
        when: "a =="
`,
		"bad pattern": `
name: x
pages:
  - slug: a
    rules:
      - path: a
        pattern: "("
`,
		"review not last": `
name: x
pages:
  - slug: r
    kind: review
  - slug: a
`,
		"fields on review": `
name: x
pages:
  - slug: r
    kind: review
    fields:
      - path: a
`,
		"field without path": `
name: x
pages:
  - slug: a
    fields:
      - label: Nameless
`,
		"bad duration": `
name: x
autosaveDelay: soon
pages:
  - slug: a
`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			file, err := definition.Parse([]byte(doc), name)
			if err != nil {
				return
			}
			if _, err := definition.Compile(file); err == nil {
				t.Fatalf("expected compile error")
			}
		})
	}
}

func TestParseRejectsEmptyAndNameless(t *testing.T) {
	if _, err := definition.Parse([]byte("  \n"), "empty.yaml"); err == nil {
		t.Fatalf("expected error for empty file")
	}
	if _, err := definition.Parse([]byte("pages: []"), "nameless.yaml"); err == nil {
		t.Fatalf("expected error for nameless file")
	}
}
