package review_test

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/review"
	"github.com/goliatone/go-intake/pkg/wizard"
)

func sampleDefinition(template string) wizard.Definition {
	return wizard.Definition{
		Name:     "sample",
		BasePath: "/system",
		Pages: []wizard.Page{
			{
				Slug:  "contact",
				Title: "Contact",
				View: wizard.FormView{Fields: []wizard.Field{
					{Path: "requester.name", Label: "Requester"},
					{Path: "isso.isPresent", Label: "Has ISSO"},
					{Path: "isso.name", Label: "ISSO", When: "isso.isPresent"},
					{Path: "teams", Label: "Teams", Type: wizard.FieldList, Items: []wizard.Field{
						{Path: "name", Label: "Team"},
						{Path: "collaborator", Label: "Collaborator"},
					}},
				}},
			},
			{Slug: "review", Title: "Check your answers", View: wizard.ReviewView{Template: template}},
		},
	}
}

func sampleRecord() draft.Record {
	return draft.NewRecord("sample", map[string]any{
		"requester": map[string]any{"name": "Jane <Doe>"},
		"isso":      map[string]any{"isPresent": "false", "name": "Hidden"},
		"teams": []any{
			map[string]any{"name": "TRB", "collaborator": "Alex"},
		},
	})
}

func TestBuild(t *testing.T) {
	rec := sampleRecord()
	summary := review.Build(sampleDefinition(""), rec, nil)

	if summary.Title != "Check your answers" {
		t.Fatalf("title = %q", summary.Title)
	}
	if len(summary.Sections) != 1 {
		t.Fatalf("expected one section, got %d", len(summary.Sections))
	}
	section := summary.Sections[0]
	if section.EditPath != "/system/"+rec.ID.String()+"/contact" {
		t.Fatalf("edit path = %q", section.EditPath)
	}
	want := []review.Row{
		{Path: "requester.name", Label: "Requester", Value: "Jane <Doe>"},
		{Path: "isso.isPresent", Label: "Has ISSO", Value: "No"},
		{Path: "teams", Label: "Teams", Value: "1", Items: [][]review.Row{{
			{Path: "teams.0.name", Label: "Team", Value: "TRB"},
			{Path: "teams.0.collaborator", Label: "Collaborator", Value: "Alex"},
		}}},
	}
	if diff := cmp.Diff(want, section.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderDefaultTemplate(t *testing.T) {
	renderer, err := review.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf strings.Builder
	out, err := renderer.Render(sampleDefinition(""), sampleRecord(), &buf)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != buf.String() {
		t.Fatalf("writer and return value differ")
	}
	for _, want := range []string{"Check your answers", "Jane &lt;Doe&gt;", "Collaborator", "Alex", ">Edit<"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Hidden") {
		t.Fatalf("hidden field rendered:\n%s", out)
	}
}

func TestRenderBundledAndCustomTemplates(t *testing.T) {
	renderer, err := review.New(review.WithFS(fstest.MapFS{
		"custom.html": {Data: []byte(`custom:{{ summary.Sections.0.Rows.0.Value }}`)},
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := renderer.Render(sampleDefinition("system_intake.html"), sampleRecord(), nil)
	if err != nil {
		t.Fatalf("Render system_intake: %v", err)
	}
	if !strings.Contains(out, "Governance Team") || !strings.Contains(out, "Requester") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = renderer.Render(sampleDefinition("custom.html"), sampleRecord(), nil)
	if err != nil {
		t.Fatalf("Render custom: %v", err)
	}
	if out != "custom:Jane &lt;Doe&gt;" {
		t.Fatalf("custom output = %q", out)
	}

	out, err = renderer.Render(sampleDefinition(`{{ values.requester.name|display }}`), sampleRecord(), nil)
	if err != nil {
		t.Fatalf("Render inline: %v", err)
	}
	if out != "Jane &lt;Doe&gt;" {
		t.Fatalf("inline output = %q", out)
	}
}

func TestRenderWithoutReviewPage(t *testing.T) {
	renderer, err := review.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	def := sampleDefinition("")
	def.Pages = def.Pages[:1]
	if _, err := renderer.Render(def, sampleRecord(), nil); !errors.Is(err, review.ErrNoReviewPage) {
		t.Fatalf("expected ErrNoReviewPage, got %v", err)
	}
}

func TestDisplay(t *testing.T) {
	cases := map[string]any{
		"Yes":        true,
		"No":         "false",
		"":           nil,
		"1.5":        1.5,
		"a, b":       []any{"a", "b"},
		"k: v; n: 2": map[string]any{"n": 2, "k": "v"},
	}
	for want, in := range cases {
		if got := review.Display(in); got != want {
			t.Fatalf("Display(%v) = %q, want %q", in, got, want)
		}
	}
}
