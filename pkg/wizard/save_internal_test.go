package wizard

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-intake/pkg/draft"
)

func TestBackgroundSaveAfterExplicitSaveKeepsNewerValues(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemoryStore()
	rec, err := store.Create(ctx, draft.NewRecord("system-intake", nil))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	def := Definition{
		Name:          "system-intake",
		BasePath:      "/system",
		AutosaveDelay: time.Hour,
		Pages: []Page{
			{Slug: "request-details", View: FormView{Fields: []Field{{Path: "requestName", Type: FieldText}}}},
			{Slug: "review", View: ReviewView{}},
		},
	}
	w, err := New(def, rec, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := w.SetField("requestName", "Cloud"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	debounced := w.Record()
	if err := w.SetField("requestName", "Cloud migration"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if _, err := w.GoNext(ctx); err != nil {
		t.Fatalf("GoNext: %v", err)
	}

	stored, err := w.autosaveRecord(ctx, debounced)
	if err != nil {
		t.Fatalf("background save: %v", err)
	}
	if got := stored.String("requestName"); got != "Cloud migration" {
		t.Fatalf("background save reported %q", got)
	}

	loaded, err := store.Load(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	type state struct {
		Name     string
		Revision int64
	}
	want := state{Name: "Cloud migration", Revision: w.Record().Revision}
	got := state{Name: loaded.String("requestName"), Revision: loaded.Revision}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stored draft mismatch (-want +got):\n%s", diff)
	}
}
