package draft_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/goliatone/go-intake/pkg/draft"
)

func TestRecordSetAndGet(t *testing.T) {
	rec := draft.NewRecord("system-intake", nil)

	if err := rec.Set("requester.name", "Jane Doe"); err != nil {
		t.Fatalf("Set requester.name: %v", err)
	}
	if err := rec.Set("governanceTeams.teams.1.collaborator", "Ada"); err != nil {
		t.Fatalf("Set array path: %v", err)
	}
	if err := rec.Set("governanceTeams.teams[0].name", "Technical Review Board"); err != nil {
		t.Fatalf("Set bracket path: %v", err)
	}

	want := map[string]any{
		"requester": map[string]any{"name": "Jane Doe"},
		"governanceTeams": map[string]any{
			"teams": []any{
				map[string]any{"name": "Technical Review Board"},
				map[string]any{"collaborator": "Ada"},
			},
		},
	}
	if diff := cmp.Diff(want, rec.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	if got := rec.String("governanceTeams.teams.1.collaborator"); got != "Ada" {
		t.Fatalf("String returned %q", got)
	}
	if _, ok := rec.Get("governanceTeams.teams.4"); ok {
		t.Fatalf("expected out of range lookup to miss")
	}
}

func TestRecordSetRejectsScalarDescent(t *testing.T) {
	rec := draft.NewRecord("system-intake", map[string]any{"requestName": "Cloud move"})
	if err := rec.Set("requestName.first", "x"); err == nil {
		t.Fatalf("expected error when descending into a scalar")
	}
	if err := rec.Set("", "x"); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	rec := draft.NewRecord("system-intake", map[string]any{
		"requester": map[string]any{"name": "Jane"},
	})
	clone := rec.Clone()
	if err := clone.Set("requester.name", "John"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := rec.String("requester.name"); got != "Jane" {
		t.Fatalf("clone mutated original: %q", got)
	}
	if rec.Fingerprint() == clone.Fingerprint() {
		t.Fatalf("expected fingerprints to differ after edit")
	}
	if err := clone.Set("requester.name", "Jane"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if rec.Fingerprint() != clone.Fingerprint() {
		t.Fatalf("expected equal values to fingerprint equally")
	}
}

func TestMemoryStoreRevisions(t *testing.T) {
	ctx := context.Background()
	store := draft.NewMemoryStore()

	created, err := store.Create(ctx, draft.NewRecord("system-intake", map[string]any{"requestName": "<b>Cloud</b> R&D"}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", created.Revision)
	}
	if got := created.String("requestName"); got != "Cloud R&D" {
		t.Fatalf("expected sanitized value, got %q", got)
	}

	stale := created.Clone()

	if err := created.Set("requestName", "Cloud migration"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	saved, err := store.Save(ctx, created)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", saved.Revision)
	}

	if _, err := store.Save(ctx, stale); !errors.Is(err, draft.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale revision, got %v", err)
	}

	loaded, err := store.Load(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.String("requestName"); got != "Cloud migration" {
		t.Fatalf("loaded %q", got)
	}

	if _, err := store.Load(ctx, uuid.New()); !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Save(ctx, draft.Record{}); !errors.Is(err, draft.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}
