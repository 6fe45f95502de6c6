// Package testsupport holds contract tests shared by every draft.Store
// implementation.
package testsupport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/goliatone/go-intake/pkg/draft"
)

// StoreFactory returns a fresh, empty store for one subtest.
type StoreFactory func(t *testing.T) draft.Store

// RunStoreContract exercises the Create/Load/Save contract: revisions start
// at one and bump on every save, stale revisions conflict, unknown ids are
// not found, and free text is sanitized.
func RunStoreContract(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("create and load", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		rec := draft.NewRecord("system-intake", map[string]any{
			"requester": map[string]any{"name": "Jane"},
			"governanceTeams": map[string]any{
				"teams": []any{map[string]any{"name": "TRB", "collaborator": "Alex"}},
			},
		})

		created, err := store.Create(ctx, rec)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.Revision != 1 || created.Status != draft.StatusDraft {
			t.Fatalf("unexpected created record: %+v", created)
		}
		if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
			t.Fatalf("timestamps not set: %+v", created)
		}

		loaded, err := store.Load(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if diff := cmp.Diff(rec.Values, loaded.Values); diff != "" {
			t.Fatalf("values mismatch (-want +got):\n%s", diff)
		}
		if loaded.Kind != "system-intake" || loaded.Revision != 1 {
			t.Fatalf("unexpected loaded record: %+v", loaded)
		}

		if _, err := store.Create(ctx, rec); !errors.Is(err, draft.ErrConflict) {
			t.Fatalf("duplicate create: expected ErrConflict, got %v", err)
		}
	})

	t.Run("save bumps revision", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		created, err := store.Create(ctx, draft.NewRecord("system-intake", nil))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		next := created.Clone()
		if err := next.Set("requestName", "Cloud"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		next.Status = draft.StatusSubmitted
		saved, err := store.Save(ctx, next)
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if saved.Revision != 2 {
			t.Fatalf("revision = %d", saved.Revision)
		}

		loaded, err := store.Load(ctx, created.ID)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if loaded.String("requestName") != "Cloud" || loaded.Status != draft.StatusSubmitted || loaded.Revision != 2 {
			t.Fatalf("unexpected loaded record: %+v", loaded)
		}
		if !loaded.CreatedAt.Equal(created.CreatedAt) {
			t.Fatalf("created_at changed: %v -> %v", created.CreatedAt, loaded.CreatedAt)
		}

		if _, err := store.Save(ctx, next); !errors.Is(err, draft.ErrConflict) {
			t.Fatalf("stale save: expected ErrConflict, got %v", err)
		}
	})

	t.Run("unknown ids", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		if _, err := store.Load(ctx, uuid.New()); !errors.Is(err, draft.ErrNotFound) {
			t.Fatalf("Load: expected ErrNotFound, got %v", err)
		}
		if _, err := store.Save(ctx, draft.NewRecord("x", nil)); !errors.Is(err, draft.ErrNotFound) {
			t.Fatalf("Save: expected ErrNotFound, got %v", err)
		}
		if _, err := store.Create(ctx, draft.Record{}); !errors.Is(err, draft.ErrMissingID) {
			t.Fatalf("Create: expected ErrMissingID, got %v", err)
		}
	})

	t.Run("sanitizes free text", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		created, err := store.Create(ctx, draft.NewRecord("x", map[string]any{
			"businessNeed": "<script>alert(1)</script>Faster <b>reviews</b> for R&D",
		}))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if got := created.String("businessNeed"); got != "Faster reviews for R&D" {
			t.Fatalf("businessNeed = %q", got)
		}
	})

	t.Run("concurrent saves", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		created, err := store.Create(ctx, draft.NewRecord("x", nil))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		const writers = 8
		var wg sync.WaitGroup
		results := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Save(ctx, created)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, draft.ErrConflict):
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("expected exactly one winning save, got %d", wins)
		}
	})
}
