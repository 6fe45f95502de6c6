// Package postgres persists draft records in PostgreSQL through pgx. Values
// are stored as JSONB so reporting queries can reach into them.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goliatone/go-intake/pkg/draft"
)

// Store is a draft.Store backed by a pgx pool.
type Store struct {
	pool     *pgxpool.Pool
	sanitize *draft.Sanitizer
	now      func() time.Time
}

var _ draft.Store = (*Store)(nil)

// New wraps an open pool. Call EnsureSchema first.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, sanitize: draft.NewSanitizer(), now: time.Now}
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Create(ctx context.Context, rec draft.Record) (draft.Record, error) {
	if !rec.HasID() {
		return draft.Record{}, draft.ErrMissingID
	}
	stored := rec.Clone()
	stored.Values = nonNil(s.sanitize.Values(stored.Values))
	if stored.Status == "" {
		stored.Status = draft.StatusDraft
	}
	stored.Revision = 1

	err := s.pool.QueryRow(ctx, `
		INSERT INTO drafts (id, kind, status, payload, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at`,
		stored.ID.String(), stored.Kind, string(stored.Status), stored.Values, s.now().UTC(),
	).Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return draft.Record{}, draft.ErrConflict
	}
	if err != nil {
		return draft.Record{}, fmt.Errorf("postgres: insert %s: %w", stored.ID, err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return stored, nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (draft.Record, error) {
	rec := draft.Record{ID: id}
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT kind, status, payload, revision, created_at, updated_at
		FROM drafts WHERE id = $1`, id.String(),
	).Scan(&rec.Kind, &status, &rec.Values, &rec.Revision, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return draft.Record{}, draft.ErrNotFound
	}
	if err != nil {
		return draft.Record{}, fmt.Errorf("postgres: load %s: %w", id, err)
	}
	rec.Status = draft.Status(status)
	rec.Values = nonNil(rec.Values)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func (s *Store) Save(ctx context.Context, rec draft.Record) (draft.Record, error) {
	if !rec.HasID() {
		return draft.Record{}, draft.ErrMissingID
	}
	stored := rec.Clone()
	stored.Values = nonNil(s.sanitize.Values(stored.Values))

	err := s.pool.QueryRow(ctx, `
		UPDATE drafts
		SET status = $1, payload = $2, revision = revision + 1, updated_at = $3
		WHERE id = $4 AND revision = $5
		RETURNING revision, created_at, updated_at`,
		string(stored.Status), stored.Values, s.now().UTC(), stored.ID.String(), rec.Revision,
	).Scan(&stored.Revision, &stored.CreatedAt, &stored.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return draft.Record{}, s.missOrConflict(ctx, stored.ID)
	}
	if err != nil {
		return draft.Record{}, fmt.Errorf("postgres: save %s: %w", stored.ID, err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return stored, nil
}

func (s *Store) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM drafts WHERE id = $1)`, id.String()).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check %s: %w", id, err)
	}
	if !exists {
		return draft.ErrNotFound
	}
	return draft.ErrConflict
}

func nonNil(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return values
}
