// Package sqlite persists draft records in a single SQLite file through the
// pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-intake/pkg/draft"
)

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	values_json TEXT NOT NULL,
	revision INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drafts_kind ON drafts(kind);
`

// Store is a draft.Store backed by SQLite.
type Store struct {
	db       *sql.DB
	sanitize *draft.Sanitizer
	now      func() time.Time
}

var _ draft.Store = (*Store)(nil)

// Open creates the database file and its parent directory when missing and
// applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// one writer at a time; the revision check in Save stays atomic
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db, sanitize: draft.NewSanitizer(), now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Create(ctx context.Context, rec draft.Record) (draft.Record, error) {
	if !rec.HasID() {
		return draft.Record{}, draft.ErrMissingID
	}
	stored := rec.Clone()
	stored.Values = s.sanitize.Values(stored.Values)
	if stored.Status == "" {
		stored.Status = draft.StatusDraft
	}
	stored.Revision = 1
	stored.CreatedAt = s.now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	payload, err := encodeValues(stored.Values)
	if err != nil {
		return draft.Record{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, kind, status, values_json, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		stored.ID.String(), stored.Kind, string(stored.Status), payload,
		stored.Revision, stored.CreatedAt.UnixNano(), stored.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return draft.Record{}, fmt.Errorf("sqlite: insert %s: %w", stored.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return draft.Record{}, err
	} else if n == 0 {
		return draft.Record{}, draft.ErrConflict
	}
	return stored, nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (draft.Record, error) {
	var (
		rec       draft.Record
		status    string
		payload   string
		createdAt int64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, status, values_json, revision, created_at, updated_at
		FROM drafts WHERE id = ?`, id.String(),
	).Scan(&rec.Kind, &status, &payload, &rec.Revision, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return draft.Record{}, draft.ErrNotFound
	}
	if err != nil {
		return draft.Record{}, fmt.Errorf("sqlite: load %s: %w", id, err)
	}

	values, err := decodeValues(payload)
	if err != nil {
		return draft.Record{}, err
	}
	rec.ID = id
	rec.Status = draft.Status(status)
	rec.Values = values
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return rec, nil
}

func (s *Store) Save(ctx context.Context, rec draft.Record) (draft.Record, error) {
	if !rec.HasID() {
		return draft.Record{}, draft.ErrMissingID
	}
	stored := rec.Clone()
	stored.Values = s.sanitize.Values(stored.Values)
	stored.UpdatedAt = s.now().UTC()

	payload, err := encodeValues(stored.Values)
	if err != nil {
		return draft.Record{}, err
	}

	var createdAt int64
	err = s.db.QueryRowContext(ctx, `
		UPDATE drafts
		SET status = ?, values_json = ?, revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ?
		RETURNING revision, created_at`,
		string(stored.Status), payload, stored.UpdatedAt.UnixNano(),
		stored.ID.String(), rec.Revision,
	).Scan(&stored.Revision, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return draft.Record{}, s.missOrConflict(ctx, stored.ID)
	}
	if err != nil {
		return draft.Record{}, fmt.Errorf("sqlite: save %s: %w", stored.ID, err)
	}
	stored.CreatedAt = time.Unix(0, createdAt).UTC()
	return stored, nil
}

func (s *Store) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM drafts WHERE id = ?`, id.String()).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return draft.ErrNotFound
	case err != nil:
		return fmt.Errorf("sqlite: check %s: %w", id, err)
	default:
		return draft.ErrConflict
	}
}

func encodeValues(values map[string]any) (string, error) {
	if values == nil {
		values = map[string]any{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode values: %w", err)
	}
	return string(data), nil
}

func decodeValues(payload string) (map[string]any, error) {
	values := map[string]any{}
	if payload == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return nil, fmt.Errorf("sqlite: decode values: %w", err)
	}
	return values, nil
}
