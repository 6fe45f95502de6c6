package draft

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("draft: record not found")
	// ErrConflict is returned by Save when the stored revision moved on since
	// the caller loaded the record.
	ErrConflict = errors.New("draft: revision conflict")
	// ErrMissingID is returned when a record without an id is persisted.
	ErrMissingID = errors.New("draft: record has no id")
)

// Store persists draft records. Save is a compare-and-swap on Revision: it
// succeeds only when the stored revision equals rec.Revision and returns the
// record with the bumped revision.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Load(ctx context.Context, id uuid.UUID) (Record, error)
	Save(ctx context.Context, rec Record) (Record, error)
}

// MemoryStore keeps records in process. It backs tests and the CLI when no
// database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[uuid.UUID]Record
	sanitize *Sanitizer
	now      func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[uuid.UUID]Record),
		sanitize: NewSanitizer(),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if !rec.HasID() {
		return Record{}, ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return Record{}, ErrConflict
	}
	stored := rec.Clone()
	stored.Values = s.sanitize.Values(stored.Values)
	if stored.Status == "" {
		stored.Status = StatusDraft
	}
	stored.Revision = 1
	stored.CreatedAt = s.now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	s.records[rec.ID] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Load(ctx context.Context, id uuid.UUID) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if !rec.HasID() {
		return Record{}, ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.ID]
	if !ok {
		return Record{}, ErrNotFound
	}
	if current.Revision != rec.Revision {
		return Record{}, ErrConflict
	}
	stored := rec.Clone()
	stored.Values = s.sanitize.Values(stored.Values)
	stored.CreatedAt = current.CreatedAt
	stored.Revision = current.Revision + 1
	stored.UpdatedAt = s.now().UTC()
	s.records[rec.ID] = stored
	return stored.Clone(), nil
}
