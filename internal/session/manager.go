package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/wizard"
)

var (
	// ErrUnknownKind is returned for a wizard kind no definition is registered
	// for.
	ErrUnknownKind = errors.New("session: unknown wizard kind")
	// ErrSubmitted is returned when a submitted record is opened for editing.
	ErrSubmitted = errors.New("session: record already submitted")
)

// Metrics is what the manager reports to. *metrics.Recorder satisfies it.
type Metrics interface {
	wizard.Observer
	SessionOpened()
	SessionClosed()
}

// Seed builds the initial record for a new draft.
type Seed func(kind, user string) draft.Record

// Manager mounts wizards on demand and unmounts them when they exit or sit
// idle longer than the configured timeout.
type Manager struct {
	store     draft.Store
	defs      map[string]wizard.Definition
	logger    *zap.Logger
	metrics   Metrics
	submitter wizard.Submitter
	seed      Seed
	idle      time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithSubmitter sets where submitted records are handed to.
func WithSubmitter(s wizard.Submitter) Option {
	return func(m *Manager) {
		if s != nil {
			m.submitter = s
		}
	}
}

// WithSeed overrides how new drafts are initialised.
func WithSeed(seed Seed) Option {
	return func(m *Manager) {
		if seed != nil {
			m.seed = seed
		}
	}
}

// WithIdleTimeout sets how long an untouched session stays mounted.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idle = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager serves the given definitions, keyed by their names.
func NewManager(store draft.Store, defs []wizard.Definition, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	m := &Manager{
		store:    store,
		defs:     make(map[string]wizard.Definition, len(defs)),
		logger:   zap.NewNop(),
		idle:     30 * time.Minute,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
		seed: func(kind, _ string) draft.Record {
			return draft.NewRecord(kind, nil)
		},
	}
	for _, def := range defs {
		if err := def.Check(); err != nil {
			return nil, err
		}
		if _, dup := m.defs[def.Name]; dup {
			return nil, fmt.Errorf("session: definition %q registered twice", def.Name)
		}
		m.defs[def.Name] = def
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.submitter == nil {
		m.submitter = wizard.SubmitterFunc(func(_ context.Context, rec draft.Record) error {
			m.logger.Info("request submitted", zap.String("kind", rec.Kind), zap.String("record_id", rec.ID.String()))
			return nil
		})
	}
	return m, nil
}

// Kinds lists the registered wizard names.
func (m *Manager) Kinds() []string {
	out := make([]string, 0, len(m.defs))
	for name := range m.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Definition returns the definition registered for kind.
func (m *Manager) Definition(kind string) (wizard.Definition, bool) {
	def, ok := m.defs[kind]
	return def, ok
}

// Create stores a new draft of kind and mounts a wizard on it at the first
// page.
func (m *Manager) Create(ctx context.Context, kind, user string) (*Session, error) {
	def, ok := m.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	rec, err := m.store.Create(ctx, m.seed(kind, user))
	if err != nil {
		return nil, fmt.Errorf("session: create %s draft: %w", kind, err)
	}
	s, err := m.mount(def, rec, user)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[rec.ID] = s
	m.mu.Unlock()
	m.logger.Info("draft created", zap.String("kind", kind), zap.String("record_id", rec.ID.String()))
	return s, nil
}

// Open returns the mounted session for id, loading the record and mounting
// a wizard when none is. The record must be of kind.
func (m *Manager) Open(ctx context.Context, kind string, id uuid.UUID, user string) (*Session, error) {
	def, ok := m.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	m.mu.Lock()
	existing, ok := m.sessions[id]
	m.mu.Unlock()
	if ok && !existing.Wizard.Closed() {
		if existing.Kind != kind {
			return nil, draft.ErrNotFound
		}
		existing.touch(m.now())
		return existing, nil
	}

	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Kind != kind {
		return nil, draft.ErrNotFound
	}
	if rec.Status == draft.StatusSubmitted {
		return nil, ErrSubmitted
	}

	s, err := m.mount(def, rec, user)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	prev, mounted := m.sessions[id]
	if mounted && !prev.Wizard.Closed() {
		m.mu.Unlock()
		m.unmount(s)
		prev.touch(m.now())
		return prev, nil
	}
	m.sessions[id] = s
	m.mu.Unlock()

	if mounted {
		m.unmount(prev)
	}
	return s, nil
}

// Close unmounts the session for id. It reports whether one was mounted.
func (m *Manager) Close(id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.unmount(s)
	}
	return ok
}

// Len returns the number of mounted sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap unmounts sessions that exited or have been idle past the timeout.
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.Wizard.Closed() || s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		m.unmount(s)
	}
	if len(stale) > 0 {
		m.logger.Debug("reaped sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run reaps on an interval until ctx is done, then unmounts everything.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return nil
		case <-ticker.C:
			m.Reap()
		}
	}
}

// Shutdown unmounts every session. Pending autosaves are dropped.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		m.unmount(s)
	}
}

func (m *Manager) mount(def wizard.Definition, rec draft.Record, user string) (*Session, error) {
	v := &view{}
	opts := []wizard.Option{
		wizard.WithNavigator(v),
		wizard.WithPresenter(v),
		wizard.WithSubmitter(m.submitter),
		wizard.WithLogger(m.logger),
	}
	if m.metrics != nil {
		opts = append(opts, wizard.WithObserver(m.metrics))
	}
	w, err := wizard.New(def, rec, m.store, opts...)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.SessionOpened()
	}
	s := &Session{Kind: def.Name, User: user, Wizard: w, view: v}
	s.touch(m.now())
	return s, nil
}

func (m *Manager) unmount(s *Session) {
	s.Wizard.Close()
	if m.metrics != nil {
		m.metrics.SessionClosed()
	}
}
