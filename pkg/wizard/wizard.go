package wizard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-intake/pkg/autosave"
	"github.com/goliatone/go-intake/pkg/condition"
	"github.com/goliatone/go-intake/pkg/condition/expr"
	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/errsurface"
)

// Outcome describes the result of a navigation action. Moved is false when
// validation failed (Errors is then non-empty) or the cursor was already at
// the boundary. Exit is set when the action left the wizard.
type Outcome struct {
	From   int                `json:"from"`
	To     int                `json:"to"`
	Moved  bool               `json:"moved"`
	Errors []errsurface.Entry `json:"errors,omitempty"`
	Exit   string             `json:"exit,omitempty"`
}

// Wizard sequences the pages of a Definition over one draft record.
//
// Explicit actions (GoNext, GoBack, SaveAndExit, Submit) are exclusive: a
// second one started while the first still waits on validation or the store
// fails with ErrBusy. Every save, background or explicit, goes through one
// lock and carries the last revision the wizard saw, so the store rejects
// lost updates instead of applying them.
type Wizard struct {
	def       Definition
	store     draft.Store
	evaluator condition.Evaluator
	nav       Navigator
	presenter Presenter
	submitter Submitter
	observer  Observer
	logger    *zap.Logger
	autosave  *autosave.Debouncer

	saveMu sync.Mutex

	mu      sync.Mutex
	record  draft.Record
	cursor  int
	errors  *errsurface.Tree
	mirrors []bool
	busy    bool
	closed  bool
}

// New mounts a wizard on rec at the first page. Use Resume to start from a
// page named in the route.
func New(def Definition, rec draft.Record, store draft.Store, opts ...Option) (*Wizard, error) {
	if err := def.Check(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: %s has no store", ErrInvalidDefinition, def.Name)
	}

	w := &Wizard{
		def:       def,
		store:     store,
		evaluator: expr.New(),
		nav:       nopNavigator{},
		presenter: nopPresenter{},
		submitter: nopSubmitter{},
		observer:  nopObserver{},
		logger:    zap.NewNop(),
		record:    rec.Clone(),
		errors:    errsurface.New(),
		mirrors:   make([]bool, len(def.Bindings)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.logger = w.logger.With(zap.String("wizard", def.Name), zap.String("record_id", rec.ID.String()))

	w.autosave = autosave.New(def.delayFor(0), w.autosaveRecord,
		autosave.WithLogger(w.logger),
		autosave.WithBaseline(rec),
		autosave.WithObserver(func(o autosave.Outcome) {
			w.observer.Autosave(def.Name, string(o))
		}),
	)

	w.mu.Lock()
	w.applyBindingsLocked()
	snapshot := w.record.Clone()
	w.mu.Unlock()
	w.autosave.Touch(snapshot)

	return w, nil
}

// Definition returns the wizard's definition.
func (w *Wizard) Definition() Definition { return w.def }

// Cursor returns the index of the current page.
func (w *Wizard) Cursor() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// Current returns the current page.
func (w *Wizard) Current() Page {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.def.Pages[w.cursor]
}

// CurrentPath returns the route of the current page.
func (w *Wizard) CurrentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.def.PagePath(w.record, w.cursor)
}

// Record returns a copy of the draft.
func (w *Wizard) Record() draft.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.record.Clone()
}

// Errors returns the currently displayed errors.
func (w *Wizard) Errors() []errsurface.Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errors.Flatten()
}

// Closed reports whether the wizard has been unmounted.
func (w *Wizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Resume moves the cursor to the page named by slug. An unknown slug resets
// to the first page and corrects the route; it reports false in that case.
func (w *Wizard) Resume(slug string) (bool, error) {
	idx := w.def.Index(slug)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false, ErrClosed
	}
	w.errors = errsurface.New()
	found := idx >= 0
	if !found {
		idx = 0
	}
	w.cursor = idx
	path := w.def.PagePath(w.record, idx)
	w.mu.Unlock()

	w.autosave.SetDelay(w.def.delayFor(idx))
	if !found {
		w.logger.Info("unknown page slug, redirecting to first page", zap.String("slug", slug))
		w.nav.Replace(path)
	}
	return found, nil
}

// Disabled reports whether path is currently driven by an active binding.
func (w *Wizard) Disabled(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disabledLocked(path)
}

func (w *Wizard) disabledLocked(path string) bool {
	for i, mirror := range w.def.Bindings {
		if !w.mirrors[i] {
			continue
		}
		if _, ok := mirror.Copies[path]; ok {
			return true
		}
	}
	return false
}

// SetField writes one value into the draft, re-applies bindings and lets
// autosave know the draft changed.
func (w *Wizard) SetField(path string, value any) error {
	return w.SetValues(map[string]any{path: value})
}

// SetValues writes several values. Paths are applied in sorted order and the
// first failure stops the batch; earlier writes are kept.
func (w *Wizard) SetValues(values map[string]any) error {
	paths := make([]string, 0, len(values))
	for path := range values {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	var err error
	for _, path := range paths {
		if w.disabledLocked(path) {
			err = fmt.Errorf("%w: %s", ErrFieldDisabled, path)
			break
		}
		if setErr := w.record.Set(path, values[path]); setErr != nil {
			err = fmt.Errorf("wizard: set %s: %w", path, setErr)
			break
		}
		w.applyBindingsLocked()
	}
	snapshot := w.record.Clone()
	w.mu.Unlock()

	w.autosave.Touch(snapshot)
	return err
}

func (w *Wizard) applyBindingsLocked() {
	ctx := condition.Context{Values: w.record.Values}
	for i, mirror := range w.def.Bindings {
		on, err := w.evaluator.Eval(mirror.Flag, ctx)
		if err != nil {
			w.logger.Warn("binding flag failed to evaluate", zap.String("flag", mirror.Flag), zap.Error(err))
			continue
		}
		switch {
		case on:
			for target, source := range mirror.Copies {
				value, ok := w.record.Get(source)
				if !ok || value == nil {
					value = ""
				}
				if err := w.record.Set(target, value); err != nil {
					w.logger.Warn("binding copy failed", zap.String("target", target), zap.Error(err))
				}
			}
		case w.mirrors[i] && mirror.ClearOnDisable:
			for target := range mirror.Copies {
				if err := w.record.Set(target, ""); err != nil {
					w.logger.Warn("binding clear failed", zap.String("target", target), zap.Error(err))
				}
			}
		}
		w.mirrors[i] = on
	}
}

// GoNext validates the current page. When it is valid the draft is saved and
// the cursor advances (not past the last page); otherwise the errors are
// shown and the cursor stays. A failed save also keeps the cursor and is
// returned.
func (w *Wizard) GoNext(ctx context.Context) (Outcome, error) {
	if err := w.begin(); err != nil {
		return Outcome{}, err
	}
	defer w.end()

	w.mu.Lock()
	from := w.cursor
	page := w.def.Pages[from]
	values := w.record.Clone().Values
	w.mu.Unlock()

	out := Outcome{From: from, To: from}
	if page.Schema != nil {
		result, err := page.Schema.Validate(ctx, values)
		if err != nil {
			return out, err
		}
		if !result.Valid() {
			return w.reject(out, "next", result.Errors)
		}
	}

	if err := w.persist(ctx, nil); err != nil {
		return out, err
	}
	return w.move(out, "next", +1)
}

// GoBack clears displayed errors, saves the draft and moves one page back
// (not before the first page). Validation does not run.
func (w *Wizard) GoBack(ctx context.Context) (Outcome, error) {
	if err := w.begin(); err != nil {
		return Outcome{}, err
	}
	defer w.end()

	w.mu.Lock()
	from := w.cursor
	w.errors = errsurface.New()
	w.mu.Unlock()
	w.presenter.ClearErrors()

	out := Outcome{From: from, To: from}
	if err := w.persist(ctx, nil); err != nil {
		return out, err
	}
	return w.move(out, "back", -1)
}

// SaveAndExit saves the draft unconditionally and leaves the wizard.
func (w *Wizard) SaveAndExit(ctx context.Context) (Outcome, error) {
	if err := w.begin(); err != nil {
		return Outcome{}, err
	}
	defer w.end()

	from := w.Cursor()
	out := Outcome{From: from, To: from}
	if err := w.persist(ctx, nil); err != nil {
		return out, err
	}
	return w.exit(out, "save-exit")
}

// Submit validates every page, stores the record as submitted, hands it to
// the Submitter and leaves the wizard. A failed store write stops before the
// Submitter is called; a Submitter failure returns the record to draft. It
// is only available on the review page.
func (w *Wizard) Submit(ctx context.Context) (Outcome, error) {
	if err := w.begin(); err != nil {
		return Outcome{}, err
	}
	defer w.end()

	w.mu.Lock()
	from := w.cursor
	page := w.def.Pages[from]
	values := w.record.Clone().Values
	w.mu.Unlock()

	out := Outcome{From: from, To: from}
	if page.Kind() != KindReview {
		return out, ErrNotReview
	}

	all := errsurface.New()
	for _, p := range w.def.Pages {
		if p.Schema == nil {
			continue
		}
		result, err := p.Schema.Validate(ctx, values)
		if err != nil {
			return out, err
		}
		all.Merge(result.Errors)
	}
	if !all.Empty() {
		return w.reject(out, "submit", all)
	}

	if err := w.persist(ctx, func(rec *draft.Record) { rec.Status = draft.StatusSubmitted }); err != nil {
		return out, err
	}

	outgoing := w.Record()
	if err := w.submitter.Submit(ctx, outgoing); err != nil {
		if revertErr := w.persist(ctx, func(rec *draft.Record) { rec.Status = draft.StatusDraft }); revertErr != nil {
			w.logger.Error("could not return refused submission to draft",
				zap.NamedError("submit_error", err),
				zap.Error(revertErr),
			)
			return out, fmt.Errorf("wizard: submit %s: %w", outgoing.ID, errors.Join(err, revertErr))
		}
		var rejection *Rejection
		if errors.As(err, &rejection) {
			return w.reject(out, "submit", errsurface.FromPayload(rejection.Fields, w.def.KnownPaths()))
		}
		return out, fmt.Errorf("wizard: submit %s: %w", outgoing.ID, err)
	}
	return w.exit(out, "submit")
}

// Close unmounts the wizard: pending autosaves are dropped, an in-flight
// one is abandoned, and later results no longer touch wizard state.
func (w *Wizard) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	w.autosave.Stop()
}

func (w *Wizard) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	return nil
}

func (w *Wizard) end() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

func (w *Wizard) reject(out Outcome, action string, tree *errsurface.Tree) (Outcome, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return out, ErrClosed
	}
	w.errors = tree
	w.mu.Unlock()

	out.Errors = tree.Flatten()
	w.presenter.ShowErrors(out.Errors)
	w.presenter.ScrollToTop()
	w.observer.Transition(w.def.Name, action, ResultInvalid, out.From, out.From)
	w.logger.Debug("transition blocked by validation",
		zap.String("action", action),
		zap.String("page", w.def.Pages[out.From].Slug),
		zap.Int("errors", len(out.Errors)),
	)
	return out, nil
}

func (w *Wizard) move(out Outcome, action string, step int) (Outcome, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return out, ErrClosed
	}
	next := w.cursor + step
	if next >= 0 && next < len(w.def.Pages) {
		w.cursor = next
	}
	w.errors = errsurface.New()
	out.To = w.cursor
	out.Moved = out.To != out.From
	path := w.def.PagePath(w.record, w.cursor)
	w.mu.Unlock()

	w.presenter.ClearErrors()
	w.autosave.SetDelay(w.def.delayFor(out.To))
	if out.Moved {
		w.nav.Push(path)
	}
	w.presenter.ScrollToTop()
	result := ResultStayed
	if out.Moved {
		result = ResultMoved
	}
	w.observer.Transition(w.def.Name, action, result, out.From, out.To)
	return out, nil
}

func (w *Wizard) exit(out Outcome, action string) (Outcome, error) {
	w.mu.Lock()
	dest := w.def.ExitPath(w.record)
	w.mu.Unlock()

	out.Exit = dest
	w.observer.Transition(w.def.Name, action, ResultExited, out.From, out.To)
	w.nav.Push(dest)
	w.Close()
	return out, nil
}

// persist saves the current draft. mutate, when set, is applied to the saved
// snapshot and, once the save succeeded, to the live record.
func (w *Wizard) persist(ctx context.Context, mutate func(*draft.Record)) error {
	stored, err := w.save(ctx, mutate)
	if err != nil {
		w.logger.Warn("explicit save failed", zap.Error(err))
		return err
	}
	w.autosave.MarkSaved(stored)
	return nil
}

// autosaveRecord writes the live draft rather than the debounced snapshot,
// which an explicit save may have overtaken.
func (w *Wizard) autosaveRecord(ctx context.Context, _ draft.Record) (draft.Record, error) {
	return w.save(ctx, nil)
}

// save is the single write path to the store. The snapshot is taken under
// the save lock, so it always carries the revision of the previous write and
// the newest values.
func (w *Wizard) save(ctx context.Context, mutate func(*draft.Record)) (draft.Record, error) {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return draft.Record{}, ErrClosed
	}
	snapshot := w.record.Clone()
	w.mu.Unlock()

	if mutate != nil {
		mutate(&snapshot)
	}
	saved, err := w.store.Save(ctx, snapshot)
	if err != nil {
		if errors.Is(err, draft.ErrConflict) {
			return draft.Record{}, fmt.Errorf("wizard: draft %s changed elsewhere: %w", snapshot.ID, err)
		}
		return draft.Record{}, fmt.Errorf("wizard: save %s: %w", snapshot.ID, err)
	}

	w.mu.Lock()
	if !w.closed {
		if mutate != nil {
			mutate(&w.record)
		}
		w.record.Revision = saved.Revision
		w.record.UpdatedAt = saved.UpdatedAt
		w.record.CreatedAt = saved.CreatedAt
	}
	w.mu.Unlock()

	snapshot.Revision = saved.Revision
	snapshot.UpdatedAt = saved.UpdatedAt
	snapshot.CreatedAt = saved.CreatedAt
	return snapshot, nil
}
