// Package autosave persists a draft in the background once edits settle.
package autosave

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-intake/pkg/draft"
)

// SaveFunc persists the draft. rec is the snapshot that triggered the save;
// the returned record is what was actually stored, which may be newer when
// the owner writes its live draft instead.
type SaveFunc func(ctx context.Context, rec draft.Record) (draft.Record, error)

// Outcome labels the result of a background save for observers.
type Outcome string

const (
	OutcomeSaved   Outcome = "saved"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Debouncer coalesces draft changes into one save per quiet period. Every
// Touch with changed values restarts the window; when it elapses the latest
// snapshot is saved. Failures are logged and otherwise ignored, since the
// explicit navigation saves are the authoritative ones.
type Debouncer struct {
	save     SaveFunc
	logger   *zap.Logger
	observe  func(Outcome)
	timeout  time.Duration
	baseCtx  context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu        sync.Mutex
	delay     time.Duration
	timer     *time.Timer
	gen       uint64
	latest    draft.Record
	hasLatest bool
	savedFP   string
	stopped   bool
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithLogger sets the logger used for swallowed save failures.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Debouncer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver registers a callback invoked after every timer fire.
func WithObserver(fn func(Outcome)) Option {
	return func(d *Debouncer) {
		d.observe = fn
	}
}

// WithSaveTimeout bounds each background save.
func WithSaveTimeout(timeout time.Duration) Option {
	return func(d *Debouncer) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithBaseline marks rec as already persisted so an unchanged first Touch
// does not schedule a save.
func WithBaseline(rec draft.Record) Option {
	return func(d *Debouncer) {
		d.savedFP = rec.Fingerprint()
	}
}

// New returns a Debouncer that waits delay after the last change before
// calling save.
func New(delay time.Duration, save SaveFunc, opts ...Option) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Debouncer{
		save:    save,
		logger:  zap.NewNop(),
		timeout: 30 * time.Second,
		baseCtx: ctx,
		cancel:  cancel,
		delay:   delay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// SetDelay changes the debounce window for subsequent touches. Pages use
// different windows.
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if delay > 0 {
		d.delay = delay
	}
}

// Delay returns the current debounce window.
func (d *Debouncer) Delay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}

// Touch records the latest draft snapshot. Records without an id, and
// snapshots equal to the last saved one, do not schedule a save.
func (d *Debouncer) Touch(rec draft.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || !rec.HasID() {
		return
	}

	d.latest = rec.Clone()
	d.hasLatest = true
	if d.latest.Fingerprint() == d.savedFP {
		d.cancelTimerLocked()
		return
	}

	d.cancelTimerLocked()
	d.gen++
	gen := d.gen
	d.inflight.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.inflight.Done()
		d.fire(gen)
	})
}

// MarkSaved tells the debouncer rec was persisted by someone else, such as
// an explicit Next or Back. A pending save of the same values is dropped.
func (d *Debouncer) MarkSaved(rec draft.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.savedFP = rec.Fingerprint()
	if d.hasLatest && d.latest.Fingerprint() == d.savedFP {
		d.cancelTimerLocked()
	}
}

// Pending reports whether a save is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Flush saves the latest snapshot now if it differs from the last saved one.
// Unlike background saves, the error is returned.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped || !d.hasLatest {
		d.mu.Unlock()
		return nil
	}
	d.cancelTimerLocked()
	rec := d.latest.Clone()
	fp := rec.Fingerprint()
	if fp == d.savedFP {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	stored, err := d.save(ctx, rec)
	if err != nil {
		return err
	}
	d.markStored(stored)
	return nil
}

// Stop cancels any scheduled save, aborts one in flight and waits for it to
// return. Touches after Stop are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.cancelTimerLocked()
	d.mu.Unlock()

	d.cancel()
	d.inflight.Wait()
}

// cancelTimerLocked stops the pending timer. When Stop wins the race the
// callback never runs, so its WaitGroup slot is released here.
func (d *Debouncer) cancelTimerLocked() {
	if d.timer == nil {
		return
	}
	if d.timer.Stop() {
		d.inflight.Done()
	}
	d.timer = nil
	d.gen++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	rec := d.latest.Clone()
	fp := rec.Fingerprint()
	if fp == d.savedFP {
		d.mu.Unlock()
		d.notify(OutcomeSkipped)
		return
	}
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(d.baseCtx, d.timeout)
	defer cancel()

	stored, err := d.save(ctx, rec)
	if err != nil {
		d.logger.Warn("autosave failed",
			zap.String("record_id", rec.ID.String()),
			zap.Error(err),
		)
		d.notify(OutcomeFailed)
		return
	}

	d.markStored(stored)
	d.logger.Debug("autosave stored draft", zap.String("record_id", rec.ID.String()))
	d.notify(OutcomeSaved)
}

// markStored records the fingerprint of what the store now holds. A newer
// snapshot touched meanwhile keeps its timer.
func (d *Debouncer) markStored(stored draft.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.savedFP = stored.Fingerprint()
	if d.hasLatest && d.latest.Fingerprint() == d.savedFP {
		d.cancelTimerLocked()
	}
}

func (d *Debouncer) notify(outcome Outcome) {
	if d.observe != nil {
		d.observe(outcome)
	}
}
