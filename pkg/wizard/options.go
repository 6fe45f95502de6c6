package wizard

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-intake/pkg/condition"
	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/errsurface"
)

// Navigator changes the route the wizard is mounted at.
type Navigator interface {
	// Push moves to a new route, e.g. the next page or the exit destination.
	Push(path string)
	// Replace corrects the current route without adding history.
	Replace(path string)
}

// Presenter receives view effects.
type Presenter interface {
	ScrollToTop()
	ShowErrors(entries []errsurface.Entry)
	ClearErrors()
}

// Submitter hands a completed record to the governance workflow.
type Submitter interface {
	Submit(ctx context.Context, rec draft.Record) error
}

// SubmitterFunc adapts a function into a Submitter.
type SubmitterFunc func(ctx context.Context, rec draft.Record) error

// Submit calls fn.
func (fn SubmitterFunc) Submit(ctx context.Context, rec draft.Record) error {
	return fn(ctx, rec)
}

// Transition results reported to an Observer.
const (
	ResultMoved   = "moved"
	ResultStayed  = "stayed"
	ResultInvalid = "invalid"
	ResultExited  = "exited"
)

// Observer receives wizard events, typically for metrics.
type Observer interface {
	Transition(wizard, action, result string, from, to int)
	Autosave(wizard, outcome string)
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithNavigator sets the router seam.
func WithNavigator(nav Navigator) Option {
	return func(w *Wizard) {
		if nav != nil {
			w.nav = nav
		}
	}
}

// WithPresenter sets the view seam.
func WithPresenter(p Presenter) Option {
	return func(w *Wizard) {
		if p != nil {
			w.presenter = p
		}
	}
}

// WithSubmitter sets the receiver of submitted records.
func WithSubmitter(s Submitter) Option {
	return func(w *Wizard) {
		if s != nil {
			w.submitter = s
		}
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(w *Wizard) {
		if o != nil {
			w.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Wizard) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithEvaluator overrides the condition evaluator used by bindings.
func WithEvaluator(e condition.Evaluator) Option {
	return func(w *Wizard) {
		if e != nil {
			w.evaluator = e
		}
	}
}

type nopNavigator struct{}

func (nopNavigator) Push(string)    {}
func (nopNavigator) Replace(string) {}

type nopPresenter struct{}

func (nopPresenter) ScrollToTop()                  {}
func (nopPresenter) ShowErrors([]errsurface.Entry) {}
func (nopPresenter) ClearErrors()                  {}

type nopSubmitter struct{}

func (nopSubmitter) Submit(context.Context, draft.Record) error { return nil }

type nopObserver struct{}

func (nopObserver) Transition(string, string, string, int, int) {}
func (nopObserver) Autosave(string, string)                     {}
