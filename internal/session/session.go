// Package session keeps one mounted wizard per open draft so that HTTP
// requests for the same record share cursor, errors and autosave state.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-intake/pkg/errsurface"
	"github.com/goliatone/go-intake/pkg/wizard"
)

// Session is a wizard mounted for one record.
type Session struct {
	Kind   string
	User   string
	Wizard *wizard.Wizard

	view *view

	mu       sync.Mutex
	lastUsed time.Time
}

// ID returns the record id.
func (s *Session) ID() uuid.UUID {
	return s.Wizard.Record().ID
}

// Route returns the last route the wizard navigated to, or "" before the
// first navigation.
func (s *Session) Route() string {
	return s.view.route()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// view records the effects a wizard asks of its host. Over HTTP the effects
// are carried by the response instead of a live page.
type view struct {
	mu     sync.Mutex
	path   string
	errors []errsurface.Entry
}

func (v *view) Push(path string) {
	v.mu.Lock()
	v.path = path
	v.mu.Unlock()
}

func (v *view) Replace(path string) { v.Push(path) }

func (v *view) ScrollToTop() {}

func (v *view) ShowErrors(entries []errsurface.Entry) {
	v.mu.Lock()
	v.errors = entries
	v.mu.Unlock()
}

func (v *view) ClearErrors() {
	v.mu.Lock()
	v.errors = nil
	v.mu.Unlock()
}

func (v *view) route() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.path
}
