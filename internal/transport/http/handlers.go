package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-intake/internal/auth"
	"github.com/goliatone/go-intake/internal/session"
	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/errsurface"
	"github.com/goliatone/go-intake/pkg/review"
	"github.com/goliatone/go-intake/pkg/wizard"
)

const maxBodyBytes = 1 << 20

type pageInfo struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

type pageState struct {
	ID       string             `json:"id"`
	Kind     string             `json:"kind"`
	Status   string             `json:"status"`
	Revision int64              `json:"revision"`
	Path     string             `json:"path"`
	Page     pageInfo           `json:"page"`
	Fields   []wizard.Field     `json:"fields,omitempty"`
	Values   map[string]any     `json:"values"`
	Disabled []string           `json:"disabled,omitempty"`
	Errors   []errsurface.Entry `json:"errors,omitempty"`
}

type actionResponse struct {
	Outcome wizard.Outcome `json:"outcome"`
	State   *pageState     `json:"state,omitempty"`
}

type fieldsRequest struct {
	Values map[string]any `json:"values"`
}

type wizardHandler struct {
	kind        string
	sessions    *session.Manager
	review      *review.Renderer
	logger      *zap.Logger
	saveTimeout time.Duration
}

func (h *wizardHandler) routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.current)
	r.Patch("/{id}/fields", h.setFields)
	r.Post("/{id}/next", h.action("next", (*wizard.Wizard).GoNext))
	r.Post("/{id}/back", h.action("back", (*wizard.Wizard).GoBack))
	r.Post("/{id}/save-exit", h.action("save-exit", (*wizard.Wizard).SaveAndExit))
	r.Post("/{id}/submit", h.action("submit", (*wizard.Wizard).Submit))
	r.Delete("/{id}/session", h.unmount)
	r.Get("/{id}/{page}", h.page)
}

func (h *wizardHandler) create(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(r.Context(), h.kind, userName(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state := stateOf(s)
	w.Header().Set("Location", state.Path)
	writeJSON(w, http.StatusCreated, state)
}

func (h *wizardHandler) current(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, s.Wizard.CurrentPath(), http.StatusFound)
}

func (h *wizardHandler) page(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	found, err := s.Wizard.Resume(chi.URLParam(r, "page"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		http.Redirect(w, r, s.Wizard.CurrentPath(), http.StatusFound)
		return
	}

	if s.Wizard.Current().Kind() == wizard.KindReview && wantsHTML(r) && h.review != nil {
		markup, err := h.review.Render(s.Wizard.Definition(), s.Wizard.Record(), nil)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, markup)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(s))
}

func (h *wizardHandler) setFields(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	var req fieldsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Values) == 0 {
		http.Error(w, "no values given", http.StatusBadRequest)
		return
	}
	if err := s.Wizard.SetValues(req.Values); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(s))
}

func (h *wizardHandler) action(name string, run func(*wizard.Wizard, context.Context) (wizard.Outcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.open(w, r)
		if !ok {
			return
		}
		ctx := r.Context()
		if h.saveTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.saveTimeout)
			defer cancel()
		}

		out, err := run(s.Wizard, ctx)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		if out.Exit != "" {
			h.sessions.Close(s.ID())
			h.logger.Info("wizard exited",
				zap.String("action", name),
				zap.String("record_id", s.ID().String()),
				zap.String("exit", out.Exit),
			)
			w.Header().Set("Location", out.Exit)
			writeJSON(w, http.StatusOK, actionResponse{Outcome: out})
			return
		}

		state := stateOf(s)
		code := http.StatusOK
		if len(out.Errors) > 0 {
			code = http.StatusUnprocessableEntity
		}
		writeJSON(w, code, actionResponse{Outcome: out, State: &state})
	}
}

func (h *wizardHandler) unmount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid draft ID", http.StatusBadRequest)
		return
	}
	if !h.sessions.Close(id) {
		http.Error(w, "no open session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *wizardHandler) open(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid draft ID", http.StatusBadRequest)
		return nil, false
	}
	s, err := h.sessions.Open(r.Context(), h.kind, id, userName(r))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *wizardHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, draft.ErrNotFound), errors.Is(err, session.ErrUnknownKind):
		http.Error(w, "draft not found", http.StatusNotFound)
	case errors.Is(err, session.ErrSubmitted), errors.Is(err, wizard.ErrClosed):
		http.Error(w, "draft is no longer editable", http.StatusGone)
	case errors.Is(err, wizard.ErrBusy):
		w.Header().Set("Retry-After", "1")
		http.Error(w, "another action is in progress", http.StatusConflict)
	case errors.Is(err, draft.ErrConflict):
		http.Error(w, "draft changed elsewhere; reload", http.StatusConflict)
	case errors.Is(err, wizard.ErrFieldDisabled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, wizard.ErrNotReview):
		http.Error(w, "submit is only available on the review page", http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "timed out saving draft", http.StatusGatewayTimeout)
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func stateOf(s *session.Session) pageState {
	wz := s.Wizard
	def := wz.Definition()
	rec := wz.Record()
	cursor := wz.Cursor()
	page := def.Pages[cursor]

	state := pageState{
		ID:       rec.ID.String(),
		Kind:     s.Kind,
		Status:   string(rec.Status),
		Revision: rec.Revision,
		Path:     def.PagePath(rec, cursor),
		Page: pageInfo{
			Slug:  page.Slug,
			Title: page.Title,
			Kind:  string(page.Kind()),
			Index: cursor,
			Total: len(def.Pages),
		},
		Values: rec.Values,
		Errors: wz.Errors(),
	}
	if form, ok := page.View.(wizard.FormView); ok {
		state.Fields = form.Fields
	}
	for _, mirror := range def.Bindings {
		for target := range mirror.Copies {
			if wz.Disabled(target) {
				state.Disabled = append(state.Disabled, target)
			}
		}
	}
	sort.Strings(state.Disabled)
	return state
}

func userName(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return u.Name
	}
	return ""
}

func wantsHTML(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "html") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
