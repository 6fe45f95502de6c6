// Package review renders the read-only summary shown on a wizard's REVIEW
// page. Templates are pongo2 (Django syntax) and ship embedded; callers may
// layer their own template directory in front.
package review

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-intake/pkg/condition"
	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/wizard"
)

// DefaultTemplate renders when a review page names no template.
const DefaultTemplate = "summary.html"

//go:embed templates/*.html
var embedded embed.FS

// ErrNoReviewPage is returned when a definition has no REVIEW page.
var ErrNoReviewPage = errors.New("review: definition has no review page")

// Option configures a Renderer.
type Option func(*config)

type config struct {
	dir       string
	templates fs.FS
	evaluator condition.Evaluator
}

// WithBaseDir loads templates from dir before the embedded set.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.dir = strings.TrimSpace(dir)
	}
}

// WithFS loads templates from fsys before the embedded set.
func WithFS(fsys fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = fsys
	}
}

// WithEvaluator sets the evaluator for field visibility rules.
func WithEvaluator(evaluator condition.Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = evaluator
	}
}

// Renderer renders review summaries. It is safe for concurrent use.
type Renderer struct {
	set       *pongo2.TemplateSet
	evaluator condition.Evaluator

	mu        sync.RWMutex
	templates map[string]*pongo2.Template
}

// New builds a Renderer.
func New(opts ...Option) (*Renderer, error) {
	cfg := &config{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	var loaders []pongo2.TemplateLoader
	if cfg.dir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.dir)
		if err != nil {
			return nil, fmt.Errorf("review: template dir: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
	}
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	loaders = append(loaders, pongo2.NewFSLoader(sub))

	registerFilters()
	return &Renderer{
		set:       pongo2.NewSet("review", loaders...),
		evaluator: cfg.evaluator,
		templates: make(map[string]*pongo2.Template),
	}, nil
}

// Render writes the review page of def for rec. It returns the rendered
// markup as well when out is nil.
func (r *Renderer) Render(def wizard.Definition, rec draft.Record, out io.Writer) (string, error) {
	name := ""
	found := false
	for _, page := range def.Pages {
		if view, ok := page.View.(wizard.ReviewView); ok {
			name = view.Template
			found = true
		}
	}
	if !found {
		return "", ErrNoReviewPage
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultTemplate
	}

	tpl, err := r.template(name)
	if err != nil {
		return "", err
	}
	ctx := pongo2.Context{
		"summary":    Build(def, rec, r.evaluator),
		"values":     rec.Values,
		"submitted":  rec.Status == draft.StatusSubmitted,
		"definition": def.Name,
	}
	rendered, err := tpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("review: execute %s: %w", name, err)
	}
	if out != nil {
		if _, err := io.WriteString(out, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

func (r *Renderer) template(name string) (*pongo2.Template, error) {
	r.mu.RLock()
	tpl, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	var err error
	if isTemplateContent(name) {
		tpl, err = r.set.FromString(name)
	} else {
		tpl, err = r.set.FromFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("review: load template %q: %w", shorten(name), err)
	}

	r.mu.Lock()
	r.templates[name] = tpl
	r.mu.Unlock()
	return tpl, nil
}

func isTemplateContent(name string) bool {
	return strings.Contains(name, "{{") || strings.Contains(name, "{%")
}

func shorten(name string) string {
	if len(name) > 40 {
		return name[:40] + "..."
	}
	return name
}

var registerOnce sync.Once

func registerFilters() {
	registerOnce.Do(func() {
		if !pongo2.FilterExists("display") {
			_ = pongo2.RegisterFilter("display", filterDisplay)
		}
	})
}

func filterDisplay(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	text := Display(in.Interface())
	if text == "" {
		text = "Not provided"
	}
	return pongo2.AsValue(text), nil
}
