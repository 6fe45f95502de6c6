package wizard

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-intake/pkg/draft"
)

// Mirror copies source fields into target fields while Flag holds, and keeps
// the targets read-only for that time. The same-as-requester checkbox of the
// contact page is a Mirror.
type Mirror struct {
	// Flag is a condition rule, usually a bare boolean path.
	Flag string
	// Copies maps target path to source path.
	Copies map[string]string
	// ClearOnDisable blanks the targets when the flag turns off.
	ClearOnDisable bool
}

// Definition is the static description of a wizard.
type Definition struct {
	Name          string
	BasePath      string
	Pages         []Page
	Bindings      []Mirror
	AutosaveDelay time.Duration
	// Exit picks where Save & Exit and Submit leave to. It may depend on the
	// record's status.
	Exit func(rec draft.Record) string
}

// DefaultAutosaveDelay applies when neither the page nor the definition sets
// one.
const DefaultAutosaveDelay = 3 * time.Second

// Check reports structural problems: no pages, blank or duplicate slugs, or a
// review page anywhere but last.
func (d Definition) Check() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if len(d.Pages) == 0 {
		return fmt.Errorf("%w: %s has no pages", ErrInvalidDefinition, d.Name)
	}
	seen := make(map[string]struct{}, len(d.Pages))
	for i, page := range d.Pages {
		slug := strings.TrimSpace(page.Slug)
		if slug == "" {
			return fmt.Errorf("%w: %s page %d has no slug", ErrInvalidDefinition, d.Name, i)
		}
		if _, dup := seen[slug]; dup {
			return fmt.Errorf("%w: %s repeats slug %q", ErrInvalidDefinition, d.Name, slug)
		}
		seen[slug] = struct{}{}
		if page.Kind() == KindReview && i != len(d.Pages)-1 {
			return fmt.Errorf("%w: %s review page %q must be last", ErrInvalidDefinition, d.Name, slug)
		}
	}
	for _, mirror := range d.Bindings {
		if strings.TrimSpace(mirror.Flag) == "" || len(mirror.Copies) == 0 {
			return fmt.Errorf("%w: %s has an incomplete binding", ErrInvalidDefinition, d.Name)
		}
	}
	return nil
}

// Index returns the position of the page with slug, or -1.
func (d Definition) Index(slug string) int {
	slug = strings.TrimSpace(slug)
	for i, page := range d.Pages {
		if page.Slug == slug {
			return i
		}
	}
	return -1
}

// PagePath builds the route of a page for a record.
func (d Definition) PagePath(rec draft.Record, index int) string {
	if index < 0 || index >= len(d.Pages) {
		index = 0
	}
	base := strings.TrimRight(d.BasePath, "/")
	return fmt.Sprintf("%s/%s/%s", base, rec.ID, d.Pages[index].Slug)
}

// ExitPath resolves the exit destination for rec.
func (d Definition) ExitPath(rec draft.Record) string {
	if d.Exit != nil {
		if dest := d.Exit(rec); dest != "" {
			return dest
		}
	}
	return "/"
}

func (d Definition) delayFor(index int) time.Duration {
	if index >= 0 && index < len(d.Pages) && d.Pages[index].AutosaveDelay > 0 {
		return d.Pages[index].AutosaveDelay
	}
	if d.AutosaveDelay > 0 {
		return d.AutosaveDelay
	}
	return DefaultAutosaveDelay
}

// KnownPaths lists every field and rule path of the definition, with `*`
// standing for list indices.
func (d Definition) KnownPaths() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	var walk func(fields []Field, prefix string)
	walk = func(fields []Field, prefix string) {
		for _, f := range fields {
			full := f.Path
			if prefix != "" {
				full = prefix + "." + f.Path
			}
			add(full)
			if len(f.Items) > 0 {
				walk(f.Items, full+".*")
			}
		}
	}
	for _, page := range d.Pages {
		if form, ok := page.View.(FormView); ok {
			walk(form.Fields, "")
		}
		for _, path := range page.Schema.Paths() {
			add(path)
		}
	}
	return out
}
