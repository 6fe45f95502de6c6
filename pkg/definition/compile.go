package definition

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-intake/pkg/condition"
	"github.com/goliatone/go-intake/pkg/condition/expr"
	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/validation"
	"github.com/goliatone/go-intake/pkg/wizard"
)

// Option adjusts compilation.
type Option func(*compiler)

type compiler struct {
	evaluator condition.Evaluator
	remote    map[string][]validation.RemoteCheck
	exit      func(draft.Record) string
}

// WithEvaluator sets the condition evaluator used by page schemas.
func WithEvaluator(evaluator condition.Evaluator) Option {
	return func(c *compiler) {
		if evaluator != nil {
			c.evaluator = evaluator
		}
	}
}

// WithRemoteChecks attaches remote checks to the page with slug.
func WithRemoteChecks(slug string, checks ...validation.RemoteCheck) Option {
	return func(c *compiler) {
		c.remote[slug] = append(c.remote[slug], checks...)
	}
}

// WithExit sets the exit destination resolver.
func WithExit(exit func(draft.Record) string) Option {
	return func(c *compiler) {
		c.exit = exit
	}
}

type syntaxChecker interface {
	Check(rule string) error
}

// Compile turns a parsed file into a wizard definition. Rule patterns,
// condition rules and the page structure are all checked here.
func Compile(file File, opts ...Option) (wizard.Definition, error) {
	c := &compiler{
		evaluator: expr.New(),
		remote:    make(map[string][]validation.RemoteCheck),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	def := wizard.Definition{
		Name:          file.Name,
		BasePath:      file.BasePath,
		AutosaveDelay: file.AutosaveDelay.Std(),
		Exit:          c.exit,
		Pages:         make([]wizard.Page, 0, len(file.Pages)),
	}

	for _, binding := range file.Bindings {
		copies := make(map[string]string, len(binding.Copies))
		for target, source := range binding.Copies {
			copies[strings.TrimSpace(target)] = strings.TrimSpace(source)
		}
		if err := c.checkCondition(binding.Flag); err != nil {
			return wizard.Definition{}, fmt.Errorf("definition: %s binding %q: %w", file.Name, binding.Flag, err)
		}
		def.Bindings = append(def.Bindings, wizard.Mirror{
			Flag:           strings.TrimSpace(binding.Flag),
			Copies:         copies,
			ClearOnDisable: binding.ClearOnDisable,
		})
	}

	for i, raw := range file.Pages {
		page, err := c.page(raw)
		if err != nil {
			return wizard.Definition{}, fmt.Errorf("definition: %s page %d (%s): %w", file.Name, i, raw.Slug, err)
		}
		def.Pages = append(def.Pages, page)
	}

	for slug := range c.remote {
		if def.Index(slug) < 0 {
			return wizard.Definition{}, fmt.Errorf("definition: %s has remote checks for unknown page %q", file.Name, slug)
		}
	}

	if err := def.Check(); err != nil {
		return wizard.Definition{}, err
	}
	return def, nil
}

func (c *compiler) page(raw PageFile) (wizard.Page, error) {
	page := wizard.Page{
		Slug:          strings.TrimSpace(raw.Slug),
		Title:         raw.Title,
		AutosaveDelay: raw.AutosaveDelay.Std(),
	}

	switch strings.ToLower(strings.TrimSpace(raw.Kind)) {
	case "", "form":
		if err := c.checkFields(raw.Fields); err != nil {
			return wizard.Page{}, err
		}
		page.View = wizard.FormView{Fields: raw.Fields}
	case "review":
		if len(raw.Fields) > 0 {
			return wizard.Page{}, fmt.Errorf("review pages cannot declare fields")
		}
		page.View = wizard.ReviewView{Template: raw.Template}
	default:
		return wizard.Page{}, fmt.Errorf("unknown kind %q", raw.Kind)
	}

	remote := c.remote[page.Slug]
	if len(raw.Rules) > 0 || len(remote) > 0 {
		schema, err := validation.NewSchema(raw.Rules,
			validation.WithEvaluator(c.evaluator),
			validation.WithRemoteChecks(remote...),
		)
		if err != nil {
			return wizard.Page{}, err
		}
		page.Schema = schema
	}
	return page, nil
}

func (c *compiler) checkFields(fields []wizard.Field) error {
	for _, field := range fields {
		if strings.TrimSpace(field.Path) == "" {
			return fmt.Errorf("field %q has no path", field.Label)
		}
		if err := c.checkCondition(field.When); err != nil {
			return fmt.Errorf("field %s: %w", field.Path, err)
		}
		if field.Type == wizard.FieldList {
			if err := c.checkFields(field.Items); err != nil {
				return fmt.Errorf("field %s: %w", field.Path, err)
			}
		}
	}
	return nil
}

func (c *compiler) checkCondition(rule string) error {
	if strings.TrimSpace(rule) == "" {
		return nil
	}
	if checker, ok := c.evaluator.(syntaxChecker); ok {
		return checker.Check(rule)
	}
	return nil
}
