// Package validation evaluates the declarative per-page rule sets of a wizard
// against draft values. Rules are keyed by field path; cross-field behaviour
// (required unless a flag is set, rules that only apply in some states) is
// expressed with condition rules rather than code.
package validation

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-intake/pkg/condition"
	"github.com/goliatone/go-intake/pkg/condition/expr"
	"github.com/goliatone/go-intake/pkg/errsurface"
)

// Format names a built-in value format check.
type Format string

const (
	FormatEmail  Format = "email"
	FormatDate   Format = "date"
	FormatPhone  Format = "phone"
	FormatUUID   Format = "uuid"
	FormatNumber Format = "number"
)

// Rule declares the constraints of one field path. Zero values disable a
// constraint. Each applies its rules to every element of the list at Path,
// with element paths such as `teams.0.collaborator`.
type Rule struct {
	Path           string   `json:"path" yaml:"path"`
	Label          string   `json:"label,omitempty" yaml:"label,omitempty"`
	Required       bool     `json:"required,omitempty" yaml:"required,omitempty"`
	RequiredUnless string   `json:"requiredUnless,omitempty" yaml:"requiredUnless,omitempty"`
	RequiredWhen   string   `json:"requiredWhen,omitempty" yaml:"requiredWhen,omitempty"`
	When           string   `json:"when,omitempty" yaml:"when,omitempty"`
	Format         Format   `json:"format,omitempty" yaml:"format,omitempty"`
	Pattern        string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MinLength      int      `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength      int      `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	MinItems       int      `json:"minItems,omitempty" yaml:"minItems,omitempty"`
	OneOf          []string `json:"oneOf,omitempty" yaml:"oneOf,omitempty"`
	Each           []Rule   `json:"each,omitempty" yaml:"each,omitempty"`
	Message        string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// RemoteCheck performs a check that needs I/O, such as asking a service
// whether a contract number exists. It returns messages keyed by field path.
type RemoteCheck func(ctx context.Context, values map[string]any) (map[string]string, error)

// Result is the outcome of a validation pass. A nil or empty Errors tree
// means the values are valid.
type Result struct {
	Errors *errsurface.Tree
}

// Valid reports whether no errors were produced.
func (r Result) Valid() bool {
	return r.Errors.Empty()
}

// Schema is an immutable compiled rule set.
type Schema struct {
	rules     []Rule
	remote    []RemoteCheck
	evaluator condition.Evaluator
	patterns  map[string]*regexp.Regexp
}

// Option configures a Schema.
type Option func(*Schema)

// WithEvaluator overrides the condition evaluator (defaults to expr.New()).
func WithEvaluator(evaluator condition.Evaluator) Option {
	return func(s *Schema) {
		if evaluator != nil {
			s.evaluator = evaluator
		}
	}
}

// WithRemoteChecks appends remote checks run concurrently after the local
// rules.
func WithRemoteChecks(checks ...RemoteCheck) Option {
	return func(s *Schema) {
		for _, check := range checks {
			if check != nil {
				s.remote = append(s.remote, check)
			}
		}
	}
}

type syntaxChecker interface {
	Check(rule string) error
}

// NewSchema compiles rules. Patterns and condition rules are checked up front
// so a broken definition fails at load time rather than mid-session.
func NewSchema(rules []Rule, opts ...Option) (*Schema, error) {
	s := &Schema{
		rules:     append([]Rule(nil), rules...),
		evaluator: expr.New(),
		patterns:  make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := s.compile(s.rules, ""); err != nil {
		return nil, err
	}
	return s, nil
}

// MustSchema is NewSchema for statically known rule sets.
func MustSchema(rules []Rule, opts ...Option) *Schema {
	s, err := NewSchema(rules, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) compile(rules []Rule, prefix string) error {
	checker, _ := s.evaluator.(syntaxChecker)
	for _, rule := range rules {
		path := strings.TrimSpace(rule.Path)
		if path == "" {
			return fmt.Errorf("validation: rule under %q has an empty path", prefix)
		}
		full := joinPath(prefix, path)
		if checker != nil {
			for _, cond := range []string{rule.RequiredUnless, rule.RequiredWhen, rule.When} {
				if err := checker.Check(cond); err != nil {
					return fmt.Errorf("validation: rule %q: %w", full, err)
				}
			}
		}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return fmt.Errorf("validation: rule %q: invalid pattern: %w", full, err)
			}
			s.patterns[rule.Pattern] = re
		}
		switch rule.Format {
		case "", FormatEmail, FormatDate, FormatPhone, FormatUUID, FormatNumber:
		default:
			return fmt.Errorf("validation: rule %q: unknown format %q", full, rule.Format)
		}
		if len(rule.Each) > 0 {
			if err := s.compile(rule.Each, full+".*"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rules returns a copy of the schema's top-level rules.
func (s *Schema) Rules() []Rule {
	if s == nil {
		return nil
	}
	return append([]Rule(nil), s.rules...)
}

// Paths lists every field path the schema knows about. List element paths
// use `*` for the index, matching errsurface.FromPayload patterns.
func (s *Schema) Paths() []string {
	if s == nil {
		return nil
	}
	var out []string
	var walk func(rules []Rule, prefix string)
	walk = func(rules []Rule, prefix string) {
		for _, rule := range rules {
			full := joinPath(prefix, strings.TrimSpace(rule.Path))
			out = append(out, full)
			if len(rule.Each) > 0 {
				walk(rule.Each, full+".*")
			}
		}
	}
	walk(s.rules, "")
	return out
}

// Validate runs local rules then remote checks. Values are only read. The
// returned error reports a failure to validate (a remote check failing or
// ctx ending), never invalid input.
func (s *Schema) Validate(ctx context.Context, values map[string]any) (Result, error) {
	tree := errsurface.New()
	if s == nil {
		return Result{Errors: tree}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	root := condition.Context{Values: values}
	if err := s.apply(tree, s.rules, "", values, root); err != nil {
		return Result{}, err
	}

	if len(s.remote) > 0 {
		outcomes := make([]map[string]string, len(s.remote))
		group, groupCtx := errgroup.WithContext(ctx)
		for i, check := range s.remote {
			group.Go(func() error {
				found, err := check(groupCtx, values)
				if err != nil {
					return fmt.Errorf("validation: remote check: %w", err)
				}
				outcomes[i] = found
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return Result{}, err
		}
		for _, found := range outcomes {
			tree.Merge(errsurface.FromNested(found))
		}
	}

	return Result{Errors: tree}, nil
}

func (s *Schema) apply(tree *errsurface.Tree, rules []Rule, prefix string, scope map[string]any, root condition.Context) error {
	ctx := condition.Context{Values: scope, Extras: map[string]any{"root": root.Values}}
	if prefix == "" {
		ctx = root
	}

	for _, rule := range rules {
		path := joinPath(prefix, rule.Path)

		if rule.When != "" {
			ok, err := s.evaluator.Eval(rule.When, ctx)
			if err != nil {
				return fmt.Errorf("validation: rule %q: %w", path, err)
			}
			if !ok {
				continue
			}
		}

		value, _ := expr.Lookup(scope, rule.Path)

		required, err := s.isRequired(rule, ctx)
		if err != nil {
			return fmt.Errorf("validation: rule %q: %w", path, err)
		}
		if isBlank(value) {
			switch {
			case required:
				tree.Add(path, message(rule, "%s is required"))
			case rule.MinItems > 0 && isList(value) && rule.RequiredWhen == "" && rule.RequiredUnless == "":
				tree.Add(path, s.checkValue(rule, value))
			}
			continue
		}

		if msg := s.checkValue(rule, value); msg != "" {
			tree.Add(path, msg)
			continue
		}

		if len(rule.Each) > 0 {
			items, _ := value.([]any)
			for idx, item := range items {
				itemScope, _ := item.(map[string]any)
				if itemScope == nil {
					itemScope = map[string]any{}
				}
				if err := s.apply(tree, rule.Each, joinPath(path, strconv.Itoa(idx)), itemScope, root); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Schema) isRequired(rule Rule, ctx condition.Context) (bool, error) {
	required := rule.Required
	if rule.RequiredWhen != "" {
		ok, err := s.evaluator.Eval(rule.RequiredWhen, ctx)
		if err != nil {
			return false, err
		}
		required = ok
	}
	if rule.RequiredUnless != "" {
		ok, err := s.evaluator.Eval(rule.RequiredUnless, ctx)
		if err != nil {
			return false, err
		}
		if rule.RequiredWhen == "" && !rule.Required {
			required = true
		}
		if ok {
			required = false
		}
	}
	return required, nil
}

func (s *Schema) checkValue(rule Rule, value any) string {
	if items, ok := value.([]any); ok {
		if rule.MinItems > 0 && len(items) < rule.MinItems {
			return message(rule, fmt.Sprintf("%%s needs at least %d entries", rule.MinItems))
		}
		return ""
	}

	text := toString(value)
	if rule.MinLength > 0 && len([]rune(text)) < rule.MinLength {
		return message(rule, fmt.Sprintf("%%s must be at least %d characters", rule.MinLength))
	}
	if rule.MaxLength > 0 && len([]rune(text)) > rule.MaxLength {
		return message(rule, fmt.Sprintf("%%s must be at most %d characters", rule.MaxLength))
	}
	if len(rule.OneOf) > 0 && !contains(rule.OneOf, text) {
		return message(rule, "%s has an unsupported value")
	}
	if rule.Format != "" && !validFormat(rule.Format, text) {
		return message(rule, "%s is not a valid "+string(rule.Format))
	}
	if rule.Pattern != "" {
		if re := s.patterns[rule.Pattern]; re != nil && !re.MatchString(text) {
			return message(rule, "%s has an invalid format")
		}
	}
	return ""
}

// isList reports whether value is a list, empty or not. Missing values are
// not lists.
func isList(value any) bool {
	_, ok := value.([]any)
	return ok
}

var phoneDigits = regexp.MustCompile(`^\+?[0-9 ().-]{7,20}$`)

func validFormat(format Format, text string) bool {
	switch format {
	case FormatEmail:
		addr, err := mail.ParseAddress(text)
		return err == nil && addr.Address == text
	case FormatDate:
		for _, layout := range []string{"2006-01-02", "01/02/2006", time.RFC3339} {
			if _, err := time.Parse(layout, text); err == nil {
				return true
			}
		}
		return false
	case FormatPhone:
		return phoneDigits.MatchString(text)
	case FormatUUID:
		_, err := uuid.Parse(text)
		return err == nil
	case FormatNumber:
		_, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
		return err == nil
	}
	return true
}

func message(rule Rule, format string) string {
	if rule.Message != "" {
		return rule.Message
	}
	label := rule.Label
	if label == "" {
		label = rule.Path
	}
	return fmt.Sprintf(format, label)
}

func isBlank(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	return false
}

func toString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func contains(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}

func joinPath(parent, child string) string {
	parent = strings.TrimSpace(parent)
	child = strings.TrimSpace(child)
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
