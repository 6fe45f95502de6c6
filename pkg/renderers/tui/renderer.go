// Package tui drives a wizard from the terminal. Each FORM page prompts for
// its visible fields and then asks for the next action; the REVIEW page prints
// a text summary and offers Submit.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-intake/pkg/condition"
	"github.com/goliatone/go-intake/pkg/condition/expr"
	"github.com/goliatone/go-intake/pkg/errsurface"
	"github.com/goliatone/go-intake/pkg/review"
	"github.com/goliatone/go-intake/pkg/wizard"
)

// Action labels offered after each page.
const (
	ActionNext        = "Next"
	ActionBack        = "Back"
	ActionSaveAndExit = "Save & Exit"
	ActionSubmit      = "Submit"
)

// Runner prompts through a wizard until it exits.
type Runner struct {
	driver    PromptDriver
	out       io.Writer
	theme     Theme
	evaluator condition.Evaluator
	logger    *zap.Logger
}

// New constructs a Runner with defaults (survey driver on stdout).
func New(options ...Option) *Runner {
	r := &Runner{
		out:       os.Stdout,
		evaluator: expr.New(),
		logger:    zap.NewNop(),
		theme:     Theme{ErrorPrefix: "! "},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		r.driver = newSurveyDriver(r.out)
	}
	return r
}

// Run prompts page by page until the wizard exits through Save & Exit or
// Submit, and returns that final outcome. Errors from the wizard's store are
// printed and the page is offered again.
func (r *Runner) Run(ctx context.Context, w *wizard.Wizard) (wizard.Outcome, error) {
	def := w.Definition()
	for {
		if err := ctx.Err(); err != nil {
			return wizard.Outcome{}, err
		}

		cursor := w.Cursor()
		page := w.Current()
		r.info(ctx, fmt.Sprintf("%sStep %d of %d: %s", r.theme.InfoPrefix, cursor+1, len(def.Pages), page.Title))

		var actions []string
		switch page.Kind() {
		case wizard.KindReview:
			r.printSummary(ctx, review.Build(def, w.Record(), r.evaluator))
			actions = append(actions, ActionSubmit)
		default:
			if err := r.promptFields(ctx, w, page.Fields(), ""); err != nil {
				return wizard.Outcome{}, err
			}
			actions = append(actions, ActionNext)
		}
		if cursor > 0 {
			actions = append(actions, ActionBack)
		}
		actions = append(actions, ActionSaveAndExit)

		action, err := r.choose(ctx, "What next?", actions, 0)
		if err != nil {
			return wizard.Outcome{}, err
		}

		var out wizard.Outcome
		switch action {
		case ActionNext:
			out, err = w.GoNext(ctx)
		case ActionBack:
			out, err = w.GoBack(ctx)
		case ActionSubmit:
			out, err = w.Submit(ctx)
		case ActionSaveAndExit:
			out, err = w.SaveAndExit(ctx)
		}
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			r.logger.Warn("wizard action failed", zap.String("action", action), zap.Error(err))
			r.info(ctx, fmt.Sprintf("%sCould not %s: %v", r.theme.ErrorPrefix, strings.ToLower(action), err))
			continue
		}
		if len(out.Errors) > 0 {
			r.printErrors(ctx, out.Errors)
			continue
		}
		if out.Exit != "" {
			return out, nil
		}
	}
}

func (r *Runner) promptFields(ctx context.Context, w *wizard.Wizard, fields []wizard.Field, prefix string) error {
	for _, field := range fields {
		path := joinPath(prefix, field.Path)
		visible, err := r.visible(w, field, prefix)
		if err != nil {
			return err
		}
		if !visible {
			continue
		}
		if w.Disabled(path) {
			r.info(ctx, fmt.Sprintf("%s%s: %s", r.theme.InfoPrefix, field.Label, w.Record().String(path)))
			continue
		}
		if err := r.promptField(ctx, w, field, path); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) promptField(ctx context.Context, w *wizard.Wizard, field wizard.Field, path string) error {
	current, _ := w.Record().Get(path)

	switch field.Type {
	case wizard.FieldList:
		return r.promptList(ctx, w, field, path, current)

	case wizard.FieldCheckbox:
		on, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: field.Label,
			Default: truthy(current),
			Help:    field.Help,
		})
		if err != nil {
			return err
		}
		return w.SetField(path, on)

	case wizard.FieldSelect, wizard.FieldRadio:
		if len(field.Options) == 0 {
			break
		}
		choice, err := r.choose(ctx, field.Label, field.Options, indexOf(field.Options, stringValue(current)))
		if err != nil {
			return err
		}
		return w.SetField(path, choice)

	case wizard.FieldTextArea:
		text, err := r.driver.TextArea(ctx, TextAreaConfig{
			Message: field.Label,
			Default: stringValue(current),
			Help:    field.Help,
		})
		if err != nil {
			return err
		}
		return w.SetField(path, text)
	}

	text, err := r.driver.Input(ctx, InputConfig{
		Message: field.Label,
		Default: stringValue(current),
		Help:    field.Help,
	})
	if err != nil {
		return err
	}
	return w.SetField(path, strings.TrimSpace(text))
}

func (r *Runner) promptList(ctx context.Context, w *wizard.Wizard, field wizard.Field, path string, current any) error {
	rows, _ := current.([]any)
	for idx := range rows {
		r.info(ctx, fmt.Sprintf("%s%s #%d", r.theme.InfoPrefix, field.Label, idx+1))
		if err := r.promptFields(ctx, w, field.Items, path+"."+strconv.Itoa(idx)); err != nil {
			return err
		}
	}
	for idx := len(rows); ; idx++ {
		add, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Add %s?", strings.ToLower(field.Label)),
		})
		if err != nil {
			return err
		}
		if !add {
			return nil
		}
		if err := r.promptFields(ctx, w, field.Items, path+"."+strconv.Itoa(idx)); err != nil {
			return err
		}
	}
}

func (r *Runner) visible(w *wizard.Wizard, field wizard.Field, prefix string) (bool, error) {
	if strings.TrimSpace(field.When) == "" {
		return true, nil
	}
	rec := w.Record()
	ctx := condition.Context{Values: rec.Values}
	if prefix != "" {
		scope, _ := rec.Get(prefix)
		item, _ := scope.(map[string]any)
		ctx = condition.Context{Values: item, Extras: map[string]any{"root": rec.Values}}
	}
	ok, err := r.evaluator.Eval(field.When, ctx)
	if err != nil {
		return false, fmt.Errorf("tui: field %s: %w", field.Path, err)
	}
	return ok, nil
}

func (r *Runner) choose(ctx context.Context, message string, options []string, defaultIdx int) (string, error) {
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      message,
		Options:      options,
		DefaultIndex: defaultIdx,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(options) {
		return "", ErrNoChoice
	}
	return options[idx], nil
}

func (r *Runner) printErrors(ctx context.Context, entries []errsurface.Entry) {
	r.info(ctx, fmt.Sprintf("%sThere is a problem", r.theme.ErrorPrefix))
	for _, entry := range entries {
		if entry.Path == "" {
			r.info(ctx, fmt.Sprintf("%s%s", r.theme.ErrorPrefix, entry.Message))
			continue
		}
		r.info(ctx, fmt.Sprintf("%s%s: %s", r.theme.ErrorPrefix, entry.Path, entry.Message))
	}
}

func (r *Runner) printSummary(ctx context.Context, summary review.Summary) {
	for _, section := range summary.Sections {
		r.info(ctx, fmt.Sprintf("== %s ==", section.Title))
		r.printRows(ctx, section.Rows, "  ")
	}
}

func (r *Runner) printRows(ctx context.Context, rows []review.Row, indent string) {
	for _, row := range rows {
		if len(row.Items) > 0 {
			r.info(ctx, indent+row.Label+":")
			for _, item := range row.Items {
				r.printRows(ctx, item, indent+"  ")
			}
			continue
		}
		value := review.Display(row.Value)
		if value == "" {
			value = "Not provided"
		}
		r.info(ctx, fmt.Sprintf("%s%s: %s", indent, row.Label, value))
	}
}

func (r *Runner) info(ctx context.Context, msg string) {
	if err := r.driver.Info(ctx, msg); err != nil {
		r.logger.Debug("tui: info write failed", zap.Error(err))
	}
}

func joinPath(prefix, path string) string {
	if prefix == "" {
		return path
	}
	return prefix + "." + path
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

func truthy(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		on, _ := strconv.ParseBool(strings.TrimSpace(typed))
		return on
	}
	return false
}
