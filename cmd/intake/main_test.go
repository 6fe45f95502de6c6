package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-intake/pkg/renderers/tui"
)

// autoPrompts accepts every default and picks Save & Exit from the action
// menu.
type autoPrompts struct {
	menus int
}

func (p *autoPrompts) Input(_ context.Context, cfg tui.InputConfig) (string, error) {
	return cfg.Default, nil
}

func (p *autoPrompts) Confirm(_ context.Context, cfg tui.ConfirmConfig) (bool, error) {
	return cfg.Default, nil
}

func (p *autoPrompts) Select(_ context.Context, cfg tui.SelectConfig) (int, error) {
	for i, option := range cfg.Options {
		if option == tui.ActionSaveAndExit {
			p.menus++
			return i, nil
		}
	}
	if cfg.DefaultIndex > 0 {
		return cfg.DefaultIndex, nil
	}
	return 0, nil
}

func (p *autoPrompts) TextArea(_ context.Context, cfg tui.TextAreaConfig) (string, error) {
	return cfg.Default, nil
}

func (p *autoPrompts) Info(context.Context, string) error { return nil }

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	root := buildRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestLintBundledDefinitions(t *testing.T) {
	out, err := run(t, &app{}, "lint")
	if err != nil {
		t.Fatalf("lint: %v\n%s", err, out)
	}
	for _, want := range []string{"ok   business-case (4 pages)", "ok   system-intake (4 pages)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestLintPrintsOpenAPI(t *testing.T) {
	out, err := run(t, &app{}, "lint", "--openapi")
	if err != nil {
		t.Fatalf("lint: %v\n%s", err, out)
	}
	for _, want := range []string{`"openapi": "3.0.3"`, `"/system/{id}/next"`, `"BusinessCaseValues"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestLintReportsBrokenDefinitions(t *testing.T) {
	dir := t.TempDir()
	broken := `name: broken
pages:
  - slug: review
    kind: review
  - slug: details
    fields:
      - path: name
`
	good := `{"name": "tiny", "pages": [{"slug": "only", "fields": [{"path": "name", "label": "Name"}]}]}`
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(broken), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tiny.json"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, &app{}, "lint", dir)
	if err == nil {
		t.Fatalf("expected lint to fail:\n%s", out)
	}
	if !strings.Contains(out, "FAIL broken") || !strings.Contains(out, "ok   tiny (1 pages)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestFillSaveAndExit(t *testing.T) {
	prompts := &autoPrompts{}
	out, err := run(t, &app{prompts: prompts}, "fill", "--kind", "system-intake", "--user", "Jane Doe")
	if err != nil {
		t.Fatalf("fill: %v\n%s", err, out)
	}
	if prompts.menus != 1 {
		t.Fatalf("action menu shown %d times", prompts.menus)
	}
	if !strings.Contains(out, "Continue at /governance-task-list/") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestFillRejectsBadID(t *testing.T) {
	_, err := run(t, &app{prompts: &autoPrompts{}}, "fill", "--id", "nope")
	if err == nil || !strings.Contains(err.Error(), "invalid --id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}
