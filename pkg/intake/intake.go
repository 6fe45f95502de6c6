// Package intake ships the IT-governance wizards: the System Intake request
// and the Business Case. Both are YAML definitions embedded in the binary and
// compiled on demand.
package intake

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/goliatone/go-intake/pkg/definition"
	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/wizard"
)

const (
	SystemIntakeName = "system-intake"
	BusinessCaseName = "business-case"
)

//go:embed definitions/*.yaml
var embedded embed.FS

// DefinitionsFS returns the bundled definition files.
func DefinitionsFS() fs.FS {
	sub, err := fs.Sub(embedded, "definitions")
	if err != nil {
		panic(err)
	}
	return sub
}

// Definitions loads the bundled definition files.
func Definitions() (*definition.Store, error) {
	return definition.LoadFS(DefinitionsFS())
}

// SystemIntake compiles the System Intake wizard.
func SystemIntake(opts ...definition.Option) (wizard.Definition, error) {
	return Definition(SystemIntakeName, opts...)
}

// BusinessCase compiles the Business Case wizard.
func BusinessCase(opts ...definition.Option) (wizard.Definition, error) {
	return Definition(BusinessCaseName, opts...)
}

// Definition compiles a bundled wizard by name with its exit destinations
// wired in. Options are applied after the defaults.
func Definition(name string, opts ...definition.Option) (wizard.Definition, error) {
	store, err := Definitions()
	if err != nil {
		return wizard.Definition{}, err
	}
	exit, ok := exits[name]
	if !ok {
		return wizard.Definition{}, fmt.Errorf("%w: %q", definition.ErrUnknown, name)
	}
	return store.Compile(name, append([]definition.Option{definition.WithExit(exit)}, opts...)...)
}

// CompileAll compiles every definition in store. The bundled wizards get
// their exit destinations; other definitions leave to "/".
func CompileAll(store *definition.Store, opts ...definition.Option) ([]wizard.Definition, error) {
	if store == nil || store.Empty() {
		return nil, fmt.Errorf("%w: no definitions", definition.ErrUnknown)
	}
	names := store.Names()
	out := make([]wizard.Definition, 0, len(names))
	for _, name := range names {
		compileOpts := opts
		if exit, ok := exits[name]; ok {
			compileOpts = append([]definition.Option{definition.WithExit(exit)}, opts...)
		}
		def, err := store.Compile(name, compileOpts...)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

var exits = map[string]func(draft.Record) string{
	SystemIntakeName: SystemIntakeExit,
	BusinessCaseName: BusinessCaseExit,
}

// SystemIntakeExit sends submitted requests to their confirmation page and
// saved drafts back to the governance task list.
func SystemIntakeExit(rec draft.Record) string {
	if rec.Status == draft.StatusSubmitted {
		return "/system/" + rec.ID.String() + "/confirmation"
	}
	return "/governance-task-list/" + rec.ID.String()
}

// BusinessCaseExit returns to the task list of the intake the business case
// belongs to.
func BusinessCaseExit(rec draft.Record) string {
	owner := strings.TrimSpace(rec.String("systemIntakeId"))
	if owner == "" {
		owner = rec.ID.String()
	}
	if rec.Status == draft.StatusSubmitted {
		return "/business/" + rec.ID.String() + "/confirmation"
	}
	return "/governance-task-list/" + owner
}

// NewDraft starts a record of the given wizard kind. The requester defaults
// to the current user when one is known.
func NewDraft(kind, user string) draft.Record {
	values := map[string]any{}
	if user = strings.TrimSpace(user); user != "" {
		values["requester"] = map[string]any{"name": user}
	}
	return draft.NewRecord(kind, values)
}
