package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-intake/pkg/openapi"
	"github.com/goliatone/go-intake/pkg/wizard"
)

func newLintCmd(a *app) *cobra.Command {
	var printDoc bool
	cmd := &cobra.Command{
		Use:   "lint [dir]",
		Short: "Check wizard definition files",
		Long: `lint loads every .yaml, .yml and .json definition in dir (or the
configured definitions directory, or the bundled wizards) and compiles each
one, reporting structural problems such as duplicate slugs, malformed
conditions or a review page that is not last.

With --openapi the HTTP description of the wizards is printed once every
definition compiles.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Definitions.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			files, err := a.definitionStore(dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			var defs []wizard.Definition
			for _, name := range files.Names() {
				def, err := files.Compile(name)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s (%d pages)\n", name, len(def.Pages))
				defs = append(defs, def)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d definitions failed", failed, len(files.Names()))
			}
			if !printDoc {
				return nil
			}

			doc, err := openapi.Build(contextOf(cmd), defs, openapi.Info{Title: "Intake API", Version: version})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	cmd.Flags().BoolVar(&printDoc, "openapi", false, "print the OpenAPI document of the definitions")
	return cmd
}
