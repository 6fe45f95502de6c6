package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-intake/internal/config"
	"github.com/goliatone/go-intake/internal/logging"
	"github.com/goliatone/go-intake/pkg/definition"
	"github.com/goliatone/go-intake/pkg/intake"
	"github.com/goliatone/go-intake/pkg/renderers/tui"
	"github.com/goliatone/go-intake/pkg/wizard"
)

// app carries what the subcommands share once flags are parsed.
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    config.Config
	logger *zap.Logger

	// prompts replaces the terminal in tests.
	prompts tui.PromptDriver
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&app{})
}

func buildRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "intake",
		Short: "Multi-step IT governance request wizards",
		Long: `intake serves the System Intake and Business Case wizards over HTTP,
fills them in from the terminal, and checks wizard definition files.

Settings come from intake.yaml and INTAKE_* environment variables; flags
override both.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is intake.yaml in . or /etc/intake)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: json or console")

	root.AddCommand(newServeCmd(a), newFillCmd(a), newLintCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: []string{"stderr"},
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// definitions compiles the configured definition directory, or the bundled
// wizards when none is set.
func (a *app) definitions() ([]wizard.Definition, error) {
	store, err := a.definitionStore(a.cfg.Definitions.Dir)
	if err != nil {
		return nil, err
	}
	return intake.CompileAll(store)
}

func (a *app) definitionStore(dir string) (*definition.Store, error) {
	if dir == "" {
		return intake.Definitions()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("definitions: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("definitions: %s is not a directory", dir)
	}
	return definition.LoadFS(os.DirFS(dir))
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
