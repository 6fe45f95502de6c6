package main

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-intake/internal/session"
	"github.com/goliatone/go-intake/internal/store"
	"github.com/goliatone/go-intake/pkg/intake"
	"github.com/goliatone/go-intake/pkg/renderers/tui"
)

func newFillCmd(a *app) *cobra.Command {
	var (
		kind   string
		id     string
		page   string
		author string
	)
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill in a wizard from the terminal",
		Example: `  intake fill --kind system-intake
  intake fill --kind system-intake --id 6f1c1f7e-4f5c-4d53-9f0e-8a1d2b3c4d5e --page request-details`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			if author == "" {
				author = currentUser()
			}

			defs, err := a.definitions()
			if err != nil {
				return err
			}
			handle, err := store.Open(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer handle.Close()

			sessions, err := session.NewManager(handle, defs,
				session.WithLogger(a.logger),
				session.WithSeed(intake.NewDraft),
			)
			if err != nil {
				return err
			}
			defer sessions.Shutdown()

			var s *session.Session
			if id == "" {
				s, err = sessions.Create(ctx, kind, author)
			} else {
				recordID, parseErr := uuid.Parse(id)
				if parseErr != nil {
					return fmt.Errorf("invalid --id: %w", parseErr)
				}
				s, err = sessions.Open(ctx, kind, recordID, author)
			}
			if err != nil {
				return err
			}
			if page != "" {
				if found, err := s.Wizard.Resume(page); err != nil {
					return err
				} else if !found {
					fmt.Fprintf(cmd.OutOrStdout(), "No page %q; starting at %s\n", page, s.Wizard.Current().Title)
				}
			}

			opts := []tui.Option{tui.WithOutput(cmd.OutOrStdout()), tui.WithLogger(a.logger)}
			if a.prompts != nil {
				opts = append(opts, tui.WithPromptDriver(a.prompts))
			}
			out, err := tui.New(opts...).Run(ctx, s.Wizard)
			if err != nil {
				return err
			}
			a.logger.Info("wizard finished",
				zap.String("record_id", s.ID().String()),
				zap.String("exit", out.Exit),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Draft %s saved. Continue at %s\n", s.ID(), out.Exit)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", intake.SystemIntakeName, "wizard to fill")
	cmd.Flags().StringVar(&id, "id", "", "resume an existing draft")
	cmd.Flags().StringVar(&page, "page", "", "page slug to resume at")
	cmd.Flags().StringVar(&author, "user", "", "requester name (defaults to the OS user)")
	return cmd
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		if name := strings.TrimSpace(u.Name); name != "" {
			return name
		}
		return u.Username
	}
	return os.Getenv("USER")
}
