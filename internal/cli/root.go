package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
	// As is the staff subject for commands that need a role.
	As string
}

var validFormats = []string{"text", "json"}

func NewRootCommand(app *App) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "admission-cli",
		Short: "Operate the admission service",
		Long:  "Schema migrations, reconciliation, comp tickets and catalog setup for the admission service.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "staff subject to act as")

	cmd.AddCommand(newMigrateCommand(app))
	cmd.AddCommand(newReconcileCommand(app, opts))
	cmd.AddCommand(newRepairCountersCommand(app, opts))
	cmd.AddCommand(newIssueCompCommand(app, opts))
	cmd.AddCommand(newCancelCommand(app, opts))
	cmd.AddCommand(newExportCommand(app, opts))
	cmd.AddCommand(newEventCommand(app, opts))
	cmd.AddCommand(newTicketTypeCommand(app, opts))
	cmd.AddCommand(newStaffCommand(app))

	return cmd
}
