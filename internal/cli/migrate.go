package cli

import (
	"strconv"

	"ms-admission/internal/database/migrations"

	"github.com/spf13/cobra"
)

func newMigrateCommand(app *App) *cobra.Command {
	var down bool
	var to string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Long:  "Apply pending migrations. --to moves to a specific version, --down rolls everything back.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bunDB, err := app.database(cmd.Context())
			if err != nil {
				return err
			}
			runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), app.Logger)

			switch {
			case down:
				err = runner.MigrateDown()
			case to != "":
				version, perr := strconv.ParseUint(to, 10, 32)
				if perr != nil {
					return perr
				}
				err = runner.MigrateTo(uint(version))
			default:
				err = runner.RunMigrations()
			}
			if err != nil {
				return err
			}

			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			line(cmd.OutOrStdout(), "schema version %d (dirty=%t)", version, dirty)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration")
	cmd.Flags().StringVar(&to, "to", "", "migrate to this version")
	return cmd
}
