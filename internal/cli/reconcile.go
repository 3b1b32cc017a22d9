package cli

import (
	"fmt"
	"io"
	"time"

	"ms-admission/internal/analytics"

	"github.com/spf13/cobra"
)

func newReconcileCommand(app *App, opts *RootOptions) *cobra.Command {
	var since string
	var strict bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report paid checkout sessions without a ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}

			start := rec.SinceDefault()
			if since != "" {
				if start, err = time.Parse(time.RFC3339, since); err != nil {
					return fmt.Errorf("--since must be RFC3339: %w", err)
				}
			}

			report, err := rec.Reconcile(cmd.Context(), start)
			if err != nil {
				return err
			}

			err = emit(cmd.OutOrStdout(), opts, report, func(w io.Writer) {
				line(w, "since %s: %d paid session(s), %d matched, %d missing",
					report.Since.Format(time.RFC3339), report.PaidSessions, report.MatchedSessions, len(report.Missing))
				line(w, "tickets: %d processor, %d manual", report.ProcessorTickets, report.ManualTickets)
				for _, m := range report.Missing {
					line(w, "MISSING %s %s %d %s %s", m.SessionID, m.Created.Format(time.RFC3339), m.AmountTotal, m.Currency, m.BuyerEmail)
				}
			})
			if err != nil {
				return err
			}
			if strict && !report.Clean() {
				return fmt.Errorf("%d paid session(s) without a ticket", len(report.Missing))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "RFC3339 start of the window (default: configured lookback)")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when sessions are missing")
	return cmd
}

func newRepairCountersCommand(app *App, opts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "repair-counters",
		Short: "Rewrite event attendance counters from USED tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.store(cmd.Context())
			if err != nil {
				return err
			}
			// Counter repair never talks to the processor.
			rec := analytics.NewReconciler(nil, store, app.Clock, app.Logger, 0)

			var drift []analytics.AttendanceDrift
			if dryRun {
				drift, err = rec.AttendanceDrift(cmd.Context())
			} else {
				drift, err = rec.RepairAttendance(cmd.Context())
			}
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts, drift, func(w io.Writer) {
				if len(drift) == 0 {
					line(w, "no drift")
					return
				}
				verb := "repaired"
				if dryRun {
					verb = "drifted"
				}
				for _, d := range drift {
					line(w, "%s %s: %d/%d -> %d/%d", verb, d.EventID, d.StoredTotal, d.StoredPrivileged, d.DerivedTotal, d.DerivedPrivileged)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report drift without writing")
	return cmd
}
