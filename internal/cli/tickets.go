package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"ms-admission/internal/models"
	tickets "ms-admission/internal/tickets/service"
	"ms-admission/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
)

func newIssueCompCommand(app *App, opts *RootOptions) *cobra.Command {
	var req tickets.CompRequest

	cmd := &cobra.Command{
		Use:   "issue-comp",
		Short: "Issue a complimentary ticket outside checkout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validator.New().Struct(req); err != nil {
				return fmt.Errorf("%w: %s", models.ErrValidation, utils.DescribeValidation(err))
			}

			ctx := cmd.Context()
			svc, store, err := app.ticketService(ctx)
			if err != nil {
				return err
			}
			staff, err := app.operator(ctx, store, opts.As)
			if err != nil {
				return err
			}

			ticket, created, err := svc.IssueComp(ctx, staff, req)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts, ticket, func(w io.Writer) {
				verb := "issued"
				if !created {
					verb = "already issued"
				}
				line(w, "%s %s for %s <%s>", verb, ticket.Code, ticket.BuyerName, ticket.BuyerEmail)
			})
		},
	}

	cmd.Flags().StringVar(&req.TicketTypeID, "ticket-type", "", "ticket type id")
	cmd.Flags().StringVar(&req.BuyerName, "name", "", "holder name")
	cmd.Flags().StringVar(&req.BuyerEmail, "email", "", "holder email")
	cmd.Flags().StringVar(&req.Note, "note", "", "reason for the comp")
	cmd.Flags().StringVar(&req.IdempotencyKey, "key", "", "idempotency key; reusing it returns the earlier ticket")
	return cmd
}

func newCancelCommand(app *App, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <code>",
		Short: "Cancel a VALID ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, store, err := app.ticketService(ctx)
			if err != nil {
				return err
			}
			staff, err := app.operator(ctx, store, opts.As)
			if err != nil {
				return err
			}

			ticket, err := svc.Cancel(ctx, staff, args[0])
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts, ticket, func(w io.Writer) {
				line(w, "%s is %s", ticket.Code, ticket.Status)
			})
		},
	}
}

func newExportCommand(app *App, opts *RootOptions) *cobra.Command {
	var eventID, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ticket CSV export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, store, err := app.ticketService(ctx)
			if err != nil {
				return err
			}
			staff, err := app.operator(ctx, store, opts.As)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			buf := bufio.NewWriter(w)
			n, err := svc.ExportCSV(ctx, staff, eventID, buf)
			if err != nil {
				return err
			}
			if err := buf.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d ticket(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventID, "event", "", "limit to one event")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "file to write, - for stdout")
	return cmd
}
