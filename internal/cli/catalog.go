package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"ms-admission/internal/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newEventCommand(app *App, opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "event", Short: "Manage events"}

	var name, startsAt string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("%w: --name is required", models.ErrValidation)
			}
			event := &models.Event{ID: uuid.NewString(), Name: strings.TrimSpace(name)}
			if startsAt != "" {
				at, err := time.Parse(time.RFC3339, startsAt)
				if err != nil {
					return fmt.Errorf("--starts-at must be RFC3339: %w", err)
				}
				at = at.UTC()
				event.StartsAt = &at
			}

			store, err := app.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.CreateEvent(cmd.Context(), event); err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts, event, func(w io.Writer) {
				line(w, "created event %s (%s)", event.ID, event.Name)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "event name")
	create.Flags().StringVar(&startsAt, "starts-at", "", "RFC3339 start time")

	cmd.AddCommand(create)
	return cmd
}

type ticketTypeFlags struct {
	eventID, name, description, currency, code, priceRef string
	salesStart, salesEnd                                 string
	price                                                int64
	capacity                                             int
	hidden, privileged                                   bool
}

func (f *ticketTypeFlags) build(privilegedSet bool) (*models.TicketType, error) {
	var problems []string
	if f.eventID == "" {
		problems = append(problems, "--event is required")
	}
	if strings.TrimSpace(f.name) == "" {
		problems = append(problems, "--name is required")
	}
	if strings.TrimSpace(f.code) == "" {
		problems = append(problems, "--code is required")
	}
	if f.capacity < 1 {
		problems = append(problems, "--capacity must be positive")
	}
	if f.price < 0 {
		problems = append(problems, "--price must not be negative")
	}
	if len(f.currency) != 3 {
		problems = append(problems, "--currency must be a three-letter ISO code")
	}

	tt := &models.TicketType{
		ID:          uuid.NewString(),
		EventID:     f.eventID,
		Name:        strings.TrimSpace(f.name),
		Description: f.description,
		PriceMinor:  f.price,
		Currency:    strings.ToLower(f.currency),
		Capacity:    f.capacity,
		PriceRef:    f.priceRef,
		Code:        strings.ToUpper(strings.TrimSpace(f.code)),
		Visible:     !f.hidden,
		Privileged:  f.privileged,
	}
	if !privilegedSet {
		tt.Privileged = models.LegacyPrivilegedCode(tt.Code)
	}

	for _, w := range []struct {
		raw  string
		flag string
		dst  **time.Time
	}{{f.salesStart, "--sales-start", &tt.SalesStart}, {f.salesEnd, "--sales-end", &tt.SalesEnd}} {
		if w.raw == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339, w.raw)
		if err != nil {
			problems = append(problems, w.flag+" must be RFC3339")
			continue
		}
		at = at.UTC()
		*w.dst = &at
	}
	if tt.SalesStart != nil && tt.SalesEnd != nil && !tt.SalesEnd.After(*tt.SalesStart) {
		problems = append(problems, "--sales-end must be after --sales-start")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(problems, "; "))
	}
	return tt, nil
}

func newTicketTypeCommand(app *App, opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "ticket-type", Short: "Manage ticket types"}

	f := &ticketTypeFlags{}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket type",
		Long:  "Create a ticket type. Without --privileged the flag is derived from the code.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tt, err := f.build(cmd.Flags().Changed("privileged"))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := app.store(ctx)
			if err != nil {
				return err
			}
			if _, err := store.GetEvent(ctx, tt.EventID); err != nil {
				return err
			}
			if err := store.CreateTicketType(ctx, tt); err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts, tt, func(w io.Writer) {
				line(w, "created ticket type %s (%s, capacity %d, privileged=%t)", tt.ID, tt.Code, tt.Capacity, tt.Privileged)
			})
		},
	}
	create.Flags().StringVar(&f.eventID, "event", "", "event id")
	create.Flags().StringVar(&f.name, "name", "", "display name")
	create.Flags().StringVar(&f.description, "description", "", "description")
	create.Flags().Int64Var(&f.price, "price", 0, "price in minor units")
	create.Flags().StringVar(&f.currency, "currency", "eur", "ISO currency")
	create.Flags().IntVar(&f.capacity, "capacity", 0, "maximum live tickets")
	create.Flags().StringVar(&f.code, "code", "", "short machine code")
	create.Flags().StringVar(&f.priceRef, "price-ref", "", "Stripe price id")
	create.Flags().StringVar(&f.salesStart, "sales-start", "", "RFC3339 sales start")
	create.Flags().StringVar(&f.salesEnd, "sales-end", "", "RFC3339 sales end")
	create.Flags().BoolVar(&f.hidden, "hidden", false, "hide from checkout")
	create.Flags().BoolVar(&f.privileged, "privileged", false, "count check-ins in the privileged tier")

	cmd.AddCommand(create)
	return cmd
}

func newStaffCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "staff", Short: "Manage staff roles"}

	var role, name, email string
	grant := &cobra.Command{
		Use:   "grant <subject>",
		Short: "Grant or change a staff role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := models.Role(role)
			if r != models.RoleAdmin && r != models.RoleCrew {
				return fmt.Errorf("%w: --role must be admin or crew", models.ErrValidation)
			}

			ctx := cmd.Context()
			store, err := app.store(ctx)
			if err != nil {
				return err
			}
			staff := &models.Staff{UserID: args[0], Role: r, DisplayName: name, Email: email}
			if err := store.UpsertStaff(ctx, staff); err != nil {
				return err
			}
			line(cmd.OutOrStdout(), "%s is now %s", staff.Label(), staff.Role)

			// A stale cached role would outlive the grant until its TTL.
			if app.OpenRoleCache == nil {
				return nil
			}
			cache, err := app.OpenRoleCache(ctx)
			if err != nil {
				app.Logger.Warn("CLI", fmt.Sprintf("Role cache not invalidated: %v", err))
				return nil
			}
			if err := cache.Invalidate(ctx, staff.UserID); err != nil {
				app.Logger.Warn("CLI", fmt.Sprintf("Role cache not invalidated: %v", err))
			}
			return nil
		},
	}
	grant.Flags().StringVar(&role, "role", string(models.RoleCrew), "admin or crew")
	grant.Flags().StringVar(&name, "name", "", "display name")
	grant.Flags().StringVar(&email, "email", "", "email")

	cmd.AddCommand(grant)
	return cmd
}
