// Package cli implements admission-cli, the operator tool for schema
// migrations, reconciliation and catalog setup.
package cli

import (
	"context"
	"fmt"

	"ms-admission/internal/analytics"
	"ms-admission/internal/auth"
	"ms-admission/internal/config"
	"ms-admission/internal/database"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/payment/services"
	"ms-admission/internal/tickets/codegen"
	"ms-admission/internal/tickets/db"
	tickets "ms-admission/internal/tickets/service"
	"ms-admission/internal/utils"

	"github.com/uptrace/bun"
)

// App carries what the commands share. OpenDB and OpenProcessor are called
// lazily so commands that need neither run without credentials.
type App struct {
	Config *config.Config
	Logger *logger.Logger
	Clock  utils.Clock

	OpenDB        func(ctx context.Context) (*bun.DB, error)
	OpenProcessor func() (analytics.SessionLister, error)
	OpenRoleCache func(ctx context.Context) (auth.RoleCache, error)

	bunDB *bun.DB
}

// NewApp wires the production Postgres and Stripe openers.
func NewApp(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		Config: cfg,
		Logger: log,
		Clock:  utils.SystemClock(),
		OpenDB: func(ctx context.Context) (*bun.DB, error) {
			return database.Connect(ctx, cfg.Database, log)
		},
		OpenProcessor: func() (analytics.SessionLister, error) {
			return services.NewStripeService(cfg.Stripe.SecretKey, cfg.Stripe.ProcessorTimeout, log)
		},
		OpenRoleCache: func(ctx context.Context) (auth.RoleCache, error) {
			client, err := auth.InitializeRoleCache(ctx, cfg.Redis.Addr, log)
			if err != nil {
				return nil, err
			}
			return auth.NewRedisRoleCache(client, cfg.Redis.RoleCacheTTL), nil
		},
	}
}

func (a *App) database(ctx context.Context) (*bun.DB, error) {
	if a.bunDB != nil {
		return a.bunDB, nil
	}
	bunDB, err := a.OpenDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.bunDB = bunDB
	return bunDB, nil
}

func (a *App) store(ctx context.Context) (*db.DB, error) {
	bunDB, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	return db.New(bunDB, a.Config.Database.StoreTimeout), nil
}

func (a *App) ticketService(ctx context.Context) (*tickets.TicketService, *db.DB, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, nil, err
	}
	codes := codegen.New(a.Config.Tickets.CodeLength, a.Config.Tickets.CodeMaxAttempts)
	return tickets.NewTicketService(store, codes, nil, a.Clock, a.Logger), store, nil
}

func (a *App) reconciler(ctx context.Context) (*analytics.Reconciler, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	processor, err := a.OpenProcessor()
	if err != nil {
		return nil, fmt.Errorf("open payment processor: %w", err)
	}
	return analytics.NewReconciler(processor, store, a.Clock, a.Logger, a.Config.Reconciliation.Lookback), nil
}

// operator resolves the staff row the command acts as.
func (a *App) operator(ctx context.Context, store *db.DB, userID string) (*models.Staff, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: --as is required", models.ErrValidation)
	}
	return store.GetStaff(ctx, userID)
}

// Close releases the database if a command opened it.
func (a *App) Close() {
	if a.bunDB != nil {
		a.bunDB.Close()
		a.bunDB = nil
	}
}
