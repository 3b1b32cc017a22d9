package migrations

import (
	"embed"
	"errors"
	"fmt"

	"ms-admission/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/uptrace/bun"
)

//go:embed sql/*.sql
var files embed.FS

// MigrateOptions defines configuration options for migration
type MigrateOptions struct {
	// AutoMigrate determines whether the server applies pending migrations on startup
	AutoMigrate bool
	// MigrationsTable overrides golang-migrate's bookkeeping table
	MigrationsTable string
}

// DefaultOptions returns the default migration options
func DefaultOptions() MigrateOptions {
	return MigrateOptions{
		AutoMigrate:     true,
		MigrationsTable: "admission_schema_migrations",
	}
}

// Runner handles database migrations. It shares bun's pool and has no Close:
// closing the golang-migrate postgres driver would close that pool too.
type Runner struct {
	bunDB    *bun.DB
	options  MigrateOptions
	log      *logger.Logger
	migrator *migrate.Migrate
}

// NewRunner creates a new migration runner
func NewRunner(bunDB *bun.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	return &Runner{
		bunDB:   bunDB,
		options: opts,
		log:     log,
	}
}

// Initialize prepares the migration system
func (r *Runner) Initialize() error {
	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{
		MigrationsTable: r.options.MigrationsTable,
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	source, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.migrator = migrator
	return nil
}

func (r *Runner) ensure() error {
	if r.migrator != nil {
		return nil
	}
	return r.Initialize()
}

// RunMigrations applies pending migrations, clearing a dirty flag left by an
// interrupted run first.
func (r *Runner) RunMigrations() error {
	if err := r.ensure(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		r.log.Warn("MIGRATE", fmt.Sprintf("Detected dirty migration at version %d, forcing before retry", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, err = r.migrator.Version()
	if err == nil {
		r.log.Info("MIGRATE", fmt.Sprintf("Current schema version: %d", version))
	} else if !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	return nil
}

// MigrateDown rolls back all migrations
func (r *Runner) MigrateDown() error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateTo migrates up or down to a specific version
func (r *Runner) MigrateTo(version uint) error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// Version reports the applied version; zero when nothing has run.
func (r *Runner) Version() (uint, bool, error) {
	if err := r.ensure(); err != nil {
		return 0, false, err
	}
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
