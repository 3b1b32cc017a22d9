package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-admission/internal/config"
	"ms-admission/internal/logger"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// Unique indexes the store relies on for correctness.
const (
	ConstraintTicketCode    = "ux_tickets_code"
	ConstraintTicketSession = "ux_tickets_payment_session_live"
)

// uniqueViolationCode is the Postgres SQLSTATE for unique_violation.
const uniqueViolationCode = "23505"

// sqliteColumns maps index names to the column list sqlite reports in its
// "UNIQUE constraint failed" message, since sqlite never names the index.
var sqliteColumns = map[string]string{
	ConstraintTicketCode:    "tickets.code",
	ConstraintTicketSession: "tickets.payment_session_id",
}

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Connect opens the Postgres pool and pings it, retrying while the database
// comes up.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var sqldb *sql.DB
	var err error

	for i := 0; i < connectAttempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, connectAttempts))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
			err = sqldb.PingContext(pingCtx)
			cancel()
			if err == nil {
				break
			}
			sqldb.Close()
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < connectAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectBackoff):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres after %d attempts: %w", connectAttempts, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// IsUniqueViolation reports whether err is a unique violation of the named
// index. Both the Postgres driver and sqlite are recognised.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode && pqErr.Constraint == constraint
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	column, ok := sqliteColumns[constraint]
	return ok && strings.Contains(msg, column)
}

// InsertOrFetch runs insert and, when it loses on the given unique index,
// returns the row that won instead. created is false in that case.
func InsertOrFetch[T any](
	ctx context.Context,
	constraint string,
	insert func(context.Context) (T, error),
	fetch func(context.Context) (T, error),
) (row T, created bool, err error) {
	row, err = insert(ctx)
	if err == nil {
		return row, true, nil
	}
	if !IsUniqueViolation(err, constraint) {
		return row, false, err
	}

	row, err = fetch(ctx)
	if err != nil {
		return row, false, fmt.Errorf("fetch after %s conflict: %w", constraint, err)
	}
	return row, false, nil
}
