// Package dbtest opens throwaway sqlite databases with the admission schema.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"ms-admission/internal/database"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// New returns an isolated in-memory database. A single connection is kept
// open so concurrent callers serialize on it instead of seeing "database is
// locked".
func New(t testing.TB) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := database.CreateSchema(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("create schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
