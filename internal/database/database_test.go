package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ms-admission/internal/database"
	"ms-admission/internal/database/dbtest"
	"ms-admission/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func insertTicket(ctx context.Context, db *bun.DB, code, session string) (*models.Ticket, error) {
	t := &models.Ticket{
		ID:               uuid.NewString(),
		Code:             code,
		EventID:          "evt",
		TicketTypeID:     "tt",
		BuyerName:        "Ada",
		BuyerEmail:       "ada@example.com",
		PaymentSessionID: session,
		Status:           models.TicketStatusValid,
		CreatedAt:        time.Now().UTC(),
	}
	_, err := db.NewInsert().Model(t).Exec(ctx)
	return t, err
}

func TestIsUniqueViolationPostgres(t *testing.T) {
	err := fmt.Errorf("insert ticket: %w", &pq.Error{Code: "23505", Constraint: database.ConstraintTicketCode})

	assert.True(t, database.IsUniqueViolation(err, database.ConstraintTicketCode))
	assert.False(t, database.IsUniqueViolation(err, database.ConstraintTicketSession))
	assert.False(t, database.IsUniqueViolation(&pq.Error{Code: "23503", Constraint: database.ConstraintTicketCode}, database.ConstraintTicketCode))
	assert.False(t, database.IsUniqueViolation(nil, database.ConstraintTicketCode))
	assert.False(t, database.IsUniqueViolation(errors.New("boom"), database.ConstraintTicketCode))
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	_, err := insertTicket(ctx, db, "AAAA2222", "cs_1")
	require.NoError(t, err)

	_, err = insertTicket(ctx, db, "AAAA2222", "cs_2")
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err, database.ConstraintTicketCode))
	assert.False(t, database.IsUniqueViolation(err, database.ConstraintTicketSession))

	_, err = insertTicket(ctx, db, "BBBB3333", "cs_1")
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err, database.ConstraintTicketSession))
	assert.False(t, database.IsUniqueViolation(err, database.ConstraintTicketCode))
}

func TestSessionIndexIgnoresCancelledTickets(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	first, err := insertTicket(ctx, db, "CCCC4444", "cs_9")
	require.NoError(t, err)

	_, err = db.NewUpdate().Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusCancelled).
		Where("id = ?", first.ID).
		Exec(ctx)
	require.NoError(t, err)

	_, err = insertTicket(ctx, db, "DDDD5555", "cs_9")
	assert.NoError(t, err)
}

func TestInsertOrFetch(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	fetch := func(ctx context.Context) (*models.Ticket, error) {
		var existing models.Ticket
		err := db.NewSelect().Model(&existing).Where("t.payment_session_id = ?", "cs_dup").Scan(ctx)
		return &existing, err
	}

	row, created, err := database.InsertOrFetch(ctx, database.ConstraintTicketSession,
		func(ctx context.Context) (*models.Ticket, error) { return insertTicket(ctx, db, "EEEE6666", "cs_dup") },
		fetch)
	require.NoError(t, err)
	assert.True(t, created)
	winner := row.ID

	row, created, err = database.InsertOrFetch(ctx, database.ConstraintTicketSession,
		func(ctx context.Context) (*models.Ticket, error) { return insertTicket(ctx, db, "FFFF7777", "cs_dup") },
		fetch)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner, row.ID)

	count, err := db.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInsertOrFetchPassesOtherErrors(t *testing.T) {
	boom := errors.New("disk full")
	_, created, err := database.InsertOrFetch(context.Background(), database.ConstraintTicketSession,
		func(context.Context) (int, error) { return 0, boom },
		func(context.Context) (int, error) { t.Fatal("fetch must not run"); return 0, nil })

	assert.ErrorIs(t, err, boom)
	assert.False(t, created)
}
