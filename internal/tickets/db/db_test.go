package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"ms-admission/internal/database/dbtest"
	"ms-admission/internal/models"
	"ms-admission/internal/tickets/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*db.DB, *models.TicketType) {
	bunDB := dbtest.New(t)
	event := dbtest.Event(t, bunDB, "Summer Sessions")
	tt := dbtest.TicketType(t, bunDB, event, nil)
	return db.New(bunDB, 5*time.Second), tt
}

func TestGetTicketByCodeLoadsRelations(t *testing.T) {
	store, tt := setupTestDB(t)
	ticket := dbtest.Ticket(t, store.Bun, tt, nil)

	got, err := store.GetTicketByCode(context.Background(), ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
	require.NotNil(t, got.TicketType)
	assert.Equal(t, "General Admission", got.TicketType.Name)
	require.NotNil(t, got.Event)
	assert.Equal(t, "Summer Sessions", got.Event.Name)

	_, err = store.GetTicketByCode(context.Background(), "NOPE2345")
	assert.ErrorIs(t, err, models.ErrTicketNotFound)
}

func TestRedeemTicketOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store, tt := setupTestDB(t)
	ticket := dbtest.Ticket(t, store.Bun, tt, nil)
	at := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)

	ok, err := store.RedeemTicket(ctx, ticket.ID, at, "staff-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.RedeemTicket(ctx, ticket.ID, at.Add(time.Second), "staff-2")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetTicketByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusUsed, got.Status)
	require.NotNil(t, got.CheckedInBy)
	assert.Equal(t, "staff-1", *got.CheckedInBy)
	require.NotNil(t, got.CheckedInAt)
	assert.True(t, at.Equal(*got.CheckedInAt))
}

func TestRedeemTicketRefusesRefunded(t *testing.T) {
	ctx := context.Background()
	store, tt := setupTestDB(t)
	refunded := time.Now().UTC()
	ticket := dbtest.Ticket(t, store.Bun, tt, func(tk *models.Ticket) { tk.RefundedAt = &refunded })

	ok, err := store.RedeemTicket(ctx, ticket.ID, time.Now().UTC(), "staff-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedeemTicketConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	store, tt := setupTestDB(t)
	ticket := dbtest.Ticket(t, store.Bun, tt, nil)

	const scanners = 8
	var wg sync.WaitGroup
	wins := make(chan bool, scanners)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.RedeemTicket(ctx, ticket.ID, time.Now().UTC(), "staff")
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestCountLiveTicketsSkipsCancelled(t *testing.T) {
	ctx := context.Background()
	store, tt := setupTestDB(t)
	dbtest.Ticket(t, store.Bun, tt, nil)
	dbtest.Ticket(t, store.Bun, tt, func(tk *models.Ticket) { tk.Status = models.TicketStatusCancelled })
	used := dbtest.Ticket(t, store.Bun, tt, nil)
	_, err := store.RedeemTicket(ctx, used.ID, time.Now().UTC(), "staff")
	require.NoError(t, err)

	n, err := store.CountLiveTickets(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGetTicketBySessionPrefersLive(t *testing.T) {
	ctx := context.Background()
	store, tt := setupTestDB(t)
	dbtest.Ticket(t, store.Bun, tt, func(tk *models.Ticket) {
		tk.PaymentSessionID = "cs_same"
		tk.Status = models.TicketStatusCancelled
	})
	live := dbtest.Ticket(t, store.Bun, tt, func(tk *models.Ticket) { tk.PaymentSessionID = "cs_same" })

	got, err := store.GetTicketBySession(ctx, "cs_same")
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)

	exists, err := store.SessionHasTicket(ctx, "cs_same")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.SessionHasTicket(ctx, "cs_other")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStampAdjustment(t *testing.T) {
	ctx := context.Background()
	store, tt := setupTestDB(t)
	valid := dbtest.Ticket(t, store.Bun, tt, func(tk *models.Ticket) { tk.PaymentIntentID = "pi_shared" })
	used := dbtest.Ticket(t, store.Bun, tt, func(tk *models.Ticket) { tk.PaymentIntentID = "pi_shared" })
	other := dbtest.Ticket(t, store.Bun, tt, nil)
	_, err := store.RedeemTicket(ctx, used.ID, time.Now().UTC(), "staff")
	require.NoError(t, err)

	first := time.Date(2026, 6, 2, 10, 0, 0, 0, time.UTC)
	cancelled, err := store.StampAdjustment(ctx, "pi_shared", db.AdjustmentRefund, first)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, valid.ID, cancelled[0].ID)

	again, err := store.StampAdjustment(ctx, "pi_shared", db.AdjustmentRefund, first.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again)

	gotValid, err := store.GetTicketByID(ctx, valid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusCancelled, gotValid.Status)
	require.NotNil(t, gotValid.RefundedAt)
	assert.True(t, first.Equal(*gotValid.RefundedAt))

	gotUsed, err := store.GetTicketByID(ctx, used.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusUsed, gotUsed.Status)
	assert.NotNil(t, gotUsed.RefundedAt)

	gotOther, err := store.GetTicketByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, gotOther.RefundedAt)

	_, err = store.StampAdjustment(ctx, "pi_shared", db.Adjustment("status"), first)
	assert.Error(t, err)
}

func TestCancelTicketOnlyFromValid(t *testing.T) {
	ctx := context.Background()
	store, tt := setupTestDB(t)
	ticket := dbtest.Ticket(t, store.Bun, tt, nil)

	ok, err := store.CancelTicket(ctx, ticket.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CancelTicket(ctx, ticket.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListTicketsAndSessionIDs(t *testing.T) {
	ctx := context.Background()
	store, tt := setupTestDB(t)
	otherEvent := dbtest.Event(t, store.Bun, "Winter Sessions")
	otherType := dbtest.TicketType(t, store.Bun, otherEvent, nil)

	a := dbtest.Ticket(t, store.Bun, tt, nil)
	b := dbtest.Ticket(t, store.Bun, otherType, nil)

	all, err := store.ListTickets(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.NotNil(t, all[1].Event)

	filtered, err := store.ListTickets(ctx, otherEvent.ID)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, b.ID, filtered[0].ID)

	ids, err := store.ListSessionIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.PaymentSessionID, b.PaymentSessionID}, ids)
}
