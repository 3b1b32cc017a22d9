package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"ms-admission/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func insert(t testing.TB, db *bun.DB, model interface{}) {
	t.Helper()
	if _, err := db.NewInsert().Model(model).Exec(context.Background()); err != nil {
		t.Fatalf("insert %T: %v", model, err)
	}
}

// Event inserts an event with zeroed counters.
func Event(t testing.TB, db *bun.DB, name string) *models.Event {
	t.Helper()
	e := &models.Event{ID: uuid.NewString(), Name: name}
	insert(t, db, e)
	return e
}

// TicketType inserts a visible, open, 2500 minor-unit type with capacity 100.
// mutate runs before the insert.
func TicketType(t testing.TB, db *bun.DB, event *models.Event, mutate func(*models.TicketType)) *models.TicketType {
	t.Helper()
	tt := &models.TicketType{
		ID:         uuid.NewString(),
		EventID:    event.ID,
		Name:       "General Admission",
		PriceMinor: 2500,
		Currency:   "eur",
		Capacity:   100,
		Code:       "GA",
		Visible:    true,
	}
	if mutate != nil {
		mutate(tt)
	}
	insert(t, db, tt)
	tt.Event = event
	return tt
}

var codeSeq atomic.Int64

// Ticket inserts a VALID ticket of tt with a unique code and processor session.
func Ticket(t testing.TB, db *bun.DB, tt *models.TicketType, mutate func(*models.Ticket)) *models.Ticket {
	t.Helper()
	seq := codeSeq.Add(1)
	ticket := &models.Ticket{
		ID:               uuid.NewString(),
		Code:             fmt.Sprintf("TST%05d", seq),
		EventID:          tt.EventID,
		TicketTypeID:     tt.ID,
		BuyerName:        "Ada Lovelace",
		BuyerEmail:       "ada@example.com",
		PaymentSessionID: "cs_test_" + uuid.NewString(),
		PaymentIntentID:  "pi_" + uuid.NewString(),
		Status:           models.TicketStatusValid,
		CreatedAt:        time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute),
	}
	if mutate != nil {
		mutate(ticket)
	}
	insert(t, db, ticket)
	return ticket
}

// Staff inserts a staff role row.
func Staff(t testing.TB, db *bun.DB, userID string, role models.Role, displayName string) *models.Staff {
	t.Helper()
	s := &models.Staff{UserID: userID, Role: role, DisplayName: displayName}
	insert(t, db, s)
	return s
}
