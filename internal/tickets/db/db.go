package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-admission/internal/models"

	"github.com/uptrace/bun"
)

// DB is the ticket store. Every call is bounded by Timeout when it is set.
type DB struct {
	Bun     *bun.DB
	Timeout time.Duration
}

func New(bunDB *bun.DB, timeout time.Duration) *DB {
	return &DB{Bun: bunDB, Timeout: timeout}
}

func (d *DB) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.Timeout)
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// GetTicketByCode loads the ticket with its type and event. code must
// already be normalized.
func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Relation("TicketType").
		Relation("Event").
		Where("t.code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrTicketNotFound)
	}
	return &ticket, nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Relation("TicketType").
		Relation("Event").
		Where("t.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrTicketNotFound)
	}
	return &ticket, nil
}

// GetTicketBySession returns the live ticket for a payment session, or the
// most recent cancelled one when no live ticket exists.
func (d *DB) GetTicketBySession(ctx context.Context, sessionID string) (*models.Ticket, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("t.payment_session_id = ?", sessionID).
		OrderExpr("CASE WHEN t.status = ? THEN 1 ELSE 0 END", models.TicketStatusCancelled).
		OrderExpr("t.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrTicketNotFound)
	}
	return &ticket, nil
}

// SessionHasTicket reports whether any ticket, in any status, was issued for
// the session.
func (d *DB) SessionHasTicket(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("t.payment_session_id = ?", sessionID).
		Exists(ctx)
}

// CreateTicket inserts the row as is. Unique violations surface unchanged so
// callers can tell a code collision from a session collision.
func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	return err
}

// CountLiveTickets counts non-cancelled tickets of a type.
func (d *DB) CountLiveTickets(ctx context.Context, ticketTypeID string) (int, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("t.ticket_type_id = ?", ticketTypeID).
		Where("t.status <> ?", models.TicketStatusCancelled).
		Count(ctx)
}

// RedeemTicket moves a VALID, unrefunded ticket to USED. It reports false
// when the row no longer qualifies, which is how a lost race shows up.
func (d *DB) RedeemTicket(ctx context.Context, id string, at time.Time, by string) (bool, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusUsed).
		Set("checked_in_at = ?", at).
		Set("checked_in_by = ?", by).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusValid).
		Where("refunded_at IS NULL").
		Where("chargeback_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("redeem ticket %s: %w", id, err)
	}
	return affectedOne(res)
}

// CancelTicket moves a VALID ticket to CANCELLED.
func (d *DB) CancelTicket(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusCancelled).
		Set("cancelled_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusValid).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("cancel ticket %s: %w", id, err)
	}
	return affectedOne(res)
}

// Adjustment names the nullable column stamped by a processor reversal.
type Adjustment string

const (
	AdjustmentRefund     Adjustment = "refunded_at"
	AdjustmentChargeback Adjustment = "chargeback_at"
)

// StampAdjustment records a refund or chargeback on every ticket paid with
// the intent. The first stamp wins. The tickets returned are the ones this
// call moved from VALID to CANCELLED.
func (d *DB) StampAdjustment(ctx context.Context, paymentIntentID string, column Adjustment, at time.Time) ([]models.Ticket, error) {
	if column != AdjustmentRefund && column != AdjustmentChargeback {
		return nil, fmt.Errorf("unknown adjustment column %q", column)
	}

	ctx, cancel := d.bound(ctx)
	defer cancel()

	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("? = ?", bun.Ident(column), at).
		Where("payment_intent_id = ?", paymentIntentID).
		Where("? IS NULL", bun.Ident(column)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("stamp %s for intent %s: %w", column, paymentIntentID, err)
	}

	var candidates []models.Ticket
	err = d.Bun.NewSelect().
		Model(&candidates).
		Where("t.payment_intent_id = ?", paymentIntentID).
		Where("t.status = ?", models.TicketStatusValid).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets for intent %s: %w", paymentIntentID, err)
	}

	var cancelled []models.Ticket
	for _, ticket := range candidates {
		res, err := d.Bun.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketStatusCancelled).
			Set("cancelled_at = ?", at).
			Where("id = ?", ticket.ID).
			Where("status = ?", models.TicketStatusValid).
			Exec(ctx)
		if err != nil {
			return cancelled, fmt.Errorf("cancel ticket %s: %w", ticket.ID, err)
		}
		if ok, _ := affectedOne(res); ok {
			ticket.Status = models.TicketStatusCancelled
			ticket.CancelledAt = &at
			cancelled = append(cancelled, ticket)
		}
	}
	return cancelled, nil
}

// ListTickets returns tickets with type and event, oldest first. An empty
// eventID lists every event.
func (d *DB) ListTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var tickets []models.Ticket
	q := d.Bun.NewSelect().
		Model(&tickets).
		Relation("TicketType").
		Relation("Event").
		OrderExpr("t.created_at ASC").
		OrderExpr("t.code ASC")
	if eventID != "" {
		q = q.Where("t.event_id = ?", eventID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListSessionIDs returns the payment session id of every ticket ever issued.
func (d *DB) ListSessionIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var ids []string
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("payment_session_id").
		Scan(ctx, &ids)
	return ids, err
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
