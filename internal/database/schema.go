package database

import (
	"context"
	"fmt"

	"ms-admission/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema builds the tables and unique indexes from the models. The
// Postgres deployment uses the SQL migrations instead; this serves sqlite
// databases in tests and local tooling.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Event)(nil),
		(*models.TicketType)(nil),
		(*models.Ticket)(nil),
		(*models.ScanLogEntry)(nil),
		(*models.CheckinAudit)(nil),
		(*models.Staff)(nil),
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*models.Ticket)(nil)).
		Index(ConstraintTicketCode).
		Unique().
		IfNotExists().
		Column("code").
		Exec(ctx); err != nil {
		return fmt.Errorf("create %s: %w", ConstraintTicketCode, err)
	}

	if _, err := db.NewCreateIndex().
		Model((*models.Ticket)(nil)).
		Index(ConstraintTicketSession).
		Unique().
		IfNotExists().
		Column("payment_session_id").
		Where("status <> ?", models.TicketStatusCancelled).
		Exec(ctx); err != nil {
		return fmt.Errorf("create %s: %w", ConstraintTicketSession, err)
	}

	if _, err := db.NewCreateIndex().
		Model((*models.Ticket)(nil)).
		Index("ix_tickets_payment_intent").
		IfNotExists().
		Column("payment_intent_id").
		Exec(ctx); err != nil {
		return fmt.Errorf("create ix_tickets_payment_intent: %w", err)
	}

	return nil
}
