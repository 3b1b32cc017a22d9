package db

import (
	"context"

	"ms-admission/internal/models"
)

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var event models.Event
	if err := d.Bun.NewSelect().Model(&event).Where("e.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, models.ErrEventNotFound)
	}
	return &event, nil
}

func (d *DB) CreateTicketType(ctx context.Context, tt *models.TicketType) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	_, err := d.Bun.NewInsert().Model(tt).Exec(ctx)
	return err
}

func (d *DB) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var tt models.TicketType
	err := d.Bun.NewSelect().
		Model(&tt).
		Relation("Event").
		Where("tt.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrTicketTypeNotFound)
	}
	return &tt, nil
}
