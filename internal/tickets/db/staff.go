package db

import (
	"context"

	"ms-admission/internal/models"
)

// GetStaff returns the staff role row for a token subject.
func (d *DB) GetStaff(ctx context.Context, userID string) (*models.Staff, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var staff models.Staff
	if err := d.Bun.NewSelect().Model(&staff).Where("sr.user_id = ?", userID).Scan(ctx); err != nil {
		return nil, notFound(err, models.ErrForbidden)
	}
	return &staff, nil
}

// UpsertStaff grants or changes a role.
func (d *DB) UpsertStaff(ctx context.Context, staff *models.Staff) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	_, err := d.Bun.NewInsert().
		Model(staff).
		On("CONFLICT (user_id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Set("display_name = EXCLUDED.display_name").
		Set("email = EXCLUDED.email").
		Exec(ctx)
	return err
}
