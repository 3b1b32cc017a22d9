package auth

import (
	"context"
	"errors"
	"fmt"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
)

type StaffStore interface {
	GetStaff(ctx context.Context, userID string) (*models.Staff, error)
}

// StaffDirectory resolves token subjects to staff roles, consulting the
// cache first. Cache failures fall through to the store. Subjects without a
// role are not cached.
type StaffDirectory struct {
	Store  StaffStore
	Cache  RoleCache
	Logger *logger.Logger
}

func NewStaffDirectory(store StaffStore, cache RoleCache, log *logger.Logger) *StaffDirectory {
	return &StaffDirectory{Store: store, Cache: cache, Logger: log}
}

func (d *StaffDirectory) Lookup(ctx context.Context, userID string) (*models.Staff, error) {
	if d.Cache != nil {
		staff, err := d.Cache.Get(ctx, userID)
		if err != nil {
			d.Logger.Warn("AUTH", fmt.Sprintf("Role cache read failed for %s: %v", userID, err))
		} else if staff != nil {
			return staff, nil
		}
	}

	staff, err := d.Store.GetStaff(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrForbidden) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, staff); err != nil {
			d.Logger.Warn("AUTH", fmt.Sprintf("Role cache write failed for %s: %v", userID, err))
		}
	}
	return staff, nil
}

// Forget drops a cached role after it changes.
func (d *StaffDirectory) Forget(ctx context.Context, userID string) error {
	if d.Cache == nil {
		return nil
	}
	return d.Cache.Invalidate(ctx, userID)
}
