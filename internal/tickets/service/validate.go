package tickets

import (
	"context"
	"errors"

	"ms-admission/internal/models"
)

// Validate looks a ticket up for staff without touching its state.
func (s *TicketService) Validate(ctx context.Context, staff *models.Staff, raw string) (*models.TicketView, error) {
	if err := requireRole(staff, models.RoleCrew); err != nil {
		return nil, err
	}

	ticket, err := s.DB.GetTicketByCode(ctx, NormalizeCode(raw))
	if errors.Is(err, models.ErrTicketNotFound) {
		s.writeScanLog(ctx, &models.ScanLogEntry{
			RawCode: raw,
			Result:  models.ScanResultNotFound,
			StaffID: staff.UserID,
			Method:  models.ScanMethodLookup,
		})
		return nil, models.ErrTicketNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}

	s.writeScanLog(ctx, &models.ScanLogEntry{
		TicketID: &ticket.ID,
		RawCode:  raw,
		Result:   models.ScanResultFound,
		StaffID:  staff.UserID,
		Method:   models.ScanMethodLookup,
	})

	return models.NewTicketView(ticket, s.actorLabel(ctx, ticket.CheckedInBy)), nil
}

// Find loads a ticket for administrative use. Unlike Validate it records no
// scan.
func (s *TicketService) Find(ctx context.Context, staff *models.Staff, raw string) (*models.Ticket, error) {
	if err := requireRole(staff, models.RoleAdmin); err != nil {
		return nil, err
	}

	ticket, err := s.DB.GetTicketByCode(ctx, NormalizeCode(raw))
	if err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			return nil, err
		}
		return nil, storeError(err)
	}
	return ticket, nil
}
