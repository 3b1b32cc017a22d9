package tickets

import (
	"context"
	"errors"
	"fmt"

	"ms-admission/internal/models"
	"ms-admission/internal/tickets/db"
)

// Cancel voids a VALID ticket on staff request.
func (s *TicketService) Cancel(ctx context.Context, staff *models.Staff, raw string) (*models.Ticket, error) {
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

	now := s.Clock.Now()
	ok, err := s.DB.CancelTicket(ctx, ticket.ID, now)
	if err != nil {
		return nil, storeError(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: status is %s", models.ErrTicketNotValid, ticket.Status)
	}

	ticket.Status = models.TicketStatusCancelled
	ticket.CancelledAt = &now
	s.Logger.Info("TICKETS", fmt.Sprintf("Ticket %s cancelled by %s", ticket.Code, staff.Label()))
	s.publishLifecycle(ctx, LifecycleCancelled, ticket)
	return ticket, nil
}

// ApplyRefund records a processor refund against every ticket paid with the
// intent and cancels the ones not yet redeemed.
func (s *TicketService) ApplyRefund(ctx context.Context, paymentIntentID string) ([]models.Ticket, error) {
	return s.applyAdjustment(ctx, paymentIntentID, db.AdjustmentRefund)
}

// ApplyChargeback is ApplyRefund for disputes.
func (s *TicketService) ApplyChargeback(ctx context.Context, paymentIntentID string) ([]models.Ticket, error) {
	return s.applyAdjustment(ctx, paymentIntentID, db.AdjustmentChargeback)
}

func (s *TicketService) applyAdjustment(ctx context.Context, paymentIntentID string, column db.Adjustment) ([]models.Ticket, error) {
	if paymentIntentID == "" {
		return nil, fmt.Errorf("%w: missing payment intent", models.ErrMalformedMetadata)
	}

	cancelled, err := s.DB.StampAdjustment(ctx, paymentIntentID, column, s.Clock.Now())
	if err != nil {
		return nil, storeError(err)
	}

	for i := range cancelled {
		s.publishLifecycle(ctx, LifecycleCancelled, &cancelled[i])
	}
	s.Logger.Info("TICKETS", fmt.Sprintf("Recorded %s for intent %s, %d ticket(s) cancelled", column, paymentIntentID, len(cancelled)))
	return cancelled, nil
}
