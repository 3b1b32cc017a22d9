package tickets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ms-admission/internal/database"
	"ms-admission/internal/models"
	"ms-admission/internal/utils"
)

const (
	LifecycleIssued    = "ticket.issued"
	LifecycleCancelled = "ticket.cancelled"
)

// SessionIssue is what a completed processor session carries.
type SessionIssue struct {
	SessionID       string
	PaymentIntentID string
	TicketTypeID    string
	EventID         string
	BuyerName       string
	BuyerEmail      string
}

func (in SessionIssue) missing() []string {
	var out []string
	for name, v := range map[string]string{
		"ticket_type_id": in.TicketTypeID,
		"event_id":       in.EventID,
		"buyer_name":     in.BuyerName,
		"buyer_email":    in.BuyerEmail,
	} {
		if strings.TrimSpace(v) == "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IssueFromSession creates the one ticket a paid session is entitled to.
// Repeated or concurrent calls for the same session return the ticket that
// was created first with created false.
func (s *TicketService) IssueFromSession(ctx context.Context, in SessionIssue) (*models.Ticket, bool, error) {
	if in.SessionID == "" {
		return nil, false, fmt.Errorf("%w: missing session id", models.ErrMalformedMetadata)
	}

	exists, err := s.DB.SessionHasTicket(ctx, in.SessionID)
	if err != nil {
		return nil, false, storeError(err)
	}
	if exists {
		existing, err := s.DB.GetTicketBySession(ctx, in.SessionID)
		if err != nil {
			return nil, false, storeError(err)
		}
		return existing, false, nil
	}

	if missing := in.missing(); len(missing) > 0 {
		return nil, false, fmt.Errorf("%w: missing %s", models.ErrMalformedMetadata, strings.Join(missing, ", "))
	}

	tt, err := s.DB.GetTicketType(ctx, in.TicketTypeID)
	if errors.Is(err, models.ErrTicketTypeNotFound) {
		return nil, false, fmt.Errorf("%w: unknown ticket type %q", models.ErrMalformedMetadata, in.TicketTypeID)
	}
	if err != nil {
		return nil, false, storeError(err)
	}
	if tt.EventID != in.EventID {
		return nil, false, fmt.Errorf("%w: ticket type %s does not belong to event %s", models.ErrMalformedMetadata, tt.ID, in.EventID)
	}

	ticket := &models.Ticket{
		ID:               utils.GenerateID(),
		EventID:          tt.EventID,
		TicketTypeID:     tt.ID,
		BuyerName:        strings.TrimSpace(in.BuyerName),
		BuyerEmail:       strings.TrimSpace(in.BuyerEmail),
		PaymentSessionID: in.SessionID,
		PaymentIntentID:  in.PaymentIntentID,
		Status:           models.TicketStatusValid,
		CreatedAt:        s.Clock.Now(),
	}
	return s.insert(ctx, ticket)
}

// insert runs code generation and resolves a lost session race to the
// winning row.
func (s *TicketService) insert(ctx context.Context, ticket *models.Ticket) (*models.Ticket, bool, error) {
	row, created, err := database.InsertOrFetch(ctx, database.ConstraintTicketSession,
		func(ctx context.Context) (*models.Ticket, error) {
			if err := s.Codes.Insert(ctx, s.DB, ticket); err != nil {
				return nil, err
			}
			return ticket, nil
		},
		func(ctx context.Context) (*models.Ticket, error) {
			return s.DB.GetTicketBySession(ctx, ticket.PaymentSessionID)
		},
	)
	if err != nil {
		if errors.Is(err, models.ErrCodeGenerationExhausted) {
			return nil, false, err
		}
		return nil, false, storeError(err)
	}

	if created {
		s.Logger.LogDatabase("INSERT", "tickets", fmt.Sprintf("Issued %s for session %s", row.Code, row.PaymentSessionID))
		s.publishLifecycle(ctx, LifecycleIssued, row)
	} else {
		s.Logger.Info("TICKETS", fmt.Sprintf("Session %s already issued as %s", row.PaymentSessionID, row.Code))
	}
	return row, created, nil
}

type CompRequest struct {
	TicketTypeID   string `json:"ticketTypeId" validate:"required"`
	BuyerName      string `json:"buyerName" validate:"required,max=200"`
	BuyerEmail     string `json:"buyerEmail" validate:"required,email,max=254"`
	Note           string `json:"note" validate:"max=500"`
	IdempotencyKey string `json:"idempotencyKey" validate:"max=100"`
}

// IssueComp issues a complimentary ticket outside the payment flow. The
// sales window does not apply but capacity does. Reusing an idempotency key
// returns the ticket it produced before.
func (s *TicketService) IssueComp(ctx context.Context, staff *models.Staff, req CompRequest) (*models.Ticket, bool, error) {
	if err := requireRole(staff, models.RoleAdmin); err != nil {
		return nil, false, err
	}

	sessionID := utils.ManualSessionID(req.IdempotencyKey)
	if req.IdempotencyKey != "" {
		exists, err := s.DB.SessionHasTicket(ctx, sessionID)
		if err != nil {
			return nil, false, storeError(err)
		}
		if exists {
			existing, err := s.DB.GetTicketBySession(ctx, sessionID)
			if err != nil {
				return nil, false, storeError(err)
			}
			return existing, false, nil
		}
	}

	tt, err := s.DB.GetTicketType(ctx, req.TicketTypeID)
	if err != nil {
		if errors.Is(err, models.ErrTicketTypeNotFound) {
			return nil, false, err
		}
		return nil, false, storeError(err)
	}

	sold, err := s.DB.CountLiveTickets(ctx, tt.ID)
	if err != nil {
		return nil, false, storeError(err)
	}
	if sold >= tt.Capacity {
		return nil, false, models.ErrSoldOut
	}

	ticket := &models.Ticket{
		ID:               utils.GenerateID(),
		EventID:          tt.EventID,
		TicketTypeID:     tt.ID,
		BuyerName:        strings.TrimSpace(req.BuyerName),
		BuyerEmail:       strings.TrimSpace(req.BuyerEmail),
		PaymentSessionID: sessionID,
		Status:           models.TicketStatusValid,
		Note:             req.Note,
		CreatedAt:        s.Clock.Now(),
	}
	row, created, err := s.insert(ctx, ticket)
	if err == nil && created {
		s.Logger.Info("TICKETS", fmt.Sprintf("Comp ticket %s issued by %s", row.Code, staff.Label()))
	}
	return row, created, err
}
