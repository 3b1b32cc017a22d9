package tickets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/tickets/codegen"
	"ms-admission/internal/tickets/db"
	qr "ms-admission/internal/tickets/qr_generator"
	"ms-admission/internal/utils"

	"golang.org/x/text/unicode/norm"
)

type TicketDBLayer interface {
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketBySession(ctx context.Context, sessionID string) (*models.Ticket, error)
	SessionHasTicket(ctx context.Context, sessionID string) (bool, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	CountLiveTickets(ctx context.Context, ticketTypeID string) (int, error)
	RedeemTicket(ctx context.Context, id string, at time.Time, by string) (bool, error)
	CancelTicket(ctx context.Context, id string, at time.Time) (bool, error)
	StampAdjustment(ctx context.Context, paymentIntentID string, column db.Adjustment, at time.Time) ([]models.Ticket, error)
	IncrementAttendance(ctx context.Context, eventID string, privileged bool) (*models.Attendance, error)
	CreateScanLog(ctx context.Context, entry *models.ScanLogEntry) error
	CreateCheckinAudit(ctx context.Context, audit *models.CheckinAudit) error
	ListTickets(ctx context.Context, eventID string) ([]models.Ticket, error)
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	GetStaff(ctx context.Context, userID string) (*models.Staff, error)
}

// EventPublisher receives notifications after state changes. Delivery is
// best-effort; a failed publish never undoes the change.
type EventPublisher interface {
	PublishCheckin(ctx context.Context, event models.CheckinEvent) error
	PublishLifecycle(ctx context.Context, event models.TicketLifecycleEvent) error
}

type TicketService struct {
	DB     TicketDBLayer
	Codes  *codegen.Generator
	Events EventPublisher
	Clock  utils.Clock
	Logger *logger.Logger
}

func NewTicketService(store TicketDBLayer, codes *codegen.Generator, events EventPublisher, clock utils.Clock, log *logger.Logger) *TicketService {
	if codes == nil {
		codes = codegen.New(codegen.DefaultLength, codegen.DefaultMaxAttempts)
	}
	if clock == nil {
		clock = utils.SystemClock()
	}
	return &TicketService{DB: store, Codes: codes, Events: events, Clock: clock, Logger: log}
}

// NormalizeCode turns a scanned or typed payload into the stored code form.
// Full-width and compatibility characters fold to ASCII, links are reduced
// to the code they carry and the result is upper-cased.
func NormalizeCode(raw string) string {
	folded := norm.NFKC.String(raw)
	return strings.ToUpper(strings.TrimSpace(qr.ExtractCode(folded)))
}

func requireRole(staff *models.Staff, role models.Role) error {
	if staff == nil {
		return models.ErrUnauthenticated
	}
	if !staff.Role.Allows(role) {
		return models.ErrForbidden
	}
	return nil
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}

// writeScanLog records an attempt. A failed write is logged and swallowed.
func (s *TicketService) writeScanLog(ctx context.Context, entry *models.ScanLogEntry) {
	entry.CreatedAt = s.Clock.Now()
	if err := s.DB.CreateScanLog(ctx, entry); err != nil {
		s.Logger.Error("SCANLOG", fmt.Sprintf("Failed to record %s scan of %q: %v", entry.Result, entry.RawCode, err))
	}
}

// actorLabel resolves the display label of the staff member who redeemed a
// ticket, falling back to the raw subject.
func (s *TicketService) actorLabel(ctx context.Context, userID *string) string {
	if userID == nil {
		return ""
	}
	staff, err := s.DB.GetStaff(ctx, *userID)
	if err != nil {
		return *userID
	}
	return staff.Label()
}

func (s *TicketService) publishLifecycle(ctx context.Context, kind string, t *models.Ticket) {
	if s.Events == nil {
		return
	}
	event := models.TicketLifecycleEvent{
		Type:             kind,
		TicketID:         t.ID,
		Code:             t.Code,
		EventID:          t.EventID,
		TicketTypeID:     t.TicketTypeID,
		PaymentSessionID: t.PaymentSessionID,
		Status:           t.Status,
		OccurredAt:       s.Clock.Now(),
	}
	if err := s.Events.PublishLifecycle(ctx, event); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for ticket %s: %v", kind, t.ID, err))
	}
}
