package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "VALID"
	TicketStatusUsed      TicketStatus = "USED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

// Session id prefixes. Tickets issued through the webhook carry the Stripe
// checkout session id; tickets issued by staff carry a synthetic one.
const (
	ProcessorSessionPrefix = "cs_"
	ManualSessionPrefix    = "manual_"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID               string       `bun:"id,pk" json:"id"`
	Code             string       `bun:"code,notnull" json:"code"`
	EventID          string       `bun:"event_id,notnull" json:"eventId"`
	TicketTypeID     string       `bun:"ticket_type_id,notnull" json:"ticketTypeId"`
	BuyerName        string       `bun:"buyer_name,notnull" json:"buyerName"`
	BuyerEmail       string       `bun:"buyer_email,notnull" json:"buyerEmail"`
	PaymentSessionID string       `bun:"payment_session_id,notnull" json:"paymentSessionId"`
	PaymentIntentID  string       `bun:"payment_intent_id" json:"paymentIntentId,omitempty"`
	Status           TicketStatus `bun:"status,notnull" json:"status"`
	Note             string       `bun:"note" json:"note,omitempty"`
	CreatedAt        time.Time    `bun:"created_at,notnull" json:"createdAt"`
	CheckedInAt      *time.Time   `bun:"checked_in_at" json:"checkedInAt,omitempty"`
	CheckedInBy      *string      `bun:"checked_in_by" json:"checkedInBy,omitempty"`
	RefundedAt       *time.Time   `bun:"refunded_at" json:"refundedAt,omitempty"`
	ChargebackAt     *time.Time   `bun:"chargeback_at" json:"chargebackAt,omitempty"`
	CancelledAt      *time.Time   `bun:"cancelled_at" json:"cancelledAt,omitempty"`

	TicketType *TicketType `bun:"rel:belongs-to,join:ticket_type_id=id" json:"ticketType,omitempty"`
	Event      *Event      `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

// Refunded is true once either a refund or a chargeback has been recorded.
func (t *Ticket) Refunded() bool {
	return t.RefundedAt != nil || t.ChargebackAt != nil
}

// Redeemable reports whether a check-in could still succeed.
func (t *Ticket) Redeemable() bool {
	return t.Status == TicketStatusValid && !t.Refunded()
}

// ManuallyIssued reports whether the ticket came from the staff issuance path.
func (t *Ticket) ManuallyIssued() bool {
	return strings.HasPrefix(t.PaymentSessionID, ManualSessionPrefix)
}

// Privileged reports whether the ticket's type grants the privileged tier.
// The TicketType relation must be loaded.
func (t *Ticket) Privileged() bool {
	return t.TicketType != nil && t.TicketType.Privileged
}
