package models

import "time"

// TicketView is the staff-facing projection of a ticket.
type TicketView struct {
	Code         string       `json:"code"`
	Status       TicketStatus `json:"status"`
	Redeemable   bool         `json:"redeemable"`
	BuyerName    string       `json:"buyerName"`
	BuyerEmail   string       `json:"buyerEmail"`
	TicketTypeID string       `json:"ticketTypeId"`
	TicketType   string       `json:"ticketType,omitempty"`
	TypeCode     string       `json:"typeCode,omitempty"`
	Privileged   bool         `json:"privileged"`
	EventID      string       `json:"eventId"`
	EventName    string       `json:"eventName,omitempty"`
	CheckedInAt  *time.Time   `json:"checkedInAt,omitempty"`
	CheckedInBy  string       `json:"checkedInBy,omitempty"`
	RefundedAt   *time.Time   `json:"refundedAt,omitempty"`
	ChargebackAt *time.Time   `json:"chargebackAt,omitempty"`
}

// NewTicketView projects t. checkedInBy is the resolved label of the actor
// who redeemed the ticket, if any.
func NewTicketView(t *Ticket, checkedInBy string) *TicketView {
	v := &TicketView{
		Code:         t.Code,
		Status:       t.Status,
		Redeemable:   t.Redeemable(),
		BuyerName:    t.BuyerName,
		BuyerEmail:   t.BuyerEmail,
		TicketTypeID: t.TicketTypeID,
		EventID:      t.EventID,
		CheckedInAt:  t.CheckedInAt,
		CheckedInBy:  checkedInBy,
		RefundedAt:   t.RefundedAt,
		ChargebackAt: t.ChargebackAt,
	}
	if t.TicketType != nil {
		v.TicketType = t.TicketType.Name
		v.TypeCode = t.TicketType.Code
		v.Privileged = t.TicketType.Privileged
	}
	if t.Event != nil {
		v.EventName = t.Event.Name
	}
	return v
}

// CheckinResult is returned for every check-in attempt, successful or not.
type CheckinResult struct {
	Success     bool        `json:"success"`
	Result      ScanResult  `json:"result"`
	Message     string      `json:"message"`
	Ticket      *TicketView `json:"ticket,omitempty"`
	CheckedInAt *time.Time  `json:"checkedInAt,omitempty"`
	CheckedInBy string      `json:"checkedInBy,omitempty"`
	Attendance  *Attendance `json:"attendance,omitempty"`
}

// CheckinEvent is published after a successful redemption.
type CheckinEvent struct {
	TicketID    string     `json:"ticketId"`
	Code        string     `json:"code"`
	EventID     string     `json:"eventId"`
	TypeCode    string     `json:"typeCode"`
	Privileged  bool       `json:"privileged"`
	StaffID     string     `json:"staffId"`
	Method      string     `json:"method"`
	CheckedInAt time.Time  `json:"checkedInAt"`
	Attendance  Attendance `json:"attendance"`
}

// TicketLifecycleEvent is published when a ticket is issued or cancelled.
type TicketLifecycleEvent struct {
	Type             string       `json:"type"`
	TicketID         string       `json:"ticketId"`
	Code             string       `json:"code"`
	EventID          string       `json:"eventId"`
	TicketTypeID     string       `json:"ticketTypeId"`
	PaymentSessionID string       `json:"paymentSessionId"`
	Status           TicketStatus `json:"status"`
	OccurredAt       time.Time    `json:"occurredAt"`
}
