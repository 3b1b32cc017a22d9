package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// legacyPrivilegedMarker is the code fragment that marked boiler room access
// before ticket types carried an explicit flag.
const legacyPrivilegedMarker = "BOILERROOM"

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types,alias:tt"`

	ID          string     `bun:"id,pk" json:"id"`
	EventID     string     `bun:"event_id,notnull" json:"eventId"`
	Name        string     `bun:"name,notnull" json:"name"`
	Description string     `bun:"description" json:"description,omitempty"`
	PriceMinor  int64      `bun:"price_minor,notnull" json:"priceMinor"`
	Currency    string     `bun:"currency,notnull" json:"currency"`
	Capacity    int        `bun:"capacity,notnull" json:"capacity"`
	SalesStart  *time.Time `bun:"sales_start" json:"salesStart,omitempty"`
	SalesEnd    *time.Time `bun:"sales_end" json:"salesEnd,omitempty"`
	PriceRef    string     `bun:"price_ref" json:"priceRef,omitempty"`
	Code        string     `bun:"code,notnull" json:"code"`
	Visible     bool       `bun:"visible,notnull" json:"visible"`
	Privileged  bool       `bun:"privileged,notnull" json:"privileged"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

// SalesWindowError reports whether now falls outside the configured sales
// window. A nil return means sales are open.
func (t *TicketType) SalesWindowError(now time.Time) error {
	if t.SalesStart != nil && now.Before(*t.SalesStart) {
		return ErrSalesNotOpen
	}
	if t.SalesEnd != nil && now.After(*t.SalesEnd) {
		return ErrSalesClosed
	}
	return nil
}

// LegacyPrivilegedCode derives the privileged flag from a short code using
// the old substring convention.
func LegacyPrivilegedCode(code string) bool {
	return strings.Contains(strings.ToUpper(code), legacyPrivilegedMarker)
}
