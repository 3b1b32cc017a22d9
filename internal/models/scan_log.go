package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ScanResult string

const (
	ScanResultSuccess     ScanResult = "success"
	ScanResultAlreadyUsed ScanResult = "already_used"
	ScanResultInvalid     ScanResult = "invalid"
	ScanResultRefunded    ScanResult = "refunded"
	ScanResultError       ScanResult = "error"

	// Outcomes of read-only validation lookups.
	ScanResultFound    ScanResult = "found"
	ScanResultNotFound ScanResult = "not_found"
)

const (
	ScanMethodQR     = "qr"
	ScanMethodManual = "manual"
	ScanMethodLookup = "lookup"
)

// ScanLogEntry is written once per validation or check-in attempt and never
// updated.
type ScanLogEntry struct {
	bun.BaseModel `bun:"table:scan_logs,alias:sl"`

	ID                int64      `bun:"id,pk,autoincrement" json:"id"`
	TicketID          *string    `bun:"ticket_id" json:"ticketId,omitempty"`
	RawCode           string     `bun:"raw_code,notnull" json:"rawCode"`
	Result            ScanResult `bun:"result,notnull" json:"result"`
	StaffID           string     `bun:"staff_id,notnull" json:"staffId"`
	DeviceFingerprint string     `bun:"device_fingerprint" json:"deviceFingerprint,omitempty"`
	Method            string     `bun:"method,notnull" json:"method"`
	ErrorDetail       string     `bun:"error_detail" json:"errorDetail,omitempty"`
	CreatedAt         time.Time  `bun:"created_at,notnull" json:"createdAt"`
}

// CheckinAudit records a successful redemption.
type CheckinAudit struct {
	bun.BaseModel `bun:"table:checkin_audits,alias:ca"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	TicketID  string    `bun:"ticket_id,notnull" json:"ticketId"`
	EventID   string    `bun:"event_id,notnull" json:"eventId"`
	StaffID   string    `bun:"staff_id,notnull" json:"staffId"`
	Method    string    `bun:"method,notnull" json:"method"`
	Note      string    `bun:"note" json:"note,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}
