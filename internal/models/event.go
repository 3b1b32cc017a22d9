package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event carries the denormalized live attendance counters. The counters are
// only bumped by a successful check-in and may drift from the ticket rows;
// analytics.Reconciler recomputes them.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID                        string     `bun:"id,pk" json:"id"`
	Name                      string     `bun:"name,notnull" json:"name"`
	StartsAt                  *time.Time `bun:"starts_at" json:"startsAt,omitempty"`
	AttendanceCount           int        `bun:"attendance_count,notnull,default:0" json:"attendanceCount"`
	PrivilegedAttendanceCount int        `bun:"privileged_attendance_count,notnull,default:0" json:"privilegedAttendanceCount"`
	CreatedAt                 time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// Attendance is a snapshot of an event's counters.
type Attendance struct {
	EventID    string `json:"eventId"`
	Total      int    `json:"total"`
	Privileged int    `json:"privileged"`
}
