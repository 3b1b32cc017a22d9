package db

import (
	"context"
	"fmt"

	"ms-admission/internal/models"
)

// IncrementAttendance bumps the event counters in place and returns the
// totals read back right after. The read is not atomic with the increment,
// so under contention the totals may already include later check-ins.
func (d *DB) IncrementAttendance(ctx context.Context, eventID string, privileged bool) (*models.Attendance, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	q := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("attendance_count = attendance_count + 1").
		Where("id = ?", eventID)
	if privileged {
		q = q.Set("privileged_attendance_count = privileged_attendance_count + 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("increment attendance for %s: %w", eventID, err)
	}
	if ok, _ := affectedOne(res); !ok {
		return nil, models.ErrEventNotFound
	}

	return d.getAttendance(ctx, eventID)
}

func (d *DB) GetAttendance(ctx context.Context, eventID string) (*models.Attendance, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	return d.getAttendance(ctx, eventID)
}

func (d *DB) getAttendance(ctx context.Context, eventID string) (*models.Attendance, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Column("id", "attendance_count", "privileged_attendance_count").
		Where("e.id = ?", eventID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrEventNotFound)
	}
	return &models.Attendance{
		EventID:    event.ID,
		Total:      event.AttendanceCount,
		Privileged: event.PrivilegedAttendanceCount,
	}, nil
}

// DerivedAttendance counts USED tickets per event, split by privileged type.
// Events without any redemption are included with zero counts.
func (d *DB) DerivedAttendance(ctx context.Context) ([]models.Attendance, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var rows []models.Attendance
	err := d.Bun.NewSelect().
		TableExpr("events AS e").
		ColumnExpr("e.id AS event_id").
		ColumnExpr("COUNT(t.id) AS total").
		ColumnExpr("COALESCE(SUM(CASE WHEN tt.privileged THEN 1 ELSE 0 END), 0) AS privileged").
		Join("LEFT JOIN tickets AS t ON t.event_id = e.id AND t.status = ?", models.TicketStatusUsed).
		Join("LEFT JOIN ticket_types AS tt ON tt.id = t.ticket_type_id").
		GroupExpr("e.id").
		OrderExpr("e.id").
		Scan(ctx, &rows)
	return rows, err
}

// ListAttendance returns the stored counters of every event.
func (d *DB) ListAttendance(ctx context.Context) ([]models.Attendance, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Column("id", "attendance_count", "privileged_attendance_count").
		OrderExpr("e.id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Attendance, 0, len(events))
	for _, e := range events {
		out = append(out, models.Attendance{EventID: e.ID, Total: e.AttendanceCount, Privileged: e.PrivilegedAttendanceCount})
	}
	return out, nil
}

// SetAttendance overwrites the counters of one event.
func (d *DB) SetAttendance(ctx context.Context, a models.Attendance) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("attendance_count = ?", a.Total).
		Set("privileged_attendance_count = ?", a.Privileged).
		Where("id = ?", a.EventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if ok, _ := affectedOne(res); !ok {
		return models.ErrEventNotFound
	}
	return nil
}

func (d *DB) CreateScanLog(ctx context.Context, entry *models.ScanLogEntry) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	_, err := d.Bun.NewInsert().Model(entry).Exec(ctx)
	return err
}

func (d *DB) CreateCheckinAudit(ctx context.Context, audit *models.CheckinAudit) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	_, err := d.Bun.NewInsert().Model(audit).Exec(ctx)
	return err
}

// ListScanLogs returns the scan history of a ticket, newest first.
func (d *DB) ListScanLogs(ctx context.Context, ticketID string) ([]models.ScanLogEntry, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	var entries []models.ScanLogEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("sl.ticket_id = ?", ticketID).
		OrderExpr("sl.id DESC").
		Scan(ctx)
	return entries, err
}

// CountScanLogs counts entries with the given outcome for a raw code.
func (d *DB) CountScanLogs(ctx context.Context, rawCode string, result models.ScanResult) (int, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	return d.Bun.NewSelect().
		Model((*models.ScanLogEntry)(nil)).
		Where("sl.raw_code = ?", rawCode).
		Where("sl.result = ?", result).
		Count(ctx)
}

// CountCheckinAudits counts successful redemptions recorded for a ticket.
func (d *DB) CountCheckinAudits(ctx context.Context, ticketID string) (int, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	return d.Bun.NewSelect().
		Model((*models.CheckinAudit)(nil)).
		Where("ca.ticket_id = ?", ticketID).
		Count(ctx)
}
