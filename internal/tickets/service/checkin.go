package tickets

import (
	"context"
	"errors"
	"fmt"

	"ms-admission/internal/models"
)

type CheckinRequest struct {
	Code              string
	Method            string
	Note              string
	DeviceFingerprint string
}

// CheckIn redeems a ticket at the door. Rejections come back as a result
// with Success false and a nil error; a non-nil error means the store could
// not be consulted or the ticket changed under us and the caller may retry.
//
// The conditional update in RedeemTicket is the only guard against two
// devices redeeming the same ticket: whichever update matches the VALID row
// first wins and every other attempt re-reads the ticket as USED.
func (s *TicketService) CheckIn(ctx context.Context, staff *models.Staff, req CheckinRequest) (*models.CheckinResult, error) {
	if err := requireRole(staff, models.RoleCrew); err != nil {
		return nil, err
	}
	if req.Method == "" {
		req.Method = models.ScanMethodQR
	}

	code := NormalizeCode(req.Code)
	logEntry := func(ticket *models.Ticket, result models.ScanResult, detail string) {
		entry := &models.ScanLogEntry{
			RawCode:           req.Code,
			Result:            result,
			StaffID:           staff.UserID,
			DeviceFingerprint: req.DeviceFingerprint,
			Method:            req.Method,
			ErrorDetail:       detail,
		}
		if ticket != nil {
			entry.TicketID = &ticket.ID
		}
		s.writeScanLog(ctx, entry)
	}

	ticket, err := s.DB.GetTicketByCode(ctx, code)
	if errors.Is(err, models.ErrTicketNotFound) {
		logEntry(nil, models.ScanResultInvalid, "unknown code")
		s.Logger.LogCheckin(string(models.ScanResultInvalid), code, "unknown code")
		return &models.CheckinResult{Result: models.ScanResultInvalid, Message: "Ticket not found"}, nil
	}
	if err != nil {
		logEntry(nil, models.ScanResultError, err.Error())
		s.Logger.Error("CHECKIN", fmt.Sprintf("Lookup of %s failed: %v", code, err))
		return &models.CheckinResult{Result: models.ScanResultError, Message: "Check-in unavailable, try again"}, storeError(err)
	}

	if result := s.reject(ctx, ticket); result != nil {
		logEntry(ticket, result.Result, result.Message)
		s.Logger.LogCheckin(string(result.Result), ticket.Code, result.Message)
		return result, nil
	}

	now := s.Clock.Now()
	redeemed, err := s.DB.RedeemTicket(ctx, ticket.ID, now, staff.UserID)
	if err != nil {
		logEntry(ticket, models.ScanResultError, err.Error())
		s.Logger.Error("CHECKIN", fmt.Sprintf("Redeem of %s failed: %v", ticket.Code, err))
		return &models.CheckinResult{Result: models.ScanResultError, Message: "Check-in unavailable, try again"}, storeError(err)
	}

	if !redeemed {
		// Lost a race or the ticket was refunded in between; classify what
		// the row looks like now.
		current, err := s.DB.GetTicketByID(ctx, ticket.ID)
		if err != nil {
			logEntry(ticket, models.ScanResultError, err.Error())
			return &models.CheckinResult{Result: models.ScanResultError, Message: "Check-in unavailable, try again"}, storeError(err)
		}
		if result := s.reject(ctx, current); result != nil {
			logEntry(current, result.Result, result.Message)
			s.Logger.LogCheckin(string(result.Result), current.Code, result.Message)
			return result, nil
		}
		logEntry(current, models.ScanResultError, "ticket still valid after failed redemption")
		return &models.CheckinResult{Result: models.ScanResultError, Message: "Check-in unavailable, try again"}, models.ErrRedemptionRaced
	}

	ticket.Status = models.TicketStatusUsed
	ticket.CheckedInAt = &now
	ticket.CheckedInBy = &staff.UserID

	result := &models.CheckinResult{
		Success:     true,
		Result:      models.ScanResultSuccess,
		Message:     "Checked in",
		Ticket:      models.NewTicketView(ticket, staff.Label()),
		CheckedInAt: &now,
		CheckedInBy: staff.Label(),
	}

	attendance, err := s.DB.IncrementAttendance(ctx, ticket.EventID, ticket.Privileged())
	if err != nil {
		s.Logger.Error("CHECKIN", fmt.Sprintf("Attendance counter for event %s not incremented: %v", ticket.EventID, err))
	} else {
		result.Attendance = attendance
	}

	if err := s.DB.CreateCheckinAudit(ctx, &models.CheckinAudit{
		TicketID:  ticket.ID,
		EventID:   ticket.EventID,
		StaffID:   staff.UserID,
		Method:    req.Method,
		Note:      req.Note,
		CreatedAt: now,
	}); err != nil {
		s.Logger.Error("CHECKIN", fmt.Sprintf("Audit for ticket %s not written: %v", ticket.ID, err))
	}

	logEntry(ticket, models.ScanResultSuccess, "")
	s.Logger.LogCheckin(string(models.ScanResultSuccess), ticket.Code, "checked in by "+staff.Label())

	if s.Events != nil {
		event := models.CheckinEvent{
			TicketID:    ticket.ID,
			Code:        ticket.Code,
			EventID:     ticket.EventID,
			Privileged:  ticket.Privileged(),
			StaffID:     staff.UserID,
			Method:      req.Method,
			CheckedInAt: now,
		}
		if ticket.TicketType != nil {
			event.TypeCode = ticket.TicketType.Code
		}
		if attendance != nil {
			event.Attendance = *attendance
		}
		if err := s.Events.PublishCheckin(ctx, event); err != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish check-in of %s: %v", ticket.ID, err))
		}
	}

	return result, nil
}

// reject classifies a ticket that cannot be redeemed. It returns nil when
// the ticket is redeemable. Refunds are checked before status so a refunded
// USED ticket reports refunded.
func (s *TicketService) reject(ctx context.Context, ticket *models.Ticket) *models.CheckinResult {
	switch {
	case ticket.Refunded():
		return &models.CheckinResult{
			Result:  models.ScanResultRefunded,
			Message: "Ticket was refunded",
			Ticket:  models.NewTicketView(ticket, s.actorLabel(ctx, ticket.CheckedInBy)),
		}
	case ticket.Status == models.TicketStatusCancelled:
		return &models.CheckinResult{
			Result:  models.ScanResultInvalid,
			Message: "Ticket was cancelled",
			Ticket:  models.NewTicketView(ticket, ""),
		}
	case ticket.Status == models.TicketStatusUsed:
		by := s.actorLabel(ctx, ticket.CheckedInBy)
		return &models.CheckinResult{
			Result:      models.ScanResultAlreadyUsed,
			Message:     "Ticket already checked in",
			Ticket:      models.NewTicketView(ticket, by),
			CheckedInAt: ticket.CheckedInAt,
			CheckedInBy: by,
		}
	case ticket.Status != models.TicketStatusValid:
		return &models.CheckinResult{
			Result:  models.ScanResultInvalid,
			Message: fmt.Sprintf("Ticket status %s cannot be checked in", ticket.Status),
		}
	}
	return nil
}
