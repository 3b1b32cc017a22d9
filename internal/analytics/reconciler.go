// Package analytics compares what the payment processor knows with the
// ticket store and reports the differences.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/payment/services"
	"ms-admission/internal/utils"
)

type SessionLister interface {
	ListCompletedSessions(ctx context.Context, since time.Time) ([]services.CompletedSession, error)
}

type ReconcileStore interface {
	ListSessionIDs(ctx context.Context) ([]string, error)
	ListAttendance(ctx context.Context) ([]models.Attendance, error)
	DerivedAttendance(ctx context.Context) ([]models.Attendance, error)
	SetAttendance(ctx context.Context, a models.Attendance) error
}

// Reconciler never issues or changes tickets. Missing sessions are left for
// the webhook path or a human to resolve.
type Reconciler struct {
	Processor SessionLister
	Store     ReconcileStore
	Clock     utils.Clock
	Logger    *logger.Logger
	// Lookback is the window used when no start time is given.
	Lookback time.Duration
}

func NewReconciler(processor SessionLister, store ReconcileStore, clock utils.Clock, log *logger.Logger, lookback time.Duration) *Reconciler {
	if clock == nil {
		clock = utils.SystemClock()
	}
	return &Reconciler{Processor: processor, Store: store, Clock: clock, Logger: log, Lookback: lookback}
}

// MissingSession is a paid processor session with no ticket row.
type MissingSession struct {
	SessionID       string    `json:"sessionId"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	TicketTypeID    string    `json:"ticketTypeId,omitempty"`
	EventID         string    `json:"eventId,omitempty"`
	BuyerEmail      string    `json:"buyerEmail,omitempty"`
	AmountTotal     int64     `json:"amountTotal"`
	Currency        string    `json:"currency"`
	Created         time.Time `json:"created"`
}

type ReconciliationReport struct {
	Since       time.Time `json:"since"`
	GeneratedAt time.Time `json:"generatedAt"`

	CompletedSessions int `json:"completedSessions"`
	PaidSessions      int `json:"paidSessions"`
	MatchedSessions   int `json:"matchedSessions"`

	ProcessorTickets int `json:"processorTickets"`
	ManualTickets    int `json:"manualTickets"`

	Missing []MissingSession `json:"missing"`
}

// Clean reports whether every paid session has a ticket.
func (r *ReconciliationReport) Clean() bool {
	return len(r.Missing) == 0
}

// SinceDefault is the start of the default window.
func (r *Reconciler) SinceDefault() time.Time {
	if r.Lookback <= 0 {
		return time.Time{}
	}
	return r.Clock.Now().Add(-r.Lookback)
}

// Reconcile lists paid sessions created at or after since and reports those
// without a ticket. Ticket counts cover the whole store, split by session
// prefix.
func (r *Reconciler) Reconcile(ctx context.Context, since time.Time) (*ReconciliationReport, error) {
	sessions, err := r.Processor.ListCompletedSessions(ctx, since)
	if err != nil {
		if errors.Is(err, models.ErrProcessorUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrProcessorUnavailable, err)
	}

	ids, err := r.Store.ListSessionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	report := &ReconciliationReport{
		Since:             since,
		GeneratedAt:       r.Clock.Now(),
		CompletedSessions: len(sessions),
		Missing:           []MissingSession{},
	}

	issued := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		switch {
		case strings.HasPrefix(id, models.ProcessorSessionPrefix):
			report.ProcessorTickets++
			issued[id] = struct{}{}
		case strings.HasPrefix(id, models.ManualSessionPrefix):
			report.ManualTickets++
		}
	}

	for _, sess := range sessions {
		if !sess.Paid() {
			continue
		}
		report.PaidSessions++
		if _, ok := issued[sess.ID]; ok {
			report.MatchedSessions++
			continue
		}
		report.Missing = append(report.Missing, MissingSession{
			SessionID:       sess.ID,
			PaymentIntentID: sess.PaymentIntentID,
			TicketTypeID:    sess.Metadata[services.MetadataTicketTypeID],
			EventID:         sess.Metadata[services.MetadataEventID],
			BuyerEmail:      sess.Metadata[services.MetadataBuyerEmail],
			AmountTotal:     sess.AmountTotal,
			Currency:        sess.Currency,
			Created:         sess.Created,
		})
	}
	sort.Slice(report.Missing, func(i, j int) bool {
		return report.Missing[i].Created.Before(report.Missing[j].Created)
	})

	r.Logger.Info("RECONCILE", fmt.Sprintf("%d paid session(s), %d matched, %d missing a ticket",
		report.PaidSessions, report.MatchedSessions, len(report.Missing)))
	return report, nil
}
