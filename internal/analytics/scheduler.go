package analytics

import (
	"context"
	"fmt"
	"time"
)

// Run reconciles every interval until ctx is cancelled and logs what it
// finds. It does not repair anything.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	r.Logger.Info("RECONCILE", fmt.Sprintf("Scheduled reconciliation every %s", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("RECONCILE", "Scheduled reconciliation stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	report, err := r.Reconcile(ctx, r.SinceDefault())
	if err != nil {
		r.Logger.Error("RECONCILE", fmt.Sprintf("Reconciliation failed: %v", err))
	} else {
		for _, m := range report.Missing {
			r.Logger.Warn("RECONCILE", fmt.Sprintf("Paid session %s (%s) has no ticket", m.SessionID, m.Created.Format(time.RFC3339)))
		}
	}

	drift, err := r.AttendanceDrift(ctx)
	if err != nil {
		r.Logger.Error("RECONCILE", fmt.Sprintf("Attendance drift check failed: %v", err))
		return
	}
	for _, d := range drift {
		r.Logger.Warn("RECONCILE", fmt.Sprintf("Event %s counters %d/%d, tickets say %d/%d",
			d.EventID, d.StoredTotal, d.StoredPrivileged, d.DerivedTotal, d.DerivedPrivileged))
	}
}
