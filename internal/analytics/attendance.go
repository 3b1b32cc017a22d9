package analytics

import (
	"context"
	"fmt"

	"ms-admission/internal/models"
)

// AttendanceDrift is an event whose stored counters disagree with its USED
// tickets.
type AttendanceDrift struct {
	EventID           string `json:"eventId"`
	StoredTotal       int    `json:"storedTotal"`
	DerivedTotal      int    `json:"derivedTotal"`
	StoredPrivileged  int    `json:"storedPrivileged"`
	DerivedPrivileged int    `json:"derivedPrivileged"`
}

func (d AttendanceDrift) derived() models.Attendance {
	return models.Attendance{EventID: d.EventID, Total: d.DerivedTotal, Privileged: d.DerivedPrivileged}
}

// AttendanceDrift lists every event whose counters are off.
func (r *Reconciler) AttendanceDrift(ctx context.Context) ([]AttendanceDrift, error) {
	stored, err := r.Store.ListAttendance(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	derived, err := r.Store.DerivedAttendance(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	byEvent := make(map[string]models.Attendance, len(derived))
	for _, a := range derived {
		byEvent[a.EventID] = a
	}

	drift := []AttendanceDrift{}
	for _, s := range stored {
		d := byEvent[s.EventID]
		if s.Total == d.Total && s.Privileged == d.Privileged {
			continue
		}
		drift = append(drift, AttendanceDrift{
			EventID:           s.EventID,
			StoredTotal:       s.Total,
			DerivedTotal:      d.Total,
			StoredPrivileged:  s.Privileged,
			DerivedPrivileged: d.Privileged,
		})
	}
	return drift, nil
}

// RepairAttendance overwrites drifted counters with the derived counts and
// returns what it changed. A check-in landing between the read and the
// write can be lost; running the repair again picks it up.
func (r *Reconciler) RepairAttendance(ctx context.Context) ([]AttendanceDrift, error) {
	drift, err := r.AttendanceDrift(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range drift {
		if err := r.Store.SetAttendance(ctx, d.derived()); err != nil {
			return nil, fmt.Errorf("%w: repair event %s: %v", models.ErrStoreUnavailable, d.EventID, err)
		}
		r.Logger.LogDatabase("UPDATE", "events", fmt.Sprintf("Attendance for %s repaired %d/%d -> %d/%d",
			d.EventID, d.StoredTotal, d.StoredPrivileged, d.DerivedTotal, d.DerivedPrivileged))
	}
	return drift, nil
}
