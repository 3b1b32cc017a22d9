package analytics_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ms-admission/internal/analytics"
	"ms-admission/internal/auth"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Reconciliation interface {
	Reconcile(ctx context.Context, since time.Time) (*analytics.ReconciliationReport, error)
	SinceDefault() time.Time
	AttendanceDrift(ctx context.Context) ([]analytics.AttendanceDrift, error)
	RepairAttendance(ctx context.Context) ([]analytics.AttendanceDrift, error)
}

// Handler serves the reconciliation reports. Callers mount it behind the
// admin role check.
type Handler struct {
	Reconciler Reconciliation
	Logger     *logger.Logger
}

func NewHandler(rec Reconciliation, log *logger.Logger) *Handler {
	return &Handler{Reconciler: rec, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reconciliation", h.GetReconciliation)
	r.Get("/attendance/drift", h.GetAttendanceDrift)
	r.Post("/attendance/repair", h.RepairAttendance)
}

// GetReconciliation reports paid sessions without tickets. since is RFC3339
// and defaults to the configured lookback.
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	since := h.Reconciler.SinceDefault()
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.WriteError(w, fmt.Errorf("%w: since must be an RFC3339 timestamp", models.ErrValidation))
			return
		}
		since = parsed.UTC()
	}

	report, err := h.Reconciler.Reconcile(r.Context(), since)
	if err != nil {
		h.Logger.Error("RECONCILE", fmt.Sprintf("Reconciliation failed: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) GetAttendanceDrift(w http.ResponseWriter, r *http.Request) {
	drift, err := h.Reconciler.AttendanceDrift(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"drift": drift})
}

func (h *Handler) RepairAttendance(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.Reconciler.RepairAttendance(r.Context())
	if err != nil {
		h.Logger.Error("RECONCILE", fmt.Sprintf("Attendance repair failed: %v", err))
		utils.WriteError(w, err)
		return
	}
	h.Logger.LogSecurity("ATTENDANCE_REPAIR", fmt.Sprintf("%s rewrote counters for %d event(s)", auth.UserID(r.Context()), len(repaired)))
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"repaired": repaired})
}
