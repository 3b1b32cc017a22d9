package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/utils"

	"github.com/go-chi/chi/v5"
)

const heartbeatInterval = 15 * time.Second

type AttendanceReader interface {
	GetAttendance(ctx context.Context, eventID string) (*models.Attendance, error)
}

type Handler struct {
	Emitter    *AttendanceEmitter
	Attendance AttendanceReader
	Logger     *logger.Logger
	Heartbeat  time.Duration
}

func NewHandler(emitter *AttendanceEmitter, attendance AttendanceReader, log *logger.Logger) *Handler {
	return &Handler{Emitter: emitter, Attendance: attendance, Logger: log, Heartbeat: heartbeatInterval}
}

// StreamAttendance sends the current counters, then one "checkin" event per
// redemption until the client goes away.
func (h *Handler) StreamAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Streaming unsupported", "internal_error"))
		return
	}

	snapshot, err := h.Attendance.GetAttendance(r.Context(), eventID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events := h.Emitter.Subscribe(r.Context(), eventID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "attendance", snapshot)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Attendance stream opened for event %s (%d client(s))", eventID, h.Emitter.ClientCount(eventID)))

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.Logger.Info("SSE", fmt.Sprintf("Attendance stream closed for event %s", eventID))
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, "checkin", event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
}
