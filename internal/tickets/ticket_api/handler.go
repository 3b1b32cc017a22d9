package ticket_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ms-admission/internal/auth"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	qr "ms-admission/internal/tickets/qr_generator"
	tickets "ms-admission/internal/tickets/service"
	"ms-admission/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	DeviceFingerprintHeader = "X-Device-Fingerprint"

	maxQRSize = 1024
	minQRSize = 128
)

type TicketOperations interface {
	Validate(ctx context.Context, staff *models.Staff, raw string) (*models.TicketView, error)
	CheckIn(ctx context.Context, staff *models.Staff, req tickets.CheckinRequest) (*models.CheckinResult, error)
	Find(ctx context.Context, staff *models.Staff, raw string) (*models.Ticket, error)
	Cancel(ctx context.Context, staff *models.Staff, raw string) (*models.Ticket, error)
	IssueComp(ctx context.Context, staff *models.Staff, req tickets.CompRequest) (*models.Ticket, bool, error)
	ExportCSV(ctx context.Context, staff *models.Staff, eventID string, w io.Writer) (int, error)
}

type Handler struct {
	Tickets     TicketOperations
	QRGenerator *qr.QRGenerator
	Logger      *logger.Logger

	validate *validator.Validate
}

func NewHandler(ops TicketOperations, qrGen *qr.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{Tickets: ops, QRGenerator: qrGen, Logger: log, validate: validator.New()}
}

// RegisterRoutes mounts the door endpoints. Authentication runs upstream.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/validate-ticket", h.ValidateTicket)
	r.Post("/checkin-ticket", h.CheckinTicket)
}

// RegisterAdminRoutes mounts the admin ticket tools.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/tickets/export", h.ExportTickets)
	r.Post("/tickets/comp", h.IssueComp)
	r.Post("/tickets/{code}/cancel", h.CancelTicket)
	r.Get("/tickets/{code}/qr", h.TicketQR)
}

type checkinBody struct {
	TicketCode string `json:"ticketCode"`
	Method     string `json:"method"`
	Note       string `json:"note"`
}

type ticketResponse struct {
	Ticket *models.TicketView `json:"ticket"`
	QRURL  string             `json:"qrUrl,omitempty"`
}

// ValidateTicket handles GET /validate-ticket?code=...
func (h *Handler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if strings.TrimSpace(code) == "" {
		utils.WriteError(w, fmt.Errorf("%w: code is required", models.ErrValidation))
		return
	}

	view, err := h.Tickets.Validate(r.Context(), auth.Staff(r.Context()), code)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

// CheckinTicket redeems a scanned or typed code. The body always carries the
// classification; the status is 200 only on success.
func (h *Handler) CheckinTicket(w http.ResponseWriter, r *http.Request) {
	var body checkinBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10)).Decode(&body); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: request body is not valid JSON", models.ErrValidation))
		return
	}
	if strings.TrimSpace(body.TicketCode) == "" {
		utils.WriteError(w, fmt.Errorf("%w: ticketCode is required", models.ErrValidation))
		return
	}
	switch body.Method {
	case "", models.ScanMethodQR, models.ScanMethodManual:
	default:
		utils.WriteError(w, fmt.Errorf("%w: method must be qr or manual", models.ErrValidation))
		return
	}

	result, err := h.Tickets.CheckIn(r.Context(), auth.Staff(r.Context()), tickets.CheckinRequest{
		Code:              body.TicketCode,
		Method:            body.Method,
		Note:              body.Note,
		DeviceFingerprint: r.Header.Get(DeviceFingerprintHeader),
	})
	if result == nil {
		utils.WriteError(w, err)
		return
	}

	status := http.StatusBadRequest
	switch {
	case err != nil:
		status = models.HTTPStatus(err)
	case result.Success:
		status = http.StatusOK
	}
	utils.WriteJSON(w, status, result)
}

// ExportTickets streams the CSV export, optionally for one event.
func (h *Handler) ExportTickets(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")

	var buf bytes.Buffer
	n, err := h.Tickets.ExportCSV(r.Context(), auth.Staff(r.Context()), eventID, &buf)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	name := "tickets-all.csv"
	if eventID != "" {
		name = fmt.Sprintf("tickets-%s.csv", eventID)
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Ticket-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// IssueComp issues a complimentary ticket. Replaying an idempotency key
// returns 200 with the original ticket instead of 201.
func (h *Handler) IssueComp(w http.ResponseWriter, r *http.Request) {
	var req tickets.CompRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10)).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: request body is not valid JSON", models.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %s", models.ErrValidation, utils.DescribeValidation(err)))
		return
	}

	ticket, created, err := h.Tickets.IssueComp(r.Context(), auth.Staff(r.Context()), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.WriteJSON(w, status, ticketResponse{
		Ticket: models.NewTicketView(ticket, ""),
		QRURL:  h.QRGenerator.URL(ticket.Code),
	})
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Tickets.Cancel(r.Context(), auth.Staff(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ticketResponse{Ticket: models.NewTicketView(ticket, "")})
}

// TicketQR renders the ticket link as a PNG. ?size= is clamped to
// [128, 1024] pixels.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Tickets.Find(r.Context(), auth.Staff(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	size := qr.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.WriteError(w, fmt.Errorf("%w: size must be an integer", models.ErrValidation))
			return
		}
		size = min(max(parsed, minQRSize), maxQRSize)
	}

	png, err := h.QRGenerator.PNG(ticket.Code, size)
	if err != nil {
		h.Logger.Error("QR", fmt.Sprintf("Failed to render QR for %s: %v", ticket.Code, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to render QR code", "internal_error"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
