package checkout_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-admission/internal/checkout"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/utils"

	"github.com/go-chi/chi/v5"
)

type SessionCreator interface {
	CreateSession(ctx context.Context, req checkout.Request) (*checkout.Response, error)
}

type Handler struct {
	Checkout SessionCreator
	Logger   *logger.Logger
}

func NewHandler(svc SessionCreator, log *logger.Logger) *Handler {
	return &Handler{Checkout: svc, Logger: log}
}

// RegisterRoutes mounts the public purchase endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", h.CreateCheckout)
}

// CreateCheckout opens a processor session and returns where to send the buyer.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<10)

	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: request body is not valid JSON", models.ErrValidation))
		return
	}

	res, err := h.Checkout.CreateSession(r.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrProcessorUnavailable) || errors.Is(err, models.ErrStoreUnavailable) {
			h.Logger.Error("CHECKOUT", fmt.Sprintf("Create session failed: %v", err))
		}
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, res)
}
