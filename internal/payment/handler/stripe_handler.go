package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-admission/internal/logger"
	"ms-admission/internal/payment/webhook"
	"ms-admission/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Stripe caps event payloads well below this.
const maxWebhookBytes = 1 << 20

type WebhookIngester interface {
	Ingest(ctx context.Context, payload []byte, signature string) (*webhook.Result, error)
}

type StripeHandler struct {
	ingester WebhookIngester
	logger   *logger.Logger
}

func NewStripeHandler(ingester WebhookIngester, logger *logger.Logger) *StripeHandler {
	return &StripeHandler{ingester: ingester, logger: logger}
}

func (h *StripeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.HandleWebhook)
}

// HandleWebhook acknowledges a Stripe event once it has been applied. Any
// non-2xx answer makes Stripe redeliver.
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("API", fmt.Sprintf("StripeWebhook: failed to read payload: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", "invalid_payload"))
		return
	}

	res, err := h.ingester.Ingest(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var webhookErr *webhook.WebhookError
		if errors.As(err, &webhookErr) {
			h.logger.Info("API", fmt.Sprintf("StripeWebhook: category=%s status=%d", webhookErr.Category, webhookErr.StatusCode))
			utils.WriteJSON(w, webhookErr.StatusCode, utils.ErrorResponse(webhookErr.PublicError, webhookErr.Category))
			return
		}
		h.logger.Error("API", fmt.Sprintf("StripeWebhook: unclassified failure: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Webhook processing error", "processing"))
		return
	}

	h.logger.LogWebhook(res.EventType, res.EventID, string(res.Action))
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
