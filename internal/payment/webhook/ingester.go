// Package webhook turns verified Stripe notifications into ticket state.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/payment/services"
	tickets "ms-admission/internal/tickets/service"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	EventSessionCompleted          = "checkout.session.completed"
	EventSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventChargeRefunded            = "charge.refunded"
	EventDisputeCreated            = "charge.dispute.created"
)

const (
	CategoryConfiguration = "configuration"
	CategoryValidation    = "validation"
	CategoryProcessing    = "processing"
)

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string
	StatusCode    int
	PublicError   string // Safe to expose to clients
	InternalError string // Detailed error for logs only
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

type TicketIssuer interface {
	IssueFromSession(ctx context.Context, in tickets.SessionIssue) (*models.Ticket, bool, error)
	ApplyRefund(ctx context.Context, paymentIntentID string) ([]models.Ticket, error)
	ApplyChargeback(ctx context.Context, paymentIntentID string) ([]models.Ticket, error)
}

// Action says what a delivery did.
type Action string

const (
	ActionIssued     Action = "issued"
	ActionDuplicate  Action = "duplicate"
	ActionUnpaid     Action = "unpaid"
	ActionAdjustment Action = "adjusted"
	ActionIgnored    Action = "ignored"
)

type Result struct {
	EventID   string
	EventType string
	Action    Action
	Ticket    *models.Ticket
	Cancelled int
}

type Ingester struct {
	Tickets TicketIssuer
	Secret  string
	Logger  *logger.Logger
}

func NewIngester(issuer TicketIssuer, secret string, log *logger.Logger) *Ingester {
	return &Ingester{Tickets: issuer, Secret: secret, Logger: log}
}

// Ingest verifies payload against the Stripe-Signature header value and
// applies the event. Every returned error is a *WebhookError.
func (i *Ingester) Ingest(ctx context.Context, payload []byte, signature string) (*Result, error) {
	if i.Secret == "" {
		i.Logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return nil, &WebhookError{
			Category:      CategoryConfiguration,
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Webhook endpoint is not configured",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, i.Secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		i.Logger.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("Rejected webhook: %v", err))
		return nil, &WebhookError{
			Category:      CategoryValidation,
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Webhook signature verification failed",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	res := &Result{EventID: event.ID, EventType: string(event.Type)}
	switch string(event.Type) {
	case EventSessionCompleted, EventSessionAsyncPaymentSucceeded:
		err = i.handleSession(ctx, event, res)
	case EventChargeRefunded:
		err = i.handleRefund(ctx, event, res)
	case EventDisputeCreated:
		err = i.handleDispute(ctx, event, res)
	default:
		res.Action = ActionIgnored
		i.Logger.LogWebhook(res.EventType, res.EventID, "Unhandled event type")
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (i *Ingester) handleSession(ctx context.Context, event stripe.Event, res *Result) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return i.invalidData(res, "checkout session", err)
	}

	if !services.IsPaid(string(sess.PaymentStatus)) {
		res.Action = ActionUnpaid
		i.Logger.LogWebhook(res.EventType, res.EventID, fmt.Sprintf("Session %s not paid yet (%s)", sess.ID, sess.PaymentStatus))
		return nil
	}

	in := tickets.SessionIssue{
		SessionID:    sess.ID,
		TicketTypeID: sess.Metadata[services.MetadataTicketTypeID],
		EventID:      sess.Metadata[services.MetadataEventID],
		BuyerName:    sess.Metadata[services.MetadataBuyerName],
		BuyerEmail:   sess.Metadata[services.MetadataBuyerEmail],
	}
	if sess.PaymentIntent != nil {
		in.PaymentIntentID = sess.PaymentIntent.ID
	}

	ticket, created, err := i.Tickets.IssueFromSession(ctx, in)
	if err != nil {
		return i.failed(res, fmt.Sprintf("issue ticket for session %s", sess.ID), err)
	}

	res.Ticket = ticket
	if created {
		res.Action = ActionIssued
		i.Logger.LogWebhook(res.EventType, res.EventID, fmt.Sprintf("Issued %s for session %s", ticket.Code, sess.ID))
	} else {
		res.Action = ActionDuplicate
		i.Logger.LogWebhook(res.EventType, res.EventID, fmt.Sprintf("Session %s already has ticket %s", sess.ID, ticket.Code))
	}
	return nil
}

func (i *Ingester) handleRefund(ctx context.Context, event stripe.Event, res *Result) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return i.invalidData(res, "charge", err)
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		res.Action = ActionIgnored
		i.Logger.LogWebhook(res.EventType, res.EventID, fmt.Sprintf("Charge %s has no payment intent", charge.ID))
		return nil
	}

	cancelled, err := i.Tickets.ApplyRefund(ctx, charge.PaymentIntent.ID)
	if err != nil {
		return i.failed(res, fmt.Sprintf("apply refund for %s", charge.PaymentIntent.ID), err)
	}
	res.Action = ActionAdjustment
	res.Cancelled = len(cancelled)
	return nil
}

func (i *Ingester) handleDispute(ctx context.Context, event stripe.Event, res *Result) error {
	var dispute stripe.Dispute
	if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
		return i.invalidData(res, "dispute", err)
	}
	if dispute.PaymentIntent == nil || dispute.PaymentIntent.ID == "" {
		res.Action = ActionIgnored
		i.Logger.LogWebhook(res.EventType, res.EventID, fmt.Sprintf("Dispute %s has no payment intent", dispute.ID))
		return nil
	}

	cancelled, err := i.Tickets.ApplyChargeback(ctx, dispute.PaymentIntent.ID)
	if err != nil {
		return i.failed(res, fmt.Sprintf("apply chargeback for %s", dispute.PaymentIntent.ID), err)
	}
	res.Action = ActionAdjustment
	res.Cancelled = len(cancelled)
	return nil
}

func (i *Ingester) invalidData(res *Result, object string, err error) error {
	msg := fmt.Sprintf("Failed to unmarshal %s: %v", object, err)
	i.Logger.Error("WEBHOOK", fmt.Sprintf("[%s] %s - %s", res.EventType, res.EventID, msg))
	return &WebhookError{
		Category:      CategoryValidation,
		StatusCode:    http.StatusBadRequest,
		PublicError:   "Invalid event data",
		InternalError: msg,
		OriginalErr:   err,
	}
}

// failed classifies an issuance or adjustment error. Metadata problems are
// the sender's fault and will not succeed on retry; everything else asks
// Stripe to redeliver.
func (i *Ingester) failed(res *Result, action string, err error) error {
	msg := fmt.Sprintf("Failed to %s: %v", action, err)
	i.Logger.Error("WEBHOOK", fmt.Sprintf("[%s] %s - %s", res.EventType, res.EventID, msg))

	if errors.Is(err, models.ErrMalformedMetadata) {
		return &WebhookError{
			Category:      CategoryValidation,
			StatusCode:    http.StatusBadRequest,
			PublicError:   models.PublicMessage(err),
			InternalError: msg,
			OriginalErr:   err,
		}
	}
	return &WebhookError{
		Category:      CategoryProcessing,
		StatusCode:    http.StatusInternalServerError,
		PublicError:   "Failed to process webhook",
		InternalError: msg,
		OriginalErr:   err,
	}
}
