package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/utils"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Checkout session metadata keys. The webhook reads them back verbatim.
const (
	MetadataTicketTypeID = "ticket_type_id"
	MetadataEventID      = "event_id"
	MetadataBuyerName    = "buyer_name"
	MetadataBuyerEmail   = "buyer_email"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeService handles integration with Stripe payment gateway
type StripeService struct {
	client  *client.API
	log     *logger.Logger
	timeout time.Duration
}

type CheckoutRequest struct {
	TicketType *models.TicketType
	BuyerName  string
	BuyerEmail string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CompletedSession is a finished checkout session as listed by Stripe.
type CompletedSession struct {
	ID              string
	PaymentIntentID string
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	Created         time.Time
	Metadata        map[string]string
}

// Paid reports whether the session entitles the buyer to a ticket.
func (c CompletedSession) Paid() bool {
	return IsPaid(c.PaymentStatus)
}

// IsPaid reports whether a checkout session payment status settles the
// purchase.
func IsPaid(status string) bool {
	return status == string(stripe.CheckoutSessionPaymentStatusPaid) ||
		status == string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired)
}

// NewStripeService creates a new instance of StripeService. timeout bounds
// every API call.
func NewStripeService(secretKey string, timeout time.Duration, log *logger.Logger) (*StripeService, error) {
	return NewStripeServiceWithBackends(secretKey, nil, timeout, log)
}

// NewStripeServiceWithBackends lets tests point the client at a local server.
func NewStripeServiceWithBackends(secretKey string, backends *stripe.Backends, timeout time.Duration, log *logger.Logger) (*StripeService, error) {
	if secretKey == "" {
		log.Error("STRIPE", "Stripe secret key is not configured")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(secretKey, backends)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{client: sc, log: log, timeout: timeout}, nil
}

func (s *StripeService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// CreateCheckoutSession opens a hosted payment page for one ticket.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tt := req.TicketType
	metadata := map[string]string{
		MetadataTicketTypeID: tt.ID,
		MetadataEventID:      tt.EventID,
		MetadataBuyerName:    req.BuyerName,
		MetadataBuyerEmail:   req.BuyerEmail,
	}

	lineItem := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if tt.PriceRef != "" {
		lineItem.Price = stripe.String(tt.PriceRef)
	} else {
		lineItem.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(tt.Currency),
			UnitAmount: stripe.Int64(tt.PriceMinor),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(tt.Name),
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		CustomerEmail: stripe.String(req.BuyerEmail),
		LineItems:     []*stripe.CheckoutSessionLineItemParams{lineItem},
		Metadata:      metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx

	sess, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for type %s: %v", tt.ID, err))
		return nil, fmt.Errorf("%w: %v", models.ErrProcessorUnavailable, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Checkout session %s created for type %s", sess.ID, tt.ID))
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ListCompletedSessions pages through every completed checkout session
// created at or after since.
func (s *StripeService) ListCompletedSessions(ctx context.Context, since time.Time) ([]CompletedSession, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	params := &stripe.CheckoutSessionListParams{
		Status: stripe.String(string(stripe.CheckoutSessionStatusComplete)),
	}
	if !since.IsZero() {
		params.CreatedRange = &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()}
	}
	params.Limit = stripe.Int64(100)
	params.Context = ctx

	var out []CompletedSession
	iter := s.client.CheckoutSessions.List(params)
	for iter.Next() {
		sess := iter.CheckoutSession()
		c := CompletedSession{
			ID:            sess.ID,
			PaymentStatus: string(sess.PaymentStatus),
			AmountTotal:   sess.AmountTotal,
			Currency:      string(sess.Currency),
			Created:       utils.UnixTimeToTime(sess.Created),
			Metadata:      sess.Metadata,
		}
		if sess.PaymentIntent != nil {
			c.PaymentIntentID = sess.PaymentIntent.ID
		}
		out = append(out, c)
	}
	if err := iter.Err(); err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to list checkout sessions: %v", err))
		return nil, fmt.Errorf("%w: %v", models.ErrProcessorUnavailable, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Listed %d completed checkout session(s) since %s", len(out), since.Format(time.RFC3339)))
	return out, nil
}
