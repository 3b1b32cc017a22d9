// Package checkout opens processor checkout sessions for ticket purchases.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/payment/services"
	"ms-admission/internal/utils"

	"github.com/go-playground/validator/v10"
)

type PaymentProcessor interface {
	CreateCheckoutSession(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error)
}

type CheckoutDBLayer interface {
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	CountLiveTickets(ctx context.Context, ticketTypeID string) (int, error)
}

type Request struct {
	TicketTypeID string `json:"ticketTypeId" validate:"required,max=64"`
	BuyerName    string `json:"buyerName" validate:"required,max=200"`
	BuyerEmail   string `json:"buyerEmail" validate:"required,email,max=254"`
}

type Response struct {
	RedirectURL string `json:"redirectUrl"`
	SessionID   string `json:"sessionId"`
}

type Service struct {
	DB         CheckoutDBLayer
	Processor  PaymentProcessor
	Clock      utils.Clock
	Logger     *logger.Logger
	SuccessURL string
	CancelURL  string

	validate *validator.Validate
}

func NewService(db CheckoutDBLayer, processor PaymentProcessor, clock utils.Clock, log *logger.Logger, successURL, cancelURL string) *Service {
	if clock == nil {
		clock = utils.SystemClock()
	}
	return &Service{
		DB:         db,
		Processor:  processor,
		Clock:      clock,
		Logger:     log,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		validate:   validator.New(),
	}
}

// CreateSession checks the type can still be sold and opens a checkout
// session for one ticket. No ticket row exists until the processor reports
// the session paid.
//
// The capacity check is advisory: two buyers racing for the last ticket can
// both be sent to checkout.
func (s *Service) CreateSession(ctx context.Context, req Request) (*Response, error) {
	req.TicketTypeID = strings.TrimSpace(req.TicketTypeID)
	req.BuyerName = strings.TrimSpace(req.BuyerName)
	req.BuyerEmail = strings.TrimSpace(req.BuyerEmail)

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, utils.DescribeValidation(err))
	}

	tt, err := s.DB.GetTicketType(ctx, req.TicketTypeID)
	if err != nil {
		if errors.Is(err, models.ErrTicketTypeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if !tt.Visible {
		return nil, models.ErrTicketTypeNotFound
	}

	sold, err := s.DB.CountLiveTickets(ctx, tt.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if sold >= tt.Capacity {
		s.Logger.Info("CHECKOUT", fmt.Sprintf("Type %s sold out (%d/%d)", tt.ID, sold, tt.Capacity))
		return nil, models.ErrSoldOut
	}

	if err := tt.SalesWindowError(s.Clock.Now()); err != nil {
		return nil, err
	}

	sess, err := s.Processor.CreateCheckoutSession(ctx, services.CheckoutRequest{
		TicketType: tt,
		BuyerName:  req.BuyerName,
		BuyerEmail: req.BuyerEmail,
		SuccessURL: s.SuccessURL,
		CancelURL:  s.CancelURL,
	})
	if err != nil {
		if errors.Is(err, models.ErrProcessorUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrProcessorUnavailable, err)
	}

	s.Logger.Info("CHECKOUT", fmt.Sprintf("Session %s opened for type %s", sess.ID, tt.ID))
	return &Response{RedirectURL: sess.URL, SessionID: sess.ID}, nil
}
