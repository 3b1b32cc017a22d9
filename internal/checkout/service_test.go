package checkout_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ms-admission/internal/checkout"
	"ms-admission/internal/database/dbtest"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/payment/services"
	"ms-admission/internal/tickets/db"
	"ms-admission/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) CreateCheckoutSession(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CheckoutSession), args.Error(1)
}

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, mutate func(*models.TicketType)) (*checkout.Service, *MockProcessor, *db.DB, *models.TicketType) {
	bunDB := dbtest.New(t)
	event := dbtest.Event(t, bunDB, "Summer Sessions")
	tt := dbtest.TicketType(t, bunDB, event, mutate)
	store := db.New(bunDB, time.Second)
	processor := new(MockProcessor)
	svc := checkout.NewService(store, processor, utils.NewFixedClock(now), logger.NewWriterLogger(io.Discard), "https://ok", "https://cancel")
	return svc, processor, store, tt
}

func request(tt *models.TicketType) checkout.Request {
	return checkout.Request{TicketTypeID: tt.ID, BuyerName: "Ada Lovelace", BuyerEmail: "ada@example.com"}
}

func TestCreateSessionSuccess(t *testing.T) {
	svc, processor, _, tt := setup(t, nil)
	processor.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req services.CheckoutRequest) bool {
		return req.TicketType.ID == tt.ID && req.BuyerEmail == "ada@example.com" && req.SuccessURL == "https://ok"
	})).Return(&services.CheckoutSession{ID: "cs_test_1", URL: "https://pay/cs_test_1"}, nil)

	res, err := svc.CreateSession(context.Background(), request(tt))
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, "https://pay/cs_test_1", res.RedirectURL)
	processor.AssertExpectations(t)
}

func TestCreateSessionValidation(t *testing.T) {
	svc, processor, _, tt := setup(t, nil)

	req := request(tt)
	req.BuyerEmail = "not-an-email"
	_, err := svc.CreateSession(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "BuyerEmail: email")

	req = request(tt)
	req.BuyerName = "   "
	_, err = svc.CreateSession(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrValidation)

	processor.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCreateSessionUnknownOrHiddenType(t *testing.T) {
	svc, _, _, tt := setup(t, func(tt *models.TicketType) { tt.Visible = false })

	_, err := svc.CreateSession(context.Background(), request(tt))
	assert.ErrorIs(t, err, models.ErrTicketTypeNotFound)

	req := request(tt)
	req.TicketTypeID = "missing"
	_, err = svc.CreateSession(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrTicketTypeNotFound)
}

func TestCreateSessionSoldOutBeforeSalesWindow(t *testing.T) {
	closed := now.Add(-time.Hour)
	svc, processor, store, tt := setup(t, func(tt *models.TicketType) {
		tt.Capacity = 1
		tt.SalesEnd = &closed
	})
	dbtest.Ticket(t, store.Bun, tt, nil)

	_, err := svc.CreateSession(context.Background(), request(tt))
	assert.ErrorIs(t, err, models.ErrSoldOut)
	processor.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCreateSessionCancelledTicketsFreeCapacity(t *testing.T) {
	svc, processor, store, tt := setup(t, func(tt *models.TicketType) { tt.Capacity = 1 })
	dbtest.Ticket(t, store.Bun, tt, func(tk *models.Ticket) { tk.Status = models.TicketStatusCancelled })
	processor.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(&services.CheckoutSession{ID: "cs_2"}, nil)

	_, err := svc.CreateSession(context.Background(), request(tt))
	assert.NoError(t, err)
}

func TestCreateSessionSalesWindow(t *testing.T) {
	opens := now.Add(time.Hour)
	svc, _, _, tt := setup(t, func(tt *models.TicketType) { tt.SalesStart = &opens })
	_, err := svc.CreateSession(context.Background(), request(tt))
	assert.ErrorIs(t, err, models.ErrSalesNotOpen)

	closed := now.Add(-time.Minute)
	svc, _, _, tt = setup(t, func(tt *models.TicketType) { tt.SalesEnd = &closed })
	_, err = svc.CreateSession(context.Background(), request(tt))
	assert.ErrorIs(t, err, models.ErrSalesClosed)
}

func TestCreateSessionProcessorFailure(t *testing.T) {
	svc, processor, _, tt := setup(t, nil)
	processor.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	_, err := svc.CreateSession(context.Background(), request(tt))
	assert.ErrorIs(t, err, models.ErrProcessorUnavailable)
}
