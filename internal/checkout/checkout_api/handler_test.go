package checkout_api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ms-admission/internal/checkout"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) CreateSession(ctx context.Context, req checkout.Request) (*checkout.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Response), args.Error(1)
}

func serve(t *testing.T, creator SessionCreator, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(creator, logger.NewWriterLogger(io.Discard)).RegisterRoutes(r)
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateCheckoutReturns201(t *testing.T) {
	creator := new(MockCreator)
	creator.On("CreateSession", mock.Anything, checkout.Request{
		TicketTypeID: "tt-1", BuyerName: "Ada", BuyerEmail: "ada@example.com",
	}).Return(&checkout.Response{RedirectURL: "https://pay/cs_1", SessionID: "cs_1"}, nil)

	rec := serve(t, creator, `{"ticketTypeId":"tt-1","buyerName":"Ada","buyerEmail":"ada@example.com"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var res checkout.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "cs_1", res.SessionID)
	assert.Equal(t, "https://pay/cs_1", res.RedirectURL)
}

func TestCreateCheckoutErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"sold out", models.ErrSoldOut, http.StatusBadRequest, "sold_out"},
		{"closed", models.ErrSalesClosed, http.StatusBadRequest, "sales_closed"},
		{"unknown type", models.ErrTicketTypeNotFound, http.StatusNotFound, "ticket_type_not_found"},
		{"validation", fmt.Errorf("%w: BuyerEmail: email", models.ErrValidation), http.StatusBadRequest, "invalid_input"},
		{"processor", fmt.Errorf("%w: timeout", models.ErrProcessorUnavailable), http.StatusBadGateway, "processor_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creator := new(MockCreator)
			creator.On("CreateSession", mock.Anything, mock.Anything).Return(nil, tc.err)

			rec := serve(t, creator, `{"ticketTypeId":"tt-1","buyerName":"Ada","buyerEmail":"ada@example.com"}`)

			assert.Equal(t, tc.status, rec.Code)
			var body utils.APIResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.Error)
		})
	}
}

func TestCreateCheckoutRejectsBadJSON(t *testing.T) {
	creator := new(MockCreator)
	rec := serve(t, creator, `{"ticketTypeId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	creator.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestProcessorMessageIsNotLeaked(t *testing.T) {
	creator := new(MockCreator)
	creator.On("CreateSession", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: sk_live_secret rejected", models.ErrProcessorUnavailable))

	rec := serve(t, creator, `{"ticketTypeId":"tt-1","buyerName":"Ada","buyerEmail":"ada@example.com"}`)
	assert.NotContains(t, rec.Body.String(), "sk_live_secret")
}
