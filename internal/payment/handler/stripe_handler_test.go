package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ms-admission/internal/logger"
	"ms-admission/internal/payment/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, payload []byte, signature string) (*webhook.Result, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhook.Result), args.Error(1)
}

func post(t *testing.T, ingester WebhookIngester, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewStripeHandler(ingester, logger.NewWriterLogger(io.Discard)).RegisterRoutes(r)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleWebhookAcknowledges(t *testing.T) {
	ingester := new(MockIngester)
	ingester.On("Ingest", mock.Anything, []byte(`{"id":"evt_1"}`), "t=1,v1=abc").
		Return(&webhook.Result{EventID: "evt_1", EventType: "checkout.session.completed", Action: webhook.ActionIssued}, nil)

	rec := post(t, ingester, `{"id":"evt_1"}`, "t=1,v1=abc")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["received"])
	ingester.AssertExpectations(t)
}

func TestHandleWebhookUsesWebhookErrorStatus(t *testing.T) {
	cases := []struct {
		name string
		err  *webhook.WebhookError
	}{
		{"signature", &webhook.WebhookError{Category: webhook.CategoryValidation, StatusCode: http.StatusBadRequest, PublicError: "Webhook signature verification failed", InternalError: "bad v1"}},
		{"store", &webhook.WebhookError{Category: webhook.CategoryProcessing, StatusCode: http.StatusInternalServerError, PublicError: "Failed to process webhook", InternalError: "dial tcp: refused"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ingester := new(MockIngester)
			ingester.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)

			rec := post(t, ingester, `{}`, "")

			assert.Equal(t, tc.err.StatusCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.err.PublicError)
			assert.NotContains(t, rec.Body.String(), tc.err.InternalError)
		})
	}
}

func TestHandleWebhookUnclassifiedError(t *testing.T) {
	ingester := new(MockIngester)
	ingester.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	rec := post(t, ingester, `{}`, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
