package analytics_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-admission/internal/analytics"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReconciliation struct {
	mock.Mock
}

func (m *MockReconciliation) Reconcile(ctx context.Context, since time.Time) (*analytics.ReconciliationReport, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.ReconciliationReport), args.Error(1)
}

func (m *MockReconciliation) SinceDefault() time.Time {
	return m.Called().Get(0).(time.Time)
}

func (m *MockReconciliation) AttendanceDrift(ctx context.Context) ([]analytics.AttendanceDrift, error) {
	args := m.Called(ctx)
	return args.Get(0).([]analytics.AttendanceDrift), args.Error(1)
}

func (m *MockReconciliation) RepairAttendance(ctx context.Context) ([]analytics.AttendanceDrift, error) {
	args := m.Called(ctx)
	return args.Get(0).([]analytics.AttendanceDrift), args.Error(1)
}

var lookback = time.Date(2026, 5, 29, 12, 0, 0, 0, time.UTC)

func serve(rec Reconciliation, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(rec, logger.NewWriterLogger(io.Discard)).RegisterRoutes(r)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(method, target, nil))
	return res
}

func TestGetReconciliationDefaultsToLookback(t *testing.T) {
	m := new(MockReconciliation)
	m.On("SinceDefault").Return(lookback)
	m.On("Reconcile", mock.Anything, lookback).Return(&analytics.ReconciliationReport{
		Since:        lookback,
		PaidSessions: 2,
		Missing:      []analytics.MissingSession{{SessionID: "cs_lost"}},
	}, nil)

	res := serve(m, http.MethodGet, "/reconciliation")

	require.Equal(t, http.StatusOK, res.Code)
	var body analytics.ReconciliationReport
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, 2, body.PaidSessions)
	require.Len(t, body.Missing, 1)
	assert.Equal(t, "cs_lost", body.Missing[0].SessionID)
}

func TestGetReconciliationParsesSince(t *testing.T) {
	m := new(MockReconciliation)
	m.On("SinceDefault").Return(lookback)
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	m.On("Reconcile", mock.Anything, since).Return(&analytics.ReconciliationReport{Since: since, Missing: []analytics.MissingSession{}}, nil)

	res := serve(m, http.MethodGet, "/reconciliation?since=2026-05-01T02:00:00%2B02:00")

	assert.Equal(t, http.StatusOK, res.Code)
	m.AssertExpectations(t)
}

func TestGetReconciliationErrors(t *testing.T) {
	m := new(MockReconciliation)
	m.On("SinceDefault").Return(lookback)

	res := serve(m, http.MethodGet, "/reconciliation?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	m.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)

	m.On("Reconcile", mock.Anything, lookback).Return(nil, fmt.Errorf("%w: stripe down", models.ErrProcessorUnavailable))
	res = serve(m, http.MethodGet, "/reconciliation")
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.NotContains(t, res.Body.String(), "stripe down")
}

func TestAttendanceDriftAndRepair(t *testing.T) {
	m := new(MockReconciliation)
	drift := []analytics.AttendanceDrift{{EventID: "ev-1", StoredTotal: 1, DerivedTotal: 3}}
	m.On("AttendanceDrift", mock.Anything).Return(drift, nil)
	m.On("RepairAttendance", mock.Anything).Return(drift, nil)

	res := serve(m, http.MethodGet, "/attendance/drift")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"derivedTotal":3`)

	res = serve(m, http.MethodPost, "/attendance/repair")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"repaired"`)
	m.AssertExpectations(t)
}

func TestRepairAttendanceStoreFailure(t *testing.T) {
	m := new(MockReconciliation)
	m.On("RepairAttendance", mock.Anything).Return([]analytics.AttendanceDrift(nil), errors.Join(models.ErrStoreUnavailable, errors.New("timeout")))

	res := serve(m, http.MethodPost, "/attendance/repair")
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}
