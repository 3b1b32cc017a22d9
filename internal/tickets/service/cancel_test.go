package tickets_test

import (
	"context"
	"testing"

	"ms-admission/internal/models"
	tickets "ms-admission/internal/tickets/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelValidTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.ticket(t, nil)

	cancelled, err := f.svc.Cancel(ctx, f.admin, ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusCancelled, cancelled.Status)

	got := f.reload(t, ticket.ID)
	assert.Equal(t, models.TicketStatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)

	_, err = f.svc.Cancel(ctx, f.admin, ticket.Code)
	assert.ErrorIs(t, err, models.ErrTicketNotValid)

	assert.Equal(t, []string{tickets.LifecycleCancelled}, f.publisher.lifecycleTypes())
}

func TestCancelUsedTicketIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.ticket(t, nil)
	_, err := f.svc.CheckIn(ctx, f.crew, tickets.CheckinRequest{Code: ticket.Code})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.admin, ticket.Code)
	assert.ErrorIs(t, err, models.ErrTicketNotValid)
	assert.Equal(t, models.TicketStatusUsed, f.reload(t, ticket.ID).Status)
}

func TestCancelRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ticket := f.ticket(t, nil)

	_, err := f.svc.Cancel(context.Background(), f.crew, ticket.Code)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestApplyRefundThenScan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.ticket(t, func(tk *models.Ticket) { tk.PaymentIntentID = "pi_refund_me" })

	cancelled, err := f.svc.ApplyRefund(ctx, "pi_refund_me")
	require.NoError(t, err)
	require.Len(t, cancelled, 1)

	res, err := f.svc.CheckIn(ctx, f.crew, tickets.CheckinRequest{Code: ticket.Code})
	require.NoError(t, err)
	assert.Equal(t, models.ScanResultRefunded, res.Result)
	assert.False(t, res.Success)
}

func TestApplyChargebackKeepsUsedStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.ticket(t, func(tk *models.Ticket) { tk.PaymentIntentID = "pi_disputed" })
	_, err := f.svc.CheckIn(ctx, f.crew, tickets.CheckinRequest{Code: ticket.Code})
	require.NoError(t, err)

	cancelled, err := f.svc.ApplyChargeback(ctx, "pi_disputed")
	require.NoError(t, err)
	assert.Empty(t, cancelled)

	got := f.reload(t, ticket.ID)
	assert.Equal(t, models.TicketStatusUsed, got.Status)
	assert.NotNil(t, got.ChargebackAt)

	_, err = f.svc.ApplyRefund(ctx, "")
	assert.ErrorIs(t, err, models.ErrMalformedMetadata)
}
