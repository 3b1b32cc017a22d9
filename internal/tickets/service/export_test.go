package tickets_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"ms-admission/internal/database/dbtest"
	"ms-admission/internal/models"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vip := dbtest.TicketType(t, f.store.Bun, f.event, func(tt *models.TicketType) {
		tt.Name = `Boiler Room "Late"`
		tt.Code = "BOILERROOM"
		tt.Privileged = true
	})

	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	dbtest.Ticket(t, f.store.Bun, f.tt, func(tk *models.Ticket) {
		tk.Code = "ABCD2345"
		tk.BuyerName = "Ada Lovelace"
		tk.BuyerEmail = "ada@example.com"
		tk.CreatedAt = created
	})
	used := dbtest.Ticket(t, f.store.Bun, vip, func(tk *models.Ticket) {
		tk.Code = "WXYZ6789"
		tk.BuyerName = "Last, First"
		tk.BuyerEmail = "first@example.com"
		tk.CreatedAt = created.Add(time.Hour)
	})
	_, err := f.store.RedeemTicket(ctx, used.ID, doorOpens, f.crew.UserID)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.svc.ExportCSV(ctx, f.admin, f.event.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, strings.HasSuffix(buf.String(), "\r\n"))

	g := goldie.New(t)
	g.Assert(t, "export", buf.Bytes())
}

func TestExportCSVRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	_, err := f.svc.ExportCSV(context.Background(), f.crew, "", &buf)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Zero(t, buf.Len())
}
