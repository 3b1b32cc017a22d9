package tickets

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"ms-admission/internal/models"
)

var exportHeader = []string{
	"Ticket Code",
	"Status",
	"Buyer Name",
	"Buyer Email",
	"Type Code",
	"Ticket Type",
	"Event",
	"Created At",
	"Checked In At",
}

// ExportCSV writes every ticket of the event, or of all events when eventID
// is empty, as CSV with all fields quoted and CRLF line endings.
func (s *TicketService) ExportCSV(ctx context.Context, staff *models.Staff, eventID string, w io.Writer) (int, error) {
	if err := requireRole(staff, models.RoleAdmin); err != nil {
		return 0, err
	}

	rows, err := s.DB.ListTickets(ctx, eventID)
	if err != nil {
		return 0, storeError(err)
	}

	bw := bufio.NewWriter(w)
	writeRecord(bw, exportHeader)
	for i := range rows {
		writeRecord(bw, exportRecord(&rows[i]))
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}

	s.Logger.Info("EXPORT", fmt.Sprintf("Exported %d ticket(s) for %s", len(rows), staff.Label()))
	return len(rows), nil
}

func exportRecord(t *models.Ticket) []string {
	var typeCode, typeName, eventName string
	if t.TicketType != nil {
		typeCode, typeName = t.TicketType.Code, t.TicketType.Name
	}
	if t.Event != nil {
		eventName = t.Event.Name
	}
	return []string{
		t.Code,
		string(t.Status),
		t.BuyerName,
		t.BuyerEmail,
		typeCode,
		typeName,
		eventName,
		formatTime(&t.CreatedAt),
		formatTime(t.CheckedInAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// writeRecord quotes every field and doubles embedded quotes.
func writeRecord(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteString("\r\n")
}
