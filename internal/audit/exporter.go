// Package audit produces booking-history exports for offline review.
package audit

import (
	"fmt"
	"io"
	"time"

	"slotbook/internal/models"
)

var bookingColumns = []string{
	"ID", "Start", "End", "Duration (min)", "Status",
	"Participant", "Email", "Notes", "External Event", "Created", "Updated",
}

// Exporter writes booking history as an Excel workbook.
type Exporter struct {
	writer func() ExcelWriter
}

// NewExporter creates an exporter backed by the given writer factory.
func NewExporter(writerFactory func() ExcelWriter) *Exporter {
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	return &Exporter{writer: writerFactory}
}

// WriteBookings renders the bookings to w as a single-sheet workbook.
// Timestamps are rendered in UTC.
func (e *Exporter) WriteBookings(w io.Writer, bookings []models.Booking) error {
	excel := e.writer()
	defer func() { _ = excel.Close() }()

	if err := excel.AddSheet("Bookings"); err != nil {
		return err
	}
	if err := excel.WriteHeader(bookingColumns); err != nil {
		return err
	}

	for _, b := range bookings {
		row := []interface{}{
			b.ID,
			b.StartTime.UTC().Format(time.RFC3339),
			b.EndTime.UTC().Format(time.RFC3339),
			b.DurationMinutes,
			b.Status,
			b.Participant.Name,
			b.Participant.Email,
			b.Participant.Notes,
			b.ExternalEventID,
			b.CreatedAt.UTC().Format(time.RFC3339),
			b.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := excel.WriteRow(row); err != nil {
			return fmt.Errorf("write booking %s: %w", b.ID, err)
		}
	}

	return excel.Save(w)
}

// Filename returns an export filename stamped with the given time.
func Filename(t time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", t.UTC().Format("2006-01-02"))
}
