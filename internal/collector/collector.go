// Package collector supplies busy intervals from external calendar sources
// and consumes write-back requests for committed bookings.
package collector

import (
	"context"
	"errors"
	"time"

	"slotbook/internal/models"
)

// ErrEventAbsent is returned by DeleteEvent when the external event was
// already gone. Callers treat it as success; it exists so telemetry can
// tell "already absent" from a genuine failure.
var ErrEventAbsent = errors.New("external event already absent")

// Collector is the sync-collector contract the scheduling core consumes.
// BusyIntervals serves cached data and tolerates staleness; the core never
// assumes real-time accuracy of external calendars. CreateEvent and
// DeleteEvent are expected to be idempotent.
type Collector interface {
	// BusyIntervals returns busy intervals overlapping [start, end).
	BusyIntervals(ctx context.Context, start, end time.Time) ([]models.BusyInterval, error)

	// CreateEvent writes a booking to the external calendar and returns
	// the external event id.
	CreateEvent(ctx context.Context, booking models.Booking) (string, error)

	// DeleteEvent removes an external event. Deleting an already-removed
	// event returns ErrEventAbsent, which callers treat as success.
	DeleteEvent(ctx context.Context, externalEventID string) error
}

// Static is a fixed in-memory collector. Useful for tests and for
// deployments without an external calendar.
type Static struct {
	Intervals []models.BusyInterval
}

// BusyIntervals returns the configured intervals clipped to overlap the range.
func (s *Static) BusyIntervals(ctx context.Context, start, end time.Time) ([]models.BusyInterval, error) {
	window := models.TimeInterval{Start: start, End: end}
	var out []models.BusyInterval
	for _, iv := range s.Intervals {
		if iv.Overlaps(window) {
			out = append(out, iv)
		}
	}
	return out, nil
}

// CreateEvent is a no-op that fabricates a stable id.
func (s *Static) CreateEvent(ctx context.Context, booking models.Booking) (string, error) {
	return "static-" + booking.ID, nil
}

// DeleteEvent is a no-op.
func (s *Static) DeleteEvent(ctx context.Context, externalEventID string) error {
	return nil
}
