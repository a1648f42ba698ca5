// Package slots emits fixed-duration bookable slots from free intervals.
package slots

import (
	"time"

	"slotbook/internal/models"
)

// Generate walks the given free intervals (sorted and disjoint, as produced
// by the availability resolver) and emits consecutive slots of the given
// duration. Slot boundaries are anchored to each interval's start, not to
// clock-aligned boundaries, so a gap introduced by a busy interval shifts
// every subsequent slot start within that interval. No partial-length slots
// are emitted.
//
// Slots starting before now+MinNotice or after now+BookingWindow are
// filtered out. The output is chronological and fully determined by the
// inputs. Duration bounds are the caller's concern; Generate assumes a
// validated duration.
func Generate(free []models.TimeInterval, durationMinutes int, settings models.SchedulingSettings, now time.Time) []models.Slot {
	duration := time.Duration(durationMinutes) * time.Minute
	if duration <= 0 {
		return nil
	}

	earliest := now.Add(settings.MinNotice())
	latest := now.Add(settings.BookingWindow())

	var out []models.Slot
	for _, iv := range free {
		for cursor := iv.Start; !cursor.Add(duration).After(iv.End); cursor = cursor.Add(duration) {
			if cursor.Before(earliest) {
				continue
			}
			if cursor.After(latest) {
				break
			}
			out = append(out, models.Slot{Start: cursor, End: cursor.Add(duration)})
		}
	}
	return out
}
