// Package models defines the domain types shared across the scheduling core.
package models

import "time"

// Booking statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Busy interval sources.
const (
	SourceCalendarEvent    = "calendar_event"
	SourceManualBlock      = "manual_block"
	SourceConfirmedBooking = "confirmed_booking"
)

// Policy bounds for booking duration, in minutes.
const (
	MinDurationMinutes = 5
	MaxDurationMinutes = 480
)

// TimeInterval is a half-open interval [Start, End) on UTC instants.
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// IsZeroLength reports whether the interval has no extent.
func (i TimeInterval) IsZeroLength() bool {
	return !i.End.After(i.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
func (i TimeInterval) Overlaps(other TimeInterval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// BusyInterval is a time interval during which the host is not bookable,
// tagged with its origin. SourceID is diagnostic only and never affects
// merge or overlap logic.
type BusyInterval struct {
	TimeInterval
	Source   string `json:"source"`
	SourceID string `json:"source_id,omitempty"`
}

// AvailabilityRule describes a recurring weekly availability window in the
// host's local wall-clock time. DayOfWeek is 1=Monday .. 7=Sunday.
// StartTime/EndTime are "HH:MM" within the same nominal day.
type AvailabilityRule struct {
	ID        int64  `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`
}

// ManualBlock is a host-entered busy period.
type ManualBlock struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SchedulingSettings is the host-editable booking policy. It is read fresh
// for each resolution or commit and passed around as an immutable snapshot.
type SchedulingSettings struct {
	MinNoticeHours         int `json:"min_notice_hours"`
	BookingWindowDays      int `json:"booking_window_days"`
	DefaultDurationMinutes int `json:"default_duration_minutes"`
}

// MinNotice returns the minimum lead time before a bookable slot.
func (s SchedulingSettings) MinNotice() time.Duration {
	if s.MinNoticeHours <= 0 {
		return 0
	}
	return time.Duration(s.MinNoticeHours) * time.Hour
}

// BookingWindow returns how far into the future slots may be offered.
func (s SchedulingSettings) BookingWindow() time.Duration {
	days := s.BookingWindowDays
	if days < 1 {
		days = 1
	}
	return time.Duration(days) * 24 * time.Hour
}

// Slot is an offerable booking candidate. Slots are derived, never persisted,
// and valid only as of the instant they were produced.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SlotRequest asks for bookable slots of a fixed duration within a range.
type SlotRequest struct {
	DurationMinutes int       `json:"duration_minutes"`
	RangeStart      time.Time `json:"range_start"`
	RangeEnd        time.Time `json:"range_end"`
}

// Participant carries the booking party's contact details.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes,omitempty"`
}

// Booking is a committed reservation against the host's availability.
// Owned exclusively by the booking coordinator's storage boundary.
type Booking struct {
	ID              string      `json:"id"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          string      `json:"status"`
	Participant     Participant `json:"participant"`
	ExternalEventID string      `json:"external_event_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Interval returns the booking's occupied time interval.
func (b *Booking) Interval() TimeInterval {
	return TimeInterval{Start: b.StartTime, End: b.EndTime}
}

// IsActive reports whether the booking still occupies its interval.
func (b *Booking) IsActive() bool {
	return b.Status == StatusConfirmed
}
