package models

import (
	"testing"
	"time"
)

func TestTimeIntervalOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	iv := func(startMin, endMin int) TimeInterval {
		return TimeInterval{
			Start: base.Add(time.Duration(startMin) * time.Minute),
			End:   base.Add(time.Duration(endMin) * time.Minute),
		}
	}

	tests := []struct {
		name string
		a, b TimeInterval
		want bool
	}{
		{name: "disjoint", a: iv(0, 60), b: iv(120, 180), want: false},
		{name: "touching endpoints do not overlap", a: iv(0, 60), b: iv(60, 120), want: false},
		{name: "partial overlap", a: iv(0, 90), b: iv(60, 120), want: true},
		{name: "containment", a: iv(0, 180), b: iv(60, 120), want: true},
		{name: "identical", a: iv(0, 60), b: iv(0, 60), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() not symmetric: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeIntervalDuration(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	iv := TimeInterval{Start: start, End: start.Add(90 * time.Minute)}
	if iv.Duration() != 90*time.Minute {
		t.Errorf("expected 90m, got %v", iv.Duration())
	}
	if iv.IsZeroLength() {
		t.Error("non-empty interval reported zero length")
	}

	empty := TimeInterval{Start: start, End: start}
	if !empty.IsZeroLength() {
		t.Error("zero-length interval not detected")
	}
}

func TestSchedulingSettingsDurations(t *testing.T) {
	s := SchedulingSettings{MinNoticeHours: 6, BookingWindowDays: 30}
	if s.MinNotice() != 6*time.Hour {
		t.Errorf("expected 6h notice, got %v", s.MinNotice())
	}
	if s.BookingWindow() != 30*24*time.Hour {
		t.Errorf("expected 720h window, got %v", s.BookingWindow())
	}
}

func TestBookingIsActive(t *testing.T) {
	b := &Booking{Status: StatusConfirmed}
	if !b.IsActive() {
		t.Error("confirmed booking should be active")
	}
	b.Status = StatusCancelled
	if b.IsActive() {
		t.Error("cancelled booking should not be active")
	}
}

func TestBookingInterval(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	b := &Booking{StartTime: start, EndTime: start.Add(time.Hour)}
	iv := b.Interval()
	if !iv.Start.Equal(start) || !iv.End.Equal(start.Add(time.Hour)) {
		t.Errorf("unexpected interval %v", iv)
	}
}
