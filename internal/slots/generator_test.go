package slots

import (
	"testing"
	"time"

	"slotbook/internal/models"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func openSettings() models.SchedulingSettings {
	return models.SchedulingSettings{MinNoticeHours: 0, BookingWindowDays: 30}
}

func TestGenerateSplitIntervals(t *testing.T) {
	// Free [09:00,12:00) and [13:00,17:00): 60-minute slots at 09,10,11
	// then 13,14,15,16. The 12:00 hour is gone and the 16:00 slot fits
	// exactly against the interval end.
	free := []models.TimeInterval{
		{Start: at(9, 0), End: at(12, 0)},
		{Start: at(13, 0), End: at(17, 0)},
	}
	now := monday.AddDate(0, 0, -1)

	got := Generate(free, 60, openSettings(), now)

	expected := []time.Time{at(9, 0), at(10, 0), at(11, 0), at(13, 0), at(14, 0), at(15, 0), at(16, 0)}
	if len(got) != len(expected) {
		t.Fatalf("expected %d slots, got %d: %v", len(expected), len(got), got)
	}
	for i, slot := range got {
		if !slot.Start.Equal(expected[i]) {
			t.Errorf("slot %d: expected start %v, got %v", i, expected[i], slot.Start)
		}
		if !slot.End.Equal(expected[i].Add(time.Hour)) {
			t.Errorf("slot %d: expected end %v, got %v", i, expected[i].Add(time.Hour), slot.End)
		}
	}
}

func TestGenerateAnchoredToIntervalStart(t *testing.T) {
	// An interval starting at 09:20 yields 09:20, 10:20, ... not
	// clock-aligned 09:30/10:00 boundaries.
	free := []models.TimeInterval{{Start: at(9, 20), End: at(11, 30)}}
	got := Generate(free, 60, openSettings(), monday.AddDate(0, 0, -1))

	if len(got) != 2 {
		t.Fatalf("expected 2 slots, got %d: %v", len(got), got)
	}
	if !got[0].Start.Equal(at(9, 20)) || !got[1].Start.Equal(at(10, 20)) {
		t.Errorf("unexpected slot starts: %v, %v", got[0].Start, got[1].Start)
	}
}

func TestGenerateNoPartialSlots(t *testing.T) {
	// 50 minutes of free time yields no 60-minute slot.
	free := []models.TimeInterval{{Start: at(9, 0), End: at(9, 50)}}
	got := Generate(free, 60, openSettings(), monday.AddDate(0, 0, -1))
	if len(got) != 0 {
		t.Errorf("expected no slots, got %v", got)
	}
}

func TestGenerateMinNoticeFilter(t *testing.T) {
	// now = Mon 08:00, 6h notice: a free interval from 09:00 produces no
	// slot before 14:00.
	free := []models.TimeInterval{{Start: at(9, 0), End: at(17, 0)}}
	settings := models.SchedulingSettings{MinNoticeHours: 6, BookingWindowDays: 30}
	now := at(8, 0)

	got := Generate(free, 60, settings, now)

	if len(got) == 0 {
		t.Fatal("expected slots after the notice boundary")
	}
	for _, slot := range got {
		if slot.Start.Before(at(14, 0)) {
			t.Errorf("slot at %v violates 6h minimum notice from %v", slot.Start, now)
		}
	}
	if !got[0].Start.Equal(at(14, 0)) {
		t.Errorf("expected first slot at 14:00, got %v", got[0].Start)
	}
}

func TestGenerateBookingWindowFilter(t *testing.T) {
	// Free interval two weeks out, booking window of 7 days.
	farStart := monday.AddDate(0, 0, 14)
	free := []models.TimeInterval{{Start: farStart, End: farStart.Add(4 * time.Hour)}}
	settings := models.SchedulingSettings{MinNoticeHours: 0, BookingWindowDays: 7}

	got := Generate(free, 60, settings, monday)
	if len(got) != 0 {
		t.Errorf("expected no slots beyond the booking window, got %v", got)
	}
}

func TestGenerateMonotonicWithinBounds(t *testing.T) {
	free := []models.TimeInterval{
		{Start: at(8, 0), End: at(10, 15)},
		{Start: at(10, 45), End: at(13, 0)},
		{Start: at(15, 0), End: at(18, 30)},
	}
	got := Generate(free, 45, openSettings(), monday.AddDate(0, 0, -1))

	if len(got) == 0 {
		t.Fatal("expected slots")
	}
	for i, slot := range got {
		if !slot.End.Equal(slot.Start.Add(45 * time.Minute)) {
			t.Errorf("slot %d has wrong length: %v", i, slot)
		}
		if i > 0 && !got[i-1].Start.Before(slot.Start) {
			t.Errorf("slots not strictly increasing at %d: %v then %v", i, got[i-1].Start, slot.Start)
		}
		contained := false
		for _, iv := range free {
			if !slot.Start.Before(iv.Start) && !slot.End.After(iv.End) {
				contained = true
				break
			}
		}
		if !contained {
			t.Errorf("slot %d exceeds its containing interval: %v", i, slot)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	free := []models.TimeInterval{{Start: at(9, 0), End: at(17, 0)}}
	now := at(7, 0)
	settings := models.SchedulingSettings{MinNoticeHours: 2, BookingWindowDays: 14}

	first := Generate(free, 30, settings, now)
	second := Generate(free, 30, settings, now)

	if len(first) != len(second) {
		t.Fatalf("non-deterministic output: %d vs %d slots", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) {
			t.Errorf("slot %d differs between runs", i)
		}
	}
}

func TestGenerateEmptyInput(t *testing.T) {
	if got := Generate(nil, 30, openSettings(), monday); len(got) != 0 {
		t.Errorf("expected no slots for empty input, got %v", got)
	}
	free := []models.TimeInterval{{Start: at(9, 0), End: at(10, 0)}}
	if got := Generate(free, 0, openSettings(), monday); len(got) != 0 {
		t.Errorf("expected no slots for zero duration, got %v", got)
	}
}
