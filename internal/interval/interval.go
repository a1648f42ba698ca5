// Package interval provides set operations over half-open time intervals.
// All functions are pure: inputs are never mutated and empty input yields
// empty output.
package interval

import (
	"sort"
	"time"

	"slotbook/internal/models"
)

// Merge sorts the given intervals by start and coalesces overlapping or
// adjacent ones into a minimal disjoint, sorted set. Zero-length intervals
// are dropped.
func Merge(intervals []models.TimeInterval) []models.TimeInterval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]models.TimeInterval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.IsZeroLength() {
			continue
		}
		sorted = append(sorted, iv)
	}
	if len(sorted) == 0 {
		return nil
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []models.TimeInterval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		// Adjacent intervals ([a,b) followed by [b,c)) coalesce too.
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes busy time from the given windows and returns the free
// remainder. Both inputs must be disjoint and sorted by start (the shape
// Merge produces); the result has the same shape. Runs in O(n+m) with a
// single sweep. Pieces reduced to zero length are dropped.
func Subtract(windows, busy []models.TimeInterval) []models.TimeInterval {
	if len(windows) == 0 {
		return nil
	}
	if len(busy) == 0 {
		out := make([]models.TimeInterval, len(windows))
		copy(out, windows)
		return out
	}

	var free []models.TimeInterval
	b := 0
	for _, w := range windows {
		cursor := w.Start

		// Skip busy intervals that end at or before the window cursor.
		for b < len(busy) && !busy[b].End.After(cursor) {
			b++
		}

		for i := b; i < len(busy) && busy[i].Start.Before(w.End); i++ {
			if busy[i].Start.After(cursor) {
				free = append(free, models.TimeInterval{Start: cursor, End: busy[i].Start})
			}
			if busy[i].End.After(cursor) {
				cursor = busy[i].End
			}
			if !cursor.Before(w.End) {
				break
			}
		}

		if cursor.Before(w.End) {
			free = append(free, models.TimeInterval{Start: cursor, End: w.End})
		}
	}
	return free
}

// MergeBusy flattens tagged busy intervals from all sources into a minimal
// disjoint set. Source tags are diagnostic only and do not survive the merge.
func MergeBusy(busy []models.BusyInterval) []models.TimeInterval {
	if len(busy) == 0 {
		return nil
	}
	plain := make([]models.TimeInterval, 0, len(busy))
	for _, b := range busy {
		plain = append(plain, b.TimeInterval)
	}
	return Merge(plain)
}

// Covers reports whether the instant t falls inside any of the given
// disjoint sorted intervals.
func Covers(intervals []models.TimeInterval, t time.Time) bool {
	idx := sort.Search(len(intervals), func(i int) bool {
		return intervals[i].End.After(t)
	})
	return idx < len(intervals) && !intervals[idx].Start.After(t)
}
