// Package availability expands recurring weekly rules into absolute
// availability windows and subtracts busy time to produce free intervals.
package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/interval"
	"slotbook/internal/models"
)

// Resolver turns weekly rules plus busy intervals into free intervals.
type Resolver struct {
	logger *zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *zerolog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve computes the host's free intervals within [rangeStart, rangeEnd).
// For each calendar day in the range it picks the rule matching that
// day-of-week, converts the rule's wall-clock window to absolute instants in
// the rule's zone, merges the per-day windows, then subtracts the merged busy
// set. The result is sorted and disjoint. Days without a rule, and rules
// that fail to parse, contribute no window rather than an error.
func (r *Resolver) Resolve(rangeStart, rangeEnd time.Time, rules []models.AvailabilityRule, busy []models.BusyInterval) []models.TimeInterval {
	windows := r.expandRules(rangeStart, rangeEnd, rules)
	if len(windows) == 0 {
		return nil
	}
	return interval.Subtract(interval.Merge(windows), interval.MergeBusy(busy))
}

// expandRules walks every calendar day of the range in each rule's zone and
// emits the matching wall-clock windows as absolute intervals, clipped to
// the requested range.
func (r *Resolver) expandRules(rangeStart, rangeEnd time.Time, rules []models.AvailabilityRule) []models.TimeInterval {
	var windows []models.TimeInterval

	byDay := make(map[int][]models.AvailabilityRule)
	for _, rule := range rules {
		if rule.DayOfWeek < 1 || rule.DayOfWeek > 7 {
			r.logger.Warn().Int("day_of_week", rule.DayOfWeek).Int64("rule_id", rule.ID).
				Msg("rule has invalid day of week, skipping")
			continue
		}
		byDay[rule.DayOfWeek] = append(byDay[rule.DayOfWeek], rule)
	}
	if len(byDay) == 0 {
		return nil
	}

	zones := make(map[string]*time.Location)
	for _, dayRules := range byDay {
		for _, rule := range dayRules {
			if _, ok := zones[rule.Timezone]; ok {
				continue
			}
			loc, err := time.LoadLocation(rule.Timezone)
			if err != nil {
				r.logger.Warn().Str("timezone", rule.Timezone).Int64("rule_id", rule.ID).
					Msg("rule has unknown timezone, skipping")
				continue
			}
			zones[rule.Timezone] = loc
		}
	}

	for _, dayRules := range byDay {
		for _, rule := range dayRules {
			loc, ok := zones[rule.Timezone]
			if !ok {
				continue
			}
			windows = append(windows, r.expandRule(rangeStart, rangeEnd, rule, loc)...)
		}
	}
	return windows
}

// expandRule emits one window per matching calendar day. The walk starts one
// day early so a local-time window that began before rangeStart but overlaps
// it is still picked up and clipped.
func (r *Resolver) expandRule(rangeStart, rangeEnd time.Time, rule models.AvailabilityRule, loc *time.Location) []models.TimeInterval {
	startHour, startMin, err := parseClock(rule.StartTime)
	if err != nil {
		r.logger.Warn().Err(err).Int64("rule_id", rule.ID).Msg("rule has malformed start time, skipping")
		return nil
	}
	endHour, endMin, err := parseClock(rule.EndTime)
	if err != nil {
		r.logger.Warn().Err(err).Int64("rule_id", rule.ID).Msg("rule has malformed end time, skipping")
		return nil
	}

	var windows []models.TimeInterval
	local := rangeStart.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -1)

	for ; day.Before(rangeEnd.In(loc)); day = day.AddDate(0, 0, 1) {
		if dayOfWeek(day.Weekday()) != rule.DayOfWeek {
			continue
		}

		// time.Date resolves the zone offset for this specific date, so a
		// window on a DST-transition day may be shorter or longer in
		// absolute terms than its wall-clock span suggests.
		winStart := time.Date(day.Year(), day.Month(), day.Day(), startHour, startMin, 0, 0, loc)
		winEnd := time.Date(day.Year(), day.Month(), day.Day(), endHour, endMin, 0, 0, loc)
		if !winEnd.After(winStart) {
			continue
		}

		// Clip to the requested range.
		if winStart.Before(rangeStart) {
			winStart = rangeStart
		}
		if winEnd.After(rangeEnd) {
			winEnd = rangeEnd
		}
		if !winEnd.After(winStart) {
			continue
		}

		windows = append(windows, models.TimeInterval{Start: winStart.UTC(), End: winEnd.UTC()})
	}
	return windows
}

// dayOfWeek maps time.Weekday to the 1=Monday .. 7=Sunday convention.
func dayOfWeek(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// parseClock parses "HH:MM" into hour and minute.
func parseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour: %s", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute: %s", s)
	}
	return hour, minute, nil
}
