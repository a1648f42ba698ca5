package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"slotbook/internal/models"
)

// GetSettings returns the host's scheduling policy. Callers read this fresh
// for each resolution or commit.
func (db *DB) GetSettings(ctx context.Context) (models.SchedulingSettings, error) {
	var s models.SchedulingSettings
	err := db.QueryRowContext(ctx, `
		SELECT min_notice_hours, booking_window_days, default_duration_minutes
		FROM scheduling_settings WHERE id = 1`,
	).Scan(&s.MinNoticeHours, &s.BookingWindowDays, &s.DefaultDurationMinutes)
	if err != nil {
		return models.SchedulingSettings{}, err
	}
	return s, nil
}

// UpdateSettings replaces the host's scheduling policy.
func (db *DB) UpdateSettings(ctx context.Context, s models.SchedulingSettings) error {
	if s.MinNoticeHours < 0 {
		return fmt.Errorf("min notice hours must not be negative")
	}
	if s.BookingWindowDays < 1 {
		return fmt.Errorf("booking window must be at least one day")
	}
	_, err := db.ExecContext(ctx, `
		UPDATE scheduling_settings
		SET min_notice_hours = ?, booking_window_days = ?, default_duration_minutes = ?, updated_at = ?
		WHERE id = 1`,
		s.MinNoticeHours, s.BookingWindowDays, s.DefaultDurationMinutes, time.Now().UTC(),
	)
	return err
}

// ListRules returns all weekly availability rules ordered by day.
func (db *DB) ListRules(ctx context.Context) ([]models.AvailabilityRule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, day_of_week, start_time, end_time, timezone
		FROM availability_rules ORDER BY day_of_week`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.AvailabilityRule
	for rows.Next() {
		var r models.AvailabilityRule
		if err := rows.Scan(&r.ID, &r.DayOfWeek, &r.StartTime, &r.EndTime, &r.Timezone); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpsertRule creates or replaces the rule for a day of week.
func (db *DB) UpsertRule(ctx context.Context, r *models.AvailabilityRule) error {
	if r.DayOfWeek < 1 || r.DayOfWeek > 7 {
		return fmt.Errorf("day of week must be 1..7")
	}
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_rules (day_of_week, start_time, end_time, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(day_of_week) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`,
		r.DayOfWeek, r.StartTime, r.EndTime, r.Timezone, now, now,
	)
	return err
}

// DeleteRule removes the rule for a day of week. Missing rules are not an
// error: a day without a rule simply has no availability.
func (db *DB) DeleteRule(ctx context.Context, dayOfWeek int) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM availability_rules WHERE day_of_week = ?", dayOfWeek)
	return err
}

// CreateManualBlock records a host-entered busy period.
func (db *DB) CreateManualBlock(ctx context.Context, b *models.ManualBlock) error {
	if !b.EndTime.After(b.StartTime) {
		return fmt.Errorf("block end must be after block start")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO manual_blocks (start_time, end_time, reason, created_at)
		VALUES (?, ?, ?, ?)`,
		b.StartTime.UTC(), b.EndTime.UTC(), b.Reason, b.CreatedAt,
	)
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	return err
}

// DeleteManualBlock removes a manual block.
func (db *DB) DeleteManualBlock(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, "DELETE FROM manual_blocks WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListManualBlocksInRange returns blocks overlapping [start, end).
func (db *DB) ListManualBlocksInRange(ctx context.Context, start, end time.Time) ([]models.ManualBlock, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, start_time, end_time, reason, created_at
		FROM manual_blocks
		WHERE start_time < ? AND end_time > ?
		ORDER BY start_time`,
		end.UTC(), start.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []models.ManualBlock
	for rows.Next() {
		var b models.ManualBlock
		var reason sql.NullString
		if err := rows.Scan(&b.ID, &b.StartTime, &b.EndTime, &reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		if reason.Valid {
			b.Reason = reason.String
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
