package database

import (
	"context"
	"database/sql"
	"time"

	"slotbook/internal/models"
)

// CreateBooking persists a new booking.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO bookings (
			id, start_time, end_time, duration_minutes, status,
			participant_name, participant_email, participant_notes,
			external_event_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.StartTime.UTC(), b.EndTime.UTC(), b.DurationMinutes, b.Status,
		b.Participant.Name, b.Participant.Email, b.Participant.Notes,
		b.ExternalEventID, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

// GetBooking returns a booking by id, or nil when absent.
func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, start_time, end_time, duration_minutes, status,
		       participant_name, participant_email, participant_notes,
		       external_event_id, created_at, updated_at
		FROM bookings WHERE id = ?`,
		id,
	)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBookingStatus transitions a booking's status.
func (db *DB) UpdateBookingStatus(ctx context.Context, id, status string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
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

// SetBookingExternalEvent records the calendar event id written back for a
// booking.
func (db *DB) SetBookingExternalEvent(ctx context.Context, id, externalEventID string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE bookings SET external_event_id = ?, updated_at = ? WHERE id = ?",
		externalEventID, time.Now().UTC(), id,
	)
	return err
}

// ListActiveBookingsInRange returns confirmed bookings overlapping
// [start, end), ordered by start time.
func (db *DB) ListActiveBookingsInRange(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, start_time, end_time, duration_minutes, status,
		       participant_name, participant_email, participant_notes,
		       external_event_id, created_at, updated_at
		FROM bookings
		WHERE status = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		models.StatusConfirmed, end.UTC(), start.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ListBookings returns all bookings ordered by start time, newest range
// first trimmed by limit when positive.
func (db *DB) ListBookings(ctx context.Context, limit int) ([]models.Booking, error) {
	query := `
		SELECT id, start_time, end_time, duration_minutes, status,
		       participant_name, participant_email, participant_notes,
		       external_event_id, created_at, updated_at
		FROM bookings ORDER BY start_time DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var notes, externalID sql.NullString
	err := row.Scan(
		&b.ID, &b.StartTime, &b.EndTime, &b.DurationMinutes, &b.Status,
		&b.Participant.Name, &b.Participant.Email, &notes,
		&externalID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		b.Participant.Notes = notes.String
	}
	if externalID.Valid {
		b.ExternalEventID = externalID.String
	}
	return &b, nil
}
