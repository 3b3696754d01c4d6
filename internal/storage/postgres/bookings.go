package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pickup-service/internal/models"
	"pickup-service/pkg/response"

	"github.com/lib/pq"
)

const bookingColumns = `id, slot_id, party_id, event_kind, event_id, status,
	booked_at, cancelled_at, rescheduled_at, superseded_booking_id, instructions, reminded_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking

	err := row.Scan(
		&b.ID,
		&b.SlotID,
		&b.PartyID,
		&b.Event.Kind,
		&b.Event.ID,
		&b.Status,
		&b.BookedAt,
		&b.CancelledAt,
		&b.RescheduledAt,
		&b.SupersededBookingID,
		&b.Instructions,
		&b.RemindedAt,
	)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	b, err := scanBooking(s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// FindPartyBooking returns the party's most recent booking for the event,
// whatever its status. The coordinator decides what the status means.
func (s *Storage) FindPartyBooking(ctx context.Context, partyID string, ref models.EventRef) (*models.Booking, error) {
	const op = "storage.postgres.FindPartyBooking"

	b, err := scanBooking(s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+`
		FROM bookings
		WHERE party_id=$1 AND event_kind=$2 AND event_id=$3
		ORDER BY booked_at DESC
		LIMIT 1`,
		partyID, string(ref.Kind), ref.ID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

func (t *Tx) InsertBooking(ctx context.Context, b *models.Booking) error {
	const op = "storage.postgres.Tx.InsertBooking"

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookings
		(id, slot_id, party_id, event_kind, event_id, status,
			booked_at, superseded_booking_id, instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID,
		b.SlotID,
		b.PartyID,
		string(b.Event.Kind),
		b.Event.ID,
		string(b.Status),
		b.BookedAt,
		b.SupersededBookingID,
		b.Instructions,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23505" {
			// partial unique indexes: one CONFIRMED booking per party per
			// event, and per party per slot
			return fmt.Errorf("%s: %w", op, response.ErrAlreadyBooked)
		}
		if ok && sqlErr.Code == "23503" {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (t *Tx) SetBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus, at time.Time) error {
	const op = "storage.postgres.Tx.SetBookingStatus"

	var query string
	switch status {
	case models.BookingCancelled:
		query = `UPDATE bookings SET status=$1, cancelled_at=$2 WHERE id=$3`
	case models.BookingRescheduled:
		query = `UPDATE bookings SET status=$1, rescheduled_at=$2 WHERE id=$3`
	default:
		return fmt.Errorf("%s: status %s is not a valid transition target", op, status)
	}

	res, err := t.tx.ExecContext(ctx, query, string(status), at, bookingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### reminders ####

// DueReminders lists CONFIRMED bookings whose slot starts inside the window
// and that have not been reminded yet. Read-only with respect to capacity.
func (s *Storage) DueReminders(ctx context.Context, now time.Time, window time.Duration) ([]models.Reminder, error) {
	const op = "storage.postgres.DueReminders"

	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.party_id, bl.location, sl.start_at
		FROM bookings b
		JOIN slots sl ON sl.id = b.slot_id
		JOIN blocks bl ON bl.id = sl.block_id
		WHERE b.status = 'CONFIRMED'
		AND b.reminded_at IS NULL
		AND sl.start_at > $1
		AND sl.start_at <= $2
		ORDER BY sl.start_at`,
		now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.BookingID, &r.PartyID, &r.Location, &r.SlotStart); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		reminders = append(reminders, r)
	}

	return reminders, rows.Err()
}

func (s *Storage) MarkReminded(ctx context.Context, bookingID string, at time.Time) error {
	const op = "storage.postgres.MarkReminded"

	_, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET reminded_at=$1 WHERE id=$2 AND reminded_at IS NULL`,
		at, bookingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
