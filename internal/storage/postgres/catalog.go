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

// #### templates ####

func (s *Storage) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	const op = "storage.postgres.GetTemplate"

	var t models.Template

	err := s.db.QueryRowContext(ctx,
		`SELECT id, event_type, allow_cancel, allow_reschedule,
			cancel_deadline_hours, reschedule_deadline_hours,
			instructions, status, created_at
		FROM templates WHERE id=$1`, id).
		Scan(
			&t.ID,
			&t.EventType,
			&t.AllowCancel,
			&t.AllowReschedule,
			&t.CancelDeadlineHours,
			&t.RescheduleDeadlineHours,
			&t.Instructions,
			&t.Status,
			&t.CreatedAt,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &t, nil
}

// #### blocks ####

const blockColumns = `id, template_id, group_id, location, timezone, start_at, end_at, status, created_at`

func scanBlock(row interface{ Scan(...any) error }) (*models.Block, error) {
	var b models.Block

	err := row.Scan(
		&b.ID,
		&b.TemplateID,
		&b.GroupID,
		&b.Location,
		&b.Timezone,
		&b.Start,
		&b.End,
		&b.Status,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (s *Storage) GetBlock(ctx context.Context, id string) (*models.Block, error) {
	const op = "storage.postgres.GetBlock"

	b, err := scanBlock(s.db.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE id=$1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

func (s *Storage) BlocksForTemplate(ctx context.Context, templateID string) ([]*models.Block, error) {
	const op = "storage.postgres.BlocksForTemplate"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE template_id=$1 ORDER BY start_at`, templateID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var blocks []*models.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}

func (s *Storage) SetBlockStatus(ctx context.Context, id string, status models.BlockStatus) error {
	const op = "storage.postgres.SetBlockStatus"

	res, err := s.db.ExecContext(ctx,
		`UPDATE blocks SET status=$1 WHERE id=$2`, string(status), id)
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

// #### slots ####

const slotColumns = `id, block_id, start_at, end_at, capacity, booked_count, status`

func scanSlot(row interface{ Scan(...any) error }) (*models.Slot, error) {
	var sl models.Slot

	err := row.Scan(
		&sl.ID,
		&sl.BlockID,
		&sl.Start,
		&sl.End,
		&sl.Capacity,
		&sl.BookedCount,
		&sl.Status,
	)
	if err != nil {
		return nil, err
	}

	return &sl, nil
}

func (s *Storage) GetSlot(ctx context.Context, id string) (*models.Slot, error) {
	const op = "storage.postgres.GetSlot"

	sl, err := scanSlot(s.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id=$1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sl, nil
}

func (s *Storage) SlotsByBlock(ctx context.Context, blockID string) ([]*models.Slot, error) {
	const op = "storage.postgres.SlotsByBlock"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE block_id=$1 ORDER BY start_at`, blockID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var slots []*models.Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		slots = append(slots, sl)
	}

	return slots, rows.Err()
}

// ListOpenSlots returns AVAILABLE, future-start slots across the given
// blocks. Absence of capacity is a normal state: no rows means an empty
// slice, never an error.
func (s *Storage) ListOpenSlots(ctx context.Context, blockIDs []string, now time.Time) ([]*models.Slot, error) {
	const op = "storage.postgres.ListOpenSlots"

	if len(blockIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+slotColumns+`
		FROM slots
		WHERE block_id = ANY($1)
		AND start_at > $2
		AND booked_count < capacity
		ORDER BY start_at`,
		pq.Array(blockIDs), now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var slots []*models.Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		slots = append(slots, sl)
	}

	return slots, rows.Err()
}

// #### eligibility lookup ####

func (s *Storage) IsGroupRecipient(ctx context.Context, groupID, partyID string) (bool, error) {
	const op = "storage.postgres.IsGroupRecipient"

	var exists bool

	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_recipients WHERE group_id=$1 AND party_id=$2)`,
		groupID, partyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// #### tx writes ####

func (t *Tx) InsertBlock(ctx context.Context, b *models.Block) error {
	const op = "storage.postgres.Tx.InsertBlock"

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO blocks
		(id, template_id, group_id, location, timezone, start_at, end_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID,
		b.TemplateID,
		b.GroupID,
		b.Location,
		b.Timezone,
		b.Start,
		b.End,
		string(b.Status),
		b.CreatedAt,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23503" {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (t *Tx) InsertSlot(ctx context.Context, sl *models.Slot) error {
	const op = "storage.postgres.Tx.InsertSlot"

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO slots
		(id, block_id, start_at, end_at, capacity, booked_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sl.ID,
		sl.BlockID,
		sl.Start,
		sl.End,
		sl.Capacity,
		sl.BookedCount,
		string(sl.Status),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (t *Tx) SlotForUpdate(ctx context.Context, slotID string) (*models.Slot, error) {
	const op = "storage.postgres.Tx.SlotForUpdate"

	sl, err := scanSlot(t.tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id=$1 FOR UPDATE`, slotID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sl, nil
}

func (t *Tx) AdjustSlotBooked(ctx context.Context, slotID string, delta int) error {
	const op = "storage.postgres.Tx.AdjustSlotBooked"

	res, err := t.tx.ExecContext(ctx,
		`UPDATE slots
		SET booked_count = booked_count + $2,
			status = CASE WHEN booked_count + $2 >= capacity
				THEN 'FULL' ELSE 'AVAILABLE' END
		WHERE id=$1`,
		slotID, delta)
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
