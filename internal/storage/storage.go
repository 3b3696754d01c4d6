package storage

import (
	"context"
	"time"

	"pickup-service/internal/models"
)

// Tx is the transactional write surface of the capacity store. It exposes
// exactly the locked-read and mutate operations the booking coordinator
// needs, so the locking discipline is fixed at this boundary: a slot counter
// can only be touched after SlotForUpdate has pinned the row.
type Tx interface {
	// SlotForUpdate reads a slot under an exclusive row lock. The lock is
	// held until the surrounding transaction commits or rolls back.
	SlotForUpdate(ctx context.Context, slotID string) (*models.Slot, error)

	// AdjustSlotBooked shifts booked_count by delta and recomputes the
	// persisted AVAILABLE/FULL status in the same statement.
	AdjustSlotBooked(ctx context.Context, slotID string, delta int) error

	InsertBooking(ctx context.Context, b *models.Booking) error
	SetBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus, at time.Time) error

	InsertBlock(ctx context.Context, b *models.Block) error
	InsertSlot(ctx context.Context, s *models.Slot) error
}
