package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pickup-service/api"
	"pickup-service/internal/models"
	"pickup-service/internal/storage"
	"pickup-service/pkg/response"

	"github.com/google/uuid"
)

// Book reserves one unit of capacity on the slot for the party. Capacity is
// reconfirmed under the row lock, never assumed from what the caller saw.
func (s *Service) Book(ctx context.Context, ref models.EventRef, partyID, slotID string) (*api.BookingResponse, error) {
	const op = "service.Book"

	var bookingID string

	err := s.withRetry(ctx, func() error {
		id, err := s.bookOnce(ctx, ref, partyID, slotID)
		if err != nil {
			return err
		}
		bookingID = id

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetBooking(ctx, bookingID)
}

func (s *Service) bookOnce(ctx context.Context, ref models.EventRef, partyID, slotID string) (string, error) {
	const op = "service.bookOnce"

	now := s.now()

	blocks, err := s.resolveEventBlocks(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// The slot must sit inside the event the caller named; a ref can never
	// reach capacity outside its own blocks.
	var block *models.Block
	for _, b := range blocks {
		if b.ID == slot.BlockID {
			block = b
			break
		}
	}
	if block == nil {
		return "", fmt.Errorf("%s: slot does not belong to the event: %w", op, response.ErrNotFound)
	}

	if block.Status != models.BlockOpen || !slot.Start.After(now) {
		return "", fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	ok, reason, err := s.eligibleForBlock(ctx, partyID, block)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %s: %w", op, reason, response.ErrNotEligible)
	}

	existing, err := s.store.FindPartyBooking(ctx, partyID, ref)
	if err != nil && !errors.Is(err, response.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil && existing.Status == models.BookingConfirmed {
		return "", fmt.Errorf("%s: %w", op, response.ErrAlreadyBooked)
	}

	template, err := s.store.GetTemplate(ctx, block.TemplateID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	unlock, err := s.lockSlots(ctx, slotID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	booking := &models.Booking{
		ID:           uuid.New().String(),
		SlotID:       slotID,
		PartyID:      partyID,
		Event:        ref,
		Status:       models.BookingConfirmed,
		BookedAt:     now,
		Instructions: template.Instructions,
	}

	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		locked, err := tx.SlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}

		if locked.BookedCount >= locked.Capacity {
			return response.ErrSlotFull
		}

		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}

		return tx.AdjustSlotBooked(ctx, slotID, 1)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return booking.ID, nil
}

// Cancel releases the party's confirmed booking for the event, subject to
// the event type's cancellation policy.
func (s *Service) Cancel(ctx context.Context, ref models.EventRef, partyID string) (*api.BookingResponse, error) {
	const op = "service.Cancel"

	var bookingID string

	err := s.withRetry(ctx, func() error {
		id, err := s.cancelOnce(ctx, ref, partyID)
		if err != nil {
			return err
		}
		bookingID = id

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetBooking(ctx, bookingID)
}

func (s *Service) cancelOnce(ctx context.Context, ref models.EventRef, partyID string) (string, error) {
	const op = "service.cancelOnce"

	booking, err := s.currentBooking(ctx, ref, partyID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	slot, err := s.store.GetSlot(ctx, booking.SlotID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	template, err := s.policyForSlot(ctx, slot)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !template.AllowCancel {
		return "", fmt.Errorf("%s: %w", op, response.ErrCancelNotAllowed)
	}

	if err := s.checkDeadline(slot.Start, template.CancelDeadlineHours); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	unlock, err := s.lockSlots(ctx, booking.SlotID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	now := s.now()

	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.SlotForUpdate(ctx, booking.SlotID); err != nil {
			return err
		}

		if err := tx.SetBookingStatus(ctx, booking.ID, models.BookingCancelled, now); err != nil {
			return err
		}

		return tx.AdjustSlotBooked(ctx, booking.SlotID, -1)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return booking.ID, nil
}

// Reschedule is cancel-then-book as one transaction: no intermediate state
// is ever observable. The old booking ends RESCHEDULED, never CANCELLED, so
// history can tell "replaced" from "abandoned".
func (s *Service) Reschedule(ctx context.Context, ref models.EventRef, partyID, newSlotID string) (*api.BookingResponse, error) {
	const op = "service.Reschedule"

	var bookingID string

	err := s.withRetry(ctx, func() error {
		id, err := s.rescheduleOnce(ctx, ref, partyID, newSlotID)
		if err != nil {
			return err
		}
		bookingID = id

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetBooking(ctx, bookingID)
}

func (s *Service) rescheduleOnce(ctx context.Context, ref models.EventRef, partyID, newSlotID string) (string, error) {
	const op = "service.rescheduleOnce"

	now := s.now()

	booking, err := s.currentBooking(ctx, ref, partyID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// Rescheduling onto the slot already held is a no-op success.
	if booking.SlotID == newSlotID {
		return booking.ID, nil
	}

	oldSlot, err := s.store.GetSlot(ctx, booking.SlotID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	template, err := s.policyForSlot(ctx, oldSlot)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !template.AllowReschedule {
		return "", fmt.Errorf("%s: %w", op, response.ErrRescheduleNotAllowed)
	}

	if err := s.checkDeadline(oldSlot.Start, template.RescheduleDeadlineHours); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	newSlot, err := s.store.GetSlot(ctx, newSlotID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// The target slot stays inside the booking's own event; a reschedule
	// never moves a booking across events.
	eventBlocks, err := s.resolveEventBlocks(ctx, booking.Event)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var newBlock *models.Block
	for _, b := range eventBlocks {
		if b.ID == newSlot.BlockID {
			newBlock = b
			break
		}
	}
	if newBlock == nil {
		return "", fmt.Errorf("%s: slot does not belong to the event: %w", op, response.ErrNotFound)
	}

	if newBlock.Status != models.BlockOpen || !newSlot.Start.After(now) {
		return "", fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	// Eligibility is re-resolved against the target block, so a party can
	// never reschedule onto a block outside its scope.
	ok, reason, err := s.eligibleForBlock(ctx, partyID, newBlock)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %s: %w", op, reason, response.ErrNotEligible)
	}

	newTemplate, err := s.store.GetTemplate(ctx, newBlock.TemplateID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	unlock, err := s.lockSlots(ctx, booking.SlotID, newSlotID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	newBooking := &models.Booking{
		ID:                  uuid.New().String(),
		SlotID:              newSlotID,
		PartyID:             partyID,
		Event:               booking.Event,
		Status:              models.BookingConfirmed,
		BookedAt:            now,
		SupersededBookingID: &booking.ID,
		Instructions:        newTemplate.Instructions,
	}

	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		// Row locks in deterministic order so two crossing reschedules
		// cannot deadlock each other.
		var target *models.Slot
		for _, id := range sortedIDs(booking.SlotID, newSlotID) {
			locked, err := tx.SlotForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if id == newSlotID {
				target = locked
			}
		}

		if target.BookedCount >= target.Capacity {
			return response.ErrSlotFull
		}

		if err := tx.SetBookingStatus(ctx, booking.ID, models.BookingRescheduled, now); err != nil {
			return err
		}

		if err := tx.AdjustSlotBooked(ctx, booking.SlotID, -1); err != nil {
			return err
		}

		if err := tx.InsertBooking(ctx, newBooking); err != nil {
			return err
		}

		return tx.AdjustSlotBooked(ctx, newSlotID, 1)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return newBooking.ID, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toBookingResponse(booking), nil
}

// currentBooking resolves the party's active booking for the event. The
// lookup is scoped to the requesting party, so a foreign booking can never
// be reached, whatever its id.
func (s *Service) currentBooking(ctx context.Context, ref models.EventRef, partyID string) (*models.Booking, error) {
	booking, err := s.store.FindPartyBooking(ctx, partyID, ref)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case models.BookingConfirmed:
		return booking, nil
	case models.BookingCancelled:
		return nil, response.ErrAlreadyCancelled
	default:
		return nil, response.ErrNotFound
	}
}

func (s *Service) policyForSlot(ctx context.Context, slot *models.Slot) (*models.Template, error) {
	block, err := s.store.GetBlock(ctx, slot.BlockID)
	if err != nil {
		return nil, err
	}

	return s.store.GetTemplate(ctx, block.TemplateID)
}

// checkDeadline enforces an hours-before-start policy threshold.
func (s *Service) checkDeadline(slotStart time.Time, deadlineHours int) error {
	if slotStart.Sub(s.now()) < time.Duration(deadlineHours)*time.Hour {
		return response.ErrDeadlinePassed
	}

	return nil
}

// lockSlots takes the advisory lock on each slot in deterministic order and
// returns a single release func. A held lock means another writer is mid-
// transaction on the slot; callers surface that as LOCKED rather than wait.
func (s *Service) lockSlots(ctx context.Context, slotIDs ...string) (func(), error) {
	ids := sortedIDs(slotIDs...)

	var held []string
	release := func() {
		for _, id := range held {
			_ = s.locker.Unlock(ctx, "slot:"+id)
		}
	}

	for _, id := range ids {
		locked, err := s.locker.Lock(ctx, "slot:"+id, s.opts.LockTTL)
		if err != nil {
			release()
			return nil, err
		}
		if !locked {
			release()
			return nil, response.ErrLocked
		}

		held = append(held, id)
	}

	return release, nil
}

func sortedIDs(ids ...string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)

	return out
}
