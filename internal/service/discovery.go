package service

import (
	"context"
	"errors"
	"fmt"

	"pickup-service/api"
	"pickup-service/internal/models"
	"pickup-service/pkg/response"
)

// GetEvent returns the event's policy summary plus the caller's current
// confirmed booking, if it holds one.
func (s *Service) GetEvent(ctx context.Context, ref models.EventRef, partyID string) (*api.EventResponse, error) {
	const op = "service.GetEvent"

	template, err := s.resolvePolicy(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &api.EventResponse{
		EventKind: string(ref.Kind),
		EventID:   ref.ID,
		Policy:    toPolicySummary(template),
	}

	booking, err := s.store.FindPartyBooking(ctx, partyID, ref)
	if err != nil && !errors.Is(err, response.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if booking != nil && booking.Status == models.BookingConfirmed {
		resp.Booking = toBookingResponse(booking)
	}

	return resp, nil
}

// ListSlots is the discovery read path: open blocks with their future,
// available-capacity slots. Nothing bookable is an empty list, not an error.
func (s *Service) ListSlots(ctx context.Context, ref models.EventRef) ([]*api.BlockResponse, error) {
	const op = "service.ListSlots"

	blocks, err := s.resolveEventBlocks(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()

	open := make([]*models.Block, 0, len(blocks))
	ids := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Status != models.BlockOpen || !block.End.After(now) {
			continue
		}

		open = append(open, block)
		ids = append(ids, block.ID)
	}

	slots, err := s.store.ListOpenSlots(ctx, ids, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	byBlock := make(map[string][]api.SlotResponse, len(open))
	for _, sl := range slots {
		byBlock[sl.BlockID] = append(byBlock[sl.BlockID], toSlotResponse(sl))
	}

	result := make([]*api.BlockResponse, 0, len(open))
	for _, block := range open {
		blockSlots := byBlock[block.ID]
		if len(blockSlots) == 0 {
			continue
		}

		result = append(result, &api.BlockResponse{
			ID:         block.ID,
			TemplateID: block.TemplateID,
			GroupID:    block.GroupID,
			Location:   block.Location,
			Timezone:   block.Timezone,
			Start:      block.Start,
			End:        block.End,
			Status:     string(block.Status),
			Slots:      blockSlots,
		})
	}

	return result, nil
}

// GetTemplate exposes the read-only policy view.
func (s *Service) GetTemplate(ctx context.Context, id string) (*api.TemplateResponse, error) {
	const op = "service.GetTemplate"

	template, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.TemplateResponse{
		ID:     template.ID,
		Status: string(template.Status),
		Policy: toPolicySummary(template),
	}, nil
}
