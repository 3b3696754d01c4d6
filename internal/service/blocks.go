package service

import (
	"context"
	"fmt"
	"time"

	"pickup-service/api"
	"pickup-service/internal/models"
	"pickup-service/internal/storage"
	"pickup-service/pkg/response"

	"github.com/google/uuid"
)

// CreateBlock publishes a bookable window and decomposes it into slots in
// the same transaction. Slots are derived from the block exactly once, here;
// they are never re-derived afterwards.
func (s *Service) CreateBlock(ctx context.Context, req *api.BlockCreateRequest) (*api.BlockResponse, error) {
	const op = "service.CreateBlock"

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start: %w", op, response.ErrBadRequest)
	}

	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end: %w", op, response.ErrBadRequest)
	}

	if !end.After(start) {
		return nil, fmt.Errorf("%s: end is not after start: %w", op, response.ErrBadRequest)
	}

	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, fmt.Errorf("%s: invalid timezone: %w", op, response.ErrBadRequest)
	}

	slotDur := time.Duration(req.SlotDurationMinutes) * time.Minute
	if slotDur <= 0 {
		return nil, fmt.Errorf("%s: invalid slot duration: %w", op, response.ErrBadRequest)
	}

	if req.SlotCapacity < 1 {
		return nil, fmt.Errorf("%s: slot capacity must be at least 1: %w", op, response.ErrBadRequest)
	}

	template, err := s.store.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if template.Status != models.TemplateOpen {
		return nil, fmt.Errorf("%s: template is closed for new blocks: %w", op, response.ErrConflict)
	}

	block := &models.Block{
		ID:         uuid.New().String(),
		TemplateID: req.TemplateID,
		GroupID:    req.GroupID,
		Location:   req.Location,
		Timezone:   req.Timezone,
		Start:      start,
		End:        end,
		Status:     models.BlockOpen,
		CreatedAt:  s.now(),
	}

	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertBlock(ctx, block); err != nil {
			return err
		}

		for cur := start; !cur.Add(slotDur).After(end); cur = cur.Add(slotDur) {
			slot := &models.Slot{
				ID:          uuid.New().String(),
				BlockID:     block.ID,
				Start:       cur,
				End:         cur.Add(slotDur),
				Capacity:    req.SlotCapacity,
				BookedCount: 0,
				Status:      models.SlotAvailable,
			}
			if err := tx.InsertSlot(ctx, slot); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetBlock(ctx, block.ID)
}

func (s *Service) GetBlock(ctx context.Context, id string) (*api.BlockResponse, error) {
	const op = "service.GetBlock"

	block, err := s.store.GetBlock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slots, err := s.store.SlotsByBlock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &api.BlockResponse{
		ID:         block.ID,
		TemplateID: block.TemplateID,
		GroupID:    block.GroupID,
		Location:   block.Location,
		Timezone:   block.Timezone,
		Start:      block.Start,
		End:        block.End,
		Status:     string(block.Status),
		Slots:      make([]api.SlotResponse, 0, len(slots)),
	}
	for _, sl := range slots {
		resp.Slots = append(resp.Slots, toSlotResponse(sl))
	}

	return resp, nil
}

// CloseBlock stops new bookings against the block. Existing confirmed
// bookings stand; closing never releases capacity.
func (s *Service) CloseBlock(ctx context.Context, id string) (*api.BlockResponse, error) {
	const op = "service.CloseBlock"

	if err := s.store.SetBlockStatus(ctx, id, models.BlockClosed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetBlock(ctx, id)
}
