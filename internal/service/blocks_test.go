package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickup-service/api"
	"pickup-service/internal/models"
	"pickup-service/pkg/response"
)

func blockCreateReq() *api.BlockCreateRequest {
	return &api.BlockCreateRequest{
		TemplateID:          "tmpl-1",
		Location:            "Front kennel office",
		Timezone:            "Europe/Berlin",
		Start:               "2026-09-03T09:00:00Z",
		End:                 "2026-09-03T12:00:00Z",
		SlotDurationMinutes: 30,
		SlotCapacity:        2,
	}
}

func TestCreateBlock_CutsSlots(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")

	svc := newTestService(store, alwaysLocker{})

	block, err := svc.CreateBlock(context.Background(), blockCreateReq())
	require.NoError(t, err)

	assert.Equal(t, string(models.BlockOpen), block.Status)
	require.Len(t, block.Slots, 6)

	first := block.Slots[0]
	last := block.Slots[len(block.Slots)-1]
	assert.Equal(t, block.Start, first.Start)
	assert.Equal(t, block.End, last.End)

	for i, sl := range block.Slots {
		assert.Equal(t, 2, sl.Capacity)
		assert.Equal(t, 0, sl.BookedCount)
		assert.Equal(t, string(models.SlotAvailable), sl.Status)
		if i > 0 {
			assert.Equal(t, block.Slots[i-1].End, sl.Start)
		}
	}
}

func TestCreateBlock_DropsTrailingRemainder(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")

	svc := newTestService(store, alwaysLocker{})

	req := blockCreateReq()
	req.End = "2026-09-03T10:45:00Z"

	block, err := svc.CreateBlock(context.Background(), req)
	require.NoError(t, err)

	// 9:00-10:45 at 30 minutes fits three whole slots; the 15 minute tail
	// is never published.
	require.Len(t, block.Slots, 3)
	assert.Equal(t, block.Start.Add(90*time.Minute), block.Slots[2].End)
}

func TestCreateBlock_ClosedTemplate(t *testing.T) {
	store := newMemStore()
	tpl := seedTemplate(store, "tmpl-1")
	tpl.Status = models.TemplateClosed
	store.templates["tmpl-1"] = tpl

	svc := newTestService(store, alwaysLocker{})

	_, err := svc.CreateBlock(context.Background(), blockCreateReq())
	require.ErrorIs(t, err, response.ErrConflict)
}

func TestCreateBlock_Validation(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")

	svc := newTestService(store, alwaysLocker{})

	cases := []struct {
		name string
		mod  func(*api.BlockCreateRequest)
	}{
		{"bad start", func(r *api.BlockCreateRequest) { r.Start = "not-a-time" }},
		{"bad end", func(r *api.BlockCreateRequest) { r.End = "not-a-time" }},
		{"end before start", func(r *api.BlockCreateRequest) { r.End = "2026-09-03T08:00:00Z" }},
		{"bad timezone", func(r *api.BlockCreateRequest) { r.Timezone = "Mars/Olympus" }},
		{"zero duration", func(r *api.BlockCreateRequest) { r.SlotDurationMinutes = 0 }},
		{"zero capacity", func(r *api.BlockCreateRequest) { r.SlotCapacity = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := blockCreateReq()
			tc.mod(req)

			_, err := svc.CreateBlock(context.Background(), req)
			require.ErrorIs(t, err, response.ErrBadRequest)
		})
	}
}

func TestCreateBlock_UnknownTemplate(t *testing.T) {
	store := newMemStore()

	svc := newTestService(store, alwaysLocker{})

	_, err := svc.CreateBlock(context.Background(), blockCreateReq())
	require.ErrorIs(t, err, response.ErrNotFound)
}

func TestCloseBlock_StopsNewBookingsKeepsExisting(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")
	seedBlock(store, "block-1", "tmpl-1", nil)
	seedSlot(store, "slot-1", "block-1", 2, testNow.Add(48*time.Hour))

	svc := newTestService(store, alwaysLocker{})

	ref := blockRef("block-1")
	booked, err := svc.Book(context.Background(), ref, "party-1", "slot-1")
	require.NoError(t, err)

	closed, err := svc.CloseBlock(context.Background(), "block-1")
	require.NoError(t, err)
	assert.Equal(t, string(models.BlockClosed), closed.Status)

	// the held booking stands and its capacity is not released
	existing := store.bookings[booked.ID]
	assert.Equal(t, models.BookingConfirmed, existing.Status)
	assert.Equal(t, 1, store.slots["slot-1"].BookedCount)

	// no new bookings against the closed block
	_, err = svc.Book(context.Background(), ref, "party-2", "slot-1")
	require.ErrorIs(t, err, response.ErrSlotNotAvailable)
}

func TestCloseBlock_NotFound(t *testing.T) {
	store := newMemStore()

	svc := newTestService(store, alwaysLocker{})

	_, err := svc.CloseBlock(context.Background(), "missing")
	require.ErrorIs(t, err, response.ErrNotFound)
}
