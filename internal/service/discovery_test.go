package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickup-service/internal/models"
	"pickup-service/pkg/response"
)

func TestListSlots_FiltersUnavailable(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")
	seedBlock(store, "block-open", "tmpl-1", nil)
	closed := seedBlock(store, "block-closed", "tmpl-1", nil)
	closed.Status = models.BlockClosed
	store.blocks["block-closed"] = closed

	seedSlot(store, "slot-future", "block-open", 2, testNow.Add(48*time.Hour))
	seedSlot(store, "slot-past", "block-open", 2, testNow.Add(-time.Hour))
	full := seedSlot(store, "slot-full", "block-open", 1, testNow.Add(49*time.Hour))
	full.BookedCount = 1
	full.Status = models.SlotFull
	store.slots["slot-full"] = full
	seedSlot(store, "slot-hidden", "block-closed", 2, testNow.Add(48*time.Hour))

	svc := newTestService(store, alwaysLocker{})

	blocks, err := svc.ListSlots(context.Background(), templateRef("tmpl-1"))
	require.NoError(t, err)

	require.Len(t, blocks, 1)
	assert.Equal(t, "block-open", blocks[0].ID)
	require.Len(t, blocks[0].Slots, 1)
	assert.Equal(t, "slot-future", blocks[0].Slots[0].ID)
	assert.Equal(t, "AVAILABLE", blocks[0].Slots[0].Status)
}

func TestListSlots_SkipsEndedBlocks(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")
	ended := seedBlock(store, "block-ended", "tmpl-1", nil)
	ended.Start = testNow.Add(-4 * time.Hour)
	ended.End = testNow.Add(-time.Hour)
	store.blocks["block-ended"] = ended
	seedSlot(store, "slot-1", "block-ended", 2, testNow.Add(-3*time.Hour))

	svc := newTestService(store, alwaysLocker{})

	blocks, err := svc.ListSlots(context.Background(), templateRef("tmpl-1"))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestListSlots_EmptyIsNotAnError(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")

	svc := newTestService(store, alwaysLocker{})

	blocks, err := svc.ListSlots(context.Background(), templateRef("tmpl-1"))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestListSlots_UnknownTemplate(t *testing.T) {
	store := newMemStore()

	svc := newTestService(store, alwaysLocker{})

	_, err := svc.ListSlots(context.Background(), templateRef("missing"))
	require.ErrorIs(t, err, response.ErrNotFound)
}

func TestGetEvent_PolicyOnly(t *testing.T) {
	store := newMemStore()
	tpl := seedTemplate(store, "tmpl-1")
	seedBlock(store, "block-1", "tmpl-1", nil)

	svc := newTestService(store, alwaysLocker{})

	event, err := svc.GetEvent(context.Background(), blockRef("block-1"), "party-1")
	require.NoError(t, err)

	assert.Equal(t, "BLOCK", event.EventKind)
	assert.Equal(t, "block-1", event.EventID)
	assert.Equal(t, tpl.EventType, event.Policy.EventType)
	assert.Equal(t, tpl.CancelDeadlineHours, event.Policy.CancelDeadlineHours)
	assert.Equal(t, tpl.Instructions, event.Policy.Instructions)
	assert.Nil(t, event.Booking)
}

func TestGetEvent_IncludesCallersBooking(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")
	seedBlock(store, "block-1", "tmpl-1", nil)
	seedSlot(store, "slot-1", "block-1", 1, testNow.Add(48*time.Hour))

	svc := newTestService(store, alwaysLocker{})

	ref := blockRef("block-1")
	booked, err := svc.Book(context.Background(), ref, "party-1", "slot-1")
	require.NoError(t, err)

	event, err := svc.GetEvent(context.Background(), ref, "party-1")
	require.NoError(t, err)
	require.NotNil(t, event.Booking)
	assert.Equal(t, booked.ID, event.Booking.ID)

	// another party sees the policy but not the booking
	other, err := svc.GetEvent(context.Background(), ref, "party-2")
	require.NoError(t, err)
	assert.Nil(t, other.Booking)
}

func TestGetEvent_CancelledBookingHidden(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")
	seedBlock(store, "block-1", "tmpl-1", nil)
	seedSlot(store, "slot-1", "block-1", 1, testNow.Add(48*time.Hour))

	svc := newTestService(store, alwaysLocker{})

	ref := blockRef("block-1")
	_, err := svc.Book(context.Background(), ref, "party-1", "slot-1")
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), ref, "party-1")
	require.NoError(t, err)

	event, err := svc.GetEvent(context.Background(), ref, "party-1")
	require.NoError(t, err)
	assert.Nil(t, event.Booking)
}

func TestEligible_OpenBlock(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")
	seedBlock(store, "block-1", "tmpl-1", nil)

	svc := newTestService(store, alwaysLocker{})

	ok, reason, err := svc.Eligible(context.Background(), "party-1", templateRef("tmpl-1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestEligible_NoOpenBlocks(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")
	b := seedBlock(store, "block-1", "tmpl-1", nil)
	b.Status = models.BlockClosed
	store.blocks["block-1"] = b

	svc := newTestService(store, alwaysLocker{})

	ok, reason, err := svc.Eligible(context.Background(), "party-1", templateRef("tmpl-1"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, response.ReasonNoOpenBlocks, reason)
}

func TestEligible_GroupScope(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")
	seedBlock(store, "block-1", "tmpl-1", strPtr("group-1"))
	store.recipients["group-1"] = map[string]bool{"party-1": true}

	svc := newTestService(store, alwaysLocker{})

	ref := templateRef("tmpl-1")

	ok, reason, err := svc.Eligible(context.Background(), "party-1", ref)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason, err = svc.Eligible(context.Background(), "party-2", ref)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, response.ReasonNotLinkedToGroup, reason)
}

func TestEligible_AnyOpenBlockSuffices(t *testing.T) {
	store := newMemStore()
	seedTemplate(store, "tmpl-1")
	seedBlock(store, "block-scoped", "tmpl-1", strPtr("group-1"))
	seedBlock(store, "block-open", "tmpl-1", nil)

	svc := newTestService(store, alwaysLocker{})

	ok, _, err := svc.Eligible(context.Background(), "party-2", templateRef("tmpl-1"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetTemplate(t *testing.T) {
	store := newMemStore()
	tpl := seedTemplate(store, "tmpl-1")

	svc := newTestService(store, alwaysLocker{})

	got, err := svc.GetTemplate(context.Background(), "tmpl-1")
	require.NoError(t, err)
	assert.Equal(t, "tmpl-1", got.ID)
	assert.Equal(t, string(models.TemplateOpen), got.Status)
	assert.Equal(t, tpl.EventType, got.Policy.EventType)

	_, err = svc.GetTemplate(context.Background(), "missing")
	require.ErrorIs(t, err, response.ErrNotFound)
}
