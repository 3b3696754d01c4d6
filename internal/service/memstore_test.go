package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"pickup-service/internal/models"
	"pickup-service/internal/storage"
	"pickup-service/pkg/response"
)

// memStore is an in-memory Store whose WithTx holds a real mutex for the
// duration of the transaction and commits staged copies on success only.
// That mirrors the row-lock serialization and all-or-nothing behavior of
// the Postgres implementation closely enough for coordinator tests.
type memStore struct {
	mu         sync.Mutex
	templates  map[string]models.Template
	blocks     map[string]models.Block
	slots      map[string]models.Slot
	bookings   map[string]models.Booking
	order      []string
	recipients map[string]map[string]bool

	// txHook runs at the start of every WithTx, for fault injection.
	txHook func() error
}

func newMemStore() *memStore {
	return &memStore{
		templates:  make(map[string]models.Template),
		blocks:     make(map[string]models.Block),
		slots:      make(map[string]models.Slot),
		bookings:   make(map[string]models.Booking),
		recipients: make(map[string]map[string]bool),
	}
}

func (m *memStore) GetTemplate(_ context.Context, id string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.templates[id]
	if !ok {
		return nil, response.ErrNotFound
	}

	return &t, nil
}

func (m *memStore) GetBlock(_ context.Context, id string) (*models.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[id]
	if !ok {
		return nil, response.ErrNotFound
	}

	return &b, nil
}

func (m *memStore) BlocksForTemplate(_ context.Context, templateID string) ([]*models.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var blocks []*models.Block
	for _, b := range m.blocks {
		if b.TemplateID == templateID {
			b := b
			blocks = append(blocks, &b)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start.Before(blocks[j].Start) })

	return blocks, nil
}

func (m *memStore) SetBlockStatus(_ context.Context, id string, status models.BlockStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[id]
	if !ok {
		return response.ErrNotFound
	}

	b.Status = status
	m.blocks[id] = b

	return nil
}

func (m *memStore) GetSlot(_ context.Context, id string) (*models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sl, ok := m.slots[id]
	if !ok {
		return nil, response.ErrNotFound
	}

	return &sl, nil
}

func (m *memStore) SlotsByBlock(_ context.Context, blockID string) ([]*models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slots []*models.Slot
	for _, sl := range m.slots {
		if sl.BlockID == blockID {
			sl := sl
			slots = append(slots, &sl)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })

	return slots, nil
}

func (m *memStore) ListOpenSlots(_ context.Context, blockIDs []string, now time.Time) ([]*models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(blockIDs))
	for _, id := range blockIDs {
		wanted[id] = true
	}

	var slots []*models.Slot
	for _, sl := range m.slots {
		if wanted[sl.BlockID] && sl.Start.After(now) && sl.BookedCount < sl.Capacity {
			sl := sl
			slots = append(slots, &sl)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })

	return slots, nil
}

func (m *memStore) IsGroupRecipient(_ context.Context, groupID, partyID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.recipients[groupID][partyID], nil
}

func (m *memStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, response.ErrNotFound
	}

	return &b, nil
}

func (m *memStore) FindPartyBooking(_ context.Context, partyID string, ref models.EventRef) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.order) - 1; i >= 0; i-- {
		b, ok := m.bookings[m.order[i]]
		if !ok {
			continue
		}
		if b.PartyID == partyID && b.Event == ref {
			return &b, nil
		}
	}

	return nil, response.ErrNotFound
}

func (m *memStore) WithTx(_ context.Context, fn func(tx storage.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.txHook != nil {
		if err := m.txHook(); err != nil {
			return err
		}
	}

	tx := &memTx{
		blocks:   cloneMap(m.blocks),
		slots:    cloneMap(m.slots),
		bookings: cloneMap(m.bookings),
		order:    append([]string(nil), m.order...),
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.blocks = tx.blocks
	m.slots = tx.slots
	m.bookings = tx.bookings
	m.order = tx.order

	return nil
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

// memTx stages writes; memStore.WithTx commits them only when fn succeeds.
type memTx struct {
	blocks   map[string]models.Block
	slots    map[string]models.Slot
	bookings map[string]models.Booking
	order    []string
}

func (t *memTx) SlotForUpdate(_ context.Context, slotID string) (*models.Slot, error) {
	sl, ok := t.slots[slotID]
	if !ok {
		return nil, response.ErrNotFound
	}

	return &sl, nil
}

func (t *memTx) AdjustSlotBooked(_ context.Context, slotID string, delta int) error {
	sl, ok := t.slots[slotID]
	if !ok {
		return response.ErrNotFound
	}

	sl.BookedCount += delta
	sl.Status = models.SlotStatusFor(sl.BookedCount, sl.Capacity)
	t.slots[slotID] = sl

	return nil
}

func (t *memTx) InsertBooking(_ context.Context, b *models.Booking) error {
	if b.Status == models.BookingConfirmed {
		for _, existing := range t.bookings {
			if existing.PartyID != b.PartyID || existing.Status != models.BookingConfirmed {
				continue
			}
			if existing.Event == b.Event || existing.SlotID == b.SlotID {
				return response.ErrAlreadyBooked
			}
		}
	}

	t.bookings[b.ID] = *b
	t.order = append(t.order, b.ID)

	return nil
}

func (t *memTx) SetBookingStatus(_ context.Context, bookingID string, status models.BookingStatus, at time.Time) error {
	b, ok := t.bookings[bookingID]
	if !ok {
		return response.ErrNotFound
	}

	b.Status = status
	switch status {
	case models.BookingCancelled:
		at := at
		b.CancelledAt = &at
	case models.BookingRescheduled:
		at := at
		b.RescheduledAt = &at
	}
	t.bookings[bookingID] = b

	return nil
}

func (t *memTx) InsertBlock(_ context.Context, b *models.Block) error {
	t.blocks[b.ID] = *b

	return nil
}

func (t *memTx) InsertSlot(_ context.Context, sl *models.Slot) error {
	t.slots[sl.ID] = *sl

	return nil
}

// alwaysLocker grants every advisory lock; tests that exercise the row-lock
// discipline itself rely on WithTx serialization instead.
type alwaysLocker struct{}

func (alwaysLocker) Lock(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (alwaysLocker) Unlock(context.Context, string) error                      { return nil }

// denyLocker refuses every lock, simulating a concurrent holder.
type denyLocker struct{}

func (denyLocker) Lock(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (denyLocker) Unlock(context.Context, string) error                      { return nil }
