package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"pickup-service/api"
	"pickup-service/internal/lock"
	"pickup-service/internal/models"
	"pickup-service/internal/storage"
	"pickup-service/pkg/response"

	"github.com/lib/pq"
)

type Service struct {
	store  Store
	locker lock.Locker
	opts   Options
	now    func() time.Time
}

type Options struct {
	LockTTL       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

func NewService(store Store, locker lock.Locker, opts Options) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{store: store, locker: locker, opts: opts, now: now}
}

type Store interface {
	// Policy / catalog reads
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	GetBlock(ctx context.Context, id string) (*models.Block, error)
	BlocksForTemplate(ctx context.Context, templateID string) ([]*models.Block, error)
	SetBlockStatus(ctx context.Context, id string, status models.BlockStatus) error

	// Slots
	GetSlot(ctx context.Context, id string) (*models.Slot, error)
	SlotsByBlock(ctx context.Context, blockID string) ([]*models.Slot, error)
	ListOpenSlots(ctx context.Context, blockIDs []string, now time.Time) ([]*models.Slot, error)

	// Eligibility lookup
	IsGroupRecipient(ctx context.Context, groupID, partyID string) (bool, error)

	// Bookings
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	FindPartyBooking(ctx context.Context, partyID string, ref models.EventRef) (*models.Booking, error)

	// Every capacity mutation runs inside one transaction.
	WithTx(ctx context.Context, fn func(tx storage.Tx) error) error
}

// resolveEventBlocks turns a tagged event reference into its concrete set of
// blocks, exactly once per request.
func (s *Service) resolveEventBlocks(ctx context.Context, ref models.EventRef) ([]*models.Block, error) {
	const op = "service.resolveEventBlocks"

	switch ref.Kind {
	case models.EventTemplate:
		if _, err := s.store.GetTemplate(ctx, ref.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		blocks, err := s.store.BlocksForTemplate(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return blocks, nil
	case models.EventBlock:
		block, err := s.store.GetBlock(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return []*models.Block{block}, nil
	default:
		return nil, fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}
}

// resolvePolicy returns the template governing the event.
func (s *Service) resolvePolicy(ctx context.Context, ref models.EventRef) (*models.Template, error) {
	const op = "service.resolvePolicy"

	templateID := ref.ID
	if ref.Kind == models.EventBlock {
		block, err := s.store.GetBlock(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		templateID = block.TemplateID
	}

	template, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return template, nil
}

// Eligible reports whether the party may book against the event, with a
// denial reason when it may not. Group membership is re-read on every call;
// it can change between requests.
func (s *Service) Eligible(ctx context.Context, partyID string, ref models.EventRef) (bool, string, error) {
	const op = "service.Eligible"

	blocks, err := s.resolveEventBlocks(ctx, ref)
	if err != nil {
		return false, "", fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()

	sawOpen := false
	for _, block := range blocks {
		if block.Status != models.BlockOpen || !block.End.After(now) {
			continue
		}
		sawOpen = true

		ok, _, err := s.eligibleForBlock(ctx, partyID, block)
		if err != nil {
			return false, "", fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			return true, "", nil
		}
	}

	if !sawOpen {
		return false, response.ReasonNoOpenBlocks, nil
	}

	return false, response.ReasonNotLinkedToGroup, nil
}

// eligibleForBlock applies the group scope of a single block. Blocks without
// a group scope are open to any authenticated party.
func (s *Service) eligibleForBlock(ctx context.Context, partyID string, block *models.Block) (bool, string, error) {
	const op = "service.eligibleForBlock"

	if block.GroupID == nil {
		return true, "", nil
	}

	ok, err := s.store.IsGroupRecipient(ctx, *block.GroupID, partyID)
	if err != nil {
		return false, "", fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return false, response.ReasonNotLinkedToGroup, nil
	}

	return true, "", nil
}

// withRetry re-runs fn after transient storage aborts (serialization
// failures, deadlocks, dropped connections). fn must repeat the whole
// lock-check-mutate sequence; the pre-lock state may have changed.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	const op = "service.withRetry"

	var err error
	for attempt := 0; attempt < s.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(s.opts.RetryBackoff * time.Duration(attempt)):
			}
		}

		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
	}

	return fmt.Errorf("%s: %w (last: %v)", op, response.ErrRetryExhausted, err)
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure, deadlock_detected
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}

	return false
}

func toBookingResponse(b *models.Booking) *api.BookingResponse {
	return &api.BookingResponse{
		ID:                  b.ID,
		SlotID:              b.SlotID,
		PartyID:             b.PartyID,
		EventKind:           string(b.Event.Kind),
		EventID:             b.Event.ID,
		Status:              string(b.Status),
		BookedAt:            b.BookedAt,
		CancelledAt:         b.CancelledAt,
		RescheduledAt:       b.RescheduledAt,
		SupersededBookingID: b.SupersededBookingID,
		Instructions:        b.Instructions,
	}
}

func toSlotResponse(sl *models.Slot) api.SlotResponse {
	return api.SlotResponse{
		ID:          sl.ID,
		BlockID:     sl.BlockID,
		Start:       sl.Start,
		End:         sl.End,
		Capacity:    sl.Capacity,
		BookedCount: sl.BookedCount,
		Status:      string(sl.Status),
	}
}

func toPolicySummary(t *models.Template) api.PolicySummary {
	return api.PolicySummary{
		EventType:               t.EventType,
		AllowCancel:             t.AllowCancel,
		AllowReschedule:         t.AllowReschedule,
		CancelDeadlineHours:     t.CancelDeadlineHours,
		RescheduleDeadlineHours: t.RescheduleDeadlineHours,
		Instructions:            t.Instructions,
	}
}
