// Package reminder runs the periodic pickup-reminder sweep. It only reads
// booking state and emits notification requests; capacity is never written
// here — the booking coordinator stays the sole writer.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"pickup-service/internal/models"
	"pickup-service/pkg/sl"
)

type Store interface {
	DueReminders(ctx context.Context, now time.Time, window time.Duration) ([]models.Reminder, error)
	MarkReminded(ctx context.Context, bookingID string, at time.Time) error
}

type Notifier interface {
	PickupReminder(ctx context.Context, r models.Reminder) error
}

type Sweeper struct {
	log      *slog.Logger
	store    Store
	notifier Notifier
	interval time.Duration
	window   time.Duration
	now      func() time.Time
}

func New(log *slog.Logger, store Store, notifier Notifier, interval, window time.Duration) *Sweeper {
	return &Sweeper{
		log:      log.With(slog.String("component", "reminder")),
		store:    store,
		notifier: notifier,
		interval: interval,
		window:   window,
		now:      time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Reminder sweeper started",
		slog.String("interval", s.interval.String()),
		slog.String("window", s.window.String()),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Reminder sweeper stopped")
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.log.Error("Sweep failed", sl.Err(err))
			} else if n > 0 {
				s.log.Info("Reminders sent", slog.Int("count", n))
			}
		}
	}
}

// Sweep emits a reminder for every due booking and marks it reminded. A
// failed notification leaves the booking unmarked for the next pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	due, err := s.store.DueReminders(ctx, now, s.window)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		if err := s.notifier.PickupReminder(ctx, r); err != nil {
			s.log.Error("Failed to notify",
				slog.String("booking_id", r.BookingID), sl.Err(err))
			continue
		}

		if err := s.store.MarkReminded(ctx, r.BookingID, now); err != nil {
			s.log.Error("Failed to mark reminded",
				slog.String("booking_id", r.BookingID), sl.Err(err))
			continue
		}

		sent++
	}

	return sent, nil
}

// LogNotifier is the default delivery sink: it logs the reminder. Real
// delivery (email, push) hangs off the same interface out of process.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(slog.String("component", "notifier"))}
}

func (n *LogNotifier) PickupReminder(_ context.Context, r models.Reminder) error {
	n.log.Info("Pickup reminder",
		slog.String("booking_id", r.BookingID),
		slog.String("party_id", r.PartyID),
		slog.String("location", r.Location),
		slog.Time("slot_start", r.SlotStart),
	)

	return nil
}
