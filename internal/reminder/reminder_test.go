package reminder_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickup-service/internal/models"
	"pickup-service/internal/reminder"
)

type fakeStore struct {
	due      []models.Reminder
	dueErr   error
	marked   []string
	markErr  error
	lastSeen time.Duration
}

func (f *fakeStore) DueReminders(_ context.Context, _ time.Time, window time.Duration) ([]models.Reminder, error) {
	f.lastSeen = window
	return f.due, f.dueErr
}

func (f *fakeStore) MarkReminded(_ context.Context, bookingID string, _ time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, bookingID)
	return nil
}

type fakeNotifier struct {
	notified []string
	failFor  map[string]bool
}

func (f *fakeNotifier) PickupReminder(_ context.Context, r models.Reminder) error {
	if f.failFor[r.BookingID] {
		return errors.New("delivery failed")
	}
	f.notified = append(f.notified, r.BookingID)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweep_NotifiesAndMarks(t *testing.T) {
	start := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []models.Reminder{
		{BookingID: "b-1", PartyID: "party-1", Location: "Front kennel office", SlotStart: start},
		{BookingID: "b-2", PartyID: "party-2", Location: "Front kennel office", SlotStart: start},
	}}
	notifier := &fakeNotifier{}

	sw := reminder.New(discardLogger(), store, notifier, time.Minute, 24*time.Hour)

	sent, err := sw.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"b-1", "b-2"}, notifier.notified)
	assert.Equal(t, []string{"b-1", "b-2"}, store.marked)
	assert.Equal(t, 24*time.Hour, store.lastSeen)
}

func TestSweep_FailedNotifyLeftForNextPass(t *testing.T) {
	store := &fakeStore{due: []models.Reminder{
		{BookingID: "b-1", PartyID: "party-1"},
		{BookingID: "b-2", PartyID: "party-2"},
	}}
	notifier := &fakeNotifier{failFor: map[string]bool{"b-1": true}}

	sw := reminder.New(discardLogger(), store, notifier, time.Minute, 24*time.Hour)

	sent, err := sw.Sweep(context.Background())
	require.NoError(t, err)

	// b-1 stays unmarked, so the next sweep picks it up again
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"b-2"}, store.marked)
}

func TestSweep_MarkFailureNotCountedAsSent(t *testing.T) {
	store := &fakeStore{
		due:     []models.Reminder{{BookingID: "b-1", PartyID: "party-1"}},
		markErr: errors.New("write failed"),
	}
	notifier := &fakeNotifier{}

	sw := reminder.New(discardLogger(), store, notifier, time.Minute, 24*time.Hour)

	sent, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSweep_StoreError(t *testing.T) {
	store := &fakeStore{dueErr: errors.New("connection reset")}

	sw := reminder.New(discardLogger(), store, &fakeNotifier{}, time.Minute, 24*time.Hour)

	_, err := sw.Sweep(context.Background())
	require.Error(t, err)
}

func TestSweep_NothingDue(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	sw := reminder.New(discardLogger(), store, notifier, time.Minute, 24*time.Hour)

	sent, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, notifier.notified)
}
