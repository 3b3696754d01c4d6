package models

import (
	"fmt"
	"strings"
	"time"
)

type EventKind string

const (
	EventTemplate EventKind = "TEMPLATE"
	EventBlock    EventKind = "BLOCK"
)

// EventRef identifies the logical event a party books against. A TEMPLATE
// ref spans every block published under that template; a BLOCK ref names a
// single published window.
type EventRef struct {
	Kind EventKind
	ID   string
}

func (e EventRef) String() string {
	return string(e.Kind) + ":" + e.ID
}

func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(strings.ToUpper(s)) {
	case EventTemplate:
		return EventTemplate, nil
	case EventBlock:
		return EventBlock, nil
	default:
		return "", fmt.Errorf("unknown event kind: %q", s)
	}
}

type TemplateStatus string

const (
	TemplateOpen   TemplateStatus = "OPEN"
	TemplateClosed TemplateStatus = "CLOSED"
)

// Template is the per-event-type policy. The engine reads it, staff tooling
// owns its lifecycle.
type Template struct {
	ID                      string         `db:"id"`
	EventType               string         `db:"event_type"`
	AllowCancel             bool           `db:"allow_cancel"`
	AllowReschedule         bool           `db:"allow_reschedule"`
	CancelDeadlineHours     int            `db:"cancel_deadline_hours"`
	RescheduleDeadlineHours int            `db:"reschedule_deadline_hours"`
	Instructions            string         `db:"instructions"`
	Status                  TemplateStatus `db:"status"`
	CreatedAt               time.Time      `db:"created_at"`
}

type BlockStatus string

const (
	BlockOpen   BlockStatus = "OPEN"
	BlockClosed BlockStatus = "CLOSED"
)

// Block is a published bookable window. GroupID, when set, scopes booking to
// parties registered as recipients of that group.
type Block struct {
	ID         string      `db:"id"`
	TemplateID string      `db:"template_id"`
	GroupID    *string     `db:"group_id"`
	Location   string      `db:"location"`
	Timezone   string      `db:"timezone"`
	Start      time.Time   `db:"start_at"`
	End        time.Time   `db:"end_at"`
	Status     BlockStatus `db:"status"`
	CreatedAt  time.Time   `db:"created_at"`
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotFull      SlotStatus = "FULL"
)

// SlotStatusFor derives the persisted slot status from its counters.
func SlotStatusFor(bookedCount, capacity int) SlotStatus {
	if bookedCount >= capacity {
		return SlotFull
	}
	return SlotAvailable
}

// Slot is the atomic bookable unit. BookedCount is the number of CONFIRMED
// bookings referencing the slot and never exceeds Capacity; only the booking
// coordinator mutates it.
type Slot struct {
	ID          string     `db:"id"`
	BlockID     string     `db:"block_id"`
	Start       time.Time  `db:"start_at"`
	End         time.Time  `db:"end_at"`
	Capacity    int        `db:"capacity"`
	BookedCount int        `db:"booked_count"`
	Status      SlotStatus `db:"status"`
}

type BookingStatus string

const (
	BookingConfirmed   BookingStatus = "CONFIRMED"
	BookingCancelled   BookingStatus = "CANCELLED"
	BookingRescheduled BookingStatus = "RESCHEDULED"
)

// Booking is a party's reservation against one slot. CANCELLED and
// RESCHEDULED are terminal; a reschedule creates a fresh CONFIRMED booking
// whose SupersededBookingID points at the one it replaced. Instructions is a
// frozen copy of the template text at booking time.
type Booking struct {
	ID                  string `db:"id"`
	SlotID              string `db:"slot_id"`
	PartyID             string `db:"party_id"`
	Event               EventRef
	Status              BookingStatus `db:"status"`
	BookedAt            time.Time     `db:"booked_at"`
	CancelledAt         *time.Time    `db:"cancelled_at"`
	RescheduledAt       *time.Time    `db:"rescheduled_at"`
	SupersededBookingID *string       `db:"superseded_booking_id"`
	Instructions        string        `db:"instructions"`
	RemindedAt          *time.Time    `db:"reminded_at"`
}

// Reminder is the read-only projection the reminder sweeper works from.
type Reminder struct {
	BookingID string
	PartyID   string
	Location  string
	SlotStart time.Time
}
