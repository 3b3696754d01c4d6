package api

import "time"

type PolicySummary struct {
	EventType               string `json:"event_type"`
	AllowCancel             bool   `json:"allow_cancel"`
	AllowReschedule         bool   `json:"allow_reschedule"`
	CancelDeadlineHours     int    `json:"cancel_deadline_hours"`
	RescheduleDeadlineHours int    `json:"reschedule_deadline_hours"`
	Instructions            string `json:"instructions,omitempty"`
}

type EventResponse struct {
	EventKind string           `json:"event_kind"`
	EventID   string           `json:"event_id"`
	Policy    PolicySummary    `json:"policy"`
	Booking   *BookingResponse `json:"booking,omitempty"`
}

type SlotResponse struct {
	ID          string    `json:"id"`
	BlockID     string    `json:"block_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Capacity    int       `json:"capacity"`
	BookedCount int       `json:"booked_count"`
	Status      string    `json:"status"`
}

type BlockResponse struct {
	ID         string         `json:"id"`
	TemplateID string         `json:"template_id"`
	GroupID    *string        `json:"group_id,omitempty"`
	Location   string         `json:"location"`
	Timezone   string         `json:"timezone"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	Status     string         `json:"status"`
	Slots      []SlotResponse `json:"slots,omitempty"`
}

type BlockCreateRequest struct {
	TemplateID          string  `json:"template_id"`
	GroupID             *string `json:"group_id,omitempty"`
	Location            string  `json:"location"`
	Timezone            string  `json:"timezone"`
	Start               string  `json:"start"`
	End                 string  `json:"end"`
	SlotDurationMinutes int     `json:"slot_duration_minutes"`
	SlotCapacity        int     `json:"slot_capacity"`
}

type TemplateResponse struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Policy PolicySummary `json:"policy"`
}

type BookingRequest struct {
	EventKind string `json:"event_kind"`
	EventID   string `json:"event_id"`
	PartyID   string `json:"party_id"`
	SlotID    string `json:"slot_id"`
}

type BookingCancelRequest struct {
	EventKind string `json:"event_kind"`
	EventID   string `json:"event_id"`
	PartyID   string `json:"party_id"`
}

type BookingRescheduleRequest struct {
	EventKind string `json:"event_kind"`
	EventID   string `json:"event_id"`
	PartyID   string `json:"party_id"`
	NewSlotID string `json:"new_slot_id"`
}

type BookingResponse struct {
	ID                  string     `json:"id"`
	SlotID              string     `json:"slot_id"`
	PartyID             string     `json:"party_id"`
	EventKind           string     `json:"event_kind"`
	EventID             string     `json:"event_id"`
	Status              string     `json:"status"`
	BookedAt            time.Time  `json:"booked_at"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	RescheduledAt       *time.Time `json:"rescheduled_at,omitempty"`
	SupersededBookingID *string    `json:"superseded_booking_id,omitempty"`
	Instructions        string     `json:"instructions,omitempty"`
}
