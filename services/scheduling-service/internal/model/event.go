package model

import "time"

type EventKind string

const (
	EventCreated     EventKind = "created"
	EventConfirmed   EventKind = "confirmed"
	EventCancelled   EventKind = "cancelled"
	EventAttended    EventKind = "attended"
	EventRescheduled EventKind = "rescheduled"
	EventReminder    EventKind = "reminder"
)

// Event is a lifecycle fact handed to the notification side.
type Event struct {
	ID            string
	Kind          EventKind
	Appointment   Appointment
	Reason        string
	PreviousStart *time.Time
	OccurredAt    time.Time
}
