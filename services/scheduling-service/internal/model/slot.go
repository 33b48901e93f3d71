package model

import "time"

const (
	ReasonBooked  = "booked"
	ReasonElapsed = "elapsed"
)

// Slot is derived on demand from windows and appointments; it is never stored.
type Slot struct {
	Time              time.Time
	DurationMinutes   int
	Available         bool
	ReasonUnavailable string
	WindowID          string
	AppointmentID     string
}
