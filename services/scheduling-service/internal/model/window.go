package model

import (
	"fmt"
	"time"
)

const MinutesPerDay = 24 * 60

// ScheduleWindow is a weekly recurring block of provider availability.
// StartMinute and EndMinute count minutes after local midnight.
type ScheduleWindow struct {
	ID                    string
	ProviderID            string
	DayOfWeek             time.Weekday
	StartMinute           int
	EndMinute             int
	SlotDurationMinutes   int
	MaxConcurrentBookings int
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Validate checks the window's own shape; overlap with other windows is the
// calendar's concern.
func (w ScheduleWindow) Validate() error {
	switch {
	case w.ProviderID == "":
		return &ValidationError{Field: "provider_id", Reason: "is required"}
	case w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday:
		return &ValidationError{Field: "day_of_week", Reason: "must be between 0 (Sunday) and 6 (Saturday)"}
	case w.StartMinute < 0 || w.EndMinute > MinutesPerDay:
		return &ValidationError{Field: "start_time", Reason: "window must fall within one day"}
	case w.StartMinute >= w.EndMinute:
		return &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	case w.SlotDurationMinutes <= 0:
		return &ValidationError{Field: "slot_duration_minutes", Reason: "must be positive"}
	case w.MaxConcurrentBookings < 1:
		return &ValidationError{Field: "max_concurrent_bookings", Reason: "must be at least 1"}
	}
	return nil
}

// Overlaps uses half-open intervals, so back-to-back windows do not overlap.
func (w ScheduleWindow) Overlaps(o ScheduleWindow) bool {
	return w.DayOfWeek == o.DayOfWeek && w.StartMinute < o.EndMinute && o.StartMinute < w.EndMinute
}

func (w ScheduleWindow) String() string {
	return fmt.Sprintf("%s %s-%s", w.DayOfWeek, FormatClock(w.StartMinute), FormatClock(w.EndMinute))
}

type WindowAction string

const (
	WindowAdded       WindowAction = "added"
	WindowDeactivated WindowAction = "deactivated"
	WindowReactivated WindowAction = "reactivated"
)

// WindowChange is one append-only audit entry for a schedule window.
type WindowChange struct {
	WindowID   string
	ProviderID string
	Action     WindowAction
	At         time.Time
}

// ParseClock parses "HH:MM" into minutes after midnight. "24:00" is accepted
// as an end of day marker.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || len(s) != 5 {
		return 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
