package model

import "time"

type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusAttended   Status = "ATTENDED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

// Closed reports whether the appointment can no longer be modified or
// rescheduled.
func (s Status) Closed() bool {
	return s == StatusAttended || s == StatusCancelled
}

// Holding reports whether the appointment still occupies its slot.
func (s Status) Holding() bool {
	return s != StatusCancelled
}

type Appointment struct {
	ID              string
	ProviderID      string
	PatientID       string
	ServiceID       string
	StartTime       time.Time
	DurationMinutes int
	IsEmergency     bool
	Motive          string
	Observations    string
	FinalPriceCents int64
	Status          Status
	CancelReason    string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ConfirmedAt     *time.Time
	StartedAt       *time.Time
	AttendedAt      *time.Time
	CancelledAt     *time.Time
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
