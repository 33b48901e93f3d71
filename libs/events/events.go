// Package events is the wire contract for appointment lifecycle events
// published to Kafka by scheduling-service and consumed by
// notification-service.
package events

import (
	"fmt"
	"strings"
)

const (
	KindCreated     = "created"
	KindConfirmed   = "confirmed"
	KindCancelled   = "cancelled"
	KindAttended    = "attended"
	KindRescheduled = "rescheduled"
	KindReminder    = "reminder"
)

var kinds = []string{KindCreated, KindConfirmed, KindCancelled, KindAttended, KindRescheduled, KindReminder}

// Topic returns the Kafka topic for an event kind, e.g.
// "clinic.appointment.created.v1".
func Topic(kind string) string {
	return fmt.Sprintf("clinic.appointment.%s.v1", kind)
}

// Topics lists every lifecycle topic.
func Topics() []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, Topic(k))
	}
	return out
}

// KindFromTopic is the inverse of Topic.
func KindFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, "clinic.appointment.")
	if !ok {
		return "", false
	}
	kind, ok := strings.CutSuffix(rest, ".v1")
	if !ok {
		return "", false
	}
	for _, k := range kinds {
		if k == kind {
			return kind, true
		}
	}
	return "", false
}

type Party struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// AppointmentEvent carries a snapshot of the appointment plus the contacts
// to notify. Times are RFC 3339.
type AppointmentEvent struct {
	EventID         string `json:"event_id"`
	Kind            string `json:"kind"`
	AppointmentID   string `json:"appointment_id"`
	ProviderID      string `json:"provider_id"`
	PatientID       string `json:"patient_id"`
	ServiceID       string `json:"service_id"`
	StartTime       string `json:"start_time"`
	PreviousStart   string `json:"previous_start,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	IsEmergency     bool   `json:"is_emergency"`
	FinalPriceCents int64  `json:"final_price_cents"`
	OccurredAt      string `json:"occurred_at"`
	Owner           Party  `json:"owner"`
	Provider        Party  `json:"provider"`
}
