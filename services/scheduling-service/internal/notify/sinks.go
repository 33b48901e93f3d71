package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/outbox"
)

type ContactSource interface {
	Contacts(ctx context.Context, patientID, providerID string) (owner model.Contact, provider model.Contact, err error)
}

type OutboxWriter interface {
	Insert(ctx context.Context, evt outbox.Event) error
}

// OutboxSink enriches events with contact details and stores them in the
// outbox for the Kafka relay.
type OutboxSink struct {
	Outbox   OutboxWriter
	Contacts ContactSource
}

func (s OutboxSink) Deliver(ctx context.Context, evt model.Event) error {
	var owner, provider model.Contact
	if s.Contacts != nil {
		var err error
		owner, provider, err = s.Contacts.Contacts(ctx, evt.Appointment.PatientID, evt.Appointment.ProviderID)
		if err != nil {
			return fmt.Errorf("load contacts: %w", err)
		}
	}
	payload, err := json.Marshal(Envelope(evt, owner, provider))
	if err != nil {
		return err
	}
	return s.Outbox.Insert(ctx, outbox.Event{
		EventID:       evt.ID,
		AggregateType: "appointment",
		AggregateID:   evt.Appointment.ID,
		EventType:     events.Topic(string(evt.Kind)),
		Payload:       payload,
	})
}

// Envelope converts a lifecycle event into its wire form.
func Envelope(evt model.Event, owner, provider model.Contact) events.AppointmentEvent {
	a := evt.Appointment
	out := events.AppointmentEvent{
		EventID:         evt.ID,
		Kind:            string(evt.Kind),
		AppointmentID:   a.ID,
		ProviderID:      a.ProviderID,
		PatientID:       a.PatientID,
		ServiceID:       a.ServiceID,
		StartTime:       a.StartTime.Format(time.RFC3339),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Reason:          evt.Reason,
		IsEmergency:     a.IsEmergency,
		FinalPriceCents: a.FinalPriceCents,
		OccurredAt:      evt.OccurredAt.UTC().Format(time.RFC3339),
		Owner:           party(owner),
		Provider:        party(provider),
	}
	if evt.PreviousStart != nil {
		out.PreviousStart = evt.PreviousStart.Format(time.RFC3339)
	}
	return out
}

func party(c model.Contact) events.Party {
	return events.Party{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone}
}

// LogSink only logs; used when no database is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(_ context.Context, evt model.Event) error {
	s.Logger.Info("appointment event",
		"event_id", evt.ID,
		"kind", evt.Kind,
		"appointment_id", evt.Appointment.ID,
		"status", evt.Appointment.Status,
		"start_time", evt.Appointment.StartTime,
	)
	return nil
}
