package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/outbox"
)

func event(id string) model.Event {
	return model.Event{ID: id, Kind: model.EventCreated, Appointment: model.Appointment{ID: "a-" + id}}
}

func TestDispatcherDeliversQueuedEventsOnClose(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	d := NewDispatcher(SinkFunc(func(_ context.Context, evt model.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt.ID)
		return nil
	}), Config{QueueSize: 10, Workers: 2}, nil, nil)
	d.Start()

	for _, id := range []string{"1", "2", "3"} {
		d.Notify(context.Background(), event(id))
	}
	require.NoError(t, d.Close(context.Background()))
	assert.ElementsMatch(t, []string{"1", "2", "3"}, got)

	// After Close, Notify drops instead of panicking.
	d.Notify(context.Background(), event("4"))
}

func TestDispatcherNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	d := NewDispatcher(SinkFunc(func(ctx context.Context, _ model.Event) error {
		<-release
		return nil
	}), Config{QueueSize: 1, Workers: 1}, nil, nil)
	d.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Notify(context.Background(), event("x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherSurvivesSinkFailures(t *testing.T) {
	calls := make(chan string, 2)
	d := NewDispatcher(SinkFunc(func(_ context.Context, evt model.Event) error {
		calls <- evt.ID
		if evt.ID == "bad" {
			return errors.New("smtp down")
		}
		return nil
	}), Config{Workers: 1}, nil, nil)
	d.Start()
	d.Notify(context.Background(), event("bad"))
	d.Notify(context.Background(), event("good"))
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, "bad", <-calls)
	assert.Equal(t, "good", <-calls)
}

type outboxRecorder struct{ events []outbox.Event }

func (r *outboxRecorder) Insert(_ context.Context, evt outbox.Event) error {
	r.events = append(r.events, evt)
	return nil
}

type contacts struct{}

func (contacts) Contacts(_ context.Context, _, _ string) (model.Contact, model.Contact, error) {
	return model.Contact{ID: "owner-1", Email: "ana@example.com"}, model.Contact{ID: "vet-1", Phone: "+5215550000"}, nil
}

func TestOutboxSinkEnrichesEvent(t *testing.T) {
	rec := &outboxRecorder{}
	sink := OutboxSink{Outbox: rec, Contacts: contacts{}}
	prev := time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC)
	evt := model.Event{
		ID:            "evt-1",
		Kind:          model.EventRescheduled,
		Appointment:   model.Appointment{ID: "a1", ProviderID: "vet-1", PatientID: "pet-1", StartTime: prev.Add(time.Hour), Status: model.StatusScheduled},
		PreviousStart: &prev,
		OccurredAt:    prev.Add(-time.Hour),
	}
	require.NoError(t, sink.Deliver(context.Background(), evt))

	require.Len(t, rec.events, 1)
	out := rec.events[0]
	assert.Equal(t, "evt-1", out.EventID)
	assert.Equal(t, "clinic.appointment.rescheduled.v1", out.EventType)
	assert.Equal(t, "a1", out.AggregateID)

	var wire events.AppointmentEvent
	require.NoError(t, json.Unmarshal(out.Payload, &wire))
	assert.Equal(t, "2026-01-26T09:00:00Z", wire.PreviousStart)
	assert.Equal(t, "2026-01-26T10:00:00Z", wire.StartTime)
	assert.Equal(t, "ana@example.com", wire.Owner.Email)
	assert.Equal(t, "+5215550000", wire.Provider.Phone)
}
