package lifecycle

import (
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

type Event string

const (
	EventConfirm    Event = "confirm"
	EventStart      Event = "start"
	EventFinish     Event = "finish"
	EventCancel     Event = "cancel"
	EventAttend     Event = "attend"
	EventNoShow     Event = "no_show"
	EventReschedule Event = "reschedule"
)

// Payload carries the optional event arguments.
type Payload struct {
	Reason       string
	Observations string
}

type transitionKey struct {
	from  model.Status
	event Event
}

var transitions = map[transitionKey]model.Status{
	{model.StatusScheduled, EventConfirm}: model.StatusConfirmed,
	{model.StatusConfirmed, EventStart}:   model.StatusInProgress,
	{model.StatusInProgress, EventFinish}: model.StatusAttended,
	{model.StatusScheduled, EventCancel}:  model.StatusCancelled,
	{model.StatusConfirmed, EventCancel}:  model.StatusCancelled,
	{model.StatusInProgress, EventCancel}: model.StatusCancelled,
	{model.StatusScheduled, EventAttend}:  model.StatusAttended,
	{model.StatusConfirmed, EventAttend}:  model.StatusAttended,
	{model.StatusConfirmed, EventNoShow}:  model.StatusNoShow,
}

// Machine drives appointments through the lifecycle table. Attention flows
// are looked up by service category.
type Machine struct {
	flows map[model.Category]AttentionFlow
}

func NewMachine(flows map[model.Category]AttentionFlow) *Machine {
	if flows == nil {
		flows = DefaultFlows()
	}
	return &Machine{flows: flows}
}

func ParseEvent(s string) (Event, bool) {
	e := Event(strings.ToLower(strings.TrimSpace(s)))
	switch e {
	case EventConfirm, EventStart, EventFinish, EventCancel, EventAttend, EventNoShow:
		return e, true
	}
	return "", false
}

// Target returns the state an event leads to, or an InvalidTransitionError.
func (m *Machine) Target(from model.Status, ev Event) (model.Status, error) {
	to, ok := transitions[transitionKey{from, ev}]
	if !ok {
		return "", &model.InvalidTransitionError{From: from, Event: string(ev)}
	}
	return to, nil
}

// Apply mutates a according to ev. a is left untouched when an error is
// returned.
func (m *Machine) Apply(a *model.Appointment, ev Event, p Payload, category model.Category, now time.Time) error {
	to, err := m.Target(a.Status, ev)
	if err != nil {
		return err
	}

	next := *a
	switch ev {
	case EventCancel:
		reason := strings.TrimSpace(p.Reason)
		if reason == "" {
			return &model.ValidationError{Field: "reason", Reason: "is required to cancel"}
		}
		next.CancelReason = reason
		next.CancelledAt = &now
	case EventConfirm:
		next.ConfirmedAt = &now
	case EventStart:
		next.StartedAt = &now
	case EventFinish:
		next.AttendedAt = &now
		if obs := strings.TrimSpace(p.Observations); obs != "" {
			next.Observations = obs
		}
	case EventAttend:
		flow, ok := m.flows[category]
		if !ok {
			return &model.ValidationError{Field: "category", Reason: "has no attention flow: " + string(category)}
		}
		if err := flow.ProcessAttention(&next, p, now); err != nil {
			return err
		}
		next.AttendedAt = &now
	}
	next.Status = to
	next.UpdatedAt = now
	*a = next
	return nil
}

// CheckReschedule gates moving an appointment to newStart.
func (m *Machine) CheckReschedule(a model.Appointment, newStart time.Time) error {
	if a.Status.Closed() {
		return &model.InvalidTransitionError{
			From:   a.Status,
			Event:  string(EventReschedule),
			Reason: "cannot modify an appointment already attended or cancelled",
		}
	}
	if a.Status != model.StatusScheduled && a.Status != model.StatusConfirmed {
		return &model.InvalidTransitionError{From: a.Status, Event: string(EventReschedule)}
	}
	if newStart.Equal(a.StartTime) {
		return &model.ValidationError{Field: "start_time", Reason: "must differ from the current appointment time"}
	}
	return nil
}
