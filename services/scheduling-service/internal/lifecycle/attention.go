package lifecycle

import (
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

// AttentionFlow applies the category-specific rules for attending an
// appointment directly (without start/finish).
type AttentionFlow interface {
	ProcessAttention(a *model.Appointment, p Payload, now time.Time) error
}

type AttentionFunc func(a *model.Appointment, p Payload, now time.Time) error

func (f AttentionFunc) ProcessAttention(a *model.Appointment, p Payload, now time.Time) error {
	return f(a, p, now)
}

func DefaultFlows() map[model.Category]AttentionFlow {
	return map[model.Category]AttentionFlow{
		model.CategoryGeneral:   AttentionFunc(generalAttention),
		model.CategorySurgical:  AttentionFunc(surgicalAttention),
		model.CategoryEmergency: AttentionFunc(emergencyAttention),
	}
}

func generalAttention(a *model.Appointment, p Payload, now time.Time) error {
	if a.StartTime.After(now) {
		return &model.ValidationError{Field: "start_time", Reason: "appointment has not started yet"}
	}
	setObservations(a, p)
	return nil
}

// Surgical procedures need pre-operative confirmation and a written record.
func surgicalAttention(a *model.Appointment, p Payload, _ time.Time) error {
	if a.Status != model.StatusConfirmed {
		return &model.ValidationError{Field: "status", Reason: "surgical appointments must be confirmed before attention"}
	}
	if strings.TrimSpace(p.Observations) == "" {
		return &model.ValidationError{Field: "observations", Reason: "are required for surgical appointments"}
	}
	setObservations(a, p)
	return nil
}

func emergencyAttention(a *model.Appointment, p Payload, _ time.Time) error {
	setObservations(a, p)
	return nil
}

func setObservations(a *model.Appointment, p Payload) {
	if obs := strings.TrimSpace(p.Observations); obs != "" {
		a.Observations = obs
	}
}
