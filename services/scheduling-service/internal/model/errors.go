package model

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input or a violated business rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

// OverlapError reports a time conflict with an existing window or appointment.
type OverlapError struct {
	ProviderID string
	Detail     string
}

func (e *OverlapError) Error() string {
	if e.Detail != "" {
		return "overlap: " + e.Detail
	}
	return "overlap with an existing booking"
}

type PermissionError struct {
	CallerID string
	Action   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("caller %q is not allowed to %s", e.CallerID, e.Action)
}

// InvalidTransitionError reports an event the state machine does not accept
// from the current state.
type InvalidTransitionError struct {
	From   Status
	Event  string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("cannot %s an appointment in state %s", e.Event, e.From)
}

// Closed reports whether the rejection was caused by an attended or
// cancelled appointment.
func (e *InvalidTransitionError) Closed() bool {
	return e.From.Closed()
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ConcurrentModificationError is returned when a stored record changed
// between load and save.
type ConcurrentModificationError struct {
	ID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("appointment %q was modified concurrently", e.ID)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Kind names the error category for API bodies and metrics labels.
func Kind(err error) string {
	var (
		ve *ValidationError
		oe *OverlapError
		pe *PermissionError
		te *InvalidTransitionError
		ne *NotFoundError
		ce *ConcurrentModificationError
		se *PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &oe):
		return "overlap"
	case errors.As(err, &pe):
		return "permission"
	case errors.As(err, &te):
		return "invalid_transition"
	case errors.As(err, &ne):
		return "not_found"
	case errors.As(err, &ce):
		return "concurrent_modification"
	case errors.As(err, &se):
		return "persistence"
	default:
		return "internal"
	}
}
