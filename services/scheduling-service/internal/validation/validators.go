package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

const maxMotiveLength = 500

type WindowSource interface {
	WindowsFor(ctx context.Context, providerID string, day time.Weekday) ([]model.ScheduleWindow, error)
}

type AppointmentSource interface {
	AppointmentsBetween(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error)
}

type PatientDirectory interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

type StockSource interface {
	Available(ctx context.Context, supplyIDs []string) (map[string]int, error)
}

// DataValidator checks required fields and basic temporal sanity.
type DataValidator struct{}

func (DataValidator) Name() string { return "data" }

func (DataValidator) Validate(_ context.Context, req *Request) error {
	c := req.Candidate
	switch {
	case strings.TrimSpace(c.ProviderID) == "":
		return &model.ValidationError{Field: "provider_id", Reason: "is required"}
	case strings.TrimSpace(c.PatientID) == "":
		return &model.ValidationError{Field: "patient_id", Reason: "is required"}
	case strings.TrimSpace(c.ServiceID) == "":
		return &model.ValidationError{Field: "service_id", Reason: "is required"}
	case c.StartTime.IsZero():
		return &model.ValidationError{Field: "start_time", Reason: "is required"}
	case c.DurationMinutes <= 0:
		return &model.ValidationError{Field: "duration_minutes", Reason: "must be positive"}
	case len(c.Motive) > maxMotiveLength:
		return &model.ValidationError{Field: "motive", Reason: fmt.Sprintf("must be at most %d characters", maxMotiveLength)}
	case c.StartTime.Before(req.Now):
		return &model.ValidationError{Field: "start_time", Reason: "must not be in the past"}
	}
	if req.Mode == ModeReschedule && req.Current != nil && c.StartTime.Equal(req.Current.StartTime) {
		return &model.ValidationError{Field: "start_time", Reason: "must differ from the current appointment time"}
	}
	return nil
}

// AvailabilityValidator requires the start to land on a free slot of the
// provider's active windows for that day.
type AvailabilityValidator struct {
	Windows      WindowSource
	Appointments AppointmentSource
	Location     *time.Location
}

func (AvailabilityValidator) Name() string { return "availability" }

func (v AvailabilityValidator) Validate(ctx context.Context, req *Request) error {
	c := req.Candidate
	loc := v.Location
	if loc == nil {
		loc = time.UTC
	}
	day := availability.DayStart(c.StartTime, loc)

	windows, err := v.Windows.WindowsFor(ctx, c.ProviderID, day.Weekday())
	if err != nil {
		return err
	}
	appts, err := v.Appointments.AppointmentsBetween(ctx, c.ProviderID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	if req.Mode == ModeReschedule && req.Current != nil {
		appts = without(appts, req.Current.ID)
	}

	slot, ok := availability.Find(availability.Generate(day, windows, appts, req.Now), c.StartTime)
	if !ok {
		return &model.ValidationError{Field: "start_time", Reason: "is outside provider availability"}
	}
	switch slot.ReasonUnavailable {
	case model.ReasonBooked:
		return &model.OverlapError{
			ProviderID: c.ProviderID,
			Detail:     fmt.Sprintf("provider %s already has an appointment at %s", c.ProviderID, c.StartTime.In(loc).Format(time.RFC3339)),
		}
	case model.ReasonElapsed:
		return &model.ValidationError{Field: "start_time", Reason: "must not be in the past"}
	}
	return nil
}

func without(appts []model.Appointment, id string) []model.Appointment {
	out := appts[:0:0]
	for _, a := range appts {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

// PermissionValidator applies the caller permission predicate to the
// candidate booking.
type PermissionValidator struct {
	Patients PatientDirectory
}

func (PermissionValidator) Name() string { return "permission" }

func (v PermissionValidator) Validate(ctx context.Context, req *Request) error {
	action := "book appointments"
	if req.Mode == ModeReschedule {
		action = "reschedule appointments"
	}
	return Authorize(ctx, v.Patients, req.Caller, req.Candidate, action)
}

// Authorize: admins and staff may act on anything, providers only on their
// own agenda, owners only on their own patients.
func Authorize(ctx context.Context, patients PatientDirectory, caller model.Caller, a model.Appointment, action string) error {
	denied := &model.PermissionError{CallerID: caller.ID, Action: action}
	if caller.ID == "" {
		return denied
	}
	switch caller.Role {
	case model.RoleAdmin, model.RoleStaff:
		return nil
	case model.RoleProvider:
		if a.ProviderID == caller.ID {
			return nil
		}
		return denied
	case model.RoleOwner:
		if patients == nil {
			return denied
		}
		owner, err := patients.OwnerOf(ctx, a.PatientID)
		if err != nil {
			if model.Kind(err) == "not_found" {
				return denied
			}
			return err
		}
		if owner == caller.ID {
			return nil
		}
		return denied
	default:
		return denied
	}
}

// ResourceValidator checks the stock snapshot covers the service's supplies.
type ResourceValidator struct {
	Stock StockSource
}

func (ResourceValidator) Name() string { return "resources" }

func (v ResourceValidator) Validate(ctx context.Context, req *Request) error {
	needs := req.Service.Resources
	if len(needs) == 0 || v.Stock == nil {
		return nil
	}
	ids := make([]string, 0, len(needs))
	for _, r := range needs {
		ids = append(ids, r.SupplyID)
	}
	stock, err := v.Stock.Available(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range needs {
		if have := stock[r.SupplyID]; have < r.Quantity {
			return &model.ValidationError{
				Field:  "resources",
				Reason: fmt.Sprintf("insufficient stock of %s: need %d, have %d", r.SupplyID, r.Quantity, have),
			}
		}
	}
	return nil
}
