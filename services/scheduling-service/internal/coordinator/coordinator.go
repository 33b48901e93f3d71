package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/validation"
)

const DefaultSurchargePercent = 30

// Store persists appointments. Implementations must reject a second live
// appointment for the same provider and start with *model.OverlapError and
// a stale version with *model.ConcurrentModificationError.
type Store interface {
	InsertAppointment(ctx context.Context, a model.Appointment) error
	UpdateAppointment(ctx context.Context, a model.Appointment, expectedVersion int) error
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	AppointmentsBetween(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error)
}

type Catalog interface {
	Service(ctx context.Context, id string) (model.Service, error)
}

// Dispatcher delivers lifecycle events. Notify must not block and must not
// fail the caller's operation.
type Dispatcher interface {
	Notify(ctx context.Context, evt model.Event)
}

type Deps struct {
	Store      Store
	Catalog    Catalog
	Windows    validation.WindowSource
	Patients   validation.PatientDirectory
	Pipeline   *validation.Pipeline
	Machine    *lifecycle.Machine
	Dispatcher Dispatcher
	Metrics    *metrics.SchedulingMetrics
	Logger     *slog.Logger
}

type Config struct {
	SurchargePercent int
	Location         *time.Location
}

// Coordinator mediates every appointment operation: validation, the state
// machine, the single persistence write and the follow-up notification.
type Coordinator struct {
	store      Store
	catalog    Catalog
	windows    validation.WindowSource
	patients   validation.PatientDirectory
	pipeline   *validation.Pipeline
	machine    *lifecycle.Machine
	dispatcher Dispatcher
	metrics    *metrics.SchedulingMetrics
	logger     *slog.Logger
	tracer     trace.Tracer
	cfg        Config
	now        func() time.Time
}

func New(d Deps, cfg Config) *Coordinator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if d.Machine == nil {
		d.Machine = lifecycle.NewMachine(nil)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Coordinator{
		store:      d.Store,
		catalog:    d.Catalog,
		windows:    d.Windows,
		patients:   d.Patients,
		pipeline:   d.Pipeline,
		machine:    d.Machine,
		dispatcher: d.Dispatcher,
		metrics:    d.Metrics,
		logger:     d.Logger,
		tracer:     otel.Tracer("scheduling-service/coordinator"),
		cfg:        cfg,
		now:        time.Now,
	}
}

// DayAvailability is a provider's agenda for one calendar day.
type DayAvailability struct {
	ProviderID   string
	Date         time.Time
	Windows      []model.ScheduleWindow
	Slots        []model.Slot
	Appointments []model.Appointment
}

func (c *Coordinator) CreateAppointment(ctx context.Context, caller model.Caller, candidate model.Appointment) (appt model.Appointment, err error) {
	ctx, done := c.begin(ctx, "create", attribute.String("provider.id", candidate.ProviderID))
	defer func() { done(err) }()

	if strings.TrimSpace(candidate.ServiceID) == "" {
		return model.Appointment{}, &model.ValidationError{Field: "service_id", Reason: "is required"}
	}
	svc, err := c.catalog.Service(ctx, candidate.ServiceID)
	if err != nil {
		if model.Kind(err) == "not_found" {
			return model.Appointment{}, &model.ValidationError{Field: "service_id", Reason: "does not name a known service"}
		}
		return model.Appointment{}, err
	}
	if candidate.DurationMinutes == 0 {
		candidate.DurationMinutes = svc.DurationMinutes
	}

	now := c.now()
	req := &validation.Request{Mode: validation.ModeCreate, Candidate: candidate, Caller: caller, Service: svc, Now: now}
	if err := c.pipeline.Run(ctx, req); err != nil {
		return model.Appointment{}, err
	}

	appt = model.Appointment{
		ID:              uuid.NewString(),
		ProviderID:      candidate.ProviderID,
		PatientID:       candidate.PatientID,
		ServiceID:       candidate.ServiceID,
		StartTime:       candidate.StartTime,
		DurationMinutes: candidate.DurationMinutes,
		IsEmergency:     candidate.IsEmergency,
		Motive:          strings.TrimSpace(candidate.Motive),
		FinalPriceCents: svc.PriceCents(candidate.IsEmergency, c.cfg.SurchargePercent),
		Status:          model.StatusScheduled,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	if err := c.store.InsertAppointment(ctx, appt); err != nil {
		return model.Appointment{}, err
	}

	c.metrics.ObserveBooking()
	c.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"start_time", appt.StartTime,
		"emergency", appt.IsEmergency,
	)
	c.notify(ctx, model.Event{Kind: model.EventCreated, Appointment: appt})
	return appt, nil
}

// ChangeState applies a lifecycle event. Owners may only confirm or cancel
// appointments of their own patients.
func (c *Coordinator) ChangeState(ctx context.Context, caller model.Caller, id string, ev lifecycle.Event, p lifecycle.Payload) (appt model.Appointment, err error) {
	ctx, done := c.begin(ctx, "change_state", attribute.String("appointment.id", id), attribute.String("event", string(ev)))
	defer func() { done(err) }()

	appt, err = c.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}

	action := string(ev) + " appointments"
	if caller.Role == model.RoleOwner && ev != lifecycle.EventConfirm && ev != lifecycle.EventCancel {
		return model.Appointment{}, &model.PermissionError{CallerID: caller.ID, Action: action}
	}
	if err := validation.Authorize(ctx, c.patients, caller, appt, action); err != nil {
		return model.Appointment{}, err
	}

	var category model.Category
	if ev == lifecycle.EventAttend {
		svc, err := c.catalog.Service(ctx, appt.ServiceID)
		if err != nil {
			return model.Appointment{}, err
		}
		category = svc.Category
	}

	expected := appt.Version
	if err := c.machine.Apply(&appt, ev, p, category, c.now()); err != nil {
		return model.Appointment{}, err
	}
	appt.Version = expected + 1

	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	if err := c.store.UpdateAppointment(ctx, appt, expected); err != nil {
		return model.Appointment{}, err
	}

	c.metrics.ObserveTransition(string(ev))
	c.logger.Info("appointment state changed", "appointment_id", appt.ID, "event", ev, "status", appt.Status)
	if kind, ok := eventFor(ev); ok {
		c.notify(ctx, model.Event{Kind: kind, Appointment: appt, Reason: appt.CancelReason})
	}
	return appt, nil
}

func (c *Coordinator) Reschedule(ctx context.Context, caller model.Caller, id string, newStart time.Time) (appt model.Appointment, err error) {
	ctx, done := c.begin(ctx, "reschedule", attribute.String("appointment.id", id))
	defer func() { done(err) }()

	current, err := c.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := c.machine.CheckReschedule(current, newStart); err != nil {
		return model.Appointment{}, err
	}
	svc, err := c.catalog.Service(ctx, current.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}

	now := c.now()
	appt = current
	appt.StartTime = newStart
	req := &validation.Request{Mode: validation.ModeReschedule, Candidate: appt, Current: &current, Caller: caller, Service: svc, Now: now}
	if err := c.pipeline.Run(ctx, req); err != nil {
		return model.Appointment{}, err
	}

	appt.Version = current.Version + 1
	appt.UpdatedAt = now
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	if err := c.store.UpdateAppointment(ctx, appt, current.Version); err != nil {
		return model.Appointment{}, err
	}

	c.metrics.ObserveTransition(string(lifecycle.EventReschedule))
	c.logger.Info("appointment rescheduled", "appointment_id", appt.ID, "from", current.StartTime, "to", appt.StartTime)
	prev := current.StartTime
	c.notify(ctx, model.Event{Kind: model.EventRescheduled, Appointment: appt, PreviousStart: &prev})
	return appt, nil
}

// Availability returns the provider's active windows, derived slots and live
// appointments for the calendar day containing date.
// Availability lists the provider's windows, slots, and appointments for a
// day. Appointments the caller may not view are left out and their slots
// show as booked without an appointment ID.
func (c *Coordinator) Availability(ctx context.Context, caller model.Caller, providerID string, date time.Time) (DayAvailability, error) {
	if strings.TrimSpace(providerID) == "" {
		return DayAvailability{}, &model.ValidationError{Field: "provider_id", Reason: "is required"}
	}
	day := availability.DayStart(date, c.cfg.Location)
	windows, err := c.windows.WindowsFor(ctx, providerID, day.Weekday())
	if err != nil {
		return DayAvailability{}, err
	}
	appts, err := c.store.AppointmentsBetween(ctx, providerID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return DayAvailability{}, err
	}
	slots := availability.Generate(day, windows, appts, c.now())
	if caller.Privileged() {
		return DayAvailability{ProviderID: providerID, Date: day, Windows: windows, Slots: slots, Appointments: appts}, nil
	}

	shown := make([]model.Appointment, 0, len(appts))
	hidden := map[string]bool{}
	for _, a := range appts {
		ok, err := c.canView(ctx, caller, a)
		if err != nil {
			return DayAvailability{}, err
		}
		if ok {
			shown = append(shown, a)
		} else {
			hidden[a.ID] = true
		}
	}
	for i := range slots {
		if hidden[slots[i].AppointmentID] {
			slots[i].AppointmentID = ""
		}
	}
	return DayAvailability{ProviderID: providerID, Date: day, Windows: windows, Slots: slots, Appointments: shown}, nil
}

// Get returns an appointment the caller is allowed to view.
func (c *Coordinator) Get(ctx context.Context, caller model.Caller, id string) (model.Appointment, error) {
	appt, err := c.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := validation.Authorize(ctx, c.patients, caller, appt, "view appointments"); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (c *Coordinator) canView(ctx context.Context, caller model.Caller, a model.Appointment) (bool, error) {
	err := validation.Authorize(ctx, c.patients, caller, a, "view appointments")
	if err == nil {
		return true, nil
	}
	if model.Kind(err) == "permission" {
		return false, nil
	}
	return false, err
}

func eventFor(ev lifecycle.Event) (model.EventKind, bool) {
	switch ev {
	case lifecycle.EventConfirm:
		return model.EventConfirmed, true
	case lifecycle.EventCancel:
		return model.EventCancelled, true
	case lifecycle.EventAttend, lifecycle.EventFinish:
		return model.EventAttended, true
	}
	return "", false
}

func (c *Coordinator) notify(ctx context.Context, evt model.Event) {
	if c.dispatcher == nil {
		return
	}
	evt.ID = uuid.NewString()
	evt.OccurredAt = c.now()
	c.dispatcher.Notify(context.WithoutCancel(ctx), evt)
}

// begin starts the operation span and returns a finisher that records the
// outcome on the span and in metrics.
func (c *Coordinator) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "coordinator."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			kind := model.Kind(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
			c.metrics.ObserveRejection(op, kind)
			if kind == "persistence" || kind == "internal" {
				c.logger.Error("scheduling operation failed", "op", op, "err", err)
			}
		}
		c.metrics.ObserveLatency(op, time.Since(start).Seconds())
		span.End()
	}
}
