package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/coordinator"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, caller model.Caller, candidate model.Appointment) (model.Appointment, error)
	ChangeState(ctx context.Context, caller model.Caller, id string, ev lifecycle.Event, p lifecycle.Payload) (model.Appointment, error)
	Reschedule(ctx context.Context, caller model.Caller, id string, newStart time.Time) (model.Appointment, error)
	Availability(ctx context.Context, caller model.Caller, providerID string, date time.Time) (coordinator.DayAvailability, error)
	Get(ctx context.Context, caller model.Caller, id string) (model.Appointment, error)
}

type CalendarService interface {
	AddWindow(ctx context.Context, w model.ScheduleWindow) (model.ScheduleWindow, error)
	Windows(ctx context.Context, providerID string, includeInactive bool) ([]model.ScheduleWindow, error)
	Deactivate(ctx context.Context, id string) (model.ScheduleWindow, error)
	Reactivate(ctx context.Context, id string) (model.ScheduleWindow, error)
	History(ctx context.Context, id string) ([]model.WindowChange, error)
}

type Handler struct {
	appts  AppointmentService
	cal    CalendarService
	loc    *time.Location
	logger *slog.Logger
}

func New(appts AppointmentService, cal CalendarService, loc *time.Location, logger *slog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{appts: appts, cal: cal, loc: loc, logger: logger}
}

// Routes mounts the API. identify resolves the caller and must reject
// anonymous requests.
func (h *Handler) Routes(identify func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	if identify != nil {
		r.Use(identify)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.createAppointment)
		r.Get("/{id}", h.getAppointment)
		r.Put("/{id}", h.reschedule)
		r.Put("/{id}/{action}", h.changeState)
	})
	r.Route("/providers/{id}", func(r chi.Router) {
		r.Get("/availability", h.availability)
		r.Post("/windows", h.addWindow)
		r.Get("/windows", h.listWindows)
	})
	r.Route("/windows/{id}", func(r chi.Router) {
		r.Put("/{action}", h.setWindowActive)
		r.Get("/history", h.windowHistory)
	})
	return r
}

func callerFrom(r *http.Request) model.Caller {
	id, _ := auth.IdentityFromContext(r.Context())
	return model.Caller{ID: id.UserID, Role: model.Role(id.Role)}
}

// parseTime accepts RFC 3339 or a clinic-local "2006-01-02T15:04".
func (h *Handler) parseTime(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, &model.ValidationError{Field: field, Reason: "is required"}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", v, h.loc); err == nil {
		return t, nil
	}
	return time.Time{}, &model.ValidationError{Field: field, Reason: "must be RFC 3339 or YYYY-MM-DDTHH:MM"}
}

// writeDomainError maps scheduling errors to status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.Kind(err)
	switch kind {
	case "validation":
		httpx.WriteErrorKind(w, http.StatusBadRequest, kind, err.Error())
	case "permission":
		httpx.WriteErrorKind(w, http.StatusForbidden, kind, err.Error())
	case "not_found":
		httpx.WriteErrorKind(w, http.StatusNotFound, kind, err.Error())
	case "overlap", "concurrent_modification":
		httpx.WriteErrorKind(w, http.StatusConflict, kind, err.Error())
	case "invalid_transition":
		status := http.StatusBadRequest
		var te *model.InvalidTransitionError
		if errors.As(err, &te) && te.Closed() {
			status = http.StatusUnprocessableEntity
		}
		httpx.WriteErrorKind(w, status, kind, err.Error())
	default:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			httpx.WriteErrorKind(w, http.StatusServiceUnavailable, "unavailable", "request cancelled")
			return
		}
		h.logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteErrorKind(w, http.StatusInternalServerError, kind, "internal error")
	}
}
