package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

type createAppointmentRequest struct {
	ProviderID      string `json:"provider_id"`
	PatientID       string `json:"patient_id"`
	ServiceID       string `json:"service_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	IsEmergency     bool   `json:"is_emergency"`
	Motive          string `json:"motive"`
}

type rescheduleRequest struct {
	StartTime string `json:"start_time"`
}

type transitionRequest struct {
	Reason       string `json:"reason"`
	Observations string `json:"observations"`
}

type appointmentResponse struct {
	ID              string `json:"id"`
	ProviderID      string `json:"provider_id"`
	PatientID       string `json:"patient_id"`
	ServiceID       string `json:"service_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	IsEmergency     bool   `json:"is_emergency"`
	Motive          string `json:"motive,omitempty"`
	Observations    string `json:"observations,omitempty"`
	FinalPriceCents int64  `json:"final_price_cents"`
	Status          string `json:"status"`
	CancelReason    string `json:"cancel_reason,omitempty"`
	Version         int    `json:"version"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	ConfirmedAt     string `json:"confirmed_at,omitempty"`
	StartedAt       string `json:"started_at,omitempty"`
	AttendedAt      string `json:"attended_at,omitempty"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
}

// actions maps the path verb of PUT /appointments/{id}/{action}.
var actions = map[string]lifecycle.Event{
	"confirm":          lifecycle.EventConfirm,
	"cancel":           lifecycle.EventCancel,
	"attend":           lifecycle.EventAttend,
	"start-attention":  lifecycle.EventStart,
	"finish-attention": lifecycle.EventFinish,
	"no-show":          lifecycle.EventNoShow,
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteErrorKind(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	start, err := h.parseTime("start_time", req.StartTime)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	appt, err := h.appts.CreateAppointment(r.Context(), callerFrom(r), model.Appointment{
		ProviderID:      strings.TrimSpace(req.ProviderID),
		PatientID:       strings.TrimSpace(req.PatientID),
		ServiceID:       strings.TrimSpace(req.ServiceID),
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
		IsEmergency:     req.IsEmergency,
		Motive:          req.Motive,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/appointments/"+appt.ID)
	httpx.WriteJSON(w, http.StatusCreated, h.appointmentResponse(appt))
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.appts.Get(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.appointmentResponse(appt))
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteErrorKind(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	start, err := h.parseTime("start_time", req.StartTime)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	appt, err := h.appts.Reschedule(r.Context(), callerFrom(r), chi.URLParam(r, "id"), start)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.appointmentResponse(appt))
}

func (h *Handler) changeState(w http.ResponseWriter, r *http.Request) {
	ev, ok := actions[chi.URLParam(r, "action")]
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "unknown appointment action")
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.WriteErrorKind(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	appt, err := h.appts.ChangeState(r.Context(), callerFrom(r), chi.URLParam(r, "id"), ev, lifecycle.Payload{
		Reason:       req.Reason,
		Observations: req.Observations,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.appointmentResponse(appt))
}

func (h *Handler) appointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		ProviderID:      a.ProviderID,
		PatientID:       a.PatientID,
		ServiceID:       a.ServiceID,
		StartTime:       h.format(a.StartTime),
		EndTime:         h.format(a.EndTime()),
		DurationMinutes: a.DurationMinutes,
		IsEmergency:     a.IsEmergency,
		Motive:          a.Motive,
		Observations:    a.Observations,
		FinalPriceCents: a.FinalPriceCents,
		Status:          string(a.Status),
		CancelReason:    a.CancelReason,
		Version:         a.Version,
		CreatedAt:       h.format(a.CreatedAt),
		UpdatedAt:       h.format(a.UpdatedAt),
		ConfirmedAt:     h.formatPtr(a.ConfirmedAt),
		StartedAt:       h.formatPtr(a.StartedAt),
		AttendedAt:      h.formatPtr(a.AttendedAt),
		CancelledAt:     h.formatPtr(a.CancelledAt),
	}
}

func (h *Handler) format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(h.loc).Format(time.RFC3339)
}

func (h *Handler) formatPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return h.format(*t)
}
