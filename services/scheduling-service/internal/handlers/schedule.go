package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

type addWindowRequest struct {
	DayOfWeek             *int   `json:"day_of_week"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time"`
	SlotDurationMinutes   int    `json:"slot_duration_minutes"`
	MaxConcurrentBookings int    `json:"max_concurrent_bookings"`
}

type windowResponse struct {
	ID                    string `json:"id"`
	ProviderID            string `json:"provider_id"`
	DayOfWeek             int    `json:"day_of_week"`
	Day                   string `json:"day"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time"`
	SlotDurationMinutes   int    `json:"slot_duration_minutes"`
	MaxConcurrentBookings int    `json:"max_concurrent_bookings"`
	Active                bool   `json:"active"`
}

type slotResponse struct {
	Time              string `json:"time"`
	DurationMinutes   int    `json:"duration_minutes"`
	Available         bool   `json:"available"`
	ReasonUnavailable string `json:"reason_unavailable,omitempty"`
	WindowID          string `json:"window_id"`
	AppointmentID     string `json:"appointment_id,omitempty"`
}

type availabilityResponse struct {
	ProviderID   string                `json:"provider_id"`
	Date         string                `json:"date"`
	Windows      []windowResponse      `json:"windows"`
	Slots        []slotResponse        `json:"slots"`
	Appointments []appointmentResponse `json:"appointments"`
}

type historyResponse struct {
	WindowID   string `json:"window_id"`
	ProviderID string `json:"provider_id"`
	Action     string `json:"action"`
	At         string `json:"at"`
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		httpx.WriteErrorKind(w, http.StatusBadRequest, "validation", "date is required (YYYY-MM-DD)")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", raw, h.loc)
	if err != nil {
		httpx.WriteErrorKind(w, http.StatusBadRequest, "validation", "date must be YYYY-MM-DD")
		return
	}

	day, err := h.appts.Availability(r.Context(), callerFrom(r), chi.URLParam(r, "id"), date)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	resp := availabilityResponse{
		ProviderID:   day.ProviderID,
		Date:         day.Date.Format("2006-01-02"),
		Windows:      make([]windowResponse, 0, len(day.Windows)),
		Slots:        make([]slotResponse, 0, len(day.Slots)),
		Appointments: make([]appointmentResponse, 0, len(day.Appointments)),
	}
	for _, win := range day.Windows {
		resp.Windows = append(resp.Windows, toWindowResponse(win))
	}
	for _, s := range day.Slots {
		resp.Slots = append(resp.Slots, slotResponse{
			Time:              h.format(s.Time),
			DurationMinutes:   s.DurationMinutes,
			Available:         s.Available,
			ReasonUnavailable: s.ReasonUnavailable,
			WindowID:          s.WindowID,
			AppointmentID:     s.AppointmentID,
		})
	}
	for _, a := range day.Appointments {
		resp.Appointments = append(resp.Appointments, h.appointmentResponse(a))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// addWindow: admins and staff manage any agenda, providers only their own.
func (h *Handler) addWindow(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")
	caller := callerFrom(r)
	if !caller.Privileged() && !(caller.Role == model.RoleProvider && caller.ID == providerID) {
		h.writeDomainError(w, r, &model.PermissionError{CallerID: caller.ID, Action: "manage schedule windows"})
		return
	}

	var req addWindowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteErrorKind(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if req.DayOfWeek == nil {
		h.writeDomainError(w, r, &model.ValidationError{Field: "day_of_week", Reason: "is required"})
		return
	}
	start, err := model.ParseClock(req.StartTime)
	if err != nil {
		h.writeDomainError(w, r, &model.ValidationError{Field: "start_time", Reason: err.Error()})
		return
	}
	end, err := model.ParseClock(req.EndTime)
	if err != nil {
		h.writeDomainError(w, r, &model.ValidationError{Field: "end_time", Reason: err.Error()})
		return
	}

	saved, err := h.cal.AddWindow(r.Context(), model.ScheduleWindow{
		ProviderID:            providerID,
		DayOfWeek:             time.Weekday(*req.DayOfWeek),
		StartMinute:           start,
		EndMinute:             end,
		SlotDurationMinutes:   req.SlotDurationMinutes,
		MaxConcurrentBookings: req.MaxConcurrentBookings,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toWindowResponse(saved))
}

func (h *Handler) listWindows(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	ws, err := h.cal.Windows(r.Context(), chi.URLParam(r, "id"), includeInactive)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]windowResponse, 0, len(ws))
	for _, win := range ws {
		out = append(out, toWindowResponse(win))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) setWindowActive(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	if !caller.Privileged() {
		h.writeDomainError(w, r, &model.PermissionError{CallerID: caller.ID, Action: "manage schedule windows"})
		return
	}

	var (
		saved model.ScheduleWindow
		err   error
	)
	id := chi.URLParam(r, "id")
	switch chi.URLParam(r, "action") {
	case "deactivate":
		saved, err = h.cal.Deactivate(r.Context(), id)
	case "reactivate":
		saved, err = h.cal.Reactivate(r.Context(), id)
	default:
		httpx.WriteError(w, http.StatusNotFound, "unknown window action")
		return
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toWindowResponse(saved))
}

func (h *Handler) windowHistory(w http.ResponseWriter, r *http.Request) {
	changes, err := h.cal.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]historyResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, historyResponse{
			WindowID:   c.WindowID,
			ProviderID: c.ProviderID,
			Action:     string(c.Action),
			At:         h.format(c.At),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func toWindowResponse(w model.ScheduleWindow) windowResponse {
	return windowResponse{
		ID:                    w.ID,
		ProviderID:            w.ProviderID,
		DayOfWeek:             int(w.DayOfWeek),
		Day:                   w.DayOfWeek.String(),
		StartTime:             model.FormatClock(w.StartMinute),
		EndTime:               model.FormatClock(w.EndMinute),
		SlotDurationMinutes:   w.SlotDurationMinutes,
		MaxConcurrentBookings: w.MaxConcurrentBookings,
		Active:                w.Active,
	}
}
