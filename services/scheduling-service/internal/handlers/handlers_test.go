package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/calendar"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/coordinator"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/validation"
)

type api struct {
	t      *testing.T
	srv    http.Handler
	monday time.Time
}

func nextMonday() time.Time {
	d := time.Now().UTC().AddDate(0, 0, 7)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := storage.NewMemoryStore()
	store.PutService(model.Service{ID: "consult", Category: model.CategoryGeneral, BasePriceCents: 10000, DurationMinutes: 30})
	store.PutPatient("pet-1", model.Contact{ID: "owner-1"})

	cal := calendar.New(store, nil, nil)
	c := coordinator.New(coordinator.Deps{
		Store:    store,
		Catalog:  store,
		Windows:  cal,
		Patients: store,
		Pipeline: validation.NewPipeline(
			validation.DataValidator{},
			validation.AvailabilityValidator{Windows: cal, Appointments: store, Location: time.UTC},
			validation.PermissionValidator{Patients: store},
			validation.ResourceValidator{Stock: store},
		),
	}, coordinator.Config{SurchargePercent: 30, Location: time.UTC})

	h := New(c, cal, time.UTC, nil)
	return &api{t: t, srv: h.Routes(auth.Middleware(nil, httpx.WriteError)), monday: nextMonday()}
}

func (a *api) do(method, path, user, role, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(auth.HeaderUserID, user)
		req.Header.Set(auth.HeaderRole, role)
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

func (a *api) at(hhmm string) string {
	return a.monday.Format("2006-01-02") + "T" + hhmm
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *api) addMondayWindow() {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/providers/vet-1/windows", "staff-1", "staff",
		`{"day_of_week":1,"start_time":"09:00","end_time":"12:00","slot_duration_minutes":30}`)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (a *api) book(hhmm string) appointmentResponse {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/appointments", "staff-1", "staff",
		`{"provider_id":"vet-1","patient_id":"pet-1","service_id":"consult","start_time":"`+a.at(hhmm)+`"}`)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[appointmentResponse](a.t, rec)
}

func TestWindowEndpoints(t *testing.T) {
	a := newAPI(t)
	a.addMondayWindow()

	rec := a.do(http.MethodPost, "/providers/vet-1/windows", "staff-1", "staff",
		`{"day_of_week":1,"start_time":"11:00","end_time":"13:00","slot_duration_minutes":30}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "overlap", decode[httpx.ErrorBody](t, rec).Kind)

	rec = a.do(http.MethodPost, "/providers/vet-1/windows", "vet-2", "provider",
		`{"day_of_week":2,"start_time":"09:00","end_time":"10:00","slot_duration_minutes":30}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/providers/vet-1/windows", "vet-1", "provider",
		`{"day_of_week":2,"start_time":"9:00","end_time":"10:00","slot_duration_minutes":30}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/providers/vet-1/windows", "staff-1", "staff", "")
	require.Equal(t, http.StatusOK, rec.Code)
	windows := decode[[]windowResponse](t, rec)
	require.Len(t, windows, 1)
	assert.Equal(t, "09:00", windows[0].StartTime)
	assert.Equal(t, "Monday", windows[0].Day)

	id := windows[0].ID
	rec = a.do(http.MethodPut, "/windows/"+id+"/deactivate", "staff-1", "staff", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[windowResponse](t, rec).Active)

	rec = a.do(http.MethodPut, "/windows/"+id+"/reactivate", "vet-1", "provider", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/windows/"+id+"/history", "staff-1", "staff", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]historyResponse](t, rec), 2)
}

func TestBookingLifecycle(t *testing.T) {
	a := newAPI(t)
	a.addMondayWindow()

	appt := a.book("09:00")
	assert.Equal(t, "SCHEDULED", appt.Status)
	assert.Equal(t, int64(10000), appt.FinalPriceCents)

	rec := a.do(http.MethodPost, "/appointments", "staff-1", "staff",
		`{"provider_id":"vet-1","patient_id":"pet-1","service_id":"consult","start_time":"`+a.at("09:00")+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodGet, "/providers/vet-1/availability?date="+a.monday.Format("2006-01-02"), "owner-1", "owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	day := decode[availabilityResponse](t, rec)
	require.Len(t, day.Slots, 6)
	assert.False(t, day.Slots[0].Available)
	assert.Equal(t, "booked", day.Slots[0].ReasonUnavailable)
	assert.Equal(t, appt.ID, day.Slots[0].AppointmentID)

	rec = a.do(http.MethodPut, "/appointments/"+appt.ID, "staff-1", "staff", `{"start_time":"`+a.at("09:00")+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[httpx.ErrorBody](t, rec).Error, "must differ")

	rec = a.do(http.MethodPut, "/appointments/"+appt.ID+"/cancel", "staff-1", "staff", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode[httpx.ErrorBody](t, rec).Kind)

	rec = a.do(http.MethodPut, "/appointments/"+appt.ID+"/cancel", "owner-1", "owner", `{"reason":"patient request"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[appointmentResponse](t, rec)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "patient request", cancelled.CancelReason)
	assert.NotEmpty(t, cancelled.CancelledAt)

	rec = a.do(http.MethodPut, "/appointments/"+appt.ID+"/confirm", "staff-1", "staff", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_transition", decode[httpx.ErrorBody](t, rec).Kind)

	rec = a.do(http.MethodPut, "/appointments/"+appt.ID, "staff-1", "staff", `{"start_time":"`+a.at("10:00")+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rebooked := a.book("09:00")
	assert.NotEqual(t, appt.ID, rebooked.ID)
}

func TestStateActions(t *testing.T) {
	a := newAPI(t)
	a.addMondayWindow()
	appt := a.book("10:00")

	rec := a.do(http.MethodPut, "/appointments/"+appt.ID+"/start-attention", "staff-1", "staff", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "start requires CONFIRMED")

	for _, step := range []struct{ action, status string }{
		{"confirm", "CONFIRMED"},
		{"start-attention", "IN_PROGRESS"},
		{"finish-attention", "ATTENDED"},
	} {
		rec := a.do(http.MethodPut, "/appointments/"+appt.ID+"/"+step.action, "vet-1", "provider", `{"observations":"ok"}`)
		require.Equal(t, http.StatusOK, rec.Code, step.action+": "+rec.Body.String())
		assert.Equal(t, step.status, decode[appointmentResponse](t, rec).Status)
	}

	rec = a.do(http.MethodPut, "/appointments/"+appt.ID+"/teleport", "staff-1", "staff", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/appointments/"+appt.ID, "staff-1", "staff", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[appointmentResponse](t, rec)
	assert.Equal(t, 4, got.Version)
	assert.Equal(t, "ok", got.Observations)

	rec = a.do(http.MethodGet, "/appointments/"+appt.ID, "owner-1", "owner", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/appointments/"+appt.ID, "owner-2", "owner", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestErrors(t *testing.T) {
	a := newAPI(t)
	a.addMondayWindow()

	rec := a.do(http.MethodGet, "/appointments/nope", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/appointments/nope", "staff-1", "staff", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/appointments", "owner-2", "owner",
		`{"provider_id":"vet-1","patient_id":"pet-1","service_id":"consult","start_time":"`+a.at("09:30")+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/appointments", "staff-1", "staff",
		`{"provider_id":"vet-1","patient_id":"pet-1","service_id":"consult","start_time":"`+a.at("13:00")+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[httpx.ErrorBody](t, rec).Error, "outside provider availability")

	rec = a.do(http.MethodPost, "/appointments", "staff-1", "staff", `{"provider_id":"vet-1","color":"blue"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/providers/vet-1/availability?date=26/01/2026", "staff-1", "staff", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
