package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var (
	start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ts    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func sampleAppointment() model.Appointment {
	return model.Appointment{
		ID: "a1", ProviderID: "vet-1", PatientID: "pet-1", ServiceID: "svc-1",
		StartTime: start, DurationMinutes: 30, FinalPriceCents: 5000,
		Status: model.StatusScheduled, Version: 1, CreatedAt: ts, UpdatedAt: ts,
	}
}

var appointmentCols = []string{"id", "provider_id", "patient_id", "service_id", "start_time", "duration_minutes", "is_emergency",
	"motive", "observations", "final_price_cents", "status", "cancel_reason", "version",
	"created_at", "updated_at", "confirmed_at", "started_at", "attended_at", "cancelled_at"}

func TestInsertAppointmentMapsUniqueViolationToOverlap(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(anyArgs(19)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_provider_start_live_uniq"})

	var oe *model.OverlapError
	require.ErrorAs(t, repo.InsertAppointment(context.Background(), sampleAppointment()), &oe)
	assert.Equal(t, "vet-1", oe.ProviderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentDetectsStaleVersion(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)
	a := sampleAppointment()
	a.Status = model.StatusConfirmed
	a.Version = 2

	args := anyArgs(13)
	args[0] = "a1"
	args[12] = 1
	mock.ExpectExec("UPDATE appointments").WithArgs(args...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	var ce *model.ConcurrentModificationError
	require.ErrorAs(t, repo.UpdateAppointment(context.Background(), a, 1), &ce)

	mock.ExpectExec("UPDATE appointments").WithArgs(args...).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.UpdateAppointment(context.Background(), a, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointment(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM appointments").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	var ne *model.NotFoundError
	_, err := repo.GetAppointment(context.Background(), "missing")
	require.ErrorAs(t, err, &ne)

	confirmed := ts.Add(time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM appointments").WithArgs("a1").WillReturnRows(
		pgxmock.NewRows(appointmentCols).AddRow(
			"a1", "vet-1", "pet-1", "svc-1", start, 30, true,
			"limping", "", int64(6500), "CONFIRMED", "", 2,
			ts, ts, &confirmed, nil, nil, nil,
		))
	a, err := repo.GetAppointment(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, a.Status)
	assert.True(t, a.IsEmergency)
	assert.Equal(t, int64(6500), a.FinalPriceCents)
	require.NotNil(t, a.ConfirmedAt)
	assert.Nil(t, a.CancelledAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

var windowCols = []string{"id", "provider_id", "day_of_week", "start_minute", "end_minute", "slot_duration_minutes",
	"max_concurrent_bookings", "active", "created_at", "updated_at"}

func TestInsertWindowRunsCheckUnderLock(t *testing.T) {
	mock := newMock(t)
	repo := NewWindowRepository(mock)
	w := model.ScheduleWindow{ID: "w2", ProviderID: "vet-1", DayOfWeek: time.Monday, StartMinute: 600, EndMinute: 660, SlotDurationMinutes: 30, MaxConcurrentBookings: 1, Active: true, CreatedAt: ts, UpdatedAt: ts}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs("schedule_windows:vet-1:1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("FROM schedule_windows").WithArgs("vet-1", 1).WillReturnRows(
		pgxmock.NewRows(windowCols).AddRow("w1", "vet-1", 1, 540, 630, 30, 1, true, ts, ts))
	mock.ExpectRollback()

	var seen []model.ScheduleWindow
	_, err := repo.InsertWindow(context.Background(), w, func(existing []model.ScheduleWindow) error {
		seen = existing
		return &model.OverlapError{ProviderID: "vet-1"}
	})
	var oe *model.OverlapError
	require.ErrorAs(t, err, &oe)
	require.Len(t, seen, 1)
	assert.Equal(t, time.Monday, seen[0].DayOfWeek)
	assert.Equal(t, 630, seen[0].EndMinute)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWindowCommitsWithHistory(t *testing.T) {
	mock := newMock(t)
	repo := NewWindowRepository(mock)
	w := model.ScheduleWindow{ID: "w2", ProviderID: "vet-1", DayOfWeek: time.Monday, StartMinute: 600, EndMinute: 660, SlotDurationMinutes: 30, MaxConcurrentBookings: 1, Active: true, CreatedAt: ts, UpdatedAt: ts}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("FROM schedule_windows").WithArgs("vet-1", 1).WillReturnRows(pgxmock.NewRows(windowCols))
	mock.ExpectExec("INSERT INTO schedule_windows").WithArgs(anyArgs(10)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO schedule_window_history").WithArgs("w2", "vet-1", "added", ts).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	saved, err := repo.InsertWindow(context.Background(), w, func([]model.ScheduleWindow) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "w2", saved.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetWindowActiveIsIdempotent(t *testing.T) {
	mock := newMock(t)
	repo := NewWindowRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM schedule_windows").WithArgs("w1").WillReturnRows(
		pgxmock.NewRows(windowCols).AddRow("w1", "vet-1", 1, 540, 630, 30, 1, false, ts, ts))
	mock.ExpectRollback()

	w, changed, err := repo.SetWindowActive(context.Background(), "w1", false, ts)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, w.Active)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM schedule_windows").WithArgs("w1").WillReturnRows(
		pgxmock.NewRows(windowCols).AddRow("w1", "vet-1", 1, 540, 630, 30, 1, false, ts, ts))
	mock.ExpectExec("UPDATE schedule_windows").WithArgs("w1", true, ts).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO schedule_window_history").WithArgs("w1", "vet-1", "reactivated", ts).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	w, changed, err = repo.SetWindowActive(context.Background(), "w1", true, ts)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, w.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogServiceWithResources(t *testing.T) {
	mock := newMock(t)
	repo := NewCatalogRepository(mock)

	mock.ExpectQuery("FROM services").WithArgs("svc-1").WillReturnRows(
		pgxmock.NewRows([]string{"id", "name", "category", "base_price_cents", "duration_minutes"}).
			AddRow("svc-1", "Castration", "surgical", int64(20000), 60))
	mock.ExpectQuery("FROM service_resources").WithArgs("svc-1").WillReturnRows(
		pgxmock.NewRows([]string{"supply_id", "quantity"}).AddRow("anesthetic", 1).AddRow("gauze", 4))

	svc, err := repo.Service(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, model.CategorySurgical, svc.Category)
	assert.Equal(t, []model.ResourceRequirement{{SupplyID: "anesthetic", Quantity: 1}, {SupplyID: "gauze", Quantity: 4}}, svc.Resources)

	mock.ExpectQuery("FROM patients").WithArgs("pet-9").WillReturnError(pgx.ErrNoRows)
	_, err = repo.OwnerOf(context.Background(), "pet-9")
	assert.Equal(t, "not_found", model.Kind(err))

	mock.ExpectQuery("FROM supplies").WithArgs([]string{"gauze", "iodine"}).WillReturnRows(
		pgxmock.NewRows([]string{"id", "available"}).AddRow("gauze", 10))
	stock, err := repo.Available(context.Background(), []string{"gauze", "iodine"})
	require.NoError(t, err)
	assert.Equal(t, 10, stock["gauze"])
	assert.Equal(t, 0, stock["iodine"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	mock := newMock(t)
	badID := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}
	ctx := context.Background()
	var ne *model.NotFoundError

	mock.ExpectQuery("SELECT (.+) FROM appointments").WithArgs("abc").WillReturnError(badID)
	_, err := NewAppointmentRepository(mock).GetAppointment(ctx, "abc")
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "appointment", ne.Entity)

	windows := NewWindowRepository(mock)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM schedule_windows").WithArgs("abc").WillReturnError(badID)
	mock.ExpectRollback()
	_, _, err = windows.SetWindowActive(ctx, "abc", false, ts)
	require.ErrorAs(t, err, &ne)

	mock.ExpectQuery("FROM schedule_window_history").WithArgs("abc").WillReturnError(badID)
	_, err = windows.WindowHistory(ctx, "abc")
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "schedule window", ne.Entity)

	require.NoError(t, mock.ExpectationsWereMet())
}
