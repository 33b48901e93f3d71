package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

type AppointmentRepository struct {
	db db.Querier
}

func NewAppointmentRepository(q db.Querier) *AppointmentRepository {
	return &AppointmentRepository{db: q}
}

const appointmentColumns = `id, provider_id, patient_id, service_id, start_time, duration_minutes, is_emergency,
	motive, observations, final_price_cents, status, cancel_reason, version,
	created_at, updated_at, confirmed_at, started_at, attended_at, cancelled_at`

func (r *AppointmentRepository) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, a.ID, a.ProviderID, a.PatientID, a.ServiceID, a.StartTime, a.DurationMinutes, a.IsEmergency,
		a.Motive, a.Observations, a.FinalPriceCents, string(a.Status), a.CancelReason, a.Version,
		a.CreatedAt, a.UpdatedAt, a.ConfirmedAt, a.StartedAt, a.AttendedAt, a.CancelledAt)
	return writeError("insert appointment", a, err)
}

// UpdateAppointment saves a only if the stored version still equals
// expectedVersion.
func (r *AppointmentRepository) UpdateAppointment(ctx context.Context, a model.Appointment, expectedVersion int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET start_time = $2,
			duration_minutes = $3,
			observations = $4,
			status = $5,
			cancel_reason = $6,
			version = $7,
			updated_at = $8,
			confirmed_at = $9,
			started_at = $10,
			attended_at = $11,
			cancelled_at = $12
		WHERE id = $1 AND version = $13
	`, a.ID, a.StartTime, a.DurationMinutes, a.Observations, string(a.Status), a.CancelReason, a.Version,
		a.UpdatedAt, a.ConfirmedAt, a.StartedAt, a.AttendedAt, a.CancelledAt, expectedVersion)
	if err != nil {
		return writeError("update appointment", a, err)
	}
	if tag.RowsAffected() == 0 {
		return &model.ConcurrentModificationError{ID: a.ID}
	}
	return nil
}

func (r *AppointmentRepository) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if err != nil {
		if missing(err) {
			return model.Appointment{}, &model.NotFoundError{Entity: "appointment", ID: id}
		}
		return model.Appointment{}, &model.PersistenceError{Op: "get appointment", Err: err}
	}
	return a, nil
}

// AppointmentsBetween returns the provider's live appointments starting in
// [from, to).
func (r *AppointmentRepository) AppointmentsBetween(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
			AND status <> 'CANCELLED'
			AND start_time >= $2
			AND start_time < $3
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list appointments", Err: err}
	}
	return collectAppointments(rows, "list appointments")
}

// UpcomingAppointments returns scheduled or confirmed appointments starting
// in (from, to].
func (r *AppointmentRepository) UpcomingAppointments(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('SCHEDULED', 'CONFIRMED')
			AND start_time > $1
			AND start_time <= $2
		ORDER BY start_time
	`, from, to)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list upcoming appointments", Err: err}
	}
	return collectAppointments(rows, "list upcoming appointments")
}

func collectAppointments(rows pgx.Rows, op string) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, &model.PersistenceError{Op: op, Err: err}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: op, Err: err}
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a      model.Appointment
		status string
	)
	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.PatientID,
		&a.ServiceID,
		&a.StartTime,
		&a.DurationMinutes,
		&a.IsEmergency,
		&a.Motive,
		&a.Observations,
		&a.FinalPriceCents,
		&status,
		&a.CancelReason,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.ConfirmedAt,
		&a.StartedAt,
		&a.AttendedAt,
		&a.CancelledAt,
	)
	a.Status = model.Status(status)
	return a, err
}

// writeError maps the live-slot unique index to OverlapError.
// missing reports a lookup that found nothing. Ids are UUID columns, so an
// id Postgres cannot parse (22P02) cannot name an existing row either.
func missing(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || db.PgCode(err) == db.CodeInvalidText
}

func writeError(op string, a model.Appointment, err error) error {
	if err == nil {
		return nil
	}
	switch db.PgCode(err) {
	case db.CodeUniqueViolation, db.CodeExclusionViolation:
		return slotTaken(a)
	}
	return &model.PersistenceError{Op: op, Err: err}
}
