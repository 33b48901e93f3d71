package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/calendar"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

type WindowRepository struct {
	db db.Querier
}

func NewWindowRepository(q db.Querier) *WindowRepository {
	return &WindowRepository{db: q}
}

const windowColumns = `id, provider_id, day_of_week, start_minute, end_minute, slot_duration_minutes,
	max_concurrent_bookings, active, created_at, updated_at`

// InsertWindow serializes writers per provider and weekday with an advisory
// transaction lock, so the overlap check and the insert are atomic.
func (r *WindowRepository) InsertWindow(ctx context.Context, w model.ScheduleWindow, check calendar.OverlapCheck) (model.ScheduleWindow, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.ScheduleWindow{}, &model.PersistenceError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey(w.ProviderID, w.DayOfWeek)); err != nil {
		return model.ScheduleWindow{}, &model.PersistenceError{Op: "lock windows", Err: err}
	}

	existing, err := queryWindows(ctx, tx, `
		SELECT `+windowColumns+`
		FROM schedule_windows
		WHERE provider_id = $1 AND day_of_week = $2 AND active
		ORDER BY start_minute
	`, w.ProviderID, int(w.DayOfWeek))
	if err != nil {
		return model.ScheduleWindow{}, err
	}
	if check != nil {
		if err := check(existing); err != nil {
			return model.ScheduleWindow{}, err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO schedule_windows (`+windowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, w.ID, w.ProviderID, int(w.DayOfWeek), w.StartMinute, w.EndMinute, w.SlotDurationMinutes,
		w.MaxConcurrentBookings, w.Active, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return model.ScheduleWindow{}, &model.PersistenceError{Op: "insert window", Err: err}
	}
	if err := appendHistory(ctx, tx, w.ID, w.ProviderID, model.WindowAdded, w.CreatedAt); err != nil {
		return model.ScheduleWindow{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.ScheduleWindow{}, &model.PersistenceError{Op: "commit", Err: err}
	}
	return w, nil
}

func (r *WindowRepository) ActiveWindows(ctx context.Context, providerID string, day time.Weekday) ([]model.ScheduleWindow, error) {
	return queryWindows(ctx, r.db, `
		SELECT `+windowColumns+`
		FROM schedule_windows
		WHERE provider_id = $1 AND day_of_week = $2 AND active
		ORDER BY start_minute
	`, providerID, int(day))
}

func (r *WindowRepository) ListWindows(ctx context.Context, providerID string, includeInactive bool) ([]model.ScheduleWindow, error) {
	return queryWindows(ctx, r.db, `
		SELECT `+windowColumns+`
		FROM schedule_windows
		WHERE provider_id = $1 AND ($2 OR active)
		ORDER BY day_of_week, start_minute
	`, providerID, includeInactive)
}

func (r *WindowRepository) SetWindowActive(ctx context.Context, id string, active bool, at time.Time) (model.ScheduleWindow, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.ScheduleWindow{}, false, &model.PersistenceError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	w, err := scanWindow(tx.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM schedule_windows
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if missing(err) {
			return model.ScheduleWindow{}, false, &model.NotFoundError{Entity: "schedule window", ID: id}
		}
		return model.ScheduleWindow{}, false, &model.PersistenceError{Op: "get window", Err: err}
	}
	if w.Active == active {
		return w, false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE schedule_windows
		SET active = $2, updated_at = $3
		WHERE id = $1
	`, id, active, at); err != nil {
		return model.ScheduleWindow{}, false, &model.PersistenceError{Op: "update window", Err: err}
	}
	if err := appendHistory(ctx, tx, id, w.ProviderID, windowAction(active), at); err != nil {
		return model.ScheduleWindow{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.ScheduleWindow{}, false, &model.PersistenceError{Op: "commit", Err: err}
	}
	w.Active = active
	w.UpdatedAt = at
	return w, true, nil
}

func (r *WindowRepository) WindowHistory(ctx context.Context, id string) ([]model.WindowChange, error) {
	rows, err := r.db.Query(ctx, `
		SELECT window_id, provider_id, action, at
		FROM schedule_window_history
		WHERE window_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, historyError(id, err)
	}
	defer rows.Close()

	var out []model.WindowChange
	for rows.Next() {
		var (
			c      model.WindowChange
			action string
		)
		if err := rows.Scan(&c.WindowID, &c.ProviderID, &action, &c.At); err != nil {
			return nil, &model.PersistenceError{Op: "window history", Err: err}
		}
		c.Action = model.WindowAction(action)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, historyError(id, err)
	}
	return out, nil
}

func historyError(id string, err error) error {
	if missing(err) {
		return &model.NotFoundError{Entity: "schedule window", ID: id}
	}
	return &model.PersistenceError{Op: "window history", Err: err}
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryWindows(ctx context.Context, q queryer, sql string, args ...any) ([]model.ScheduleWindow, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list windows", Err: err}
	}
	defer rows.Close()

	var out []model.ScheduleWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, &model.PersistenceError{Op: "list windows", Err: err}
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "list windows", Err: err}
	}
	return out, nil
}

func scanWindow(row pgx.Row) (model.ScheduleWindow, error) {
	var (
		w   model.ScheduleWindow
		day int
	)
	err := row.Scan(
		&w.ID,
		&w.ProviderID,
		&day,
		&w.StartMinute,
		&w.EndMinute,
		&w.SlotDurationMinutes,
		&w.MaxConcurrentBookings,
		&w.Active,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	w.DayOfWeek = time.Weekday(day)
	return w, err
}

func appendHistory(ctx context.Context, tx pgx.Tx, windowID, providerID string, action model.WindowAction, at time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_window_history (window_id, provider_id, action, at)
		VALUES ($1, $2, $3, $4)
	`, windowID, providerID, string(action), at)
	if err != nil {
		return &model.PersistenceError{Op: "append window history", Err: err}
	}
	return nil
}

func lockKey(providerID string, day time.Weekday) string {
	return fmt.Sprintf("schedule_windows:%s:%d", providerID, day)
}
