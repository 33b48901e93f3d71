package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

// OverlapCheck is run by the store against the provider's active windows for
// the same weekday, inside the same critical section as the insert.
type OverlapCheck func(existing []model.ScheduleWindow) error

type Store interface {
	InsertWindow(ctx context.Context, w model.ScheduleWindow, check OverlapCheck) (model.ScheduleWindow, error)
	ActiveWindows(ctx context.Context, providerID string, day time.Weekday) ([]model.ScheduleWindow, error)
	ListWindows(ctx context.Context, providerID string, includeInactive bool) ([]model.ScheduleWindow, error)
	// SetWindowActive reports changed=false when the window was already in
	// the requested state.
	SetWindowActive(ctx context.Context, id string, active bool, at time.Time) (w model.ScheduleWindow, changed bool, err error)
	WindowHistory(ctx context.Context, id string) ([]model.WindowChange, error)
}

// Cache is a read-through cache of active windows. Generation is read
// before loading from the store and handed back to Set, which must drop the
// write if Invalidate ran in between.
type Cache interface {
	Get(ctx context.Context, providerID string, day time.Weekday) ([]model.ScheduleWindow, bool)
	Generation(ctx context.Context, providerID string) (string, bool)
	Set(ctx context.Context, providerID string, day time.Weekday, generation string, windows []model.ScheduleWindow)
	Invalidate(ctx context.Context, providerID string)
}

type Calendar struct {
	store  Store
	cache  Cache
	logger *slog.Logger
	now    func() time.Time
}

// New returns a calendar over store. cache may be nil.
func New(store Store, cache Cache, logger *slog.Logger) *Calendar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calendar{store: store, cache: cache, logger: logger, now: time.Now}
}

func (c *Calendar) AddWindow(ctx context.Context, w model.ScheduleWindow) (model.ScheduleWindow, error) {
	if w.MaxConcurrentBookings == 0 {
		w.MaxConcurrentBookings = 1
	}
	if err := w.Validate(); err != nil {
		return model.ScheduleWindow{}, err
	}
	now := c.now().UTC()
	w.ID = uuid.NewString()
	w.Active = true
	w.CreatedAt = now
	w.UpdatedAt = now

	saved, err := c.store.InsertWindow(ctx, w, func(existing []model.ScheduleWindow) error {
		for _, e := range existing {
			if e.Active && e.Overlaps(w) {
				return &model.OverlapError{
					ProviderID: w.ProviderID,
					Detail:     fmt.Sprintf("window %s overlaps active window %s (%s)", w, e.ID, e),
				}
			}
		}
		return nil
	})
	if err != nil {
		return model.ScheduleWindow{}, err
	}
	c.invalidate(ctx, saved.ProviderID)
	c.logger.Info("schedule window added", "window_id", saved.ID, "provider_id", saved.ProviderID, "window", saved.String())
	return saved, nil
}

// WindowsFor returns the provider's active windows for a weekday ordered by
// start time.
func (c *Calendar) WindowsFor(ctx context.Context, providerID string, day time.Weekday) ([]model.ScheduleWindow, error) {
	var (
		gen       string
		cacheable bool
	)
	if c.cache != nil {
		if ws, ok := c.cache.Get(ctx, providerID, day); ok {
			return ws, nil
		}
		gen, cacheable = c.cache.Generation(ctx, providerID)
	}
	ws, err := c.store.ActiveWindows(ctx, providerID, day)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.cache.Set(ctx, providerID, day, gen, ws)
	}
	return ws, nil
}

func (c *Calendar) Windows(ctx context.Context, providerID string, includeInactive bool) ([]model.ScheduleWindow, error) {
	return c.store.ListWindows(ctx, providerID, includeInactive)
}

// Deactivate is idempotent; windows are never deleted.
func (c *Calendar) Deactivate(ctx context.Context, id string) (model.ScheduleWindow, error) {
	return c.setActive(ctx, id, false)
}

// Reactivate is idempotent. It deliberately skips the overlap check, so a
// reactivated window may overlap one added while it was inactive.
func (c *Calendar) Reactivate(ctx context.Context, id string) (model.ScheduleWindow, error) {
	return c.setActive(ctx, id, true)
}

func (c *Calendar) History(ctx context.Context, id string) ([]model.WindowChange, error) {
	return c.store.WindowHistory(ctx, id)
}

func (c *Calendar) setActive(ctx context.Context, id string, active bool) (model.ScheduleWindow, error) {
	w, changed, err := c.store.SetWindowActive(ctx, id, active, c.now().UTC())
	if err != nil {
		return model.ScheduleWindow{}, err
	}
	if changed {
		c.invalidate(ctx, w.ProviderID)
		c.logger.Info("schedule window updated", "window_id", w.ID, "provider_id", w.ProviderID, "active", active)
	}
	return w, nil
}

func (c *Calendar) invalidate(ctx context.Context, providerID string) {
	if c.cache != nil {
		c.cache.Invalidate(ctx, providerID)
	}
}
