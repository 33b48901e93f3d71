package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

type Source interface {
	UpcomingAppointments(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

type Notifier interface {
	Notify(ctx context.Context, evt model.Event)
}

type Config struct {
	// Offsets are lead times before the start, e.g. 24h and 1h.
	Offsets  []time.Duration
	Interval time.Duration
}

// Scanner periodically looks for scheduled or confirmed appointments that
// entered a reminder offset and forwards one reminder per appointment and
// offset. It never writes appointments.
type Scanner struct {
	source   Source
	dedupe   Deduper
	notifier Notifier
	offsets  []time.Duration
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.SchedulingMetrics
	now      func() time.Time
}

func NewScanner(source Source, dedupe Deduper, notifier Notifier, cfg Config, logger *slog.Logger, m *metrics.SchedulingMetrics) *Scanner {
	offsets := append([]time.Duration(nil), cfg.Offsets...)
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour, time.Hour}
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if dedupe == nil {
		dedupe = NewMemoryDeduper()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		source:   source,
		dedupe:   dedupe,
		notifier: notifier,
		offsets:  offsets,
		interval: cfg.Interval,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("reminder scan failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan sends reminders due now and returns how many were forwarded. Only the
// tightest offset that covers an appointment is used, so an appointment
// booked 30 minutes ahead gets the 1h reminder and not the 24h one.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	now := s.now()
	widest := s.offsets[len(s.offsets)-1]
	appts, err := s.source.UpcomingAppointments(ctx, now, now.Add(widest))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, a := range appts {
		offset, ok := s.offsetFor(a.StartTime.Sub(now))
		if !ok {
			continue
		}
		// The start is part of the key so a rescheduled appointment is
		// reminded again for its new time.
		key := fmt.Sprintf("%s:%d:%s", a.ID, a.StartTime.Unix(), offset)
		first, err := s.dedupe.Claim(ctx, key, widest+24*time.Hour)
		if err != nil {
			s.metrics.ObserveReminder("error")
			s.logger.Warn("reminder dedupe failed", "err", err, "appointment_id", a.ID)
			continue
		}
		if !first {
			s.metrics.ObserveReminder("duplicate")
			continue
		}
		s.notifier.Notify(ctx, model.Event{
			ID:          uuid.NewString(),
			Kind:        model.EventReminder,
			Appointment: a,
			Reason:      offset.String(),
			OccurredAt:  now,
		})
		s.metrics.ObserveReminder("sent")
		sent++
	}
	if sent > 0 {
		s.logger.Info("reminders forwarded", "count", sent)
	}
	return sent, nil
}

func (s *Scanner) offsetFor(lead time.Duration) (time.Duration, bool) {
	if lead <= 0 {
		return 0, false
	}
	for _, o := range s.offsets {
		if lead <= o {
			return o, true
		}
	}
	return 0, false
}
