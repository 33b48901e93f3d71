package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

// Sink hands one event to a delivery mechanism.
type Sink interface {
	Deliver(ctx context.Context, evt model.Event) error
}

type SinkFunc func(ctx context.Context, evt model.Event) error

func (f SinkFunc) Deliver(ctx context.Context, evt model.Event) error { return f(ctx, evt) }

type Config struct {
	QueueSize      int
	Workers        int
	DeliverTimeout time.Duration
}

// Dispatcher is a bounded queue drained by a fixed worker pool. Notify never
// blocks: when the queue is full the event is dropped, logged and counted.
type Dispatcher struct {
	sink    Sink
	queue   chan job
	workers int
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.SchedulingMetrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	ctx context.Context
	evt model.Event
}

func NewDispatcher(sink Sink, cfg Config, logger *slog.Logger, m *metrics.SchedulingMetrics) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sink:    sink,
		queue:   make(chan job, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.DeliverTimeout,
		logger:  logger,
		metrics: m,
	}
}

// Start launches the workers. They exit once Close drains the queue.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

func (d *Dispatcher) Notify(ctx context.Context, evt model.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(evt, "dispatcher closed")
		return
	}
	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), evt: evt}:
		d.metrics.ObserveDispatch(string(evt.Kind), "queued")
		d.metrics.SetQueueDepth(len(d.queue))
	default:
		d.drop(evt, "queue full")
	}
}

// Close stops accepting events and waits for queued ones to be delivered
// or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification sink panicked", "panic", r, "event_id", j.evt.ID)
			d.metrics.ObserveDispatch(string(j.evt.Kind), "failed")
		}
	}()

	if err := d.sink.Deliver(ctx, j.evt); err != nil {
		d.logger.Error("notification delivery failed",
			"err", err,
			"event_id", j.evt.ID,
			"kind", j.evt.Kind,
			"appointment_id", j.evt.Appointment.ID,
		)
		d.metrics.ObserveDispatch(string(j.evt.Kind), "failed")
		return
	}
	d.metrics.ObserveDispatch(string(j.evt.Kind), "delivered")
}

func (d *Dispatcher) drop(evt model.Event, reason string) {
	d.logger.Warn("notification dropped",
		"reason", reason,
		"event_id", evt.ID,
		"kind", evt.Kind,
		"appointment_id", evt.Appointment.ID,
	)
	d.metrics.ObserveDispatch(string(evt.Kind), "dropped")
}
