package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics counts bookings, rejections, transitions and the
// notification side effects. A nil *SchedulingMetrics is a no-op.
type SchedulingMetrics struct {
	bookings      prometheus.Counter
	rejections    *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	dispatched    *prometheus.CounterVec
	reminders     *prometheus.CounterVec
	opLatency     *prometheus.HistogramVec
	dispatchQueue prometheus.Gauge
}

func New(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicflow",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Appointments created",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicflow",
			Subsystem: "scheduling",
			Name:      "rejections_total",
			Help:      "Rejected scheduling operations by operation and error kind",
		}, []string{"op", "kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicflow",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Applied lifecycle transitions by event",
		}, []string{"event"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicflow",
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "Lifecycle events handed to the dispatcher by kind and outcome",
		}, []string{"kind", "outcome"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicflow",
			Subsystem: "reminders",
			Name:      "processed_total",
			Help:      "Reminder candidates by outcome",
		}, []string{"outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicflow",
			Subsystem: "scheduling",
			Name:      "operation_seconds",
			Help:      "Latency of coordinator operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		dispatchQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinicflow",
			Subsystem: "notify",
			Name:      "queue_depth",
			Help:      "Events waiting in the dispatcher queue",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.rejections, m.transitions, m.dispatched, m.reminders, m.opLatency, m.dispatchQueue)
	return m
}

func (m *SchedulingMetrics) ObserveBooking() {
	if m == nil {
		return
	}
	m.bookings.Inc()
}

func (m *SchedulingMetrics) ObserveRejection(op, kind string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(op, kind).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event).Inc()
}

// ObserveDispatch records outcome "queued", "dropped", "delivered" or
// "failed" for an event kind.
func (m *SchedulingMetrics) ObserveDispatch(kind, outcome string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(kind, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveReminder(outcome string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveLatency(op string, seconds float64) {
	if m == nil {
		return
	}
	m.opLatency.WithLabelValues(op).Observe(seconds)
}

func (m *SchedulingMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.dispatchQueue.Set(float64(n))
}
