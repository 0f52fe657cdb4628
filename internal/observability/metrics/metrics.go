package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters/histograms for the patient triage flow.
type TriageMetrics struct {
	inferenceTotal   *prometheus.CounterVec
	inferenceLatency *prometheus.HistogramVec
	bookingsTotal    *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		inferenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthvoice",
			Subsystem: "triage",
			Name:      "inference_total",
			Help:      "Inference calls by input kind and outcome",
		}, []string{"input", "outcome"}),
		inferenceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "healthvoice",
			Subsystem: "triage",
			Name:      "inference_latency_seconds",
			Help:      "Latency of inference calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"input"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthvoice",
			Subsystem: "triage",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "healthvoice",
			Subsystem: "triage",
			Name:      "active_sessions",
			Help:      "Sessions currently held in the registry",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inferenceTotal, m.inferenceLatency, m.bookingsTotal, m.activeSessions)
	return m
}

// ObserveInference records one inference call. input is "audio" or "text".
func (m *TriageMetrics) ObserveInference(input string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.inferenceTotal.WithLabelValues(input, outcome).Inc()
	m.inferenceLatency.WithLabelValues(input).Observe(seconds)
}

func (m *TriageMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *TriageMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// QueueMetrics exposes the doctor queue's transitions and depth.
type QueueMetrics struct {
	transitionsTotal *prometheus.CounterVec
	depth            *prometheus.GaugeVec
	conflictsTotal   prometheus.Counter
}

func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	m := &QueueMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthvoice",
			Subsystem: "queue",
			Name:      "transitions_total",
			Help:      "Appointment status changes by target status",
		}, []string{"status"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "healthvoice",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Appointments per status in the last refreshed queue",
		}, []string{"status"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "healthvoice",
			Subsystem: "queue",
			Name:      "conflicts_total",
			Help:      "Updates rejected because the cached version was stale",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.depth, m.conflictsTotal)
	return m
}

func (m *QueueMetrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(status).Inc()
}

func (m *QueueMetrics) SetDepth(waiting, inConsultation, completed int) {
	if m == nil {
		return
	}
	m.depth.WithLabelValues("scheduled").Set(float64(waiting))
	m.depth.WithLabelValues("in-progress").Set(float64(inConsultation))
	m.depth.WithLabelValues("completed").Set(float64(completed))
}

func (m *QueueMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}
