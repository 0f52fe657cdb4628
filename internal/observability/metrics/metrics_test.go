package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestTriageMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTriageMetrics(reg)
	m.ObserveInference("text", true, 0.4)
	m.ObserveInference("text", false, 1.2)
	m.ObserveInference("audio", true, 2)
	m.ObserveBooking("booked")
	m.SetActiveSessions(3)

	mf := gather(t, reg, "healthvoice_triage_inference_total")
	counts := map[string]float64{}
	for _, metric := range mf.GetMetric() {
		counts[labelValue(metric, "input")+"/"+labelValue(metric, "outcome")] = metric.GetCounter().GetValue()
	}
	if counts["text/success"] != 1 || counts["text/failure"] != 1 || counts["audio/success"] != 1 {
		t.Fatalf("unexpected inference counts: %v", counts)
	}

	hist := gather(t, reg, "healthvoice_triage_inference_latency_seconds")
	var samples uint64
	for _, metric := range hist.GetMetric() {
		samples += metric.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Fatalf("expected 3 latency samples, got %d", samples)
	}

	gauge := gather(t, reg, "healthvoice_triage_active_sessions")
	if got := gauge.GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Fatalf("active sessions = %v, want 3", got)
	}
}

func TestQueueMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewQueueMetrics(reg)
	m.ObserveTransition("in-progress")
	m.ObserveTransition("completed")
	m.ObserveConflict()
	m.SetDepth(2, 1, 5)

	depth := gather(t, reg, "healthvoice_queue_depth")
	values := map[string]float64{}
	for _, metric := range depth.GetMetric() {
		values[labelValue(metric, "status")] = metric.GetGauge().GetValue()
	}
	if values["scheduled"] != 2 || values["in-progress"] != 1 || values["completed"] != 5 {
		t.Fatalf("unexpected depth: %v", values)
	}

	conflicts := gather(t, reg, "healthvoice_queue_conflicts_total")
	if got := conflicts.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("conflicts = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var tm *TriageMetrics
	tm.ObserveInference("text", true, 0.1)
	tm.ObserveBooking("failed")
	tm.SetActiveSessions(1)

	var qm *QueueMetrics
	qm.ObserveTransition("completed")
	qm.SetDepth(1, 1, 1)
	qm.ObserveConflict()
}
