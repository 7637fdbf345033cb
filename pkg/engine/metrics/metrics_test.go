package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)
	var total float64
	for m := range ch {
		var d dto.Metric
		if err := m.Write(&d); err != nil {
			t.Fatalf("failed to write metric: %v", err)
		}
		if d.Counter != nil {
			total += d.Counter.GetValue()
		}
	}
	return total
}

func TestNew_RegistersAllThreeCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordDecision("allow")
	c.RecordToolCall("success")
	c.ObserveSchedulerLatency("echo", 0.01)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	if len(families) != 3 {
		t.Fatalf("expected 3 registered metric families, got %d", len(families))
	}
}

func TestRecordDecision_IncrementsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordDecision("deny")
	c.RecordDecision("deny")
	c.RecordDecision("allow")

	if v := counterValue(t, c.PolicyDecisions.WithLabelValues("deny")); v != 2 {
		t.Fatalf("expected 2 deny decisions recorded, got %v", v)
	}
}

func TestNilCollectors_AreNoOps(t *testing.T) {
	var c *Collectors
	c.RecordDecision("allow")
	c.RecordToolCall("success")
	c.ObserveSchedulerLatency("echo", 1)
}
