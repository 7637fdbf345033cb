// Package metrics wraps the Prometheus collectors the dispatch core exposes.
// Unlike a typical application, an embedded engine core must not register
// against the global default registry — the host process owns that — so
// every collector here is registered against a registry the caller supplies.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors holds the engine core's Prometheus instrumentation.
type Collectors struct {
	PolicyDecisions  *prometheus.CounterVec
	ToolCallsTotal   *prometheus.CounterVec
	SchedulerLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them against reg. Passing a
// fresh *prometheus.Registry keeps a host process's own metrics namespace
// untouched; pass prometheus.DefaultRegisterer only if the caller wants
// that.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		PolicyDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_engine_policy_decisions_total",
				Help: "Policy check outcomes by decision.",
			},
			[]string{"decision"},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_engine_tool_calls_total",
				Help: "Completed tool calls by terminal status.",
			},
			[]string{"status"},
		),
		SchedulerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_engine_scheduler_pipeline_seconds",
				Help:    "Time spent in the scheduler's lookup-validate-policy-confirm-execute pipeline per request.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"tool_name"},
		),
	}
	reg.MustRegister(c.PolicyDecisions, c.ToolCallsTotal, c.SchedulerLatency)
	return c
}

// RecordDecision increments the policy decision counter.
func (c *Collectors) RecordDecision(decision string) {
	if c == nil {
		return
	}
	c.PolicyDecisions.WithLabelValues(decision).Inc()
}

// RecordToolCall increments the tool call counter for a terminal status.
func (c *Collectors) RecordToolCall(status string) {
	if c == nil {
		return
	}
	c.ToolCallsTotal.WithLabelValues(status).Inc()
}

// ObserveSchedulerLatency records one pipeline run's duration in seconds.
func (c *Collectors) ObserveSchedulerLatency(toolName string, seconds float64) {
	if c == nil {
		return
	}
	c.SchedulerLatency.WithLabelValues(toolName).Observe(seconds)
}
