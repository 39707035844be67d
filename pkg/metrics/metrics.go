// Package metrics defines the Prometheus collectors exposed by the memory
// service. A single Metrics value is created at startup and passed to the
// components that observe into it; the registry backs the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector together with the registry they are
// registered on.
type Metrics struct {
	Registry *prometheus.Registry

	ToolCalls              *prometheus.CounterVec
	ToolLatency            *prometheus.HistogramVec
	LLMCalls               *prometheus.CounterVec
	LLMFailures            *prometheus.CounterVec
	RetrievalLowConfidence prometheus.Counter
}

// New creates a Metrics value with all collectors registered on a fresh
// registry. A dedicated registry keeps test instances independent and avoids
// default-registry double registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_tool_calls_total",
			Help: "Tool dispatch call count by tool name.",
		}, []string{"tool"}),
		ToolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memory_tool_latency_seconds",
			Help:    "Tool dispatch latency by tool name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_llm_calls_total",
			Help: "LLM mediator call count by call type.",
		}, []string{"type"}),
		LLMFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_llm_failures_total",
			Help: "LLM mediator failure count by call type.",
		}, []string{"type"}),
		RetrievalLowConfidence: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_retrieval_low_confidence_total",
			Help: "Retrievals that returned fewer chunks than the confidence floor.",
		}),
	}

	reg.MustRegister(
		m.ToolCalls,
		m.ToolLatency,
		m.LLMCalls,
		m.LLMFailures,
		m.RetrievalLowConfidence,
	)
	return m
}
