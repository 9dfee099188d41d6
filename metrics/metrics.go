// Package metrics exposes Prometheus counters for planner activity. The
// planner is a short-lived CLI, so the registry is not served over HTTP by
// default; embedders can mount Registry on their own exporter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all planner collectors. It is separate from the default
// global registry so embedding programs control what gets exported.
var Registry = prometheus.NewRegistry()

var (
	// Transitions counts workflow state transitions by edge.
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planweave",
			Name:      "transitions_total",
			Help:      "Workflow state transitions, labeled by edge.",
		},
		[]string{"from", "to"},
	)

	// EngineRequests counts reasoning-engine calls by provider, stage and
	// outcome ("ok", "error", "schema_violation").
	EngineRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planweave",
			Name:      "engine_requests_total",
			Help:      "Reasoning-engine requests by provider, stage and status.",
		},
		[]string{"provider", "stage", "status"},
	)

	// EngineRetries counts retried engine calls by stage.
	EngineRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planweave",
			Name:      "engine_retries_total",
			Help:      "Reasoning-engine retries by stage.",
		},
		[]string{"stage"},
	)

	// WorkflowsFinished counts workflows reaching a terminal state.
	WorkflowsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planweave",
			Name:      "workflows_finished_total",
			Help:      "Workflows that reached a terminal state.",
		},
		[]string{"state"},
	)
)

func init() {
	Registry.MustRegister(Transitions, EngineRequests, EngineRetries, WorkflowsFinished)
}

// ObserveTransition records a single state transition.
func ObserveTransition(from, to string) {
	Transitions.WithLabelValues(from, to).Inc()
}

// ObserveEngineRequest records one engine call outcome.
func ObserveEngineRequest(provider, stage, status string) {
	EngineRequests.WithLabelValues(provider, stage, status).Inc()
}

// ObserveEngineRetry records a retried engine call.
func ObserveEngineRetry(stage string) {
	EngineRetries.WithLabelValues(stage).Inc()
}

// ObserveFinished records a workflow reaching a terminal state.
func ObserveFinished(state string) {
	WorkflowsFinished.WithLabelValues(state).Inc()
}
