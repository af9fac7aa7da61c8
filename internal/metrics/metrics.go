// ABOUTME: Prometheus counters for session mutations, storage failures, guards and GraphQL
// ABOUTME: Package-level collectors registered once via RegisterMetrics

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeAllow    = "allow"
	OutcomeRedirect = "redirect"
	OutcomeError    = "error"
)

// SessionMutations counts session state mutations by application, operation and outcome.
var SessionMutations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "console_session_mutations_total",
		Help: "Total number of session mutations",
	},
	[]string{"app", "op", "outcome"},
)

// StorageFailures counts recovered durable-storage failures.
var StorageFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "console_storage_failures_total",
		Help: "Total number of recovered durable storage failures",
	},
	[]string{"app", "op"},
)

// GuardDecisions counts route guard decisions.
var GuardDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "console_guard_decisions_total",
		Help: "Total number of route guard decisions",
	},
	[]string{"app", "guard", "outcome"},
)

// GraphQLRequests counts GraphQL requests by final outcome.
var GraphQLRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "console_graphql_requests_total",
		Help: "Total number of GraphQL requests",
	},
	[]string{"outcome"},
)

// RegisterMetrics registers the package collectors with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SessionMutations)
	reg.MustRegister(StorageFailures)
	reg.MustRegister(GuardDecisions)
	reg.MustRegister(GraphQLRequests)
}

// RecordMutation increments the session mutation counter.
func RecordMutation(app, op, outcome string) {
	SessionMutations.WithLabelValues(app, op, outcome).Inc()
}

// RecordStorageFailure increments the storage failure counter.
func RecordStorageFailure(app, op string) {
	StorageFailures.WithLabelValues(app, op).Inc()
}

// RecordGuardDecision increments the guard decision counter.
func RecordGuardDecision(app, guard, outcome string) {
	GuardDecisions.WithLabelValues(app, guard, outcome).Inc()
}

// RecordGraphQLRequest increments the GraphQL request counter.
func RecordGraphQLRequest(outcome string) {
	GraphQLRequests.WithLabelValues(outcome).Inc()
}
