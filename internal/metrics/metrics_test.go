package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterMetrics(reg) })

	// Registering the same collectors twice on one registry panics.
	assert.Panics(t, func() { RegisterMetrics(reg) })
}

func TestRecordMutation(t *testing.T) {
	before := testutil.ToFloat64(SessionMutations.WithLabelValues("admin", "set_auth", OutcomeOK))
	RecordMutation("admin", "set_auth", OutcomeOK)
	after := testutil.ToFloat64(SessionMutations.WithLabelValues("admin", "set_auth", OutcomeOK))
	assert.Equal(t, before+1, after)
}

func TestRecordStorageFailure(t *testing.T) {
	before := testutil.ToFloat64(StorageFailures.WithLabelValues("partner", "write"))
	RecordStorageFailure("partner", "write")
	assert.Equal(t, before+1, testutil.ToFloat64(StorageFailures.WithLabelValues("partner", "write")))
}

func TestRecordGuardDecision(t *testing.T) {
	before := testutil.ToFloat64(GuardDecisions.WithLabelValues("admin", "protected", OutcomeRedirect))
	RecordGuardDecision("admin", "protected", OutcomeRedirect)
	assert.Equal(t, before+1, testutil.ToFloat64(GuardDecisions.WithLabelValues("admin", "protected", OutcomeRedirect)))
}

func TestRecordGraphQLRequest(t *testing.T) {
	before := testutil.ToFloat64(GraphQLRequests.WithLabelValues(OutcomeError))
	RecordGraphQLRequest(OutcomeError)
	assert.Equal(t, before+1, testutil.ToFloat64(GraphQLRequests.WithLabelValues(OutcomeError)))
}
