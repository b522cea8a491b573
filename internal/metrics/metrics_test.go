package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := submissionsTotal
	Init()
	require.Same(t, first, submissionsTotal)
	require.NotNil(t, httpRequestsTotal)
	require.NotNil(t, httpRequestDurationSeconds)
}

func TestObserveSubmission(t *testing.T) {
	Init()

	before := testutil.ToFloat64(submissionsTotal.WithLabelValues("batch", "accepted"))
	ObserveSubmission("batch", "accepted", 12)
	ObserveSubmission("batch", "rejected", 0)

	require.Equal(t, before+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("batch", "accepted")))
	require.GreaterOrEqual(t, testutil.ToFloat64(submissionsTotal.WithLabelValues("batch", "rejected")), 1.0)
	require.Positive(t, testutil.CollectAndCount(submittedTargets))
}
