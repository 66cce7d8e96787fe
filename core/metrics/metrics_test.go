package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakeCounters(t *testing.T) {
	before := testutil.ToFloat64(intakeSessionsFinished.WithLabelValues("failed"))
	IncSessionFinished(" Failed ")
	assert.Equal(t, before+1, testutil.ToFloat64(intakeSessionsFinished.WithLabelValues("failed")))

	started := testutil.ToFloat64(intakeSessionsStarted)
	IncSessionStarted()
	assert.Equal(t, started+1, testutil.ToFloat64(intakeSessionsStarted))

	SetSessionsActive(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(intakeSessionsActive))

	rejected := testutil.ToFloat64(intakeInputRejected.WithLabelValues("awaiting_photo"))
	IncInputRejected("awaiting_photo")
	assert.Equal(t, rejected+1, testutil.ToFloat64(intakeInputRejected.WithLabelValues("awaiting_photo")))
}

func TestObserveCommerceRequest(t *testing.T) {
	before := testutil.ToFloat64(commerceRequests.WithLabelValues("create_product", "fail"))
	ObserveCommerceRequest("create_product", "FAIL", 120*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(commerceRequests.WithLabelValues("create_product", "fail")))
	assert.Equal(t, 1, testutil.CollectAndCount(commerceLatency, "commerce_request_duration_seconds"))
}

func TestMustRegisterOnce(t *testing.T) {
	require.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
