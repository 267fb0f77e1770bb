package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGetMetrics(t *testing.T) {
	// Get metrics instance
	metrics := GetMetrics()

	// Verify it's not nil
	assert.NotNil(t, metrics, "Metrics should not be nil")

	// Call again to test singleton behavior
	metrics2 := GetMetrics()

	// Verify both instances are the same
	assert.Same(t, metrics, metrics2, "GetMetrics should return the same instance")
}

func TestAllMetricsInitialized(t *testing.T) {
	m := GetMetrics()

	assert.NotNil(t, m.APIRequestsTotal)
	assert.NotNil(t, m.APIRequestDuration)
	assert.NotNil(t, m.APIErrorsTotal)

	assert.NotNil(t, m.HubBlocksOpen)
	assert.NotNil(t, m.HubEventsFired)
	assert.NotNil(t, m.HubEventsDelivered)

	assert.NotNil(t, m.SubscriptionActive)
	assert.NotNil(t, m.RegistrationFailures)
	assert.NotNil(t, m.DispatchTotal)
	assert.NotNil(t, m.DispatchDuration)
	assert.NotNil(t, m.RegistryLockWait)
	assert.NotNil(t, m.ResolveTotal)

	assert.NotNil(t, m.TargetsTracked)
	assert.NotNil(t, m.StorageOperations)
	assert.NotNil(t, m.PropertyCache)
}

func TestMetricsOperations(t *testing.T) {
	m := GetMetrics()

	before := testutil.ToFloat64(m.DispatchTotal.WithLabelValues("arrival"))
	m.DispatchTotal.WithLabelValues("arrival").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(m.DispatchTotal.WithLabelValues("arrival")))

	m.SubscriptionActive.Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubscriptionActive))
	m.SubscriptionActive.Set(0)
}

func TestMetricsRegisteredWithDefaultRegistry(t *testing.T) {
	GetMetrics()

	families, err := prometheus.DefaultGatherer.Gather()
	assert.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["arrivald_monitor_subscription_active"])
	assert.True(t, names["arrivald_hub_blocks_open"])
}
