package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"restoassist/internal/resource"
)

func TestDependencyStateIsExclusive(t *testing.T) {
	DependencyState("database", resource.StateInitializing)
	DependencyState("database", resource.StateReady)

	assert.Equal(t, 1.0, testutil.ToFloat64(dependencyState.WithLabelValues("database", "ready")))
	assert.Equal(t, 0.0, testutil.ToFloat64(dependencyState.WithLabelValues("database", "initializing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(dependencyState.WithLabelValues("database", "unavailable")))
}

func TestPoolAcquireTracksCheckedOut(t *testing.T) {
	before := testutil.ToFloat64(poolCheckedOut)
	okBefore := testutil.ToFloat64(poolAcquireTotal.WithLabelValues(OutcomeOK))

	PoolAcquire(OutcomeOK)
	PoolAcquire(OutcomeExhausted)
	assert.Equal(t, before+1, testutil.ToFloat64(poolCheckedOut))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(poolAcquireTotal.WithLabelValues(OutcomeOK)))

	PoolRelease()
	assert.Equal(t, before, testutil.ToFloat64(poolCheckedOut))
}

func TestAIInvocationCounts(t *testing.T) {
	before := testutil.ToFloat64(aiInvocations.WithLabelValues(OutcomeFailed))
	AIInvocation(OutcomeFailed, 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(aiInvocations.WithLabelValues(OutcomeFailed)))
}
