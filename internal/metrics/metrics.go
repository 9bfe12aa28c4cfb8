// Package metrics owns the Prometheus collectors for the database pool and the
// AI client. Collectors are registered once on the default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"restoassist/internal/resource"
)

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeExhausted   = "exhausted"
	OutcomeUnavailable = "unavailable"
	OutcomeCanceled    = "canceled"
	OutcomeFailed      = "failed"
	OutcomeMalformed   = "malformed"
)

var (
	poolConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restoassist_db_pool_connect_attempts_total",
		Help: "Pool creation attempts by outcome",
	}, []string{"outcome"})

	poolAcquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restoassist_db_pool_acquire_total",
		Help: "Connection lease acquisitions by outcome",
	}, []string{"outcome"})

	poolCheckedOut = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restoassist_db_pool_checked_out",
		Help: "Connections currently leased out of the pool",
	})

	aiInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restoassist_ai_invocations_total",
		Help: "AI completion calls by outcome",
	}, []string{"outcome"})

	aiInvocationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restoassist_ai_invocation_duration_seconds",
		Help:    "Latency of AI completion calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	aiTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restoassist_ai_tokens_total",
		Help: "Tokens consumed by AI completion calls",
	}, []string{"type"})

	dependencyState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "restoassist_dependency_state",
		Help: "1 for the current lifecycle state of each external dependency",
	}, []string{"dependency", "state"})
)

func PoolConnectAttempt(ok bool) {
	if ok {
		poolConnectAttempts.WithLabelValues(OutcomeOK).Inc()
		return
	}
	poolConnectAttempts.WithLabelValues(OutcomeFailed).Inc()
}

func PoolAcquire(outcome string) {
	poolAcquireTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		poolCheckedOut.Inc()
	}
}

func PoolRelease() { poolCheckedOut.Dec() }

func AIInvocation(outcome string, took time.Duration) {
	aiInvocations.WithLabelValues(outcome).Inc()
	aiInvocationDuration.Observe(took.Seconds())
}

func AITokens(prompt, completion int) {
	aiTokens.WithLabelValues("prompt").Add(float64(prompt))
	aiTokens.WithLabelValues("completion").Add(float64(completion))
}

// DependencyState marks s as the current state of dep and clears the others.
func DependencyState(dep string, s resource.State) {
	for _, st := range []resource.State{
		resource.StateUnconfigured,
		resource.StateInitializing,
		resource.StateReady,
		resource.StateUnavailable,
	} {
		v := 0.0
		if st == s {
			v = 1
		}
		dependencyState.WithLabelValues(dep, st.String()).Set(v)
	}
}
