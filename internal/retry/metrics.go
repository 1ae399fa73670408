package retry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal counts dispatch attempts by final attempt state.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total number of upstream dispatch attempts by resulting state",
		},
		[]string{"state", "attempt"},
	)

	// ExhaustedTotal counts requests that exhausted every attempt without
	// ever obtaining an upstream response.
	ExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Subsystem: "retry",
			Name:      "exhausted_total",
			Help:      "Total number of requests that exhausted all attempts",
		},
		[]string{"failure"},
	)

	// TransientPassthroughTotal counts transient-status responses handed
	// to the client after the retry budget ran out.
	TransientPassthroughTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Subsystem: "retry",
			Name:      "transient_passthrough_total",
			Help:      "Total number of transient upstream responses passed through after exhausted retries",
		},
	)

	// DelayDuration measures inter-attempt delay waits.
	DelayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forwarder",
			Subsystem: "retry",
			Name:      "delay_duration_seconds",
			Help:      "Duration of inter-attempt delay waits in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"attempt"},
	)
)

// RecordAttempt records the state a dispatch attempt transitioned to.
func RecordAttempt(state State, attempt int) {
	AttemptsTotal.WithLabelValues(state.String(), strconv.Itoa(attempt)).Inc()
}

// RecordExhausted records a request that never obtained an upstream
// response, labeled by transport failure class.
func RecordExhausted(failure string) {
	ExhaustedTotal.WithLabelValues(failure).Inc()
}

// RecordTransientPassthrough records a stale transient response passed
// through to the client.
func RecordTransientPassthrough() {
	TransientPassthroughTotal.Inc()
}

// RecordDelay records an inter-attempt delay wait.
func RecordDelay(attempt int, seconds float64) {
	DelayDuration.WithLabelValues(strconv.Itoa(attempt)).Observe(seconds)
}
