package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MiddlewareMetrics holds Prometheus metrics for middleware components.
type MiddlewareMetrics struct {
	panicsRecovered           prometheus.Counter
	rateLimitRejected         prometheus.Counter
	circuitBreakerTransitions *prometheus.CounterVec
}

var (
	middlewareMetrics     *MiddlewareMetrics
	middlewareMetricsOnce sync.Once
)

// GetMiddlewareMetrics returns the singleton middleware metrics,
// registering the collectors on first use.
func GetMiddlewareMetrics() *MiddlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		middlewareMetrics = &MiddlewareMetrics{
			panicsRecovered: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "forwarder",
				Subsystem: "middleware",
				Name:      "panics_recovered_total",
				Help:      "Total number of panics recovered by the recovery middleware",
			}),
			rateLimitRejected: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "forwarder",
				Subsystem: "middleware",
				Name:      "ratelimit_rejected_total",
				Help:      "Total number of requests rejected by the rate limiter",
			}),
			circuitBreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "forwarder",
				Subsystem: "middleware",
				Name:      "circuitbreaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			}, []string{"name", "from", "to"}),
		}
	})
	return middlewareMetrics
}
