package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records the outcome of checkout attempts.
type CheckoutMetrics struct {
	duration  *prometheus.HistogramVec
	committed prometheus.Counter
	rejected  *prometheus.CounterVec
	retried   prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	committed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_committed_total",
		Help: "Orders successfully committed.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_rejected_total",
		Help: "Checkout attempts rejected before commit.",
	}, []string{"reason"})
	retried := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_conflict_retries_total",
		Help: "Checkout attempts re-run after losing a stock race.",
	})
	reg.MustRegister(duration, committed, rejected, retried)
	return &CheckoutMetrics{
		duration:  duration,
		committed: committed,
		rejected:  rejected,
		retried:   retried,
	}
}

// ObserveDuration records how long a checkout attempt took for the given outcome.
func (c *CheckoutMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncCommitted increments the committed order counter.
func (c *CheckoutMetrics) IncCommitted() {
	if c == nil || c.committed == nil {
		return
	}
	c.committed.Inc()
}

// IncRejected increments the rejection counter for the given reason.
func (c *CheckoutMetrics) IncRejected(reason string) {
	if c == nil || c.rejected == nil {
		return
	}
	c.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncConflictRetry increments the conflict retry counter.
func (c *CheckoutMetrics) IncConflictRetry() {
	if c == nil || c.retried == nil {
		return
	}
	c.retried.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
