package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order submission and cart activity.
type CheckoutMetrics struct {
	submissions   *prometheus.CounterVec
	fallbacks     prometheus.Counter
	duration      *prometheus.HistogramVec
	cartMutations *prometheus.CounterVec
	sessions      prometheus.Gauge
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_submissions_total",
		Help: "Order submissions by path and outcome kind.",
	}, []string{"path", "outcome"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_guest_fallbacks_total",
		Help: "Authenticated submissions that fell back to the guest endpoint.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_order_submission_duration_seconds",
		Help:    "Wall time of a full order submission including fallback.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Persisted cart mutations by operation.",
	}, []string{"op"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_checkout_sessions_open",
		Help: "Checkout sessions currently held in memory.",
	})
	reg.MustRegister(submissions, fallbacks, duration, cartMutations, sessions)
	return &CheckoutMetrics{
		submissions:   submissions,
		fallbacks:     fallbacks,
		duration:      duration,
		cartMutations: cartMutations,
		sessions:      sessions,
	}
}

// ObserveSubmission records one completed submission.
func (m *CheckoutMetrics) ObserveSubmission(path, outcome string, elapsed time.Duration) {
	if m == nil || m.submissions == nil {
		return
	}
	path = normalizeLabel(path)
	m.submissions.WithLabelValues(path, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// IncFallback counts an auth failure that triggered the guest path.
func (m *CheckoutMetrics) IncFallback() {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.Inc()
}

// IncCartMutation counts a persisted cart change.
func (m *CheckoutMetrics) IncCartMutation(op string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// SetOpenSessions reports the live checkout session count.
func (m *CheckoutMetrics) SetOpenSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
