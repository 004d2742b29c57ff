package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.ObserveSubmission("authenticated", "success", 250*time.Millisecond)
	m.ObserveSubmission("guest", "", 100*time.Millisecond)
	m.IncFallback()
	m.IncCartMutation("add")
	m.IncCartMutation("add")
	m.SetOpenSessions(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchValue(mfs, "storefront_order_submissions_total", "outcome", "success"); err != nil || got != 1 {
		t.Fatalf("expected success=1, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "storefront_order_submissions_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty outcome normalized to unknown, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "storefront_cart_mutations_total", "op", "add"); err != nil || got != 2 {
		t.Fatalf("expected add=2, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "storefront_order_guest_fallbacks_total", "", ""); err != nil || got != 1 {
		t.Fatalf("expected fallbacks=1, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "storefront_checkout_sessions_open", "", ""); err != nil || got != 3 {
		t.Fatalf("expected sessions=3, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "storefront_order_submission_duration_seconds", "path", "authenticated"); err != nil || got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f (%v)", got, err)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var m *CheckoutMetrics
	m.ObserveSubmission("guest", "success", time.Second)
	m.IncFallback()
	m.IncCartMutation("clear")
	m.SetOpenSessions(1)

	NewCheckoutMetrics(nil).IncFallback()
}

func fetchValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if label != "" && !matchesLabel(metric.GetLabel(), label, value) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue(), nil
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue(), nil
			case metric.GetHistogram() != nil:
				return metric.GetHistogram().GetSampleSum(), nil
			}
		}
		return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
