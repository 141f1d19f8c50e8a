package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/atelier-noir/checkout-relay/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("relay", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/create-checkout-session"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/create-checkout-session", "204"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}

	samples := testutil.CollectAndCount(metrics.ReqDur)
	if samples == 0 {
		t.Fatalf("expected histogram sample")
	}

	if metrics.InFlight != nil {
		if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
			t.Fatalf("expected no in-flight requests, got %v", val)
		}
	}
}

func TestParseBucketsCSV(t *testing.T) {
	buckets := obs.ParseBucketsCSV("5, 50,abc, -1, 500")
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %v", buckets)
	}
	if buckets[0] != 5 || buckets[2] != 500 {
		t.Fatalf("unexpected bucket values: %v", buckets)
	}
}

func TestDomainMetricsRegisterOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("relay", registry)
	obs.MustRegisterDomainMetrics("relay", registry)

	if obs.StripeWebhookTotal == nil || obs.CheckoutSessionsTotal == nil {
		t.Fatal("domain metrics not initialised")
	}
	obs.StripeWebhookTotal.WithLabelValues("forwarded").Inc()
	if v := testutil.ToFloat64(obs.StripeWebhookTotal.WithLabelValues("forwarded")); v != 1 {
		t.Fatalf("expected webhook counter 1, got %v", v)
	}
}
