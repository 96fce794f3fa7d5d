package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUseRoutePattern(t *testing.T) {
	h := NewMux(&mockService{}, Options{})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/status", http.MethodGet, "200"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/status", http.MethodGet, "200"))
	if after-before != 1 {
		t.Fatalf("requests_total delta=%v", after-before)
	}
}

func TestMetricsEndpointExposesCollectors(t *testing.T) {
	h := NewMux(&mockService{}, Options{})
	// Touch a route so the vector has at least one series.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "chatd_http_requests_total") {
		t.Fatalf("metrics output lacks chatd_http_requests_total")
	}
}

func TestBackpressureCounter(t *testing.T) {
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue"))
	IncrementBackpressure("queue")
	if d := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue")) - before; d != 1 {
		t.Fatalf("delta=%v", d)
	}
}
