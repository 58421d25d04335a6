package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusCodeToString(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		204: "2xx",
		302: "3xx",
		404: "4xx",
		502: "5xx",
		0:   "unknown",
		700: "unknown",
	}
	for code, want := range tests {
		assert.Equal(t, want, statusCodeToString(code), "code %d", code)
	}
}

func TestHTTPMetricsMiddleware_RecordsStatus(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "/api/v1/dashboard")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/dashboard", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/v1/dashboard", "POST", "5xx")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordUpstreamCall("helius", "getEpochInfo", "success", 0.1)
		m.RecordPriceChunk("error")
		m.RecordRefresh("success", 1)
		m.SetPortfolioValue(10)
		m.RecordHTTPRequest("/health", "GET", 200, 0.001)
	})
}

func TestRecordRefresh(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordRefresh("error", 0.5)
	m.RecordRefresh("error", 0.7)
	m.RecordRefresh("success", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.refreshCyclesTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshCyclesTotal.WithLabelValues("success")))
}
