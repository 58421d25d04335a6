package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics.
// All Record* helpers are safe to call on a nil *Metrics.
type Metrics struct {
	// Upstream API metrics (helius, jupiter, solana rpc)
	upstreamCallsTotal     *prometheus.CounterVec
	upstreamCallDuration   *prometheus.HistogramVec
	upstreamRateLimitHits  *prometheus.CounterVec
	upstreamRetries        *prometheus.CounterVec
	priceChunksTotal       *prometheus.CounterVec
	assetPagesPerFetch     prometheus.Histogram
	transactionsPerPage    prometheus.Histogram
	transactionsClassified *prometheus.CounterVec

	// Dashboard metrics
	refreshCyclesTotal *prometheus.CounterVec
	refreshDuration    *prometheus.HistogramVec
	fetchMoreTotal     *prometheus.CounterVec
	portfolioValueUSD  prometheus.Gauge
	transfersTotal     *prometheus.CounterVec

	// Database metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		upstreamCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_calls_total",
				Help: "Total number of upstream API calls by service, method and status",
			},
			[]string{"service", "method", "status"},
		),
		upstreamCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_call_duration_seconds",
				Help:    "Duration of upstream API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"service", "method"},
		),
		upstreamRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_rate_limit_hits_total",
				Help: "Total number of upstream rate limit responses (429)",
			},
			[]string{"service"},
		),
		upstreamRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_retries_total",
				Help: "Total number of upstream retry attempts",
			},
			[]string{"service", "method"},
		),
		priceChunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_chunks_total",
				Help: "Total number of price quote chunk requests by status",
			},
			[]string{"status"},
		),
		assetPagesPerFetch: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asset_pages_per_fetch",
				Help:    "Number of getAssetsByOwner pages read per holdings fetch",
				Buckets: []float64{1, 2, 5, 10, 20, 30},
			},
		),
		transactionsPerPage: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transactions_per_page",
				Help:    "Number of transactions returned per history page",
				Buckets: []float64{0, 1, 10, 25, 50, 100},
			},
		),
		transactionsClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_classified_total",
				Help: "Total number of transactions classified by resulting type",
			},
			[]string{"type"},
		),

		refreshCyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_refresh_cycles_total",
				Help: "Total number of dashboard refresh cycles by status",
			},
			[]string{"status"},
		),
		refreshDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_refresh_duration_seconds",
				Help:    "Duration of dashboard refresh cycles in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		fetchMoreTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_fetch_more_total",
				Help: "Total number of transaction pagination requests by status",
			},
			[]string{"status"},
		),
		portfolioValueUSD: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashboard_portfolio_value_usd",
				Help: "Total portfolio value in USD as of the last successful refresh",
			},
		),
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sol_transfers_total",
				Help: "Total number of SOL transfers submitted by status",
			},
			[]string{"status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"wallet_address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"wallet_address", "event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of messages published to NATS",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"subject"},
		),
	}
}

// Upstream metric helpers

// RecordUpstreamCall records an upstream API call with duration.
func (m *Metrics) RecordUpstreamCall(service, method, status string, duration float64) {
	if m == nil {
		return
	}
	m.upstreamCallsTotal.WithLabelValues(service, method, status).Inc()
	m.upstreamCallDuration.WithLabelValues(service, method).Observe(duration)
}

// RecordRateLimitHit records a 429 response from an upstream service.
func (m *Metrics) RecordRateLimitHit(service string) {
	if m == nil {
		return
	}
	m.upstreamRateLimitHits.WithLabelValues(service).Inc()
}

// RecordUpstreamRetry records a retry attempt.
func (m *Metrics) RecordUpstreamRetry(service, method string) {
	if m == nil {
		return
	}
	m.upstreamRetries.WithLabelValues(service, method).Inc()
}

// RecordPriceChunk records the outcome of one price quote chunk.
func (m *Metrics) RecordPriceChunk(status string) {
	if m == nil {
		return
	}
	m.priceChunksTotal.WithLabelValues(status).Inc()
}

// RecordAssetPages records how many asset pages a holdings fetch read.
func (m *Metrics) RecordAssetPages(pages int) {
	if m == nil {
		return
	}
	m.assetPagesPerFetch.Observe(float64(pages))
}

// RecordTransactionsPage records the size of a transaction history page.
func (m *Metrics) RecordTransactionsPage(count int) {
	if m == nil {
		return
	}
	m.transactionsPerPage.Observe(float64(count))
}

// RecordTransactionClassified records a classified transaction by type.
func (m *Metrics) RecordTransactionClassified(txType string) {
	if m == nil {
		return
	}
	m.transactionsClassified.WithLabelValues(txType).Inc()
}

// Dashboard metric helpers

// RecordRefresh records a refresh cycle outcome and duration.
func (m *Metrics) RecordRefresh(status string, duration float64) {
	if m == nil {
		return
	}
	m.refreshCyclesTotal.WithLabelValues(status).Inc()
	m.refreshDuration.WithLabelValues(status).Observe(duration)
}

// RecordFetchMore records a pagination request outcome.
func (m *Metrics) RecordFetchMore(status string) {
	if m == nil {
		return
	}
	m.fetchMoreTotal.WithLabelValues(status).Inc()
}

// SetPortfolioValue sets the last observed portfolio value.
func (m *Metrics) SetPortfolioValue(usd float64) {
	if m == nil {
		return
	}
	m.portfolioValueUSD.Set(usd)
}

// RecordTransfer records a SOL transfer submission outcome.
func (m *Metrics) RecordTransfer(status string) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(status).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(walletAddress string, delta float64) {
	if m == nil {
		return
	}
	m.sseActiveConnections.WithLabelValues(walletAddress).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(walletAddress, eventType string) {
	if m == nil {
		return
	}
	m.sseEventsSent.WithLabelValues(walletAddress, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
