package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solboard/service/dashboard"
	"github.com/brojonat/solboard/service/helius"
	"github.com/brojonat/solboard/service/metrics"
	"github.com/brojonat/solboard/service/nats"
	"github.com/brojonat/solboard/service/portfolio"
	"github.com/brojonat/solboard/service/solana"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dashboard is the session state the HTTP API drives.
type Dashboard interface {
	View() dashboard.View
	Refresh(ctx context.Context) error
	FetchMore(ctx context.Context) error
	RefreshNetwork(ctx context.Context) (*helius.NetworkStatus, error)
	Transactions(f solana.TxFilter) []solana.ClassifiedTransaction
	Tokens(q string) []portfolio.ValuedToken
	SetAPIKey(ctx context.Context, key string) error
	SetViewOnly(address string) error
	ClearViewOnly()
	Connect(signer solana.Signer)
	Disconnect()
	SendSOL(ctx context.Context, recipient, amount string) (string, error)
}

// Server represents the HTTP server for the dashboard.
type Server struct {
	addr      string
	dashboard Dashboard
	bus       nats.Bus
	signer    solana.Signer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server

	// streams is cancelled on Shutdown to end open activity streams.
	streams     context.Context
	stopStreams context.CancelFunc
}

// New creates a new HTTP server.
// The bus is optional - if nil, the activity stream is not served.
// The signer is the configured wallet keypair used by the connect route; it may be nil.
// The metrics is optional - if nil, the metrics endpoint is not served.
func New(addr string, d Dashboard, bus nats.Bus, signer solana.Signer, m *metrics.Metrics, logger *slog.Logger) *Server {
	streams, stopStreams := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		dashboard:   d,
		bus:         bus,
		signer:      signer,
		metrics:     m,
		logger:      logger,
		streams:     streams,
		stopStreams: stopStreams,
	}
}

// Handler builds the route table wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /api/v1/dashboard", "dashboard", handleGetDashboard(s.dashboard))
	s.route(mux, "POST /api/v1/dashboard/refresh", "refresh", handleRefresh(s.dashboard, s.logger))
	s.route(mux, "POST /api/v1/transactions/more", "transactions_more", handleFetchMore(s.dashboard, s.logger))
	s.route(mux, "GET /api/v1/transactions", "transactions", handleListTransactions(s.dashboard))
	s.route(mux, "GET /api/v1/tokens", "tokens", handleListTokens(s.dashboard))
	s.route(mux, "GET /api/v1/network", "network", handleGetNetwork(s.dashboard, s.logger))

	s.route(mux, "PUT /api/v1/session/api-key", "api_key", handleSetAPIKey(s.dashboard, s.logger))
	s.route(mux, "DELETE /api/v1/session/api-key", "api_key", handleClearAPIKey(s.dashboard, s.logger))
	s.route(mux, "PUT /api/v1/session/view-only", "view_only", handleSetViewOnly(s.dashboard, s.logger))
	s.route(mux, "DELETE /api/v1/session/view-only", "view_only", handleClearViewOnly(s.dashboard, s.logger))
	s.route(mux, "POST /api/v1/session/connect", "connect", handleConnect(s.dashboard, s.signer, s.logger))
	s.route(mux, "POST /api/v1/session/disconnect", "disconnect", handleDisconnect(s.dashboard))

	s.route(mux, "POST /api/v1/transfers", "transfers", handleSendSOL(s.dashboard, s.metrics, s.logger))

	if s.bus != nil {
		stream := handleStreamActivity(s.bus, s.streams.Done(), s.metrics, s.logger)
		s.route(mux, "GET /api/v1/stream/activity/{address}", "stream_activity", stream)
		s.route(mux, "GET /api/v1/stream/activity", "stream_activity", stream)
	} else {
		s.logger.Warn("activity bus not configured, streaming endpoints disabled")
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.Handler) {
	mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Transfers wait for confirmation; the stream clears its own deadline.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Stream handlers never finish on their own; end them before draining.
	s.stopStreams()
	if s.bus != nil {
		s.bus.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
