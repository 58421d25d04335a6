package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brojonat/solboard/service/dashboard"
	"github.com/brojonat/solboard/service/metrics"
	"github.com/brojonat/solboard/service/portfolio"
	"github.com/brojonat/solboard/service/solana"
)

const maxRequestBodySize = 1 << 20 // 1MB

var (
	errNoKeypair = errors.New("no wallet keypair configured")
	errNoAPIKey  = errors.New("API key not set")
)

// transactionsResponse is the body of GET /api/v1/transactions.
type transactionsResponse struct {
	Transactions []solana.ClassifiedTransaction `json:"transactions"`
	StatusCounts solana.StatusCounts            `json:"status_counts"`
	HasMore      bool                           `json:"has_more"`
}

type tokensResponse struct {
	Tokens []portfolio.ValuedToken `json:"tokens"`
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type transferResponse struct {
	Signature string `json:"signature"`
}

// handleGetDashboard returns the current view.
// GET /api/v1/dashboard
func handleGetDashboard(d Dashboard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.View(), http.StatusOK)
	})
}

// handleRefresh runs a refresh cycle and returns the resulting view.
// POST /api/v1/dashboard/refresh
func handleRefresh(d Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := d.Refresh(r.Context()); err != nil {
			writeDashboardError(w, r, logger, err)
			return
		}
		writeJSON(w, d.View(), http.StatusOK)
	})
}

// handleFetchMore loads the next transaction page and returns the resulting view.
// POST /api/v1/transactions/more
func handleFetchMore(d Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := d.FetchMore(r.Context()); err != nil {
			writeDashboardError(w, r, logger, err)
			return
		}
		writeJSON(w, d.View(), http.StatusOK)
	})
}

// handleListTransactions returns loaded transactions matching the filter.
// GET /api/v1/transactions?type=send&q=abc
func handleListTransactions(d Dashboard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		txs := d.Transactions(solana.TxFilter{Type: q.Get("type"), Query: q.Get("q")})
		if txs == nil {
			txs = []solana.ClassifiedTransaction{}
		}
		view := d.View()
		writeJSON(w, transactionsResponse{
			Transactions: txs,
			StatusCounts: view.StatusCounts,
			HasMore:      view.HasMoreTransactions,
		}, http.StatusOK)
	})
}

// handleListTokens returns loaded tokens whose name or symbol matches q.
// GET /api/v1/tokens?q=sol
func handleListTokens(d Dashboard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens := d.Tokens(r.URL.Query().Get("q"))
		if tokens == nil {
			tokens = []portfolio.ValuedToken{}
		}
		writeJSON(w, tokensResponse{Tokens: tokens}, http.StatusOK)
	})
}

// handleGetNetwork reloads and returns the network status.
// GET /api/v1/network
func handleGetNetwork(d Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, err := d.RefreshNetwork(r.Context())
		if err != nil {
			logger.WarnContext(r.Context(), "network status failed", "error", err)
			writeError(w, "failed to fetch network status", http.StatusBadGateway)
			return
		}
		if status == nil {
			writeError(w, errNoAPIKey.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, status, http.StatusOK)
	})
}

// handleSetAPIKey validates and saves an API key, then refreshes.
// PUT /api/v1/session/api-key {"api_key": "..."}
func handleSetAPIKey(d Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey string `json:"api_key"`
		}
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		if strings.TrimSpace(req.APIKey) == "" {
			writeError(w, "api_key is required", http.StatusBadRequest)
			return
		}
		if err := d.SetAPIKey(r.Context(), req.APIKey); err != nil {
			writeDashboardError(w, r, logger, err)
			return
		}
		refreshAndRespond(w, r, d, logger)
	})
}

// handleClearAPIKey removes the saved API key.
// DELETE /api/v1/session/api-key
func handleClearAPIKey(d Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := d.SetAPIKey(r.Context(), ""); err != nil {
			writeDashboardError(w, r, logger, err)
			return
		}
		writeJSON(w, d.View(), http.StatusOK)
	})
}

// handleSetViewOnly switches to watching an address, then refreshes.
// PUT /api/v1/session/view-only {"address": "..."}
func handleSetViewOnly(d Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address string `json:"address"`
		}
		if !decodeJSON(w, r, logger, &req) {
			return
		}
		if err := d.SetViewOnly(req.Address); err != nil {
			writeDashboardError(w, r, logger, err)
			return
		}
		refreshAndRespond(w, r, d, logger)
	})
}

// handleClearViewOnly leaves view-only mode.
// DELETE /api/v1/session/view-only
func handleClearViewOnly(d Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.ClearViewOnly()
		refreshAndRespond(w, r, d, logger)
	})
}

// handleConnect attaches the configured wallet keypair.
// POST /api/v1/session/connect
func handleConnect(d Dashboard, signer solana.Signer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if signer == nil {
			writeError(w, errNoKeypair.Error(), http.StatusConflict)
			return
		}
		d.Connect(signer)
		logger.InfoContext(r.Context(), "wallet connected", "wallet", solana.ShortAddress(signer.PublicKey().String()))
		refreshAndRespond(w, r, d, logger)
	})
}

// handleDisconnect detaches the wallet.
// POST /api/v1/session/disconnect
func handleDisconnect(d Dashboard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.Disconnect()
		writeJSON(w, d.View(), http.StatusOK)
	})
}

// handleSendSOL transfers SOL from the connected wallet.
// POST /api/v1/transfers {"recipient": "...", "amount": "0.5"}
func handleSendSOL(d Dashboard, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if !decodeJSON(w, r, logger, &req) {
			return
		}

		sig, err := d.SendSOL(r.Context(), req.Recipient, req.Amount)
		if err != nil {
			code := statusForError(err)
			m.RecordTransfer(transferStatus(code))
			if code == http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "transfer failed", "signature", sig, "error", err)
				writeError(w, "transfer failed: "+err.Error(), http.StatusBadGateway)
				return
			}
			writeError(w, err.Error(), code)
			return
		}

		m.RecordTransfer("success")
		logger.InfoContext(r.Context(), "transfer confirmed", "signature", sig)
		writeJSON(w, transferResponse{Signature: sig}, http.StatusOK)
	})
}

func transferStatus(code int) string {
	if code == http.StatusInternalServerError {
		return "error"
	}
	return "rejected"
}

// refreshAndRespond refreshes after a session change. A failed refresh is
// reported in the view rather than failing the session change.
func refreshAndRespond(w http.ResponseWriter, r *http.Request, d Dashboard, logger *slog.Logger) {
	if err := d.Refresh(r.Context()); err != nil {
		logger.WarnContext(r.Context(), "refresh after session change failed", "error", err)
	}
	writeJSON(w, d.View(), http.StatusOK)
}

// decodeJSON reads a size-limited JSON body into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Debug("failed to decode request", "path", r.URL.Path, "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// statusForError maps dashboard and validation errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrInvalidAPIKeyFormat),
		errors.Is(err, dashboard.ErrAPIKeyRejected),
		errors.Is(err, solana.ErrInvalidAddress),
		errors.Is(err, solana.ErrInvalidRecipient),
		errors.Is(err, solana.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrViewOnly):
		return http.StatusForbidden
	case errors.Is(err, dashboard.ErrWalletNotConnected),
		errors.Is(err, dashboard.ErrFetchInProgress):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrRefreshFailed):
		return http.StatusBadGateway
	case errors.Is(err, dashboard.ErrTransfersDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDashboardError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := statusForError(err)
	switch {
	case code == http.StatusBadGateway:
		writeError(w, dashboard.RefreshErrorMessage, code)
	case code == http.StatusInternalServerError:
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, "internal server error", code)
	case errors.Is(err, dashboard.ErrAPIKeyRejected):
		writeError(w, dashboard.ErrAPIKeyRejected.Error(), code)
	default:
		writeError(w, err.Error(), code)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}
