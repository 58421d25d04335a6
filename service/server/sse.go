package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/brojonat/solboard/service/nats"
	"github.com/brojonat/solboard/service/solana"
)

var keepaliveInterval = 10 * time.Second

// handleStreamActivity streams published activity as Server-Sent Events.
// Without an address path parameter every wallet is streamed. Streams end
// when the client goes away or stop is closed.
// GET /api/v1/stream/activity/{address}
func handleStreamActivity(bus nats.Bus, stop <-chan struct{}, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		walletDesc := "all wallets"
		if address != "" {
			pk, err := solana.ParseAddress(address)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			address = pk.String()
			walletDesc = address
		}

		events, err := bus.Subscribe(r.Context(), address)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to subscribe to activity",
				"wallet", walletDesc,
				"error", err,
			)
			writeError(w, "failed to subscribe", http.StatusServiceUnavailable)
			return
		}

		// Streams outlive the server write timeout.
		rc := http.NewResponseController(w)
		rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		m.RecordSSEConnectionChange(walletDesc, 1)
		defer m.RecordSSEConnectionChange(walletDesc, -1)
		logger.DebugContext(r.Context(), "SSE client connected",
			"wallet", walletDesc,
			"remote_addr", r.RemoteAddr,
		)

		connected, _ := json.Marshal(map[string]string{"wallet": walletDesc})
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
		rc.Flush()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				rc.Flush()

			case ev := <-events:
				data, err := json.Marshal(ev)
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: activity\ndata: %s\n\n", data)
				rc.Flush()
				m.RecordSSEEventSent(walletDesc, "activity")

			case <-stop:
				logger.DebugContext(r.Context(), "closing SSE stream for shutdown", "wallet", walletDesc)
				return

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"wallet", walletDesc,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}
