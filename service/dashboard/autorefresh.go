package dashboard

import (
	"context"
	"log/slog"
	"time"
)

// AutoRefresher refreshes a Dashboard on a fixed interval.
type AutoRefresher struct {
	dashboard *Dashboard
	interval  time.Duration
	logger    *slog.Logger
}

// NewAutoRefresher creates an AutoRefresher.
func NewAutoRefresher(d *Dashboard, interval time.Duration, logger *slog.Logger) *AutoRefresher {
	return &AutoRefresher{dashboard: d, interval: interval, logger: logger}
}

// Run refreshes once immediately and then on every tick until ctx is
// cancelled. With a non-positive interval it returns after the first refresh.
func (r *AutoRefresher) Run(ctx context.Context) {
	r.refresh(ctx)
	if r.interval <= 0 {
		return
	}
	r.logger.Info("auto refresh starting", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("auto refresh shutting down")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *AutoRefresher) refresh(ctx context.Context) {
	if err := r.dashboard.Refresh(ctx); err != nil {
		r.logger.Warn("auto refresh failed", "error", err)
	}
}
