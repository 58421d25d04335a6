package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solboard/service/config"
	"github.com/brojonat/solboard/service/dashboard"
	"github.com/brojonat/solboard/service/db"
	"github.com/brojonat/solboard/service/helius"
	"github.com/brojonat/solboard/service/jupiter"
	"github.com/brojonat/solboard/service/metrics"
	"github.com/brojonat/solboard/service/nats"
	"github.com/brojonat/solboard/service/server"
	"github.com/brojonat/solboard/service/solana"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Fails fast on malformed configuration.
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	keys, closeKeys := setupKeyStore(ctx, cfg, m, logger)
	defer closeKeys()

	bus := setupBus(cfg, m, logger)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	indexer := helius.NewClient(helius.Config{
		RPCURL:     cfg.HeliusRPCURL,
		APIURL:     cfg.HeliusAPIURL,
		HTTPClient: httpClient,
		MaxRetries: cfg.HTTPMaxRetries,
		BaseDelay:  cfg.HTTPRetryBaseDelay,
	}, m, logger)
	prices := jupiter.NewClient(cfg.JupiterPriceURL, httpClient, m, logger)

	// For premium RPC endpoints, include the API key in the URL.
	transfers := solana.NewTransferClient(solana.NewRPCClient(cfg.SolanaRPCURL), cfg.ConfirmTimeout, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	dash := dashboard.New(dashboard.Deps{
		Indexer:   indexer,
		Prices:    prices,
		Keys:      keys,
		Transfers: transfers,
		Publisher: bus,
	}, dashboard.Options{PageSize: cfg.TxPageSize}, m, logger)

	if err := dash.Init(ctx); err != nil {
		logger.Error("failed to load saved API key", "error", err)
		os.Exit(1)
	}
	if cfg.HeliusAPIKey != "" && !dash.View().HasAPIKey {
		if err := dash.SetAPIKey(ctx, cfg.HeliusAPIKey); err != nil {
			logger.Warn("HELIUS_API_KEY was rejected", "error", err)
		}
	}

	var signer solana.Signer
	if cfg.WalletKeypairPath != "" {
		key, err := solana.LoadKeypair(cfg.WalletKeypairPath)
		if err != nil {
			logger.Error("failed to load wallet keypair", "path", cfg.WalletKeypairPath, "error", err)
			os.Exit(1)
		}
		signer = key
		dash.Connect(signer)
		logger.Info("wallet connected", "wallet", solana.ShortAddress(key.PublicKey().String()))
	}
	if cfg.ViewOnlyAddress != "" {
		if err := dash.SetViewOnly(cfg.ViewOnlyAddress); err != nil {
			logger.Error("invalid VIEW_ONLY_ADDRESS", "error", err)
			os.Exit(1)
		}
	}

	// Loads the dashboard once, then keeps it fresh when an interval is set.
	go dashboard.NewAutoRefresher(dash, cfg.AutoRefreshInterval, logger).Run(ctx)

	httpServer := server.New(cfg.ServerAddr, dash, bus, signer, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"helius_rpc", cfg.HeliusRPCURL,
		"solana_rpc", cfg.SolanaRPCURL,
		"nats_enabled", cfg.NATSURL != "",
		"database_enabled", cfg.DatabaseURL != "",
		"auto_refresh", cfg.AutoRefreshInterval,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupKeyStore returns the PostgreSQL store when DATABASE_URL is set and the
// file store otherwise.
func setupKeyStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (dashboard.KeyStore, func()) {
	if cfg.DatabaseURL == "" {
		store := db.NewFileKeyStore(cfg.KeyStorePath)
		logger.Info("using file key store", "path", store.Path())
		return store, func() {}
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")
	return db.NewStore(pool, m), pool.Close
}

// setupBus connects to NATS when NATS_URL is set and falls back to an
// in-process bus otherwise.
func setupBus(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) nats.Bus {
	if cfg.NATSURL == "" {
		logger.Info("NATS not configured, using in-process activity bus")
		return nats.NewLocalBus(logger)
	}
	bus, err := nats.NewJetStreamBus(cfg.NATSURL, m, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	return bus
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
