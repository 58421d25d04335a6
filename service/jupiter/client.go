package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/brojonat/solboard/service/portfolio"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://lite-api.jup.ag/price/v3"

	// ChunkSize is the most ids the price API accepts per request.
	ChunkSize = 50
)

// Client fetches USD quotes from the Jupiter price API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a Jupiter price client. An empty baseURL uses the public
// lite endpoint.
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

type priceEntry struct {
	USDPrice       float64 `json:"usdPrice"`
	PriceChange24h float64 `json:"priceChange24h"`
}

// FetchPrices quotes ids in concurrent chunks of ChunkSize. A chunk that
// fails is logged and contributes no quotes; FetchPrices itself never fails.
func (c *Client) FetchPrices(ctx context.Context, ids []string) map[string]portfolio.PriceQuote {
	quotes := make(map[string]portfolio.PriceQuote)
	if len(ids) == 0 {
		return quotes
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range lo.Chunk(ids, ChunkSize) {
		g.Go(func() error {
			got, err := c.fetchChunk(gctx, chunk)
			if err != nil {
				c.metrics.RecordPriceChunk("error")
				c.logger.WarnContext(gctx, "price chunk failed",
					"chunk", i,
					"ids", len(chunk),
					"error", err,
				)
				return nil
			}
			c.metrics.RecordPriceChunk("success")

			mu.Lock()
			defer mu.Unlock()
			for id, q := range got {
				quotes[id] = q
			}
			return nil
		})
	}
	_ = g.Wait()

	return quotes
}

func (c *Client) fetchChunk(ctx context.Context, ids []string) (map[string]portfolio.PriceQuote, error) {
	endpoint := c.baseURL + "?ids=" + strings.Join(ids, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamCall("jupiter", "price", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordUpstreamCall("jupiter", "price", "error", time.Since(start).Seconds())
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Unknown ids come back as null entries.
	var raw map[string]*priceEntry
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.metrics.RecordUpstreamCall("jupiter", "price", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("parsing price response: %w", err)
	}
	c.metrics.RecordUpstreamCall("jupiter", "price", "success", time.Since(start).Seconds())

	out := make(map[string]portfolio.PriceQuote, len(raw))
	for id, entry := range raw {
		if entry == nil {
			continue
		}
		out[id] = portfolio.PriceQuote{USDPrice: entry.USDPrice, PriceChange24h: entry.PriceChange24h}
	}
	return out, nil
}
