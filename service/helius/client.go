package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/solboard/service/metrics"
)

const (
	DefaultRPCURL = "https://mainnet.helius-rpc.com"
	DefaultAPIURL = "https://api.helius.xyz/v0"

	maxResponseBytes = 32 << 20
)

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	RPCURL     string
	APIURL     string
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration
}

// Client talks to the Helius DAS JSON-RPC endpoint and the enhanced
// transactions REST API. The API key is supplied per call.
type Client struct {
	rpcURL     string
	apiURL     string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a Helius client.
func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	if cfg.RPCURL == "" {
		cfg.RPCURL = DefaultRPCURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		rpcURL:     strings.TrimRight(cfg.RPCURL, "/"),
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		httpClient: cfg.HTTPClient,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		metrics:    m,
		logger:     logger,
	}
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Method, e.StatusCode, e.Body)
}

// RPCError is an error payload returned inside a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("helius RPC error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// call performs a JSON-RPC request and decodes result into dest.
func (c *Client) call(ctx context.Context, apiKey, method string, params, dest any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: "1", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}
	endpoint := c.rpcURL + "/?" + url.Values{"api-key": {apiKey}}.Encode()

	body, err := c.do(ctx, method, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parsing %s response: %w", method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if err := json.Unmarshal(resp.Result, dest); err != nil {
		return fmt.Errorf("parsing %s result: %w", method, err)
	}
	return nil
}

// getJSON performs a GET against the REST API and decodes the body into dest.
func (c *Client) getJSON(ctx context.Context, method, path string, query url.Values, dest any) error {
	endpoint := c.apiURL + path + "?" + query.Encode()

	body, err := c.do(ctx, method, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing %s response: %w", method, err)
	}
	return nil
}

// do executes the request built by newReq, retrying 429 responses with
// exponential backoff. URLs carry the API key, so they are never logged.
func (c *Client) do(ctx context.Context, method string, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("creating %s request: %w", method, err)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.RecordUpstreamCall("helius", method, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("executing %s request: %w", method, redact(err))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		duration := time.Since(start).Seconds()
		if err != nil {
			c.metrics.RecordUpstreamCall("helius", method, "error", duration)
			return nil, fmt.Errorf("reading %s response: %w", method, err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			c.metrics.RecordUpstreamCall("helius", method, "success", duration)
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			c.metrics.RecordUpstreamCall("helius", method, "rate_limited", duration)
			c.metrics.RecordRateLimitHit("helius")
			lastErr = &StatusError{Method: method, StatusCode: resp.StatusCode, Body: truncate(body)}
			if attempt == c.maxRetries {
				return nil, lastErr
			}
			delay := c.baseDelay * time.Duration(1<<uint(attempt))
			c.logger.WarnContext(ctx, "rate limited, sleeping before retry",
				"method", method,
				"attempt", attempt+1,
				"backoff", delay,
			)
			c.metrics.RecordUpstreamRetry("helius", method)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}

		default:
			c.metrics.RecordUpstreamCall("helius", method, "error", duration)
			return nil, &StatusError{Method: method, StatusCode: resp.StatusCode, Body: truncate(body)}
		}
	}
	return nil, lastErr
}

// redact strips the request URL (and with it the API key) from transport errors.
func redact(err error) error {
	if uerr, ok := err.(*url.Error); ok {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func truncate(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
