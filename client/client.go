// Package client is a Go client for the solboard HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/solboard/service/dashboard"
	"github.com/brojonat/solboard/service/helius"
	"github.com/brojonat/solboard/service/nats"
	"github.com/brojonat/solboard/service/portfolio"
	"github.com/brojonat/solboard/service/solana"
)

// Client is the HTTP client for the solboard server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// TransactionsResponse is a filtered transaction listing.
type TransactionsResponse struct {
	Transactions []solana.ClassifiedTransaction `json:"transactions"`
	StatusCounts solana.StatusCounts            `json:"status_counts"`
	HasMore      bool                           `json:"has_more"`
}

// NewClient creates a new client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Dashboard returns the current view.
func (c *Client) Dashboard(ctx context.Context) (*dashboard.View, error) {
	return c.view(ctx, http.MethodGet, "/api/v1/dashboard", nil)
}

// Refresh reloads the wallet and returns the new view.
func (c *Client) Refresh(ctx context.Context) (*dashboard.View, error) {
	return c.view(ctx, http.MethodPost, "/api/v1/dashboard/refresh", nil)
}

// FetchMore loads the next page of transactions.
func (c *Client) FetchMore(ctx context.Context) (*dashboard.View, error) {
	return c.view(ctx, http.MethodPost, "/api/v1/transactions/more", nil)
}

// Transactions lists loaded transactions filtered by type ("all", "send", ...)
// and a search query. Empty arguments match everything.
func (c *Client) Transactions(ctx context.Context, txType, query string) (*TransactionsResponse, error) {
	q := url.Values{}
	if txType != "" {
		q.Set("type", txType)
	}
	if query != "" {
		q.Set("q", query)
	}
	var resp TransactionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/transactions", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tokens lists loaded tokens whose name or symbol matches query.
func (c *Client) Tokens(ctx context.Context, query string) ([]portfolio.ValuedToken, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	var resp struct {
		Tokens []portfolio.ValuedToken `json:"tokens"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tokens", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// Network returns the current network status.
func (c *Client) Network(ctx context.Context) (*helius.NetworkStatus, error) {
	var status helius.NetworkStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/network", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetAPIKey validates and saves an indexer API key.
func (c *Client) SetAPIKey(ctx context.Context, key string) (*dashboard.View, error) {
	return c.view(ctx, http.MethodPut, "/api/v1/session/api-key", map[string]string{"api_key": key})
}

// ClearAPIKey removes the saved API key.
func (c *Client) ClearAPIKey(ctx context.Context) (*dashboard.View, error) {
	return c.view(ctx, http.MethodDelete, "/api/v1/session/api-key", nil)
}

// SetViewOnly watches address without a wallet.
func (c *Client) SetViewOnly(ctx context.Context, address string) (*dashboard.View, error) {
	return c.view(ctx, http.MethodPut, "/api/v1/session/view-only", map[string]string{"address": address})
}

// ClearViewOnly leaves view-only mode.
func (c *Client) ClearViewOnly(ctx context.Context) (*dashboard.View, error) {
	return c.view(ctx, http.MethodDelete, "/api/v1/session/view-only", nil)
}

// Connect attaches the server's configured wallet.
func (c *Client) Connect(ctx context.Context) (*dashboard.View, error) {
	return c.view(ctx, http.MethodPost, "/api/v1/session/connect", nil)
}

// Disconnect detaches the wallet.
func (c *Client) Disconnect(ctx context.Context) (*dashboard.View, error) {
	return c.view(ctx, http.MethodPost, "/api/v1/session/disconnect", nil)
}

// SendSOL transfers amount SOL to recipient and returns the signature.
func (c *Client) SendSOL(ctx context.Context, recipient, amount string) (string, error) {
	var resp struct {
		Signature string `json:"signature"`
	}
	body := map[string]string{"recipient": recipient, "amount": amount}
	if err := c.do(ctx, http.MethodPost, "/api/v1/transfers", nil, body, &resp); err != nil {
		return "", err
	}
	c.logger.Debug("transfer confirmed", "signature", resp.Signature)
	return resp.Signature, nil
}

// Health checks the server liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// StreamActivity reads the activity stream for wallet, or for every wallet
// when wallet is empty, calling fn for each event until ctx is done or fn
// returns an error.
func (c *Client) StreamActivity(ctx context.Context, wallet string, fn func(nats.ActivityEvent) error) error {
	path := "/api/v1/stream/activity"
	if wallet != "" {
		path += "/" + url.PathEscape(wallet)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streams have no overall deadline.
	streamClient := *c.httpClient
	streamClient.Timeout = 0
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "activity" && data != "" {
				var ev nats.ActivityEvent
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					return fmt.Errorf("failed to decode activity event: %w", err)
				}
				if err := fn(ev); err != nil {
					return err
				}
			}
			event, data = "", ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

func (c *Client) view(ctx context.Context, method, path string, body any) (*dashboard.View, error) {
	var v dashboard.View
	if err := c.do(ctx, method, path, nil, body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// do sends a request and decodes a 2xx JSON response into dest, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseErrorResponse(resp)
	}
	c.logger.Debug("request complete", "method", method, "path", path, "status", resp.StatusCode)

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
