package helius

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/brojonat/solboard/service/solana"
)

// TransactionsQuery pages through an address's history, newest first.
// Before is the signature of the last transaction already seen.
type TransactionsQuery struct {
	Limit  int
	Before string
}

// GetTransactions returns parsed enhanced transactions for address.
func (c *Client) GetTransactions(ctx context.Context, apiKey, address string, q TransactionsQuery) ([]solana.RawTransaction, error) {
	query := url.Values{"api-key": {apiKey}}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Before != "" {
		query.Set("before", q.Before)
	}

	var txs []solana.RawTransaction
	path := "/addresses/" + url.PathEscape(address) + "/transactions"
	if err := c.getJSON(ctx, "addressTransactions", path, query, &txs); err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", err)
	}

	c.metrics.RecordTransactionsPage(len(txs))
	return txs, nil
}
