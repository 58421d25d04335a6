package dashboard

import (
	"context"
	"fmt"
	"slices"

	"github.com/brojonat/solboard/service/helius"
	"github.com/brojonat/solboard/service/portfolio"
	"github.com/brojonat/solboard/service/solana"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Refresh reloads holdings, NFTs and the first page of transactions for the
// current wallet. The three fetches run concurrently and all must succeed;
// on any failure the wallet data is cleared and RefreshErrorMessage is set.
// Without an API key or wallet the view is reset and nil is returned.
//
// Results are committed unconditionally, so a slow refresh started before a
// newer one can still overwrite the newer result when it finishes.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.mu.Lock()
	key, wallet := d.session.apiKey, d.session.wallet()
	if key == "" || wallet == "" {
		d.resetLocked()
		d.mu.Unlock()
		return nil
	}
	d.loading = true
	d.lastErr = ""
	d.mu.Unlock()

	logger := d.logger.With("refresh_id", uuid.NewString(), "wallet", wallet)
	start := d.now()
	logger.InfoContext(ctx, "refreshing dashboard")

	var (
		tokens []portfolio.ValuedToken
		nfts   []portfolio.NFT
		raw    []solana.RawTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := d.deps.Indexer.GetAssetsByOwner(gctx, key, wallet)
		if err != nil {
			return fmt.Errorf("assets: %w", err)
		}
		tokens = portfolio.Aggregate(h, d.deps.Prices.FetchPrices(gctx, portfolio.PriceIDs(h)))
		return nil
	})
	g.Go(func() error {
		var err error
		if nfts, err = d.deps.Indexer.GetNFTs(gctx, key, wallet); err != nil {
			return fmt.Errorf("nfts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if raw, err = d.deps.Indexer.GetTransactions(gctx, key, wallet, helius.TransactionsQuery{Limit: d.pageSize}); err != nil {
			return fmt.Errorf("transactions: %w", err)
		}
		return nil
	})
	err := g.Wait()
	duration := d.now().Sub(start).Seconds()

	if err != nil {
		d.mu.Lock()
		d.loading = false
		d.tokens, d.nfts, d.transactions = nil, nil, nil
		d.cursor = ""
		d.lastErr = RefreshErrorMessage
		d.mu.Unlock()

		d.metrics.RecordRefresh("error", duration)
		logger.ErrorContext(ctx, "refresh failed", "error", err)
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	txs := d.classify(raw, wallet)
	summary := portfolio.Summarize(tokens)
	now := d.now()

	d.mu.Lock()
	d.loading = false
	d.tokens = tokens
	d.nfts = nfts
	d.transactions = txs
	d.hasMore = len(txs) >= d.pageSize
	d.cursor = ""
	if d.hasMore {
		d.cursor = txs[len(txs)-1].Signature
	}
	d.lastSync = &now
	d.mu.Unlock()

	d.metrics.RecordRefresh("success", duration)
	d.metrics.SetPortfolioValue(summary.TotalValue)
	logger.InfoContext(ctx, "dashboard refreshed",
		"tokens", len(tokens),
		"nfts", len(nfts),
		"transactions", len(txs),
		"total_value", summary.TotalValue,
		"duration_seconds", duration,
	)

	d.publish(ctx, wallet, txs)
	return nil
}

// FetchMore loads the next page of transactions before the current cursor and
// merges it into the list, dropping duplicate ids. It is a no-op when there is
// no cursor. A failed fetch leaves the view unchanged.
func (d *Dashboard) FetchMore(ctx context.Context) error {
	d.mu.Lock()
	key, wallet, cursor := d.session.apiKey, d.session.wallet(), d.cursor
	if key == "" || wallet == "" || cursor == "" {
		d.mu.Unlock()
		return nil
	}
	if d.fetchingMore {
		d.mu.Unlock()
		return ErrFetchInProgress
	}
	d.fetchingMore = true
	d.mu.Unlock()

	raw, err := d.deps.Indexer.GetTransactions(ctx, key, wallet, helius.TransactionsQuery{
		Limit:  d.pageSize,
		Before: cursor,
	})

	if err != nil {
		d.mu.Lock()
		d.fetchingMore = false
		d.mu.Unlock()
		d.metrics.RecordFetchMore("error")
		d.logger.ErrorContext(ctx, "failed to fetch more transactions", "wallet", wallet, "error", err)
		return fmt.Errorf("fetching more transactions: %w", err)
	}

	page := d.classify(raw, wallet)

	d.mu.Lock()
	d.fetchingMore = false
	if len(page) == 0 {
		d.hasMore = false
		d.cursor = ""
	} else {
		merged := append(slices.Clone(d.transactions), page...)
		d.transactions = lo.UniqBy(merged, func(tx solana.ClassifiedTransaction) string { return tx.ID })
		d.cursor = page[len(page)-1].Signature
		if len(page) < d.pageSize {
			d.hasMore = false
			d.cursor = ""
		}
	}
	total := len(d.transactions)
	d.mu.Unlock()

	d.metrics.RecordFetchMore("success")
	d.logger.DebugContext(ctx, "fetched more transactions",
		"wallet", wallet,
		"page", len(page),
		"total", total,
	)

	d.publish(ctx, wallet, page)
	return nil
}

// RefreshNetwork reloads the network status with the current API key.
func (d *Dashboard) RefreshNetwork(ctx context.Context) (*helius.NetworkStatus, error) {
	d.mu.RLock()
	key := d.session.apiKey
	d.mu.RUnlock()

	if key == "" {
		d.mu.Lock()
		d.network = nil
		d.mu.Unlock()
		return nil, nil
	}

	status, err := d.deps.Indexer.GetNetworkStatus(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetching network status: %w", err)
	}

	d.mu.Lock()
	d.network = &status
	d.mu.Unlock()
	return &status, nil
}

func (d *Dashboard) classify(raw []solana.RawTransaction, wallet string) []solana.ClassifiedTransaction {
	txs := solana.ClassifyAll(raw, wallet)
	for _, tx := range txs {
		d.metrics.RecordTransactionClassified(string(tx.Type))
	}
	return txs
}

func (d *Dashboard) publish(ctx context.Context, wallet string, txs []solana.ClassifiedTransaction) {
	if d.deps.Publisher == nil || len(txs) == 0 {
		return
	}
	if err := d.deps.Publisher.PublishActivity(ctx, wallet, txs); err != nil {
		d.logger.WarnContext(ctx, "failed to publish activity", "wallet", wallet, "error", err)
	}
}
