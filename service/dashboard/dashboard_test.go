package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/solboard/service/helius"
	"github.com/brojonat/solboard/service/portfolio"
	"github.com/brojonat/solboard/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validKey = "0123456789abcdef0123456789abcdef"

type fakeIndexer struct {
	mu         sync.Mutex
	holdings   portfolio.Holdings
	assetsErr  error
	nfts       []portfolio.NFT
	nftsErr    error
	pages      map[string][]solana.RawTransaction
	txErr      error
	networkErr error
	queries    []helius.TransactionsQuery
	netCalls   int
}

func (f *fakeIndexer) GetAssetsByOwner(ctx context.Context, apiKey, owner string) (portfolio.Holdings, error) {
	return f.holdings, f.assetsErr
}

func (f *fakeIndexer) GetNFTs(ctx context.Context, apiKey, owner string) ([]portfolio.NFT, error) {
	return f.nfts, f.nftsErr
}

func (f *fakeIndexer) GetTransactions(ctx context.Context, apiKey, address string, q helius.TransactionsQuery) ([]solana.RawTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.txErr != nil {
		return nil, f.txErr
	}
	return f.pages[q.Before], nil
}

func (f *fakeIndexer) GetNetworkStatus(ctx context.Context, apiKey string) (helius.NetworkStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.netCalls++
	if f.networkErr != nil {
		return helius.NetworkStatus{}, f.networkErr
	}
	return helius.NetworkStatus{Epoch: 700, SlotsInEpoch: helius.SlotsPerEpoch}, nil
}

type fakePrices map[string]portfolio.PriceQuote

func (p fakePrices) FetchPrices(ctx context.Context, ids []string) map[string]portfolio.PriceQuote {
	out := map[string]portfolio.PriceQuote{}
	for _, id := range ids {
		if q, ok := p[id]; ok {
			out[id] = q
		}
	}
	return out
}

type memKeyStore struct {
	key     string
	loadErr error
}

func (m *memKeyStore) Load(ctx context.Context) (string, error) { return m.key, m.loadErr }
func (m *memKeyStore) Save(ctx context.Context, key string) error {
	m.key = key
	return nil
}
func (m *memKeyStore) Clear(ctx context.Context) error {
	m.key = ""
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]solana.ClassifiedTransaction
}

func (p *recordingPublisher) PublishActivity(ctx context.Context, wallet string, txs []solana.ClassifiedTransaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, txs)
	return nil
}

type fakeTransferer struct {
	calls    int
	lamports uint64
	err      error
}

func (f *fakeTransferer) SendSOL(ctx context.Context, signer solana.Signer, to solanago.PublicKey, lamports uint64) (solanago.Signature, error) {
	f.calls++
	f.lamports = lamports
	if f.err != nil {
		return solanago.Signature{}, f.err
	}
	return solanago.Signature{9, 9, 9}, nil
}

type fixture struct {
	indexer   *fakeIndexer
	keys      *memKeyStore
	publisher *recordingPublisher
	transfers *fakeTransferer
	dash      *Dashboard
	wallet    solanago.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		indexer:   &fakeIndexer{pages: map[string][]solana.RawTransaction{}},
		keys:      &memKeyStore{},
		publisher: &recordingPublisher{},
		transfers: &fakeTransferer{},
		wallet:    solanago.NewWallet().PrivateKey,
	}
	prices := fakePrices{
		portfolio.SOLMint: {USDPrice: 100, PriceChange24h: 10},
		"usdc":            {USDPrice: 1, PriceChange24h: -1},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.dash = New(Deps{
		Indexer:   f.indexer,
		Prices:    prices,
		Keys:      f.keys,
		Transfers: f.transfers,
		Publisher: f.publisher,
	}, Options{}, nil, logger)
	return f
}

// ready sets a validated key and connects the fixture wallet.
func (f *fixture) ready(t *testing.T) {
	t.Helper()
	require.NoError(t, f.dash.SetAPIKey(context.Background(), validKey))
	f.dash.Connect(f.wallet)
}

func rawPage(prefix string, n int, wallet string) []solana.RawTransaction {
	page := make([]solana.RawTransaction, n)
	for i := range page {
		page[i] = solana.RawTransaction{
			Signature: fmt.Sprintf("%s-%02d", prefix, i),
			Type:      "TRANSFER",
			Fee:       5000,
			NativeTransfers: []solana.RawTransfer{
				{FromUserAccount: wallet, ToUserAccount: "Recipient1111", Amount: 1_000_000_000},
			},
		}
	}
	return page
}

func TestRefresh_WithoutKeyOrWalletResets(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.dash.Refresh(context.Background()))
	v := f.dash.View()
	assert.Empty(t, v.Tokens)
	assert.Empty(t, v.Transactions)
	assert.False(t, v.Loading)
	assert.True(t, v.HasMoreTransactions)
	assert.Empty(t, f.indexer.queries)
}

func TestRefresh_Success(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	wallet := f.wallet.PublicKey().String()

	f.indexer.holdings = portfolio.Holdings{
		NativeLamports: 2_000_000_000,
		Fungible: []portfolio.RawAsset{
			{ID: "usdc", Symbol: "USDC", Name: "USD Coin", RawBalance: decimal.NewFromInt(50_000_000), Decimals: 6},
		},
	}
	f.indexer.nfts = []portfolio.NFT{{ID: "nft1", Name: "Lad", Image: "https://img"}}
	f.indexer.pages[""] = rawPage("first", 3, wallet)

	require.NoError(t, f.dash.Refresh(context.Background()))

	v := f.dash.View()
	assert.Equal(t, wallet, v.Wallet)
	require.Len(t, v.Tokens, 2)
	assert.Equal(t, "SOL", v.Tokens[0].Symbol)
	assert.Equal(t, 200.0, v.Tokens[0].Value)
	assert.Equal(t, 50.0, v.Tokens[1].Value)
	assert.Equal(t, 250.0, v.TotalValue)
	assert.InDelta(t, (200*10.0+50*-1.0)/250, v.Change24h, 1e-12)
	assert.Len(t, v.Allocation, 2)
	require.Len(t, v.Gainers, 1)
	require.Len(t, v.Losers, 1)
	assert.Len(t, v.NFTs, 1)

	require.Len(t, v.Transactions, 3)
	assert.Equal(t, solana.TxSend, v.Transactions[0].Type)
	assert.Equal(t, "-1.0000 SOL", v.Transactions[0].Amount)
	assert.Equal(t, solana.StatusCounts{Confirmed: 3}, v.StatusCounts)

	assert.False(t, v.HasMoreTransactions)
	assert.Empty(t, v.Error)
	assert.NotNil(t, v.LastSync)
	assert.Equal(t, []helius.TransactionsQuery{{Limit: DefaultPageSize}}, f.indexer.queries)
	require.Len(t, f.publisher.batches, 1)
	assert.Len(t, f.publisher.batches[0], 3)
}

func TestRefresh_AnyFailureFailsCycle(t *testing.T) {
	tests := []struct {
		name string
		fail func(*fakeIndexer)
	}{
		{name: "assets", fail: func(f *fakeIndexer) { f.assetsErr = errors.New("assets down") }},
		{name: "nfts", fail: func(f *fakeIndexer) { f.nftsErr = errors.New("nfts down") }},
		{name: "transactions", fail: func(f *fakeIndexer) { f.txErr = errors.New("history down") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ready(t)
			f.indexer.nfts = []portfolio.NFT{{ID: "nft1", Image: "x"}}
			f.indexer.pages[""] = rawPage("p", 2, f.wallet.PublicKey().String())
			require.NoError(t, f.dash.Refresh(context.Background()))
			require.NotEmpty(t, f.dash.View().Tokens)

			tt.fail(f.indexer)
			err := f.dash.Refresh(context.Background())
			require.ErrorIs(t, err, ErrRefreshFailed)

			v := f.dash.View()
			assert.Equal(t, RefreshErrorMessage, v.Error)
			assert.Empty(t, v.Tokens)
			assert.Empty(t, v.NFTs)
			assert.Empty(t, v.Transactions)
			assert.False(t, v.Loading)
		})
	}
}

func TestFetchMore_Pagination(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	wallet := f.wallet.PublicKey().String()

	first := rawPage("a", 50, wallet)
	f.indexer.pages[""] = first
	require.NoError(t, f.dash.Refresh(context.Background()))
	assert.True(t, f.dash.View().HasMoreTransactions)

	// A full page keeps paging and advances the cursor.
	second := rawPage("b", 50, wallet)
	f.indexer.pages["a-49"] = second
	require.NoError(t, f.dash.FetchMore(context.Background()))
	v := f.dash.View()
	assert.True(t, v.HasMoreTransactions)
	assert.Len(t, v.Transactions, 100)
	assert.Equal(t, helius.TransactionsQuery{Limit: 50, Before: "a-49"}, f.indexer.queries[1])

	// A short page, with one duplicate, ends paging.
	third := append(rawPage("c", 48, wallet), second[49])
	f.indexer.pages["b-49"] = third
	require.NoError(t, f.dash.FetchMore(context.Background()))
	v = f.dash.View()
	assert.False(t, v.HasMoreTransactions)
	assert.Len(t, v.Transactions, 148)
	assert.Equal(t, "a-00", v.Transactions[0].ID)
	assert.Equal(t, "c-47", v.Transactions[len(v.Transactions)-1].ID)

	// No cursor left: further calls do nothing.
	require.NoError(t, f.dash.FetchMore(context.Background()))
	assert.Len(t, f.indexer.queries, 3)
}

func TestFetchMore_EmptyPageStopsPaging(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	f.indexer.pages[""] = rawPage("a", 50, f.wallet.PublicKey().String())
	require.NoError(t, f.dash.Refresh(context.Background()))

	require.NoError(t, f.dash.FetchMore(context.Background()))
	v := f.dash.View()
	assert.False(t, v.HasMoreTransactions)
	assert.Len(t, v.Transactions, 50)
}

func TestFetchMore_ErrorKeepsState(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	f.indexer.pages[""] = rawPage("a", 50, f.wallet.PublicKey().String())
	require.NoError(t, f.dash.Refresh(context.Background()))

	f.indexer.txErr = errors.New("rate limited")
	require.Error(t, f.dash.FetchMore(context.Background()))

	v := f.dash.View()
	assert.Len(t, v.Transactions, 50)
	assert.True(t, v.HasMoreTransactions)
	assert.False(t, v.IsFetchingMore)
	assert.Empty(t, v.Error)
}

func TestSetAPIKey(t *testing.T) {
	t.Run("too short is rejected before validation", func(t *testing.T) {
		f := newFixture(t)
		err := f.dash.SetAPIKey(context.Background(), "short")
		assert.ErrorIs(t, err, ErrInvalidAPIKeyFormat)
		assert.Zero(t, f.indexer.netCalls)
		assert.False(t, f.dash.View().HasAPIKey)
	})

	t.Run("rejected by upstream", func(t *testing.T) {
		f := newFixture(t)
		f.indexer.networkErr = errors.New("HTTP 401")
		err := f.dash.SetAPIKey(context.Background(), validKey)
		assert.ErrorIs(t, err, ErrAPIKeyRejected)
		assert.Empty(t, f.keys.key)
		assert.False(t, f.dash.View().HasAPIKey)
	})

	t.Run("valid key is trimmed and saved", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dash.SetAPIKey(context.Background(), "  "+validKey+"\n"))
		assert.Equal(t, validKey, f.keys.key)
		v := f.dash.View()
		assert.True(t, v.HasAPIKey)
		require.NotNil(t, v.Network)
		assert.Equal(t, uint64(700), v.Network.Epoch)
	})

	t.Run("blank clears", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dash.SetAPIKey(context.Background(), validKey))
		require.NoError(t, f.dash.SetAPIKey(context.Background(), "   "))
		assert.Empty(t, f.keys.key)
		assert.False(t, f.dash.View().HasAPIKey)
		assert.Nil(t, f.dash.View().Network)
	})
}

func TestInit(t *testing.T) {
	t.Run("valid saved key", func(t *testing.T) {
		f := newFixture(t)
		f.keys.key = validKey
		require.NoError(t, f.dash.Init(context.Background()))
		v := f.dash.View()
		assert.True(t, v.HasAPIKey)
		assert.True(t, v.KeyInitialized)
	})

	t.Run("invalid saved key is removed", func(t *testing.T) {
		f := newFixture(t)
		f.keys.key = validKey
		f.indexer.networkErr = errors.New("HTTP 401")
		require.NoError(t, f.dash.Init(context.Background()))
		assert.Empty(t, f.keys.key)
		v := f.dash.View()
		assert.False(t, v.HasAPIKey)
		assert.True(t, v.KeyInitialized)
	})

	t.Run("no saved key", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dash.Init(context.Background()))
		assert.Zero(t, f.indexer.netCalls)
		assert.True(t, f.dash.View().KeyInitialized)
	})
}

func TestViewOnly(t *testing.T) {
	f := newFixture(t)
	f.ready(t)

	assert.ErrorIs(t, f.dash.SetViewOnly("not a key"), solana.ErrInvalidAddress)
	assert.True(t, f.dash.View().WalletConnected)

	watched := solanago.NewWallet().PublicKey().String()
	require.NoError(t, f.dash.SetViewOnly(watched))

	v := f.dash.View()
	assert.True(t, v.IsViewOnly)
	assert.False(t, v.WalletConnected)
	assert.Equal(t, watched, v.Wallet)

	_, err := f.dash.SendSOL(context.Background(), solanago.NewWallet().PublicKey().String(), "1")
	assert.ErrorIs(t, err, ErrViewOnly)
	assert.Zero(t, f.transfers.calls)

	f.dash.ClearViewOnly()
	assert.False(t, f.dash.IsViewOnly())
	assert.Empty(t, f.dash.View().Wallet)
}

func TestSendSOL(t *testing.T) {
	recipient := solanago.NewWallet().PublicKey().String()

	t.Run("no wallet", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.dash.SendSOL(context.Background(), recipient, "1")
		assert.ErrorIs(t, err, ErrWalletNotConnected)
	})

	t.Run("invalid input never reaches the network", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t)
		_, err := f.dash.SendSOL(context.Background(), recipient, "0")
		assert.ErrorIs(t, err, solana.ErrInvalidAmount)
		_, err = f.dash.SendSOL(context.Background(), "nope", "1")
		assert.ErrorIs(t, err, solana.ErrInvalidRecipient)
		assert.Zero(t, f.transfers.calls)
	})

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t)
		sig, err := f.dash.SendSOL(context.Background(), recipient, "0.25")
		require.NoError(t, err)
		assert.Equal(t, solanago.Signature{9, 9, 9}.String(), sig)
		assert.Equal(t, uint64(250_000_000), f.transfers.lamports)
	})

	t.Run("transfer error", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t)
		f.transfers.err = errors.New("insufficient funds")
		sig, err := f.dash.SendSOL(context.Background(), recipient, "1")
		assert.Error(t, err)
		assert.Empty(t, sig)
	})
}

func TestTransactionsAndTokensSearch(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	wallet := f.wallet.PublicKey().String()
	f.indexer.holdings = portfolio.Holdings{Fungible: []portfolio.RawAsset{
		{ID: "usdc", Symbol: "USDC", Name: "USD Coin", RawBalance: decimal.NewFromInt(1), Decimals: 6},
	}}
	f.indexer.pages[""] = append(rawPage("t", 2, wallet), solana.RawTransaction{Signature: "swap1", Source: "JUPITER"})
	require.NoError(t, f.dash.Refresh(context.Background()))

	swaps := f.dash.Transactions(solana.TxFilter{Type: "swap"})
	require.Len(t, swaps, 1)
	assert.Equal(t, "swap1", swaps[0].ID)
	assert.Len(t, f.dash.Transactions(solana.TxFilter{Type: "all"}), 3)

	tokens := f.dash.Tokens("coin")
	require.Len(t, tokens, 1)
	assert.Equal(t, "USDC", tokens[0].Symbol)
}

func TestWalletChangeClearsData(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	f.indexer.pages[""] = rawPage("a", 2, f.wallet.PublicKey().String())
	require.NoError(t, f.dash.Refresh(context.Background()))
	require.NotEmpty(t, f.dash.View().Transactions)

	f.dash.Disconnect()
	v := f.dash.View()
	assert.Empty(t, v.Wallet)
	assert.Empty(t, v.Transactions)
}

func TestAutoRefresher(t *testing.T) {
	f := newFixture(t)
	f.ready(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Without an interval there is exactly one refresh.
	NewAutoRefresher(f.dash, 0, logger).Run(context.Background())
	assert.Len(t, f.indexer.queries, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewAutoRefresher(f.dash, 5*time.Millisecond, logger).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		f.indexer.mu.Lock()
		defer f.indexer.mu.Unlock()
		return len(f.indexer.queries) >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
