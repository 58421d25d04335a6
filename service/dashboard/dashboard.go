// Package dashboard holds the single-wallet session and the current view of
// that wallet: valued tokens, NFTs, classified transactions and network status.
package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/brojonat/solboard/service/helius"
	"github.com/brojonat/solboard/service/metrics"
	"github.com/brojonat/solboard/service/portfolio"
	"github.com/brojonat/solboard/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	// DefaultPageSize is the transaction history page size.
	DefaultPageSize = 50
	// MinAPIKeyLength is the shortest API key accepted before validation.
	MinAPIKeyLength = 32
	// MoversCount is how many gainers and losers the view reports.
	MoversCount = 5

	// RefreshErrorMessage is surfaced in the view when a refresh cycle fails.
	RefreshErrorMessage = "One or more API calls failed. The API key may be invalid or rate-limited."
)

var (
	ErrInvalidAPIKeyFormat = errors.New("invalid API key format")
	ErrAPIKeyRejected      = errors.New("invalid or non-functional API key")
	ErrRefreshFailed       = errors.New("refresh failed")
	ErrFetchInProgress     = errors.New("already fetching more transactions")
	ErrViewOnly            = errors.New("cannot send transactions in view-only mode")
	ErrWalletNotConnected  = errors.New("no wallet connected")
	ErrTransfersDisabled   = errors.New("transfers are not configured")
)

// Indexer is the hosted indexing API the dashboard reads from.
type Indexer interface {
	GetAssetsByOwner(ctx context.Context, apiKey, owner string) (portfolio.Holdings, error)
	GetNFTs(ctx context.Context, apiKey, owner string) ([]portfolio.NFT, error)
	GetTransactions(ctx context.Context, apiKey, address string, q helius.TransactionsQuery) ([]solana.RawTransaction, error)
	GetNetworkStatus(ctx context.Context, apiKey string) (helius.NetworkStatus, error)
}

// PriceSource returns USD quotes keyed by asset id. Missing ids are simply absent.
type PriceSource interface {
	FetchPrices(ctx context.Context, ids []string) map[string]portfolio.PriceQuote
}

// Transferer submits SOL transfers.
type Transferer interface {
	SendSOL(ctx context.Context, signer solana.Signer, to solanago.PublicKey, lamports uint64) (solanago.Signature, error)
}

// KeyStore persists the API key between runs. Load returns "" when no key is saved.
type KeyStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// ActivityPublisher receives each freshly classified page of transactions.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, wallet string, txs []solana.ClassifiedTransaction) error
}

// Deps are the collaborators of a Dashboard. Transfers and Publisher are optional.
type Deps struct {
	Indexer   Indexer
	Prices    PriceSource
	Keys      KeyStore
	Transfers Transferer
	Publisher ActivityPublisher
}

// Options tune a Dashboard.
type Options struct {
	PageSize int
}

// session is the user-controlled state: which wallet is shown and how the
// indexer is authenticated.
type session struct {
	apiKey   string
	viewOnly string
	signer   solana.Signer
}

func (s session) wallet() string {
	if s.viewOnly != "" {
		return s.viewOnly
	}
	if s.signer != nil {
		return s.signer.PublicKey().String()
	}
	return ""
}

// Dashboard owns one session and the current view of its wallet.
type Dashboard struct {
	deps     Deps
	pageSize int
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu             sync.RWMutex
	session        session
	keyInitialized bool
	tokens         []portfolio.ValuedToken
	nfts           []portfolio.NFT
	transactions   []solana.ClassifiedTransaction
	network        *helius.NetworkStatus
	loading        bool
	fetchingMore   bool
	hasMore        bool
	cursor         string
	lastErr        string
	lastSync       *time.Time
}

// New creates a Dashboard with no API key and no wallet.
func New(deps Deps, opts Options, m *metrics.Metrics, logger *slog.Logger) *Dashboard {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dashboard{
		deps:     deps,
		pageSize: opts.PageSize,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		hasMore:  true,
	}
}

// View is a read-only snapshot of the dashboard.
type View struct {
	Wallet              string                         `json:"wallet"`
	IsViewOnly          bool                           `json:"is_view_only"`
	WalletConnected     bool                           `json:"wallet_connected"`
	HasAPIKey           bool                           `json:"has_api_key"`
	KeyInitialized      bool                           `json:"key_initialized"`
	Tokens              []portfolio.ValuedToken        `json:"tokens"`
	TotalValue          float64                        `json:"total_value"`
	Change24h           float64                        `json:"change_24h"`
	Allocation          []portfolio.AllocationSlice    `json:"allocation"`
	Gainers             []portfolio.ValuedToken        `json:"gainers"`
	Losers              []portfolio.ValuedToken        `json:"losers"`
	NFTs                []portfolio.NFT                `json:"nfts"`
	Transactions        []solana.ClassifiedTransaction `json:"transactions"`
	StatusCounts        solana.StatusCounts            `json:"status_counts"`
	Network             *helius.NetworkStatus          `json:"network,omitempty"`
	Loading             bool                           `json:"loading"`
	IsFetchingMore      bool                           `json:"is_fetching_more"`
	HasMoreTransactions bool                           `json:"has_more_transactions"`
	Error               string                         `json:"error,omitempty"`
	LastSync            *time.Time                     `json:"last_sync,omitempty"`
}

// View returns a snapshot of the current state.
func (d *Dashboard) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()

	summary := portfolio.Summarize(d.tokens)
	gainers, losers := portfolio.Performance(d.tokens, MoversCount)

	v := View{
		Wallet:              d.session.wallet(),
		IsViewOnly:          d.session.viewOnly != "",
		WalletConnected:     d.session.signer != nil,
		HasAPIKey:           d.session.apiKey != "",
		KeyInitialized:      d.keyInitialized,
		Tokens:              slices.Clone(d.tokens),
		TotalValue:          summary.TotalValue,
		Change24h:           summary.Change24h,
		Allocation:          portfolio.Allocation(d.tokens),
		Gainers:             gainers,
		Losers:              losers,
		NFTs:                slices.Clone(d.nfts),
		Transactions:        slices.Clone(d.transactions),
		StatusCounts:        solana.CountStatuses(d.transactions),
		Loading:             d.loading,
		IsFetchingMore:      d.fetchingMore,
		HasMoreTransactions: d.hasMore,
		Error:               d.lastErr,
	}
	if d.network != nil {
		n := *d.network
		v.Network = &n
	}
	if d.lastSync != nil {
		t := *d.lastSync
		v.LastSync = &t
	}
	return v
}

// Transactions returns the loaded transactions matching f.
func (d *Dashboard) Transactions(f solana.TxFilter) []solana.ClassifiedTransaction {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return solana.FilterTransactions(d.transactions, f)
}

// Tokens returns the loaded tokens whose name or symbol matches q.
func (d *Dashboard) Tokens(q string) []portfolio.ValuedToken {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(portfolio.SearchTokens(d.tokens, q))
}

// Init loads the saved API key and revalidates it. A key that no longer
// validates is removed from the store.
func (d *Dashboard) Init(ctx context.Context) error {
	defer func() {
		d.mu.Lock()
		d.keyInitialized = true
		d.mu.Unlock()
	}()

	key, err := d.deps.Keys.Load(ctx)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	status, err := d.deps.Indexer.GetNetworkStatus(ctx, key)
	if err != nil {
		d.logger.WarnContext(ctx, "saved API key failed validation, removing it", "error", err)
		return d.deps.Keys.Clear(ctx)
	}

	d.mu.Lock()
	d.session.apiKey = key
	d.network = &status
	d.mu.Unlock()
	return nil
}

// SetAPIKey validates and stores key. An empty key clears the stored key.
func (d *Dashboard) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		if err := d.deps.Keys.Clear(ctx); err != nil {
			return err
		}
		d.mu.Lock()
		d.session.apiKey = ""
		d.network = nil
		d.mu.Unlock()
		d.logger.InfoContext(ctx, "API key cleared")
		return nil
	}

	if len(key) < MinAPIKeyLength {
		return ErrInvalidAPIKeyFormat
	}

	status, err := d.deps.Indexer.GetNetworkStatus(ctx, key)
	if err != nil {
		d.logger.WarnContext(ctx, "API key validation failed", "error", err)
		return errors.Join(ErrAPIKeyRejected, err)
	}
	if err := d.deps.Keys.Save(ctx, key); err != nil {
		return err
	}

	d.mu.Lock()
	d.session.apiKey = key
	d.network = &status
	d.mu.Unlock()
	d.logger.InfoContext(ctx, "API key validated and saved")
	return nil
}

// SetViewOnly shows address without a connected wallet. Any connected wallet
// is disconnected.
func (d *Dashboard) SetViewOnly(address string) error {
	pk, err := solana.ParseAddress(address)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	before := d.session.wallet()
	d.session.signer = nil
	d.session.viewOnly = pk.String()
	d.resetIfWalletChangedLocked(before)
	d.logger.Info("view-only mode enabled", "wallet", solana.ShortAddress(pk.String()))
	return nil
}

// ClearViewOnly leaves view-only mode.
func (d *Dashboard) ClearViewOnly() {
	d.mu.Lock()
	defer d.mu.Unlock()
	before := d.session.wallet()
	d.session.viewOnly = ""
	d.resetIfWalletChangedLocked(before)
}

// Connect attaches a signing wallet. A view-only address, if set, still
// takes precedence for display.
func (d *Dashboard) Connect(signer solana.Signer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	before := d.session.wallet()
	d.session.signer = signer
	d.resetIfWalletChangedLocked(before)
}

// Disconnect detaches the signing wallet.
func (d *Dashboard) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	before := d.session.wallet()
	d.session.signer = nil
	d.resetIfWalletChangedLocked(before)
}

// IsViewOnly reports whether transfers are blocked by view-only mode.
func (d *Dashboard) IsViewOnly() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session.viewOnly != ""
}

func (d *Dashboard) resetIfWalletChangedLocked(before string) {
	if d.session.wallet() != before {
		d.resetLocked()
	}
}

// resetLocked clears all wallet data. d.mu must be held.
func (d *Dashboard) resetLocked() {
	d.tokens = nil
	d.nfts = nil
	d.transactions = nil
	d.loading = false
	d.cursor = ""
	d.hasMore = true
	d.lastErr = ""
}
