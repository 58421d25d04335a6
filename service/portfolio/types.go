package portfolio

import "github.com/shopspring/decimal"

const (
	// SOLMint is the wrapped SOL mint, used as the id of the native balance.
	SOLMint = "So11111111111111111111111111111111111111112"
	// SOLLogo is the token-list logo for native SOL.
	SOLLogo = "https://raw.githubusercontent.com/solana-labs/token-list/main/assets/mainnet/So11111111111111111111111111111111111111112/logo.png"

	lamportsPerSOL = 1_000_000_000
)

// RawAsset is a fungible token holding before decimal adjustment.
type RawAsset struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	RawBalance decimal.Decimal `json:"raw_balance"`
	Decimals   int             `json:"decimals"`
	Image      string          `json:"image,omitempty"`
}

// Holdings is everything a wallet owns that can be valued: its native
// lamport balance and its fungible token balances.
type Holdings struct {
	NativeLamports int64      `json:"native_lamports"`
	Fungible       []RawAsset `json:"fungible"`
}

// PriceQuote is a USD quote for one asset id.
type PriceQuote struct {
	USDPrice       float64 `json:"usd_price"`
	PriceChange24h float64 `json:"price_change_24h"`
}

// ValuedToken is a holding joined with its price.
type ValuedToken struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Balance   float64 `json:"balance"`
	Price     float64 `json:"price"`
	Value     float64 `json:"value"`
	Change24h float64 `json:"change_24h"`
	Image     string  `json:"image,omitempty"`
}

// Summary is the portfolio-level rollup of a token list.
type Summary struct {
	TotalValue float64 `json:"total_value"`
	Change24h  float64 `json:"change_24h"`
	TokenCount int     `json:"token_count"`
}

// AllocationSlice is one segment of the allocation breakdown.
type AllocationSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// NFT is a non-fungible asset that has an image to display.
type NFT struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	Image      string `json:"image"`
	Collection string `json:"collection,omitempty"`
}
