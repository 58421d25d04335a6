package portfolio

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Aggregate joins holdings with price quotes and returns valued tokens sorted
// by value, highest first. Native SOL is always the first candidate so it
// stays ahead of equally valued tokens. A missing quote values a token at zero.
func Aggregate(h Holdings, quotes map[string]PriceQuote) []ValuedToken {
	tokens := make([]ValuedToken, 0, len(h.Fungible)+1)

	tokens = append(tokens, priced(ValuedToken{
		ID:      SOLMint,
		Symbol:  "SOL",
		Name:    "Solana",
		Balance: float64(h.NativeLamports) / lamportsPerSOL,
		Image:   SOLLogo,
	}, quotes))

	for _, a := range h.Fungible {
		tokens = append(tokens, priced(ValuedToken{
			ID:      a.ID,
			Symbol:  a.Symbol,
			Name:    a.Name,
			Balance: TokenBalance(a),
			Image:   a.Image,
		}, quotes))
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Value > tokens[j].Value
	})
	return tokens
}

// TokenBalance adjusts a raw balance by the asset's decimals. Assets that do
// not declare decimals report a zero balance.
func TokenBalance(a RawAsset) float64 {
	if a.Decimals <= 0 {
		return 0
	}
	return a.RawBalance.Shift(int32(-a.Decimals)).InexactFloat64()
}

func priced(t ValuedToken, quotes map[string]PriceQuote) ValuedToken {
	q := quotes[t.ID]
	t.Price = q.USDPrice
	t.Change24h = q.PriceChange24h
	t.Value = t.Balance * t.Price
	if t.Value < 0 {
		t.Value = 0
	}
	return t
}

// PriceIDs returns the ids to quote for h: the SOL mint followed by each
// fungible asset, without duplicates.
func PriceIDs(h Holdings) []string {
	ids := append([]string{SOLMint}, lo.Map(h.Fungible, func(a RawAsset, _ int) string { return a.ID })...)
	return lo.Uniq(ids)
}

// Summarize totals the portfolio value and computes the value-weighted 24h change.
func Summarize(tokens []ValuedToken) Summary {
	total := lo.SumBy(tokens, func(t ValuedToken) float64 { return t.Value })
	weighted := lo.SumBy(tokens, func(t ValuedToken) float64 { return t.Value * t.Change24h })

	s := Summary{TotalValue: total, TokenCount: len(tokens)}
	if total > 0 {
		s.Change24h = weighted / total
	}
	return s
}

const allocationSlices = 6

// Allocation returns the largest holdings by value as chart slices, plus an
// "Others" slice for the remainder. Values are rounded to cents.
func Allocation(tokens []ValuedToken) []AllocationSlice {
	sorted := sortedBy(tokens, func(a, b ValuedToken) bool { return a.Value > b.Value })

	top := sorted[:min(allocationSlices, len(sorted))]
	rest := sorted[len(top):]

	slices := lo.FilterMap(top, func(t ValuedToken, _ int) (AllocationSlice, bool) {
		return AllocationSlice{Name: t.Symbol, Value: cents(t.Value)}, t.Value > 0
	})
	if other := lo.SumBy(rest, func(t ValuedToken) float64 { return t.Value }); other > 0 {
		slices = append(slices, AllocationSlice{Name: "Others", Value: cents(other)})
	}
	return slices
}

// Performance returns up to n tokens with the largest positive 24h change and
// up to n with the largest negative change.
func Performance(tokens []ValuedToken, n int) (gainers, losers []ValuedToken) {
	up := lo.Filter(tokens, func(t ValuedToken, _ int) bool { return t.Change24h > 0 })
	down := lo.Filter(tokens, func(t ValuedToken, _ int) bool { return t.Change24h < 0 })

	gainers = sortedBy(up, func(a, b ValuedToken) bool { return a.Change24h > b.Change24h })
	losers = sortedBy(down, func(a, b ValuedToken) bool { return a.Change24h < b.Change24h })
	return gainers[:min(n, len(gainers))], losers[:min(n, len(losers))]
}

// SearchTokens matches q against token names and symbols, case-insensitively.
func SearchTokens(tokens []ValuedToken, q string) []ValuedToken {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return tokens
	}
	return lo.Filter(tokens, func(t ValuedToken, _ int) bool {
		return strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Symbol), q)
	})
}

func sortedBy(tokens []ValuedToken, less func(a, b ValuedToken) bool) []ValuedToken {
	out := make([]ValuedToken, len(tokens))
	copy(out, tokens)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func cents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
