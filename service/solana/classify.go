package solana

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	unknownAction = "Unknown Transaction"
	swapAction    = "Token Swap"
	stakeAction   = "Stake SOL"
	unstakeAction = "Unstake SOL"
)

// Classify maps a raw transaction to its wallet-relative view.
// It never fails: missing data falls back to the "unknown" defaults.
func Classify(tx RawTransaction, wallet string) ClassifiedTransaction {
	out := ClassifiedTransaction{
		ID:        tx.Signature,
		Signature: tx.Signature,
		Timestamp: int64(tx.Timestamp),
		Type:      TxUnknown,
		Action:    orDefault(tx.Description, unknownAction),
		Status:    StatusConfirmed,
	}
	if tx.Failed() {
		out.Status = StatusFailed
	}

	switch tx.Shape() {
	case ShapeTransfer:
		classifyTransfer(tx, wallet, &out)
	case ShapeSwap:
		out.Type = TxSwap
		out.Action = orDefault(tx.Description, swapAction)
	case ShapeStake:
		classifyStake(tx, &out)
	}

	if out.Action == unknownAction && tx.Description != "" {
		out.Action = tx.Description
	}
	out.Fee = FormatFee(tx.Fee)
	return out
}

// ClassifyAll classifies txs in order for the same wallet.
func ClassifyAll(txs []RawTransaction, wallet string) []ClassifiedTransaction {
	return lo.Map(txs, func(tx RawTransaction, _ int) ClassifiedTransaction {
		return Classify(tx, wallet)
	})
}

func classifyTransfer(tx RawTransaction, wallet string, out *ClassifiedTransaction) {
	transfer, ok := findWalletTransfer(tx, wallet)
	if !ok {
		return
	}

	isSender := transfer.FromUserAccount == wallet
	counterparty := transfer.FromUserAccount
	sign, label := "+", "from "
	out.Type = TxReceive
	if isSender {
		counterparty = transfer.ToUserAccount
		sign, label = "-", "to "
		out.Type = TxSend
	}

	symbol := "SOL"
	if transfer.Mint != "" {
		symbol = "Token"
	}
	out.Amount = sign + toFixed(transferValue(transfer), 4) + " " + symbol
	out.Action = orDefault(tx.Description, label+ShortAddress(counterparty))
}

// findWalletTransfer returns the first token transfer touching wallet, else the
// first native transfer touching wallet.
func findWalletTransfer(tx RawTransaction, wallet string) (RawTransfer, bool) {
	if wallet == "" {
		return RawTransfer{}, false
	}
	touches := func(t RawTransfer) bool {
		return t.FromUserAccount == wallet || t.ToUserAccount == wallet
	}
	if t, ok := lo.Find(tx.TokenTransfers, touches); ok {
		return t, true
	}
	return lo.Find(tx.NativeTransfers, touches)
}

// transferValue prefers the token-denominated amount and falls back to lamports.
func transferValue(t RawTransfer) float64 {
	if t.TokenAmount != 0 {
		return t.TokenAmount
	}
	return float64(t.Amount) / 1e9
}

func classifyStake(tx RawTransaction, out *ClassifiedTransaction) {
	out.Type = TxUnstake
	fallback := unstakeAction
	if strings.Contains(strings.ToLower(tx.Type), "delegate") {
		out.Type = TxStake
		fallback = stakeAction
	}

	lamports := lo.SumBy(tx.NativeTransfers, func(t RawTransfer) int64 { return t.Amount })
	out.Amount = toFixed(float64(lamports)/1e9, 4) + " SOL"
	out.Action = orDefault(tx.Description, fallback)
}

// FormatFee renders a lamport fee as SOL with nine decimals, or "0 SOL".
func FormatFee(lamports int64) string {
	if lamports <= 0 {
		return "0 SOL"
	}
	return toFixed(float64(lamports)/1e9, 9) + " SOL"
}

// toFixed formats v with the given decimals, rounding half away from zero on
// the exact binary value of v rather than its shortest decimal form.
func toFixed(v float64, places int32) string {
	exact, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', 30, 64))
	if err != nil {
		return decimal.NewFromFloat(v).StringFixed(places)
	}
	return exact.StringFixed(places)
}

// ShortAddress keeps the first and last four characters of an address.
func ShortAddress(addr string) string {
	head := addr[:min(4, len(addr))]
	tail := addr[max(0, len(addr)-4):]
	return head + "..." + tail
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
