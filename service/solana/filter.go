package solana

import (
	"strings"

	"github.com/samber/lo"
)

// TxFilter narrows a list of classified transactions.
// An empty Type or "all" matches every type; Query matches id, type or action
// case-insensitively.
type TxFilter struct {
	Type  string
	Query string
}

// FilterTransactions returns the transactions matching f, preserving order.
func FilterTransactions(txs []ClassifiedTransaction, f TxFilter) []ClassifiedTransaction {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	wantType := strings.ToLower(strings.TrimSpace(f.Type))

	return lo.Filter(txs, func(tx ClassifiedTransaction, _ int) bool {
		if wantType != "" && wantType != "all" && string(tx.Type) != wantType {
			return false
		}
		if query == "" {
			return true
		}
		return strings.Contains(strings.ToLower(tx.ID), query) ||
			strings.Contains(string(tx.Type), query) ||
			strings.Contains(strings.ToLower(tx.Action), query)
	})
}

// StatusCounts tallies transactions by status. Pending is always zero because
// the history API only returns landed transactions.
type StatusCounts struct {
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// CountStatuses tallies confirmed and failed transactions.
func CountStatuses(txs []ClassifiedTransaction) StatusCounts {
	return StatusCounts{
		Confirmed: lo.CountBy(txs, func(tx ClassifiedTransaction) bool { return tx.Status == StatusConfirmed }),
		Failed:    lo.CountBy(txs, func(tx ClassifiedTransaction) bool { return tx.Status == StatusFailed }),
	}
}
