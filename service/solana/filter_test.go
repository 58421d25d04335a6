package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleClassified() []ClassifiedTransaction {
	return []ClassifiedTransaction{
		{ID: "5xSend", Type: TxSend, Action: "to BBBB...klmn", Status: StatusConfirmed},
		{ID: "3qSwap", Type: TxSwap, Action: "Token Swap", Status: StatusConfirmed},
		{ID: "9zStake", Type: TxStake, Action: "Stake SOL", Status: StatusFailed},
		{ID: "7rRecv", Type: TxReceive, Action: "from AAAA...wxyz", Status: StatusConfirmed},
	}
}

func TestFilterTransactions(t *testing.T) {
	txs := sampleClassified()

	tests := []struct {
		name    string
		filter  TxFilter
		wantIDs []string
	}{
		{name: "no filter", filter: TxFilter{}, wantIDs: []string{"5xSend", "3qSwap", "9zStake", "7rRecv"}},
		{name: "all type", filter: TxFilter{Type: "all"}, wantIDs: []string{"5xSend", "3qSwap", "9zStake", "7rRecv"}},
		{name: "by type", filter: TxFilter{Type: "swap"}, wantIDs: []string{"3qSwap"}},
		{name: "search action case-insensitive", filter: TxFilter{Query: "stake sol"}, wantIDs: []string{"9zStake"}},
		{name: "search id", filter: TxFilter{Query: "7RRE"}, wantIDs: []string{"7rRecv"}},
		{name: "search type", filter: TxFilter{Query: "receive"}, wantIDs: []string{"7rRecv"}},
		{name: "type and query", filter: TxFilter{Type: "send", Query: "swap"}, wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterTransactions(txs, tt.filter)
			ids := make([]string, 0, len(got))
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestCountStatuses(t *testing.T) {
	got := CountStatuses(sampleClassified())
	assert.Equal(t, StatusCounts{Confirmed: 3, Failed: 1, Pending: 0}, got)

	assert.Equal(t, StatusCounts{}, CountStatuses(nil))
}
