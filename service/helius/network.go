package helius

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// SlotsPerEpoch is the mainnet epoch length used for epoch progress.
const SlotsPerEpoch = 432_000

// NetworkStatus is the cluster epoch summary shown on the dashboard.
type NetworkStatus struct {
	AbsoluteSlot             uint64  `json:"absolute_slot"`
	BlockHeight              uint64  `json:"block_height"`
	Epoch                    uint64  `json:"epoch"`
	TransactionCount         uint64  `json:"transaction_count"`
	TransactionCountBillions string  `json:"transaction_count_billions"`
	SlotIndex                uint64  `json:"slot_index"`
	SlotsInEpoch             uint64  `json:"slots_in_epoch"`
	EpochProgress            float64 `json:"epoch_progress"`
}

type epochInfo struct {
	AbsoluteSlot     uint64 `json:"absoluteSlot"`
	BlockHeight      uint64 `json:"blockHeight"`
	Epoch            uint64 `json:"epoch"`
	SlotIndex        uint64 `json:"slotIndex"`
	SlotsInEpoch     uint64 `json:"slotsInEpoch"`
	TransactionCount uint64 `json:"transactionCount"`
}

// GetNetworkStatus calls getEpochInfo. It doubles as the API key check: any
// error means the key cannot be trusted.
func (c *Client) GetNetworkStatus(ctx context.Context, apiKey string) (NetworkStatus, error) {
	var info epochInfo
	if err := c.call(ctx, apiKey, "getEpochInfo", nil, &info); err != nil {
		return NetworkStatus{}, fmt.Errorf("fetching epoch info: %w", err)
	}
	return newNetworkStatus(info), nil
}

func newNetworkStatus(info epochInfo) NetworkStatus {
	slotIndex := info.AbsoluteSlot % SlotsPerEpoch
	return NetworkStatus{
		AbsoluteSlot:             info.AbsoluteSlot,
		BlockHeight:              info.BlockHeight,
		Epoch:                    info.Epoch,
		TransactionCount:         info.TransactionCount,
		TransactionCountBillions: decimal.NewFromInt(int64(info.TransactionCount)).Shift(-9).StringFixed(2),
		SlotIndex:                slotIndex,
		SlotsInEpoch:             SlotsPerEpoch,
		EpochProgress:            float64(slotIndex) / SlotsPerEpoch * 100,
	}
}
