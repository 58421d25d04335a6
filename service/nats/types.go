package nats

import (
	"time"

	"github.com/brojonat/solboard/service/solana"
	"github.com/google/uuid"
)

// ActivityEvent is one classified transaction published for a wallet.
// It is published to the subject "activity.{wallet}".
type ActivityEvent struct {
	ID        string          `json:"id"`
	Wallet    string          `json:"wallet"`
	Signature string          `json:"signature"`
	Type      solana.TxType   `json:"type"`
	Action    string          `json:"action"`
	Amount    string          `json:"amount,omitempty"`
	Fee       string          `json:"fee"`
	Status    solana.TxStatus `json:"status"`

	// BlockTime is zero when the indexer did not report one.
	BlockTime   time.Time `json:"block_time"`
	PublishedAt time.Time `json:"published_at"`
}

// NewActivityEvents converts a page of classified transactions into events.
func NewActivityEvents(wallet string, txs []solana.ClassifiedTransaction, now time.Time) []ActivityEvent {
	events := make([]ActivityEvent, 0, len(txs))
	for _, tx := range txs {
		ev := ActivityEvent{
			ID:          uuid.NewString(),
			Wallet:      wallet,
			Signature:   tx.Signature,
			Type:        tx.Type,
			Action:      tx.Action,
			Amount:      tx.Amount,
			Fee:         tx.Fee,
			Status:      tx.Status,
			PublishedAt: now.UTC(),
		}
		if tx.Timestamp > 0 {
			ev.BlockTime = time.Unix(tx.Timestamp, 0).UTC()
		}
		events = append(events, ev)
	}
	return events
}

// Subject returns the subject events for wallet are published on.
func Subject(wallet string) string {
	return SubjectPrefix + wallet
}

// SubjectFilter returns the subscription filter for wallet, or for every
// wallet when wallet is empty.
func SubjectFilter(wallet string) string {
	if wallet == "" {
		return StreamSubjects
	}
	return Subject(wallet)
}

// dedupID identifies a transaction across refreshes so JetStream drops repeats.
func dedupID(ev ActivityEvent) string {
	return ev.Wallet + ":" + ev.Signature
}
