package solana

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// TxType is the wallet-relative kind of a classified transaction.
type TxType string

const (
	TxSend    TxType = "send"
	TxReceive TxType = "receive"
	TxSwap    TxType = "swap"
	TxStake   TxType = "stake"
	TxUnstake TxType = "unstake"
	TxUnknown TxType = "unknown"
)

// TxStatus is the confirmation status of a classified transaction.
type TxStatus string

const (
	StatusConfirmed TxStatus = "confirmed"
	StatusFailed    TxStatus = "failed"
	StatusUnknown   TxStatus = "unknown"
)

// RawTransfer is one token or native transfer leg of an enhanced transaction.
// Token transfers carry TokenAmount and Mint; native transfers carry Amount in lamports.
type RawTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Amount          int64   `json:"amount"`
	TokenAmount     float64 `json:"tokenAmount"`
	Mint            string  `json:"mint"`
}

// RawTransaction is a transaction record as returned by the enhanced
// transactions API. It is never modified after decoding.
type RawTransaction struct {
	Signature        string          `json:"signature"`
	Timestamp        Timestamp       `json:"timestamp"`
	Type             string          `json:"type"`
	Source           string          `json:"source"`
	Description      string          `json:"description"`
	Fee              int64           `json:"fee"`
	TransactionError json.RawMessage `json:"transactionError,omitempty"`
	TokenTransfers   []RawTransfer   `json:"tokenTransfers"`
	NativeTransfers  []RawTransfer   `json:"nativeTransfers"`
}

// Failed reports whether the transaction carries an error marker.
func (tx RawTransaction) Failed() bool {
	trimmed := bytes.TrimSpace(tx.TransactionError)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Shape is the coarse kind of a raw transaction used to pick a classification rule.
type Shape int

const (
	ShapeOther Shape = iota
	ShapeTransfer
	ShapeSwap
	ShapeStake
)

// Shape returns the first matching shape in precedence order:
// transfer, then swap, then stake.
func (tx RawTransaction) Shape() Shape {
	switch {
	case tx.Type == "TRANSFER":
		return ShapeTransfer
	case tx.Source == "JUPITER" || tx.Type == "SWAP":
		return ShapeSwap
	case tx.Source == "STAKE_PROGRAM":
		return ShapeStake
	default:
		return ShapeOther
	}
}

// ClassifiedTransaction is the wallet-relative view of a RawTransaction.
type ClassifiedTransaction struct {
	ID        string   `json:"id"`
	Type      TxType   `json:"type"`
	Action    string   `json:"action"`
	Amount    string   `json:"amount"`
	Timestamp int64    `json:"timestamp"`
	Signature string   `json:"signature"`
	Fee       string   `json:"fee"`
	Status    TxStatus `json:"status"`
}

// Timestamp is a unix-seconds time that decodes from either a JSON number
// or a date string.
type Timestamp int64

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*t = 0
		return nil
	}

	if s[0] != '"' {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", s, err)
		}
		*t = Timestamp(int64(f))
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if n, err := strconv.ParseInt(str, 10, 64); err == nil {
		*t = Timestamp(n)
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, str); err == nil {
			*t = Timestamp(parsed.Unix())
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", str)
}

// Time returns the timestamp as a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}
