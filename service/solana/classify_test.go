package solana

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "AAAA1111111111111111111111111111111111wxyz"
	walletB = "BBBB2222222222222222222222222222222222klmn"
)

func TestClassify_NativeSend(t *testing.T) {
	tx := RawTransaction{
		Signature: "sig1",
		Timestamp: 1700000000,
		Type:      "TRANSFER",
		NativeTransfers: []RawTransfer{
			{FromUserAccount: "A", ToUserAccount: "B", Amount: 1_000_000_000},
		},
	}

	got := Classify(tx, "A")

	assert.Equal(t, TxSend, got.Type)
	assert.Equal(t, "-1.0000 SOL", got.Amount)
	assert.Equal(t, "to B...B", got.Action)
	assert.Equal(t, "sig1", got.ID)
	assert.Equal(t, "sig1", got.Signature)
	assert.Equal(t, int64(1700000000), got.Timestamp)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, "0 SOL", got.Fee)
}

func TestClassify_NativeReceiveShortensCounterparty(t *testing.T) {
	tx := RawTransaction{
		Type: "TRANSFER",
		NativeTransfers: []RawTransfer{
			{FromUserAccount: walletB, ToUserAccount: walletA, Amount: 250_000_000},
		},
	}

	got := Classify(tx, walletA)

	assert.Equal(t, TxReceive, got.Type)
	assert.Equal(t, "+0.2500 SOL", got.Amount)
	assert.Equal(t, "from BBBB...klmn", got.Action)
}

func TestClassify_TransferDescriptionWins(t *testing.T) {
	tx := RawTransaction{
		Type:        "TRANSFER",
		Description: "A transferred 1 SOL to B",
		NativeTransfers: []RawTransfer{
			{FromUserAccount: walletA, ToUserAccount: walletB, Amount: 1_000_000_000},
		},
	}

	got := Classify(tx, walletA)

	assert.Equal(t, TxSend, got.Type)
	assert.Equal(t, "A transferred 1 SOL to B", got.Action)
}

func TestClassify_TokenTransferPreferredOverNative(t *testing.T) {
	tx := RawTransaction{
		Type: "TRANSFER",
		TokenTransfers: []RawTransfer{
			{FromUserAccount: walletB, ToUserAccount: walletA, TokenAmount: 12.5, Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
		},
		NativeTransfers: []RawTransfer{
			{FromUserAccount: walletA, ToUserAccount: walletB, Amount: 5000},
		},
	}

	got := Classify(tx, walletA)

	assert.Equal(t, TxReceive, got.Type)
	assert.Equal(t, "+12.5000 Token", got.Amount)
}

func TestClassify_TokenTransferWithoutTokenAmountFallsBackToLamports(t *testing.T) {
	tx := RawTransaction{
		Type: "TRANSFER",
		TokenTransfers: []RawTransfer{
			{FromUserAccount: walletA, ToUserAccount: walletB, Amount: 3_000_000_000, Mint: "mint"},
		},
	}

	got := Classify(tx, walletA)

	assert.Equal(t, "-3.0000 Token", got.Amount)
}

func TestClassify_AmountRoundsHalfUp(t *testing.T) {
	tx := RawTransaction{
		Type: "TRANSFER",
		TokenTransfers: []RawTransfer{
			{FromUserAccount: walletB, ToUserAccount: walletA, TokenAmount: 0.03125, Mint: "mint"},
		},
	}

	assert.Equal(t, "+0.0313 Token", Classify(tx, walletA).Amount)
}

func TestClassify_AmountRoundsBinaryValue(t *testing.T) {
	// 2.00025 is stored as 2.000249999..., so it rounds down.
	tx := RawTransaction{
		Type: "TRANSFER",
		TokenTransfers: []RawTransfer{
			{FromUserAccount: walletA, ToUserAccount: walletB, TokenAmount: 2.00025, Mint: "mint"},
		},
	}

	assert.Equal(t, "-2.0002 Token", Classify(tx, walletA).Amount)
}

func TestClassify_TransferNotTouchingWallet(t *testing.T) {
	tx := RawTransaction{
		Type: "TRANSFER",
		NativeTransfers: []RawTransfer{
			{FromUserAccount: walletB, ToUserAccount: "someone", Amount: 1},
		},
	}

	got := Classify(tx, walletA)
	assert.Equal(t, TxUnknown, got.Type)
	assert.Equal(t, "", got.Amount)
	assert.Equal(t, "Unknown Transaction", got.Action)

	tx.Description = "B sent funds elsewhere"
	got = Classify(tx, walletA)
	assert.Equal(t, TxUnknown, got.Type)
	assert.Equal(t, "B sent funds elsewhere", got.Action)
}

func TestClassify_EmptyWalletMatchesNothing(t *testing.T) {
	tx := RawTransaction{
		Type:            "TRANSFER",
		NativeTransfers: []RawTransfer{{ToUserAccount: walletB, Amount: 1}},
	}

	assert.Equal(t, TxUnknown, Classify(tx, "").Type)
}

func TestClassify_Swap(t *testing.T) {
	tests := []struct {
		name       string
		tx         RawTransaction
		wantAction string
	}{
		{
			name:       "jupiter source",
			tx:         RawTransaction{Type: "UNKNOWN", Source: "JUPITER"},
			wantAction: "Token Swap",
		},
		{
			name:       "swap type",
			tx:         RawTransaction{Type: "SWAP", Source: "RAYDIUM", Description: "swapped 1 SOL for 150 USDC"},
			wantAction: "swapped 1 SOL for 150 USDC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.tx, walletA)
			assert.Equal(t, TxSwap, got.Type)
			assert.Equal(t, tt.wantAction, got.Action)
			assert.Equal(t, "", got.Amount)
		})
	}
}

func TestClassify_TransferTakesPrecedenceOverSwapSource(t *testing.T) {
	tx := RawTransaction{
		Type:   "TRANSFER",
		Source: "JUPITER",
		NativeTransfers: []RawTransfer{
			{FromUserAccount: walletA, ToUserAccount: walletB, Amount: 1_000_000_000},
		},
	}

	assert.Equal(t, TxSend, Classify(tx, walletA).Type)
}

func TestClassify_Stake(t *testing.T) {
	tests := []struct {
		name       string
		rawType    string
		desc       string
		wantType   TxType
		wantAction string
	}{
		{name: "delegate", rawType: "STAKE_DELEGATE", wantType: TxStake, wantAction: "Stake SOL"},
		{name: "delegate mixed case", rawType: "reDelegate", wantType: TxStake, wantAction: "Stake SOL"},
		{name: "withdraw", rawType: "WITHDRAW", wantType: TxUnstake, wantAction: "Unstake SOL"},
		{name: "description wins", rawType: "DEACTIVATE", desc: "deactivated stake", wantType: TxUnstake, wantAction: "deactivated stake"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := RawTransaction{
				Type:        tt.rawType,
				Source:      "STAKE_PROGRAM",
				Description: tt.desc,
				NativeTransfers: []RawTransfer{
					{FromUserAccount: walletA, ToUserAccount: walletB, Amount: 1_500_000_000},
					{FromUserAccount: walletA, ToUserAccount: walletB, Amount: 500_000_000},
				},
			}

			got := Classify(tx, walletA)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantAction, got.Action)
			assert.Equal(t, "2.0000 SOL", got.Amount)
		})
	}
}

func TestClassify_FallbackUsesDescription(t *testing.T) {
	got := Classify(RawTransaction{Type: "NFT_SALE", Description: "sold an NFT"}, walletA)
	assert.Equal(t, TxUnknown, got.Type)
	assert.Equal(t, "sold an NFT", got.Action)

	got = Classify(RawTransaction{Type: "NFT_SALE"}, walletA)
	assert.Equal(t, "Unknown Transaction", got.Action)
}

func TestClassify_Status(t *testing.T) {
	failed := RawTransaction{TransactionError: json.RawMessage(`{"InstructionError":[0,"Custom"]}`)}
	assert.Equal(t, StatusFailed, Classify(failed, walletA).Status)

	nullErr := RawTransaction{TransactionError: json.RawMessage(`null`)}
	assert.Equal(t, StatusConfirmed, Classify(nullErr, walletA).Status)
}

func TestFormatFee(t *testing.T) {
	assert.Equal(t, "0 SOL", FormatFee(0))
	assert.Equal(t, "0.000005000 SOL", FormatFee(5000))
	assert.Equal(t, "1.500000000 SOL", FormatFee(1_500_000_000))
}

func TestClassify_Idempotent(t *testing.T) {
	tx := RawTransaction{
		Signature: "sig",
		Type:      "TRANSFER",
		Fee:       5000,
		NativeTransfers: []RawTransfer{
			{FromUserAccount: walletA, ToUserAccount: walletB, Amount: 42},
		},
	}

	first, err := json.Marshal(Classify(tx, walletA))
	require.NoError(t, err)
	second, err := json.Marshal(Classify(tx, walletA))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "AAAA...wxyz", ShortAddress(walletA))
	assert.Equal(t, "B...B", ShortAddress("B"))
	assert.Equal(t, "...", ShortAddress(""))
}

func TestRawTransaction_DecodeHeliusPayload(t *testing.T) {
	payload := `{
		"signature": "5h6x",
		"timestamp": 1700000123,
		"type": "TRANSFER",
		"source": "SYSTEM_PROGRAM",
		"description": "",
		"fee": 5000,
		"transactionError": null,
		"tokenTransfers": [],
		"nativeTransfers": [{"fromUserAccount": "A", "toUserAccount": "B", "amount": 2000000000}]
	}`

	var tx RawTransaction
	require.NoError(t, json.Unmarshal([]byte(payload), &tx))

	got := Classify(tx, "B")
	assert.Equal(t, TxReceive, got.Type)
	assert.Equal(t, "+2.0000 SOL", got.Amount)
	assert.Equal(t, "0.000005000 SOL", got.Fee)
	assert.Equal(t, int64(1700000123), got.Timestamp)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Timestamp
	}{
		{in: `1700000000`, want: 1700000000},
		{in: `"1700000000"`, want: 1700000000},
		{in: `"2023-11-14T22:13:20Z"`, want: 1700000000},
		{in: `"2023-11-14"`, want: 1699920000},
		{in: `null`, want: 0},
	}
	for _, tt := range tests {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(tt.in), &ts), tt.in)
		assert.Equal(t, tt.want, ts, tt.in)
	}

	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
