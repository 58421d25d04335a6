package solana

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidRecipient = errors.New("invalid recipient address")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrConfirmTimeout   = errors.New("transaction was not confirmed in time")
)

// Signer signs transaction messages on behalf of a wallet.
// solana.PrivateKey satisfies it.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(payload []byte) (solana.Signature, error)
}

// LoadKeypair reads a solana-keygen JSON keypair file.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return key, nil
}

// ParseAddress validates a base58 Solana public key.
func ParseAddress(addr string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(addr))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return pk, nil
}

// ValidateTransfer checks user input before any network call and returns the
// recipient key and the lamport amount, floor(amount * 1e9).
func ValidateTransfer(recipient, amount string) (solana.PublicKey, uint64, error) {
	to, err := solana.PublicKeyFromBase58(strings.TrimSpace(recipient))
	if err != nil {
		return solana.PublicKey{}, 0, ErrInvalidRecipient
	}

	sol, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return solana.PublicKey{}, 0, ErrInvalidAmount
	}
	lamports := sol.Shift(9).Floor()
	if !lamports.IsPositive() || !lamports.BigInt().IsUint64() {
		return solana.PublicKey{}, 0, ErrInvalidAmount
	}
	return to, lamports.BigInt().Uint64(), nil
}

// TransferClient submits native SOL transfers and waits for confirmation.
type TransferClient struct {
	rpc            RPCClient
	logger         *slog.Logger
	metrics        *metrics.Metrics
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// NewTransferClient creates a TransferClient. A zero confirmTimeout defaults to 60s.
func NewTransferClient(rpcClient RPCClient, confirmTimeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *TransferClient {
	if confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TransferClient{
		rpc:            rpcClient,
		logger:         logger,
		metrics:        m,
		confirmTimeout: confirmTimeout,
		pollInterval:   500 * time.Millisecond,
	}
}

// BuildTransfer creates an unsigned system transfer paid by from.
func BuildTransfer(from, to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	return solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		blockhash,
		solana.TransactionPayer(from),
	)
}

// SendSOL transfers lamports from the signer to the recipient and blocks until
// the transaction reaches "confirmed" commitment.
func (c *TransferClient) SendSOL(ctx context.Context, signer Signer, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.send(ctx, signer, to, lamports)
	if err != nil {
		c.metrics.RecordTransfer("error")
		return sig, err
	}
	c.metrics.RecordTransfer("success")
	return sig, nil
}

func (c *TransferClient) send(ctx context.Context, signer Signer, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	from := signer.PublicKey()

	start := time.Now()
	latest, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	c.recordCall("getLatestBlockhash", err, start)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if latest == nil || latest.Value == nil {
		return solana.Signature{}, errors.New("failed to get latest blockhash: empty result")
	}

	tx, err := BuildTransfer(from, to, lamports, latest.Value.Blockhash)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transfer: %w", err)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to encode message: %w", err)
	}
	signature, err := signer.Sign(msg)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transfer: %w", err)
	}
	tx.Signatures = []solana.Signature{signature}

	start = time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx)
	c.recordCall("sendTransaction", err, start)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.InfoContext(ctx, "transfer submitted",
		"from", from.String(),
		"to", to.String(),
		"lamports", lamports,
		"signature", sig.String(),
	)

	if err := c.confirm(ctx, sig); err != nil {
		return sig, err
	}

	c.logger.InfoContext(ctx, "transfer confirmed", "signature", sig.String())
	return sig, nil
}

// confirm polls the signature status until it is confirmed or finalized.
func (c *TransferClient) confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		c.recordCall("getSignatureStatuses", err, start)
		if err != nil {
			c.logger.WarnContext(ctx, "failed to get signature status",
				"signature", sig.String(),
				"error", err,
			)
		} else if out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrConfirmTimeout, sig)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *TransferClient) recordCall(method string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordUpstreamCall("solana", method, status, time.Since(start).Seconds())
}
