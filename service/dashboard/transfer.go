package dashboard

import (
	"context"

	"github.com/brojonat/solboard/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// SendSOL transfers amount SOL from the connected wallet to recipient and
// returns the confirmed signature. Input is validated before any network call.
func (d *Dashboard) SendSOL(ctx context.Context, recipient, amount string) (string, error) {
	d.mu.RLock()
	viewOnly, signer := d.session.viewOnly != "", d.session.signer
	d.mu.RUnlock()

	switch {
	case viewOnly:
		return "", ErrViewOnly
	case signer == nil:
		return "", ErrWalletNotConnected
	case d.deps.Transfers == nil:
		return "", ErrTransfersDisabled
	}

	to, lamports, err := solana.ValidateTransfer(recipient, amount)
	if err != nil {
		return "", err
	}

	sig, err := d.deps.Transfers.SendSOL(ctx, signer, to, lamports)
	if err != nil {
		d.logger.ErrorContext(ctx, "transfer failed",
			"to", to.String(),
			"lamports", lamports,
			"error", err,
		)
		if sig == (solanago.Signature{}) {
			return "", err
		}
		return sig.String(), err
	}
	return sig.String(), nil
}
