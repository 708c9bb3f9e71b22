// Package payment adapts external settlement backends to one Oracle
// interface. Each backend is a variant selected by Kind; callers never
// branch on the concrete type.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
)

// Kind tags a settlement backend.
type Kind string

const (
	// KindInvoice settles through a Lightning invoice on an LND node.
	KindInvoice Kind = "invoice"
	// KindOwnership treats ownership of the content's NFT as payment.
	KindOwnership Kind = "ownership"
	// KindSponsored mints the content's NFT through a paymaster relay and
	// waits for Starknet finality.
	KindSponsored Kind = "sponsored"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindInvoice, KindOwnership, KindSponsored:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown payment backend %q", common.ErrorInput, s)
}

// UsesPayer reports whether settlement is bound to the payer identity, so
// that key release must be re-verified against the requester.
func (k Kind) UsesPayer() bool {
	return k == KindOwnership || k == KindSponsored
}

// Settlement is the backend's current view of an intent. Settled and Failed
// are never both true; neither means still pending.
type Settlement struct {
	Settled bool
	Failed  bool
	Reason  string
}

// Oracle creates payment intents and reports their settlement.
//
// Transient failures (network, timeouts, 5xx, 429) are returned as errors
// wrapping common.ErrorExternalBackend and must never be read as Failed.
type Oracle interface {
	Kind() Kind
	CreateIntent(ctx context.Context, contentID, payer string) (*models.PaymentIntent, error)
	PollSettlement(ctx context.Context, intent *models.PaymentIntent) (Settlement, error)
}

type Config struct {
	Backend Kind

	LNDURL           string
	LNDMacaroonHex   string
	LNDTLSCertBase64 string
	InvoiceAmountSat int64

	StarknetRPCURL string
	NFTContract    string
	RelayURL       string
	RelayAPIKey    string

	Retries int
	Timeout time.Duration
}

// New builds the Oracle selected by cfg.Backend.
func New(cfg Config, logger logging.Logger) (Oracle, error) {
	switch cfg.Backend {
	case KindInvoice:
		return NewInvoiceOracle(cfg, logger)
	case KindOwnership:
		return NewOwnershipOracle(cfg, logger)
	case KindSponsored:
		return NewSponsoredOracle(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown payment backend %q", common.ErrorInput, cfg.Backend)
	}
}

func newIntent(kind Kind, contentID, ref, request, payer string) *models.PaymentIntent {
	now := time.Now().UTC()
	return &models.PaymentIntent{
		ContentID:      contentID,
		Backend:        string(kind),
		ExternalRef:    ref,
		PaymentRequest: request,
		Payer:          payer,
		Status:         models.IntentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
