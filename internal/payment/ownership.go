package payment

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
)

// OwnershipOracle considers a content id paid once the payer owns the NFT
// whose u256 token id equals the content id. It creates nothing externally.
type OwnershipOracle struct {
	contract string
	rpc      *starknetRPC
	logger   logging.Logger
}

func NewOwnershipOracle(cfg Config, logger logging.Logger) (*OwnershipOracle, error) {
	if cfg.StarknetRPCURL == "" {
		return nil, fmt.Errorf("%w: starknet rpc url is required", common.ErrorInput)
	}
	if !validFelt(cfg.NFTContract) || cfg.NFTContract == "" {
		return nil, fmt.Errorf("%w: nft contract address is required", common.ErrorInput)
	}
	return &OwnershipOracle{
		contract: cfg.NFTContract,
		rpc:      newStarknetRPC(cfg.StarknetRPCURL, newRetryClient(cfg.Retries, cfg.Timeout, nil)),
		logger:   logger.With("module", "payment", "backend", KindOwnership),
	}, nil
}

func (o *OwnershipOracle) Kind() Kind { return KindOwnership }

func (o *OwnershipOracle) CreateIntent(ctx context.Context, contentID, payer string) (*models.PaymentIntent, error) {
	if payer == "" || !validFelt(payer) {
		return nil, fmt.Errorf("%w: a starknet payer address is required", common.ErrorInput)
	}
	if _, _, err := SplitU256(contentID); err != nil {
		return nil, err
	}
	tokenRef := "0x" + contentID
	return newIntent(KindOwnership, contentID, tokenRef, tokenRef, payer), nil
}

// PollSettlement never reports Failed: a token that is not owned by the
// payer may still be transferred later.
func (o *OwnershipOracle) PollSettlement(ctx context.Context, intent *models.PaymentIntent) (Settlement, error) {
	if intent.Payer == "" {
		return Settlement{}, fmt.Errorf("%w: payer is required", common.ErrorInput)
	}

	owner, err := o.rpc.OwnerOf(ctx, o.contract, intent.ContentID)
	if err != nil {
		return Settlement{}, err
	}
	if owner != "" && owner == NormalizeAddress(intent.Payer) {
		return Settlement{Settled: true}, nil
	}
	return Settlement{}, nil
}
