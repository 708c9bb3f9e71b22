package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
	"github.com/hashicorp/go-retryablehttp"
)

// SponsoredOracle submits a gasless mint of the content's NFT to the payer
// through a paymaster relay, then follows the transaction to finality.
type SponsoredOracle struct {
	relayURL string
	apiKey   string
	contract string
	relay    *retryablehttp.Client
	rpc      *starknetRPC
	logger   logging.Logger
}

func NewSponsoredOracle(cfg Config, logger logging.Logger) (*SponsoredOracle, error) {
	if cfg.RelayURL == "" {
		return nil, fmt.Errorf("%w: relay url is required", common.ErrorInput)
	}
	if cfg.StarknetRPCURL == "" {
		return nil, fmt.Errorf("%w: starknet rpc url is required", common.ErrorInput)
	}
	if cfg.NFTContract == "" || !validFelt(cfg.NFTContract) {
		return nil, fmt.Errorf("%w: nft contract address is required", common.ErrorInput)
	}
	return &SponsoredOracle{
		relayURL: strings.TrimRight(cfg.RelayURL, "/"),
		apiKey:   cfg.RelayAPIKey,
		contract: cfg.NFTContract,
		relay:    newRetryClient(cfg.Retries, cfg.Timeout, nil),
		rpc:      newStarknetRPC(cfg.StarknetRPCURL, newRetryClient(cfg.Retries, cfg.Timeout, nil)),
		logger:   logger.With("module", "payment", "backend", KindSponsored),
	}, nil
}

func (o *SponsoredOracle) Kind() Kind { return KindSponsored }

type relayCall struct {
	ContractAddress string   `json:"contractAddress"`
	Entrypoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata"`
}

type relayRequest struct {
	Calls []relayCall `json:"calls"`
}

type relayResponse struct {
	TransactionHash string `json:"transaction_hash"`
}

func (o *SponsoredOracle) CreateIntent(ctx context.Context, contentID, payer string) (*models.PaymentIntent, error) {
	if payer == "" || !validFelt(payer) {
		return nil, fmt.Errorf("%w: a starknet payer address is required", common.ErrorInput)
	}
	low, high, err := SplitU256(contentID)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	if o.apiKey != "" {
		h.Set(common.AuthorizationHeaderName, common.BearerPrefix+o.apiKey)
	}

	req := relayRequest{Calls: []relayCall{{
		ContractAddress: o.contract,
		Entrypoint:      "mint",
		Calldata:        []string{payer, low, high},
	}}}

	var resp relayResponse
	if err := doJSON(ctx, o.relay, http.MethodPost, o.relayURL+"/transactions", h, req, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("%w: relay rejected mint: %v", common.ErrorExternalBackend, se)
		}
		return nil, err
	}
	if resp.TransactionHash == "" {
		return nil, fmt.Errorf("%w: relay returned no transaction hash", common.ErrorExternalBackend)
	}

	o.logger.Info(ctx, "sponsored mint submitted", "id", contentID, "tx", resp.TransactionHash)
	return newIntent(KindSponsored, contentID, resp.TransactionHash, resp.TransactionHash, payer), nil
}

// PollSettlement follows the mint transaction. An accepted transaction is
// settled only once the payer is confirmed as the token owner.
func (o *SponsoredOracle) PollSettlement(ctx context.Context, intent *models.PaymentIntent) (Settlement, error) {
	if intent.Payer == "" {
		return Settlement{}, fmt.Errorf("%w: payer is required", common.ErrorInput)
	}

	rc, err := o.rpc.Receipt(ctx, intent.ExternalRef)
	if err != nil {
		return Settlement{}, err
	}
	if rc == nil {
		return Settlement{}, nil
	}

	switch {
	case strings.EqualFold(rc.ExecutionStatus, "REVERTED"):
		reason := "mint reverted"
		if rc.RevertReason != "" {
			reason += ": " + rc.RevertReason
		}
		return Settlement{Failed: true, Reason: reason}, nil
	case strings.EqualFold(rc.FinalityStatus, "REJECTED"):
		return Settlement{Failed: true, Reason: "mint rejected"}, nil
	case !strings.HasPrefix(strings.ToUpper(rc.FinalityStatus), "ACCEPTED"):
		return Settlement{}, nil
	}

	owner, err := o.rpc.OwnerOf(ctx, o.contract, intent.ContentID)
	if err != nil {
		return Settlement{}, err
	}
	if owner != "" && owner == NormalizeAddress(intent.Payer) {
		return Settlement{Settled: true}, nil
	}
	return Settlement{Failed: true, Reason: "token not owned by payer"}, nil
}
