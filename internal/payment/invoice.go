package payment

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
	"github.com/hashicorp/go-retryablehttp"
)

const macaroonHeader = "Grpc-Metadata-macaroon"

// InvoiceOracle settles through Lightning invoices created on an LND node
// over its REST API.
type InvoiceOracle struct {
	baseURL  string
	macaroon string
	amount   int64
	client   *retryablehttp.Client
	logger   logging.Logger
}

func NewInvoiceOracle(cfg Config, logger logging.Logger) (*InvoiceOracle, error) {
	if cfg.LNDURL == "" {
		return nil, fmt.Errorf("%w: lnd url is required", common.ErrorInput)
	}
	if _, err := url.Parse(cfg.LNDURL); err != nil {
		return nil, fmt.Errorf("%w: invalid lnd url: %v", common.ErrorInput, err)
	}
	if cfg.InvoiceAmountSat <= 0 {
		return nil, fmt.Errorf("%w: invoice amount must be positive", common.ErrorInput)
	}

	var tlsConfig *tls.Config
	if cfg.LNDTLSCertBase64 != "" {
		pem, err := base64.StdEncoding.DecodeString(cfg.LNDTLSCertBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: lnd tls cert is not base64: %v", common.ErrorInput, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: lnd tls cert has no PEM certificates", common.ErrorInput)
		}
		tlsConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &InvoiceOracle{
		baseURL:  strings.TrimRight(cfg.LNDURL, "/"),
		macaroon: cfg.LNDMacaroonHex,
		amount:   cfg.InvoiceAmountSat,
		client:   newRetryClient(cfg.Retries, cfg.Timeout, tlsConfig),
		logger:   logger.With("module", "payment", "backend", KindInvoice),
	}, nil
}

func (o *InvoiceOracle) Kind() Kind { return KindInvoice }

func (o *InvoiceOracle) header() http.Header {
	h := http.Header{}
	if o.macaroon != "" {
		h.Set(macaroonHeader, o.macaroon)
	}
	return h
}

type lndAddInvoiceRequest struct {
	Memo  string `json:"memo"`
	Value int64  `json:"value,string"`
}

type lndAddInvoiceResponse struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
}

type lndInvoice struct {
	Settled bool   `json:"settled"`
	State   string `json:"state"`
}

// CreateIntent adds an invoice for the configured amount. The payer is
// recorded but not required.
func (o *InvoiceOracle) CreateIntent(ctx context.Context, contentID, payer string) (*models.PaymentIntent, error) {
	var resp lndAddInvoiceResponse
	err := doJSON(ctx, o.client, http.MethodPost, o.baseURL+"/v1/invoices", o.header(),
		lndAddInvoiceRequest{Memo: "content:" + contentID, Value: o.amount}, &resp)
	if err != nil {
		return nil, o.mapError(err)
	}

	rhash, err := base64.StdEncoding.DecodeString(resp.RHash)
	if err != nil || len(rhash) == 0 {
		return nil, fmt.Errorf("%w: lnd returned malformed r_hash", common.ErrorExternalBackend)
	}

	o.logger.Info(ctx, "invoice created", "id", contentID, "amount_sat", o.amount)
	return newIntent(KindInvoice, contentID, hex.EncodeToString(rhash), resp.PaymentRequest, payer), nil
}

func (o *InvoiceOracle) PollSettlement(ctx context.Context, intent *models.PaymentIntent) (Settlement, error) {
	if _, err := hex.DecodeString(intent.ExternalRef); err != nil || intent.ExternalRef == "" {
		return Settlement{}, fmt.Errorf("%w: invoice reference is not hex", common.ErrorInput)
	}

	var inv lndInvoice
	err := doJSON(ctx, o.client, http.MethodGet, o.baseURL+"/v1/invoice/"+intent.ExternalRef, o.header(), nil, &inv)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return Settlement{Failed: true, Reason: "invoice not found"}, nil
		}
		return Settlement{}, o.mapError(err)
	}

	switch {
	case inv.Settled || strings.EqualFold(inv.State, "SETTLED"):
		return Settlement{Settled: true}, nil
	case strings.EqualFold(inv.State, "CANCELED"):
		return Settlement{Failed: true, Reason: "invoice canceled"}, nil
	default:
		return Settlement{}, nil
	}
}

// mapError treats any unexpected answer from the node as a backend fault.
func (o *InvoiceOracle) mapError(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		return fmt.Errorf("%w: lnd: %v", common.ErrorExternalBackend, se)
	}
	return err
}
