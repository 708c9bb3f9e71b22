package payment

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/crypto/sha3"
)

// Starknet JSON-RPC error codes.
const (
	rpcTxnHashNotFound = 29
	rpcContractError   = 40
)

var mask250 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Selector returns the Starknet entry point selector of name:
// keccak256(name) truncated to 250 bits.
func Selector(name string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	n := new(big.Int).SetBytes(h.Sum(nil))
	n.And(n, mask250)
	return "0x" + n.Text(16)
}

// SplitU256 interprets a 64-char hex content id as a u256 token id and
// returns its low and high 128-bit felts.
func SplitU256(contentID string) (low, high string, err error) {
	b, err := hex.DecodeString(contentID)
	if err != nil || len(b) != 32 {
		return "", "", fmt.Errorf("%w: content id must be 64 hex characters", common.ErrorInput)
	}
	hi := new(big.Int).SetBytes(b[:16])
	lo := new(big.Int).SetBytes(b[16:])
	return "0x" + lo.Text(16), "0x" + hi.Text(16), nil
}

// NormalizeAddress lowercases a hex felt and strips its 0x prefix and
// leading zeros, so that equal addresses compare equal.
func NormalizeAddress(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

func validFelt(s string) bool {
	n := NormalizeAddress(s)
	if len(n) > 64 {
		return false
	}
	_, ok := new(big.Int).SetString(n, 16)
	return ok
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// starknetRPC is a minimal Starknet JSON-RPC client.
type starknetRPC struct {
	url    string
	client *retryablehttp.Client
	nextID atomic.Uint64
}

func newStarknetRPC(url string, client *retryablehttp.Client) *starknetRPC {
	return &starknetRPC{url: url, client: client}
}

// call returns *rpcError for node-reported errors.
func (r *starknetRPC) call(ctx context.Context, method string, params, out any) error {
	req := rpcRequest{JSONRPC: "2.0", ID: r.nextID.Add(1), Method: method, Params: params}

	var resp rpcResponse
	if err := doJSON(ctx, r.client, http.MethodPost, r.url, nil, req, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return fmt.Errorf("%w: starknet rpc: %v", common.ErrorExternalBackend, err)
		}
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%w: invalid %s result: %v", common.ErrorExternalBackend, method, err)
	}
	return nil
}

type functionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// OwnerOf returns the normalized owner of the token, or "" when the token
// does not exist.
func (r *starknetRPC) OwnerOf(ctx context.Context, contract, contentID string) (string, error) {
	low, high, err := SplitU256(contentID)
	if err != nil {
		return "", err
	}

	params := map[string]any{
		"request": functionCall{
			ContractAddress:    contract,
			EntryPointSelector: Selector("ownerOf"),
			Calldata:           []string{low, high},
		},
		"block_id": "latest",
	}

	var result []string
	if err := r.call(ctx, "starknet_call", params, &result); err != nil {
		var re *rpcError
		if errors.As(err, &re) {
			if re.Code == rpcContractError {
				return "", nil
			}
			return "", fmt.Errorf("%w: ownerOf: %v", common.ErrorExternalBackend, re)
		}
		return "", err
	}
	if len(result) == 0 {
		return "", fmt.Errorf("%w: ownerOf returned no data", common.ErrorExternalBackend)
	}
	return NormalizeAddress(result[0]), nil
}

type txReceipt struct {
	TransactionHash string `json:"transaction_hash"`
	ExecutionStatus string `json:"execution_status"`
	FinalityStatus  string `json:"finality_status"`
	RevertReason    string `json:"revert_reason"`
}

// Receipt returns nil, nil while the node does not know the hash yet.
func (r *starknetRPC) Receipt(ctx context.Context, txHash string) (*txReceipt, error) {
	var rc txReceipt
	err := r.call(ctx, "starknet_getTransactionReceipt", map[string]any{"transaction_hash": txHash}, &rc)
	if err != nil {
		var re *rpcError
		if errors.As(err, &re) {
			if re.Code == rpcTxnHashNotFound {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: receipt: %v", common.ErrorExternalBackend, re)
		}
		return nil, err
	}
	return &rc, nil
}
