package client

import (
	"bytes"
	"context"
	_ "crypto/sha256" // digest.SHA256 backend
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/wire"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/opencontainers/go-digest"
)

var (
	retryWaitMin = 200 * time.Millisecond
	retryWaitMax = 2 * time.Second
)

type HTTPClient struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

// NewHTTPClient returns a client for the server at baseURL. token, when
// set, is sent as a bearer token on uploads.
func NewHTTPClient(baseURL, token string, retries int, timeout time.Duration) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    rc,
	}
}

func (c *HTTPClient) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/contents/" + strings.Join(escaped, "/")
}

func (c *HTTPClient) do(req *retryablehttp.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	var e wire.Error
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
	if e.Error == "" {
		e.Error = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrorInput, e.Error)
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusPaymentRequired:
		return &common.PaymentRequiredError{IntentStatus: e.IntentStatus}
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", common.ErrorExternalBackend, e.Error)
	default:
		return fmt.Errorf("%w: %s", common.ErrorInternal, e.Error)
	}
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) Upload(ctx context.Context, body io.ReadSeeker) (*wire.UploadResponse, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contents", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", common.ContentTypeOctetStream)
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+c.token)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out wire.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Download(ctx context.Context, id string, w io.Writer) error {
	want, err := digest.Parse(string(digest.SHA256) + ":" + id)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInput, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(id), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	verifier := want.Verifier()
	if _, err := io.Copy(io.MultiWriter(w, verifier), resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !verifier.Verified() {
		return ErrIntegrity
	}
	return nil
}

func (c *HTTPClient) RequestPayment(ctx context.Context, id, payer string) (*wire.PaymentIntent, error) {
	b, err := json.Marshal(wire.PaymentRequest{Payer: payer})
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(id, "payments"), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out wire.PaymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Status(ctx context.Context, id string) (*wire.PaymentStatus, error) {
	var out wire.PaymentStatus
	if err := c.getJSON(ctx, c.endpoint(id, "payments", "status"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Key(ctx context.Context, id, payer string) (*wire.ReleasedKey, error) {
	u := c.endpoint(id, "key")
	if payer != "" {
		u += "?" + url.Values{"payer": {payer}}.Encode()
	}

	var out wire.ReleasedKey
	if err := c.getJSON(ctx, u, &out); err != nil {
		var pr *common.PaymentRequiredError
		if errors.As(err, &pr) {
			pr.ContentID = id
		}
		return nil, err
	}
	return &out, nil
}
