package payment

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/hashicorp/go-retryablehttp"
)

const maxResponseBytes = 1 << 20

var (
	retryWaitMin = 500 * time.Millisecond
	retryWaitMax = 3 * time.Second
)

func newRetryClient(retries int, timeout time.Duration, tlsConfig *tls.Config) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = retryWaitMin
	c.RetryWaitMax = retryWaitMax
	c.Logger = nil
	if timeout > 0 {
		c.HTTPClient.Timeout = timeout
	}
	if tlsConfig != nil {
		c.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsConfig,
		}
	}
	return c
}

// statusError is a definitive non-2xx answer from a backend.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// doJSON sends in (if non-nil) as JSON and decodes a 2xx response into out.
// Transport failures and exhausted retries on 5xx or 429 wrap
// common.ErrorExternalBackend; other non-2xx answers return *statusError.
func doJSON(ctx context.Context, c *retryablehttp.Client, method, url string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", common.ErrorExternalBackend, method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", common.ErrorExternalBackend, err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", common.ErrorExternalBackend, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &statusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: invalid response: %v", common.ErrorExternalBackend, err)
	}
	return nil
}
