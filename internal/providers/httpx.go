package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultTimeout bounds every outbound call when none is configured.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a provider response is read.
const maxBody = 1 << 20

// NewHTTPClient returns the client adapters use. It never retries.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// GetJSON performs a GET and decodes a 2xx JSON body into out.
// Any failure is wrapped in ErrProviderConnection.
func GetJSON(ctx context.Context, c *http.Client, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrProviderConnection, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrProviderConnection, err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: GET %s: http %d", ErrProviderConnection, req.URL.Host+req.URL.Path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrProviderConnection, err)
	}
	return nil
}

var namePolicy = bluemonday.StrictPolicy()

// SanitizeName strips any markup from a display name coming from a provider.
func SanitizeName(name string) string {
	return strings.TrimSpace(html.UnescapeString(namePolicy.Sanitize(name)))
}
