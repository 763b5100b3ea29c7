package didresolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFetcher retrieves resources over plain HTTP GET, the transport
// WebResolver and the dispatcher's schema validator use to fetch
// did:web documents and JSON-schema documents respectively.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds an HTTPFetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch satisfies didresolve.Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, requestURL string) ([]byte, error) {
	return f.Get(ctx, requestURL)
}

// Get satisfies dispatcher.SchemaFetcher, so the same client serves
// both did:web document retrieval and schema_url retrieval.
func (f *HTTPFetcher) Get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("didresolve: failed to build request for %s: %w", requestURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("didresolve: failed to fetch %s: %w", requestURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("didresolve: %s returned status %d", requestURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("didresolve: failed to read response body from %s: %w", requestURL, err)
	}

	return body, nil
}
