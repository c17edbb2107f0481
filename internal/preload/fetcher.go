package preload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves asset bytes. The prefetch queue is the only caller.
type Fetcher interface {
	// Fetch retrieves the full body at url.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// FetchRange retrieves at most maxBytes from the start of the resource.
	// Servers that ignore the Range header are tolerated; the read is capped
	// client-side either way.
	FetchRange(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// HTTPFetcher fetches over HTTP with a bounded-lifetime client.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client gets a default with a
// 30-second timeout; prefetch work must never hang the queue indefinitely.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

// Fetch retrieves the full body at url.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.get(ctx, url, 0)
}

// FetchRange retrieves the first maxBytes of the resource via a Range
// request.
func (f *HTTPFetcher) FetchRange(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("fetch range %s: non-positive byte cap %d", url, maxBytes)
	}
	return f.get(ctx, url, maxBytes)
}

func (f *HTTPFetcher) get(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if maxBytes > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", maxBytes-1))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	default:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		// Cap client-side too: a 200 response means the server ignored the
		// Range header and would otherwise stream the whole file.
		reader = io.LimitReader(reader, maxBytes)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	return data, nil
}
