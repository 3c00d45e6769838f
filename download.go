package detconv

import (
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// DefaultHTTPTimeout bounds each image download.
const DefaultHTTPTimeout = 30 * time.Second

// ImageFetcher retrieves the encoded pixels of a remote image.
type ImageFetcher interface {
	Fetch(url string) ([]byte, error)
}

// HTTPFetcher downloads images over HTTP(S), following redirects. The zero value uses a default
// client and DefaultHTTPTimeout.
type HTTPFetcher struct {
	Client  *fasthttp.Client
	Timeout time.Duration
}

// NewHTTPFetcher returns a fetcher with the given per request timeout (DefaultHTTPTimeout if not
// positive).
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPFetcher{
		Client: &fasthttp.Client{
			Name:                "detconv",
			MaxResponseBodySize: 64 << 20,
		},
		Timeout: timeout,
	}
}

// Fetch returns the response body for url. Any status other than 200 is an error.
func (f *HTTPFetcher) Fetch(url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = &fasthttp.Client{}
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	status, body, err := client.GetTimeout(nil, url, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to download %q: %w", url, err)
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("failed to download %q: HTTP status %d", url, status)
	}
	return body, nil
}
