// Package httpclient provides a small HTTP client used to talk to JSON endpoints.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// defaultTimeout is the request timeout used when the caller passes zero
	defaultTimeout = 30 * time.Second

	// userAgent identifies this service to the remote endpoint
	userAgent = "punchbridge/1.0"

	// maxResponseSize caps response bodies at 50MB to avoid unbounded reads
	maxResponseSize = 50 * 1024 * 1024
)

// Client defines the interface for fetching data over HTTP
type Client interface {
	// Get fetches the given URL and returns the response body.
	// Non-2xx responses are returned as *HTTPError.
	Get(ctx context.Context, url string) ([]byte, error)
}

// defaultClient is the default implementation of Client
type defaultClient struct {
	client *http.Client
}

// NewDefaultClient creates a new HTTP client with the given request timeout.
// A zero timeout uses the default.
func NewDefaultClient(timeout time.Duration) Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &defaultClient{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWithConnectTimeout creates a client whose TCP connect phase is
// bounded by connectTimeout while the overall request is bounded by timeout.
// Connections are not reused between requests.
func NewClientWithConnectTimeout(timeout, connectTimeout time.Duration) Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &defaultClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:       dialer.DialContext,
				DisableKeepAlives: true,
			},
		},
	}
}

// CloseIdleConnections drops any idle keep-alive connections held by the client
func (c *defaultClient) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}

// Get fetches the given URL and returns the response body
func (c *defaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewHTTPError(resp.StatusCode, url, http.StatusText(resp.StatusCode))
	}

	return body, nil
}
