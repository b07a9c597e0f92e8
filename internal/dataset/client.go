package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client downloads remote extracts
type Client struct {
	client *http.Client
}

// NewClient creates a client with a generous timeout for large extracts
func NewClient() *Client {
	return &Client{
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Fetch returns the response body of url. The caller closes it.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}
