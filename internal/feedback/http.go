package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// HTTPClient calls the advisory endpoint over HTTP.
type HTTPClient struct {
	url     string
	token   string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPClient builds a client for the configured advisory endpoint. token
// may be empty; timeout <= 0 falls back to 30 seconds.
func NewHTTPClient(url, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		url:     url,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Advise posts the request and extracts the advisory text from the reply.
// Every failure mode surfaces as ErrUnavailable; the underlying cause is
// wrapped for logs.
func (c *HTTPClient) Advise(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Printf("feedback: request to %s failed: %v", c.url, err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("feedback: advisory endpoint returned %d", resp.StatusCode)
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	text, err := Extract(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return text, nil
}
