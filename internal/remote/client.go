// Package remote talks to the contacts data endpoint over HTTP.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rhystmorgan/mira/internal/store"
)

const (
	DefaultPath       = "/data"
	DefaultTimeout    = 10 * time.Second
	DefaultRetryCount = 3
	DefaultRetryDelay = 500 * time.Millisecond

	DefaultMaxBodySize = 32 << 20
)

type Config struct {
	Origin     string
	Path       string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration

	// MaxBodySize bounds the collection read by Get, in bytes.
	MaxBodySize int64
}

// Client implements store.Remote against ORIGIN + PATH.
type Client struct {
	http   *http.Client
	url    string
	config Config
}

var _ store.Remote = (*Client)(nil)

func NewClient(config Config) (*Client, error) {
	if config.Origin == "" {
		return nil, fmt.Errorf("remote origin is required")
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if !strings.HasPrefix(config.Path, "/") {
		config.Path = "/" + config.Path
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RetryCount <= 0 {
		config.RetryCount = DefaultRetryCount
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	return &Client{
		http:   &http.Client{Timeout: config.Timeout},
		url:    strings.TrimRight(config.Origin, "/") + config.Path,
		config: config,
	}, nil
}

func (c *Client) URL() string {
	return c.url
}

// Get reads the stored collection. Network failures, timeouts and 5xx
// answers are retried with a growing delay.
func (c *Client) Get(ctx context.Context) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, store.ClassifyError("fetch", ctx.Err())
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		body, err := c.doGet(ctx)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if remoteErr := store.ClassifyError("fetch", err); !remoteErr.IsRetryable() {
			break
		}
	}

	return nil, store.ClassifyError("fetch", lastErr)
}

func (c *Client) doGet(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := c.config.MaxBodySize
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, limit))
		return nil, store.NewStatusError("fetch", resp.StatusCode)
	}

	// One byte past the limit tells a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, &store.RemoteError{
			Kind:  store.ErrTooLarge,
			Op:    "fetch",
			Cause: fmt.Errorf("response too large: more than %d bytes", limit),
		}
	}
	return body, nil
}

// Post replaces the stored collection with body. It is never retried, so a
// stale snapshot cannot land after a newer one.
func (c *Client) Post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return store.ClassifyError("persist", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, c.config.MaxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return store.NewStatusError("persist", resp.StatusCode)
	}
	return nil
}
