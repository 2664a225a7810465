// Package http is the outbound JSON client used for off-chain lookups.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
	"github.com/trigg3rX/pumpkit-operator/pkg/retry"
)

// ErrDecode is returned when a 2xx body is oversized or not the expected JSON
var ErrDecode = errors.New("undecodable response body")

type ClientConfig struct {
	Retry           *retry.RetryConfig
	Timeout         time.Duration
	IdleConnTimeout time.Duration
	// MaxBodyBytes caps what is read from a successful response
	MaxBodyBytes int64
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Retry:           retry.DefaultRetryConfig(),
		Timeout:         10 * time.Second,
		IdleConnTimeout: 30 * time.Second,
		MaxBodyBytes:    1 << 20,
	}
}

// SingleAttemptConfig is for callers that treat a failed lookup as final
func SingleAttemptConfig(timeout time.Duration) *ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Retry.MaxRetries = 1
	cfg.Retry.LogRetryAttempt = false
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg
}

func (c *ClientConfig) Validate() error {
	switch {
	case c.Timeout <= 0:
		return errors.New("timeout must be positive")
	case c.IdleConnTimeout <= 0:
		return errors.New("idle connection timeout must be positive")
	case c.MaxBodyBytes <= 0:
		return errors.New("max body size must be positive")
	case c.Retry == nil:
		return errors.New("retry config is required")
	}
	return c.Retry.Validate()
}

// StatusError is a non-2xx reply
type StatusError struct {
	StatusCode int
	URL        string
	Snippet    string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("%s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s returned %d: %q", e.URL, e.StatusCode, e.Snippet)
}

// Temporary reports whether another attempt could succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

const snippetBytes = 256

type Client struct {
	http   *http.Client
	cfg    *ClientConfig
	logger logging.Logger
}

func NewClient(cfg *ClientConfig, logger logging.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid http client config: %w", err)
	}
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = func(err error, _ int) bool {
			return isTemporary(err)
		}
	}

	transport := &http.Transport{
		IdleConnTimeout: cfg.IdleConnTimeout,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout / 2,
			KeepAlive: cfg.IdleConnTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.Timeout / 2,
		ResponseHeaderTimeout: cfg.Timeout / 2,
	}

	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		cfg:    cfg,
		logger: logger,
	}, nil
}

func isTemporary(err error) bool {
	if errors.Is(err, ErrDecode) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

// GetJSON fetches endpoint with query appended and decodes a 2xx body into
// out. Non-2xx replies come back as *StatusError.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	target := endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return retry.RetryFunc(ctx, func() error {
		return c.getOnce(ctx, target, out)
	}, c.cfg.Retry, c.logger)
}

func (c *Client) getOnce(ctx context.Context, target string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debugf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetBytes))
		return &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Path, Snippet: string(snippet)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return fmt.Errorf("%w: larger than %d bytes", ErrDecode, c.cfg.MaxBodyBytes)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// Close drops idle keep-alive connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
