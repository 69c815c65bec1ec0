package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for reads
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	// maxResponseSize bounds the bodies the client reads.
	maxResponseSize = 64 << 10
)

// LEDState is the body of GET /led and of every watch message.
type LEDState struct {
	IsOn bool `json:"is_on"`
}

type setLEDRequest struct {
	IsOn bool `json:"is_on"`
}

// Client represents an HTTP client for one wifiled device
type Client struct {
	// BaseURL is the base URL for the device (e.g., "http://192.168.13.37:80")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed reads
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration
}

// New creates a client for the device at host:port.
func New(host string, port int) *Client {
	return NewWithURL(fmt.Sprintf("http://%s:%d", host, port))
}

// NewWithURL creates a client with a full base URL
func NewWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimSuffix(baseURL, "/"),
		HTTPClient:    newHTTPClient(),
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// Idle keep-alive connections hold a device worker.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

// Ping checks that the device serves its index page.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/")
	return err
}

// GetLED returns the device's current LED state.
func (c *Client) GetLED(ctx context.Context) (bool, error) {
	var state LEDState
	err := c.retry(ctx, func() error {
		body, err := c.get(ctx, "/led")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &state); err != nil {
			return newParseError("invalid LED state", err)
		}
		return nil
	})
	return state.IsOn, err
}

// SetLED switches the LED on or off.
func (c *Client) SetLED(ctx context.Context, on bool) error {
	payload, err := json.Marshal(setLEDRequest{IsOn: on})
	if err != nil {
		return newParseError("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/led", bytes.NewReader(payload))
	if err != nil {
		return classifyNetworkError("failed to create POST request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classifyNetworkError("POST request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode != http.StatusOK {
		return newHTTPError(resp.StatusCode, fmt.Sprintf("set LED failed with status %d", resp.StatusCode))
	}

	logging.Debug("LED set", zap.String("device", c.BaseURL), zap.Bool("is_on", on))
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, classifyNetworkError("failed to create GET request", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyNetworkError("GET request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyNetworkError("failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
	return body, nil
}

// retry runs op until it succeeds, fails with a non-retryable error, or
// MaxRetries is exhausted. Delays double up to MaxRetryDelay.
func (c *Client) retry(ctx context.Context, op func() error) error {
	var lastErr error
	delay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug("Retrying request",
				zap.String("device", c.BaseURL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return lastErr
			case <-t.C:
			}
			delay *= 2
			if c.MaxRetryDelay > 0 && delay > c.MaxRetryDelay {
				delay = c.MaxRetryDelay
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}
