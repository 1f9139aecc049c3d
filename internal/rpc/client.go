package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client carries the transport settings for a JSON-RPC endpoint: rate
// limiting, API key authentication, timeouts and retries.
type Client struct {
	Endpoint    string
	ApiKey      string
	RateLimiter *rate.Limiter
	MaxRetries  int
	RetryDelay  time.Duration
	HTTPTimeout time.Duration
	Logger      *zerolog.Logger
	HTTPClient  *http.Client
}

// NewClient creates a new RPC client with the given configuration
func NewClient(endpoint, apiKey string, rateLimit float64, maxRetries int, retryDelay, httpTimeout time.Duration, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rateLimit), 1)
	return &Client{
		Endpoint:    endpoint,
		ApiKey:      apiKey,
		RateLimiter: limiter,
		MaxRetries:  maxRetries,
		RetryDelay:  retryDelay,
		HTTPTimeout: httpTimeout,
		Logger:      logger,
		HTTPClient: &http.Client{
			Timeout: httpTimeout,
			Transport: &CustomTransport{
				Base:    http.DefaultTransport,
				ApiKey:  apiKey,
				Limiter: limiter,
			},
		},
	}
}

// CustomTransport adds API key authentication and rate limiting to HTTP requests
type CustomTransport struct {
	Base    http.RoundTripper
	ApiKey  string
	Limiter *rate.Limiter
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit error: %w", err)
		}
	}
	req = req.Clone(req.Context())
	req.Header.Set("Content-Type", "application/json")
	if t.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.ApiKey)
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Dial opens a go-ethereum RPC client over this transport.
func (c *Client) Dial(ctx context.Context) (*gethrpc.Client, error) {
	c.Logger.Debug().Str("endpoint", c.Endpoint).Msg("Dialing RPC endpoint")

	rc, err := gethrpc.DialOptions(ctx, c.Endpoint, gethrpc.WithHTTPClient(c.HTTPClient))
	if err != nil {
		c.Logger.Error().Err(err).Str("endpoint", c.Endpoint).Msg("RPC dial failed")
		return nil, fmt.Errorf("failed to dial %s: %w", c.Endpoint, err)
	}
	return rc, nil
}

// Retry runs fn up to MaxRetries times, sleeping RetryDelay between
// attempts. It stops early when ctx is done.
func (c *Client) Retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < c.MaxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == c.MaxRetries-1 {
			break
		}
		c.Logger.Debug().Err(err).Str("op", op).Int("attempt", i+1).Msg("RPC call failed, retrying")
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w (last error: %v)", op, ctx.Err(), err)
		case <-time.After(c.RetryDelay):
		}
	}
	c.Logger.Error().Err(err).Str("op", op).Int("attempts", c.MaxRetries).Msg("RPC call failed")
	return err
}

// Close closes the HTTP client connections
func (c *Client) Close() {
	if c.HTTPClient != nil {
		c.HTTPClient.CloseIdleConnections()
	}
}
