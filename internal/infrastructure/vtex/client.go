package vtex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize is the maximum allowed response size from the platform (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ClientConfig tunes retry and throttling behavior of the API client.
type ClientConfig struct {
	BaseURL         string
	AppKey          string
	AppToken        string
	MaxAttempts     int
	BackoffBase     time.Duration // attempt n waits base*2^(n-1)
	CooldownOn429   time.Duration
	RateLimitPerSec float64
	Timeout         time.Duration
}

func (c *ClientConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MaxAttempts > 5 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.CooldownOn429 <= 0 {
		c.CooldownOn429 = 20 * time.Second
	}
	if c.RateLimitPerSec <= 0 {
		c.RateLimitPerSec = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client is a retrying HTTP client for the source platform APIs. Transient
// failures back off exponentially, throttling responses wait out a fixed
// cooldown, and client errors fail fast.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a platform API client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1),
		logger:     logger,
		sleep:      sleepContext,
	}
}

// request describes one API call. Host overrides the configured base URL
// when set (the email unmasking service lives on a different host).
type request struct {
	method  string
	host    string
	path    string
	query   url.Values
	headers http.Header
}

// response is a completed API call.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// do performs a request with the configured retry policy.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.cfg.BackoffBase),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)

	var lastStatus int
	var lastMessage string
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.attempt(ctx, req)
		if err != nil {
			lastErr = err
			c.logger.Error("request attempt failed",
				zap.String("endpoint", req.path),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else {
			lastStatus = resp.StatusCode
			switch {
			case resp.StatusCode < 400:
				return resp, nil
			case resp.StatusCode == http.StatusTooManyRequests:
				c.logger.Warn("throttled by platform, cooling down",
					zap.String("endpoint", req.path),
					zap.Duration("cooldown", c.cfg.CooldownOn429),
					zap.Int("attempt", attempt))
				if err := c.sleep(ctx, c.cfg.CooldownOn429); err != nil {
					return nil, err
				}
				continue
			case resp.StatusCode < 500:
				return nil, &RequestError{
					Code:     resp.StatusCode,
					Message:  errorMessage(resp),
					Endpoint: req.path,
					Params:   req.query,
				}
			default:
				// 5xx and anything else unexpected: retryable
				lastMessage = errorMessage(resp)
				c.logger.Error("server error from platform",
					zap.String("endpoint", req.path),
					zap.Int("status", resp.StatusCode),
					zap.Int("attempt", attempt))
			}
		}

		if attempt < c.cfg.MaxAttempts {
			if err := c.sleep(ctx, bo.NextBackOff()); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Error("max request attempts reached", zap.String("endpoint", req.path))
	if lastStatus >= 500 {
		// server kept failing: worth surfacing to the account owner,
		// unlike a plain connectivity failure
		lastErr = &RequestError{
			Code:         lastStatus,
			Message:      lastMessage,
			Endpoint:     req.path,
			Params:       req.query,
			SendToClient: true,
		}
	}
	return nil, &MaxAttemptsError{
		Endpoint:   req.path,
		Params:     req.query,
		LastStatus: lastStatus,
		cause:      lastErr,
	}
}

// attempt performs a single HTTP exchange.
func (c *Client) attempt(ctx context.Context, req request) (*response, error) {
	host := req.host
	if host == "" {
		host = c.cfg.BaseURL
	}

	u, err := url.Parse(host + req.path)
	if err != nil {
		return nil, fmt.Errorf("vtex: invalid request url: %w", err)
	}
	u.RawQuery = req.query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("vtex: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/vnd.vtex.ds.v10+json")
	httpReq.Header.Set("X-VTEX-API-AppKey", c.cfg.AppKey)
	httpReq.Header.Set("X-VTEX-API-AppToken", c.cfg.AppToken)
	for k, vs := range req.headers {
		for _, v := range vs {
			httpReq.Header.Set(k, v)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("vtex: failed to read response: %w", err)
	}

	return &response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// get performs a GET request against the configured base URL.
func (c *Client) get(ctx context.Context, path string, query url.Values, headers http.Header) (*response, error) {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query, headers: headers})
}

// getJSON performs a GET request and decodes the body into dst.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	resp, err := c.get(ctx, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return fmt.Errorf("vtex: failed to parse response from %s: %w", path, err)
	}
	return nil
}

// errorMessage extracts a human-readable message from an error response
// body, falling back to the raw status text.
func errorMessage(resp *response) string {
	var envelope struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
	}
	return http.StatusText(resp.StatusCode)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
