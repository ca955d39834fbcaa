// Package crmapi is a client for the CRM's REST API v3.
package crmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const defaultHost = "https://api.woowup.com/apiv3"

// maxResponseSize is the maximum allowed response size from the CRM (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Config holds the CRM API credentials.
type Config struct {
	Host    string
	APIKey  string
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client groups the CRM API resources.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	Multiusers *MultiusersResource
	Users      *UsersResource
	Purchases  *PurchasesResource
	Products   *ProductsResource
	Banks      *BanksResource
}

// NewClient creates a CRM API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg.applyDefaults()
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	c.Multiusers = &MultiusersResource{client: c}
	c.Users = &UsersResource{client: c}
	c.Purchases = &PurchasesResource{client: c}
	c.Products = &ProductsResource{client: c}
	c.Banks = &BanksResource{client: c}
	return c
}

// do performs one CRM API call. Error responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, dst any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("crmapi: failed to encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	u := c.cfg.Host + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("crmapi: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crmapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("crmapi: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if dst != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, dst); err != nil {
			return fmt.Errorf("crmapi: failed to parse response from %s: %w", path, err)
		}
	}
	return nil
}
