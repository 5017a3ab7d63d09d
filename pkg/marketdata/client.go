// Package marketdata is the HTTP client for the daily-bars provider sidecar.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DateFormat is the wire format for start/end query parameters.
const DateFormat = "2006-01-02"

// Provider is the interface consumed by the services layer; tests substitute
// their own implementation.
type Provider interface {
	GetDailyBars(ctx context.Context, ticker string, start, end time.Time) (*DailyBarsResponse, error)
	HealthCheck(ctx context.Context) (*HealthResponse, error)
	Close() error
}

// Client represents the provider HTTP client
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	timeout    time.Duration
}

// NewClient creates a new provider client instance
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
	}
}

// HealthCheck checks if the provider sidecar is healthy
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var response HealthResponse
	err := c.makeRequest(ctx, http.MethodGet, "/health", &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// GetDailyBars retrieves daily OHLCV bars for a ticker over [start, end].
func (c *Client) GetDailyBars(ctx context.Context, ticker string, start, end time.Time) (*DailyBarsResponse, error) {
	params := url.Values{}
	params.Set("start", start.Format(DateFormat))
	params.Set("end", end.Format(DateFormat))
	path := fmt.Sprintf("/api/v1/daily/%s?%s", url.PathEscape(ticker), params.Encode())

	var response DailyBarsResponse
	if err := c.makeRequest(ctx, http.MethodGet, path, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// makeRequest is a helper method to make HTTP requests to the provider
func (c *Client) makeRequest(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "RegimeCast-AI-Go/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: errorResp.Error}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// Close closes the HTTP client (if needed for cleanup)
func (c *Client) Close() error {
	// HTTP client doesn't need explicit closing, but this method
	// is provided for interface compatibility
	return nil
}
