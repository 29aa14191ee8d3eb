// Package mite is a client for the mite time-tracking REST API,
// covering the subset needed for billing: fetching unlocked time
// entries and locking them after an invoice has been created.
package mite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrUnavailable signals that the mite service could not be reached
	// or rejected the request (network, auth, rate limit).
	ErrUnavailable = errors.New("mite service unavailable")
	// ErrInvalidRange signals a date range whose start lies after its end.
	ErrInvalidRange = errors.New("invalid date range: from must not be after to")
)

// Client is an authenticated mite API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a client for the given mite account (subdomain of mite.de).
func New(account, apiKey string, log zerolog.Logger) *Client {
	return NewWithBaseURL(fmt.Sprintf("https://%s.mite.de", account), apiKey, log)
}

// NewWithBaseURL creates a client against an explicit base URL.
// Used by tests and self-hosted deployments.
func NewWithBaseURL(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// do executes an API request and returns the response body.
// Transport failures and error statuses are wrapped in ErrUnavailable.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-MiteApiKey", c.apiKey)
	req.Header.Set("User-Agent", "mitebill")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("mite request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, statusMessage(resp.StatusCode, body))
	}
	return body, nil
}

// statusMessage maps common mite error statuses to actionable messages.
func statusMessage(status int, body []byte) string {
	switch status {
	case http.StatusUnauthorized:
		return "authentication failed, check your API key"
	case http.StatusForbidden:
		return "access forbidden, check your permissions"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusTooManyRequests:
		return "rate limit exceeded, try again later"
	default:
		return fmt.Sprintf("HTTP %d: %s", status, bytes.TrimSpace(body))
	}
}

// Ping verifies that the account endpoint is reachable with the
// configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "account.json", nil, nil)
	return err
}
