// Package alphaflow is a client for the Alphaflow invoicing platform
// hosted on d.velop cloud. It exchanges a long-lived API key for a
// short-lived session, looks up trading partners and creates outgoing
// invoices.
package alphaflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var (
	// ErrAuthenticationFailed signals a rejected or malformed login.
	ErrAuthenticationFailed = errors.New("alphaflow authentication failed")
	// ErrUnavailable signals that the platform could not be reached.
	ErrUnavailable = errors.New("alphaflow service unavailable")
	// ErrPartnerNotFound signals that no trading partner matches the
	// requested number.
	ErrPartnerNotFound = errors.New("trading partner not found")
	// ErrInvoiceCreationFailed signals a rejected invoice submission.
	ErrInvoiceCreationFailed = errors.New("invoice creation failed")
)

const (
	loginPath    = "/identityprovider/login"
	partnersPath = "/alphaflow-tradingpartner/tradingpartnerservice/tradingpartners"
	invoicesPath = "/alphaflow-outgoinginvoice/outgoinginvoiceservice/outgoinginvoices"
)

// Client is an Alphaflow API client. The session obtained from the
// login endpoint is injected into every request as a bearer token; a
// run performs at most one login.
type Client struct {
	baseURL    string
	sessions   oauth2.TokenSource
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a client for the platform at baseURL, authenticating
// with the given API key on first use.
func New(baseURL, apiKey string, log zerolog.Logger) *Client {
	base := strings.TrimRight(baseURL, "/")
	src := oauth2.ReuseTokenSource(nil, &sessionSource{
		baseURL:    base,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	})
	return &Client{
		baseURL:  base,
		sessions: src,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: &oauth2.Transport{Source: src},
		},
		log: log,
	}
}

// Authenticate eagerly performs the login and returns the session id.
// Later requests reuse the cached session via the token source.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	tok, err := c.sessions.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return tok.AccessToken, nil
}

// do executes an authenticated request and returns status and body.
// Transport failures (including an implicit failed login) are wrapped
// in ErrUnavailable; status handling is left to the caller.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("alphaflow request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading response body: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, respBody, nil
}
