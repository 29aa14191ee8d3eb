package alphaflow

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// sessionSource implements oauth2.TokenSource by exchanging the
// long-lived API key for a session id at the identity provider's login
// endpoint. The returned token carries no expiry, so ReuseTokenSource
// hands out the same session for the whole run.
type sessionSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// loginResponse is the identity provider's login reply.
type loginResponse struct {
	AuthSessionID string `json:"AuthSessionId"`
}

func (s *sessionSource) Token() (*oauth2.Token, error) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+loginPath, nil)
	if err != nil {
		return nil, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	s.log.Debug().Str("path", loginPath).Msg("alphaflow login")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login rejected with HTTP %d", resp.StatusCode)
	}

	var login loginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	if login.AuthSessionID == "" {
		return nil, fmt.Errorf("AuthSessionId missing in login response")
	}

	return &oauth2.Token{
		AccessToken: login.AuthSessionID,
		TokenType:   "Bearer",
	}, nil
}
