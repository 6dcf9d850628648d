// Package authprovider talks to the hosted auth/realtime provider. The
// application consumes exactly two of its capabilities: the current
// session token, and a change-event subscription for one table.
package authprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client is a minimal client for the provider's REST surface.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a provider client. anonKey is the provider's public
// client key, attached to every request.
func New(baseURL, anonKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("component", "authprovider").Logger(),
	}
}

// CurrentSession returns the provider's current access token, or an
// error when no session is active.
func (c *Client) CurrentSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/session", nil)
	if err != nil {
		return "", fmt.Errorf("creating session request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching provider session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading provider session: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("provider session returned status %d", resp.StatusCode)
	}

	var session struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("decoding provider session: %w", err)
	}
	if session.AccessToken == "" {
		return "", fmt.Errorf("provider has no active session")
	}

	return session.AccessToken, nil
}
