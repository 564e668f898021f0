package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.TokenExchangeClient = (*Client)(nil)

// Config holds the credentials and endpoint for the platform's token
// endpoint.
type Config struct {
	// TokenURL is the platform's token endpoint.
	TokenURL string

	// ClientID and ClientSecret identify this app to the platform.
	ClientID     string
	ClientSecret string

	// Timeout bounds a single exchange round trip. Defaults to 30s.
	Timeout time.Duration
}

// Client performs the client-credentials exchange against the platform's
// token endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new token exchange client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Exchange trades the instance ID plus the app's client credentials for a
// short-lived access token. A 400 or 401 response means the platform no
// longer recognises the credential pair and is surfaced as
// domain.ErrInstanceInvalid; every other failure is a plain error.
func (c *Client) Exchange(ctx context.Context, instanceID string) (*driven.TokenGrant, error) {
	reqBody, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"instance_id":   instanceID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.TokenURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: token endpoint returned %d", domain.ErrInstanceInvalid, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("token exchange failed: status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// A success status without a token is a malformed response, not an
	// invalid-credential signal.
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access_token")
	}

	return &driven.TokenGrant{
		AccessToken: tokenResp.AccessToken,
		ExpiresIn:   tokenResp.ExpiresIn,
	}, nil
}
