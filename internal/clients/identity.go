// Package clients contains the HTTP clients for the three external
// collaborators of the core: the identity provider, the permanent entity
// store, and the billing function boundary. Each client is a thin
// request/response wrapper: no retries, no caching, timeouts owned by the
// injected http.Client. Degradation policy (e.g. "probe failure means
// anonymous") lives in the services that consume these clients, except where
// the contract itself is fail-safe by definition (Probe).
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

// IdentityClient talks to the external identity provider. Cryptographic
// session validation is entirely the provider's business; this client only
// relays the caller's bearer token.
type IdentityClient struct {
	// BaseURL is the provider API root, e.g. "https://id.clausewise.io".
	BaseURL string
	// LoginBase is the browser-facing login entry point the gate redirects
	// anonymous visitors to.
	LoginBase string
	// HTTP is the underlying client; callers own its timeout.
	HTTP *http.Client
}

// NewIdentityClient builds a client with the given endpoints.
func NewIdentityClient(baseURL, loginBase string, httpClient *http.Client) *IdentityClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IdentityClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		LoginBase: strings.TrimRight(loginBase, "/"),
		HTTP:      httpClient,
	}
}

// Probe asks the provider whether the token belongs to a live session. Any
// failure — network, provider error, malformed response — reports false;
// authentication problems never propagate as errors.
func (c *IdentityClient) Probe(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/session/probe", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("identity probe failed")
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Debug().Err(err).Msg("identity probe: malformed response")
		return false
	}
	return body.Authenticated
}

// Me fetches the full principal for the token.
func (c *IdentityClient) Me(ctx context.Context, token string) (*domain.Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity me: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity me: unexpected status %d", resp.StatusCode)
	}

	var acc domain.Account
	if err := json.NewDecoder(resp.Body).Decode(&acc); err != nil {
		return nil, fmt.Errorf("identity me: decode: %w", err)
	}
	return &acc, nil
}

// Update applies a partial update to the principal's account record and
// returns the updated account.
func (c *IdentityClient) Update(ctx context.Context, token string, fields map[string]any) (*domain.Account, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.BaseURL+"/v1/me", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity update: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity update: unexpected status %d", resp.StatusCode)
	}

	var acc domain.Account
	if err := json.NewDecoder(resp.Body).Decode(&acc); err != nil {
		return nil, fmt.Errorf("identity update: decode: %w", err)
	}
	return &acc, nil
}

// LoginURL returns the provider's login entry point carrying the return
// destination the visitor should bounce back to after authenticating.
func (c *IdentityClient) LoginURL(returnPath string) string {
	return c.LoginBase + "/login?return_to=" + url.QueryEscape(returnPath)
}

// LogoutURL returns the provider's logout entry point.
func (c *IdentityClient) LogoutURL() string {
	return c.LoginBase + "/logout"
}
