// Package clients contains the HTTP clients for the external collaborators.
// This file implements the billing function boundary: checkout and portal
// session creation and subscription cancellation. The payment processor's
// checkout/portal UI is entirely external; the core only relays URLs.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

// BillingSession is a redirect hand-off returned by the billing boundary.
type BillingSession struct {
	URL string `json:"url"`
}

// BillingClient invokes the payment function endpoints. Every call returns
// either a session/ack or an error assembled from the function's
// {success, url?|error?} envelope.
type BillingClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewBillingClient builds a client for the billing functions at baseURL.
func NewBillingClient(baseURL string, httpClient *http.Client) *BillingClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BillingClient{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient}
}

// billingEnvelope is the wire shape shared by all billing functions.
type billingEnvelope struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CreateCheckoutSession starts a checkout for the given billing cycle.
func (c *BillingClient) CreateCheckoutSession(ctx context.Context, token string, cycle domain.BillingCycle) (*BillingSession, error) {
	env, err := c.invoke(ctx, token, "checkout", map[string]any{"cycle": string(cycle)})
	if err != nil {
		return nil, err
	}
	return &BillingSession{URL: env.URL}, nil
}

// CreatePortalSession opens the subscription management portal.
func (c *BillingClient) CreatePortalSession(ctx context.Context, token string) (*BillingSession, error) {
	env, err := c.invoke(ctx, token, "portal", nil)
	if err != nil {
		return nil, err
	}
	return &BillingSession{URL: env.URL}, nil
}

// CancelSubscription cancels the caller's subscription. This is the
// destructive call the cancellation workflow orders its steps around.
func (c *BillingClient) CancelSubscription(ctx context.Context, token string) error {
	_, err := c.invoke(ctx, token, "cancel", nil)
	return err
}

func (c *BillingClient) invoke(ctx context.Context, token, action string, payload map[string]any) (*billingEnvelope, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/billing/"+action, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("billing %s: %w", action, err)
	}
	defer resp.Body.Close()

	var env billingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("billing %s: decode: %w", action, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("billing %s: %s", action, msg)
	}
	return &env, nil
}
