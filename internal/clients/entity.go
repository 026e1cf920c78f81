// Package clients contains the HTTP clients for the external collaborators.
// This file implements the permanent entity store client: generic
// create/list over record kinds ("analyses", "churn_events").
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

// EntityClient talks to the external entity store over a request/response
// boundary. The store owns persistence; this client only shuttles fields.
type EntityClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewEntityClient builds a client for the store at baseURL.
func NewEntityClient(baseURL, apiKey string, httpClient *http.Client) *EntityClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &EntityClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    httpClient,
	}
}

// Create inserts a record of the given kind and returns the stored row.
func (c *EntityClient) Create(ctx context.Context, kind string, fields map[string]any) (*domain.Record, error) {
	raw, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/records/"+kind, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	c.decorate(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("entity create %s: %w", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("entity create %s: unexpected status %d", kind, resp.StatusCode)
	}

	var rec domain.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("entity create %s: decode: %w", kind, err)
	}
	return &rec, nil
}

// List queries records of the given kind. filter is an equality filter over
// stored fields; sort is a field name, "-" prefixed for descending.
func (c *EntityClient) List(ctx context.Context, kind string, filter map[string]any, sort string) ([]domain.Record, error) {
	raw, err := json.Marshal(map[string]any{"filter": filter, "sort": sort})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/records/"+kind+"/query", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	c.decorate(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("entity list %s: %w", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entity list %s: unexpected status %d", kind, resp.StatusCode)
	}

	var body struct {
		Records []domain.Record `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("entity list %s: decode: %w", kind, err)
	}
	return body.Records, nil
}

func (c *EntityClient) decorate(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
}
