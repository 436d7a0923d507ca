// Package catalog is a thin client for the downstream catalog service.
// It answers one question per record: is this new, already known, or
// known but changed?
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/models"
)

// Comparison outcomes.
const (
	StatusNew      = "new"
	StatusExisting = "existing"
	StatusChanged  = "existing-with-changes"
)

// CompareResult is the catalog service's verdict on one record.
type CompareResult struct {
	Status string `json:"status"`

	// ChangedFields names the fields that differ from the stored
	// version. Only set for existing-with-changes.
	ChangedFields []string `json:"changed_fields,omitempty"`
}

// Client talks to the catalog service. A nil Client is valid and means
// comparison is disabled.
type Client struct {
	cfg        config.CatalogConfig
	httpClient *http.Client
}

// NewClient returns a catalog client, or nil when no URL is configured.
func NewClient(cfg config.CatalogConfig) *Client {
	if cfg.URL == "" {
		return nil
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Compare posts a candidate record and returns the service's verdict.
func (c *Client) Compare(ctx context.Context, rec *models.Record) (*CompareResult, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal record: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.URL, "/") + "/api/v1/records/compare"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalog: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: compare: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("catalog: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: service returned %d", resp.StatusCode)
	}

	var result CompareResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("catalog: parse response: %w", err)
	}
	switch result.Status {
	case StatusNew, StatusExisting, StatusChanged:
		return &result, nil
	default:
		return nil, fmt.Errorf("catalog: unexpected status %q", result.Status)
	}
}
