// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/refsync/pkg/types"
)

const (
	defaultConnectorBaseURL = "http://127.0.0.1:23119"
	defaultConnectorTimeout = 15 * time.Second

	// connectorAPIVersion is the protocol version header value the desktop
	// save endpoint expects.
	connectorAPIVersion = "3"
)

// Connector talks to the desktop application's browser-connector save
// endpoint. Write-only: saves are accepted with HTTP 200/201 but the
// endpoint never reports which key the item received, so created items
// remain unverified until the next sync pass. All reads and deletes
// return ErrUnsupported.
type Connector struct {
	cfg    types.ConnectorConfig
	client *http.Client
}

// NewConnector returns a Connector adapter with config defaults applied.
func NewConnector(cfg types.ConnectorConfig) *Connector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultConnectorBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultConnectorTimeout
	}
	return &Connector{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Kind returns the backend identifier.
func (c *Connector) Kind() types.BackendKind { return types.BackendConnector }

// Ping reports whether the desktop connector endpoint answers.
func (c *Connector) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/connector/ping", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connector ping: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connector ping returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Create submits a record through the connector save endpoint. The
// endpoint acknowledges the save but returns no item key; callers get
// ("", nil) on success and must treat the write as pending verification.
func (c *Connector) Create(ctx context.Context, rec types.BibRecord, collectionKey string) (string, error) {
	payload := map[string]any{
		"items":     []map[string]any{itemPayload(rec, "")},
		"sessionID": "refsync-" + uuid.NewString(),
		"token":     "",
	}
	if collectionKey != "" {
		payload["collection"] = collectionKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding save payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/connector/saveItems", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Connector-API-Version", connectorAPIVersion)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("connector save: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return "", nil
	default:
		return "", fmt.Errorf("connector save returned HTTP %d", resp.StatusCode)
	}
}

// Items is unsupported: the connector channel is write-only.
func (c *Connector) Items(_ context.Context, _ ItemQuery) ([]types.BibRecord, error) {
	return nil, ErrUnsupported
}

// Item is unsupported: the connector channel is write-only.
func (c *Connector) Item(_ context.Context, _ string) (*types.BibRecord, error) {
	return nil, ErrUnsupported
}

// Collections is unsupported: the connector channel is write-only.
func (c *Connector) Collections(_ context.Context) ([]types.Collection, error) {
	return nil, ErrUnsupported
}

// CollectionItems is unsupported: the connector channel is write-only.
func (c *Connector) CollectionItems(_ context.Context, _ string) ([]types.BibRecord, error) {
	return nil, ErrUnsupported
}

// Delete is unsupported: the connector channel cannot address items.
func (c *Connector) Delete(_ context.Context, _ string) error {
	return ErrUnsupported
}

// CreateCollection is unsupported on the connector channel.
func (c *Connector) CreateCollection(_ context.Context, _ string) (string, error) {
	return "", ErrUnsupported
}

// AddToCollection is unsupported on the connector channel.
func (c *Connector) AddToCollection(_ context.Context, _, _ string) error {
	return ErrUnsupported
}
