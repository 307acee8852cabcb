// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/refsync/pkg/types"
)

const (
	defaultLocalBaseURL = "http://127.0.0.1:23119"
	defaultLocalUserID  = "0"
	defaultLocalTimeout = 15 * time.Second
)

// Local talks to the same-machine HTTP connector exposing REST-like
// read/write endpoints under /api/users/{id}. Item creation goes through
// the connector save endpoint instead, so Create is unsupported here.
type Local struct {
	cfg    types.LocalConfig
	client *http.Client
}

// NewLocal returns a Local adapter with config defaults applied.
func NewLocal(cfg types.LocalConfig) *Local {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLocalBaseURL
	}
	if cfg.UserID == "" {
		cfg.UserID = defaultLocalUserID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLocalTimeout
	}
	return &Local{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Kind returns the backend identifier.
func (l *Local) Kind() types.BackendKind { return types.BackendLocal }

func (l *Local) apiURL(path string) string {
	return l.cfg.BaseURL + "/api/users/" + l.cfg.UserID + path
}

// Ping reports whether the local server answers its liveness probe.
func (l *Local) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.BaseURL+"/connector/ping", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("local ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local ping returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Items lists library items, optionally filtered by q.
func (l *Local) Items(ctx context.Context, q ItemQuery) ([]types.BibRecord, error) {
	params := url.Values{}
	if q.Q != "" {
		params.Set("q", q.Q)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Start > 0 {
		params.Set("start", strconv.Itoa(q.Start))
	}
	reqURL := l.apiURL("/items")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var items []wireItem
	if err := l.getJSON(ctx, reqURL, &items); err != nil {
		return nil, err
	}
	return toRecords(items), nil
}

// Item fetches a single item by key.
func (l *Local) Item(ctx context.Context, key string) (*types.BibRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiURL("/items/"+key), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local item fetch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("local item fetch returned HTTP %d", resp.StatusCode)
	}

	var item wireItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("parsing local item response: %w", err)
	}
	rec := toRecord(item)
	return &rec, nil
}

// Collections lists the library's collections.
func (l *Local) Collections(ctx context.Context) ([]types.Collection, error) {
	var cols []wireCollection
	if err := l.getJSON(ctx, l.apiURL("/collections"), &cols); err != nil {
		return nil, err
	}
	collections := make([]types.Collection, 0, len(cols))
	for _, c := range cols {
		collections = append(collections, toCollection(c))
	}
	return collections, nil
}

// CollectionItems lists the items in one collection.
func (l *Local) CollectionItems(ctx context.Context, collectionKey string) ([]types.BibRecord, error) {
	var items []wireItem
	if err := l.getJSON(ctx, l.apiURL("/collections/"+collectionKey+"/items"), &items); err != nil {
		return nil, err
	}
	return toRecords(items), nil
}

// Create is unsupported: local item creation goes through the connector
// save endpoint, which is its own backend.
func (l *Local) Create(_ context.Context, _ types.BibRecord, _ string) (string, error) {
	return "", ErrUnsupported
}

// Delete removes an item. A 404 means the item is already gone, which is
// the desired post-state.
func (l *Local) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, l.apiURL("/items/"+key), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("local delete: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("local delete returned HTTP %d", resp.StatusCode)
	}
}

// CreateCollection creates a named collection.
func (l *Local) CreateCollection(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(map[string]any{"name": name})
	if err != nil {
		return "", fmt.Errorf("encoding collection: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiURL("/collections"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local collection create: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("local collection create returned HTTP %d", resp.StatusCode)
	}

	var created wireCollection
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("parsing collection create response: %w", err)
	}
	return created.Key, nil
}

// AddToCollection assigns an existing item to a collection. The primitive
// is deployment-dependent: servers without it answer 404/405, reported as
// ErrUnsupported so the caller can fall back to create-time membership.
func (l *Local) AddToCollection(ctx context.Context, itemKey, collectionKey string) error {
	body, err := json.Marshal(map[string]any{"items": []string{itemKey}})
	if err != nil {
		return fmt.Errorf("encoding assignment: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiURL("/collections/"+collectionKey+"/items"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("local collection assign: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return ErrUnsupported
	default:
		return fmt.Errorf("local collection assign returned HTTP %d", resp.StatusCode)
	}
}

func (l *Local) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("local API request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing local API response: %w", err)
	}
	return nil
}
