// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pdiddy/refsync/internal/httputil"
	"github.com/pdiddy/refsync/pkg/types"
)

const (
	defaultRemoteTimeout     = 30 * time.Second
	defaultRemoteLibraryType = "user"
)

// Remote talks to the vendor's authenticated cloud REST API. Full CRUD;
// every write response carries a server-assigned key. Calls run through a
// circuit breaker; once it opens, requests fail fast until the host
// recovers.
type Remote struct {
	cfg     types.RemoteConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewRemote returns a Remote adapter with config defaults applied.
func NewRemote(cfg types.RemoteConfig) *Remote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRemoteTimeout
	}
	if cfg.LibraryType == "" {
		cfg.LibraryType = defaultRemoteLibraryType
	}
	return &Remote{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:    "remote-api",
			Timeout: 30 * time.Second,
		}),
	}
}

// Kind returns the backend identifier.
func (r *Remote) Kind() types.BackendKind { return types.BackendRemote }

func (r *Remote) apiURL(path string) string {
	prefix := "/users/"
	if r.cfg.LibraryType == "group" {
		prefix = "/groups/"
	}
	return r.cfg.BaseURL + prefix + r.cfg.LibraryID + path
}

// do executes a request through the breaker, retrying 429s with backoff.
// Responses with 5xx status trip the breaker like transport failures.
func (r *Remote) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}

	return r.breaker.Execute(func() (*http.Response, error) {
		resp, err := httputil.DoWithRetry(ctx, r.client, req, 0)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("remote API returned HTTP %d", resp.StatusCode)
		}
		return resp, nil
	})
}

// Ping reports whether the cloud API answers an authenticated request.
// Used by the connectivity prober.
func (r *Remote) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL("/items?limit=1"), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.do(ctx, req)
	if err != nil {
		return fmt.Errorf("remote ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote ping returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Items lists library items, optionally filtered by q.
func (r *Remote) Items(ctx context.Context, q ItemQuery) ([]types.BibRecord, error) {
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
	reqURL := r.apiURL("/items")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var items []wireItem
	if err := r.getJSON(ctx, reqURL, &items); err != nil {
		return nil, err
	}
	return toRecords(items), nil
}

// Item fetches a single item by key.
func (r *Remote) Item(ctx context.Context, key string) (*types.BibRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL("/items/"+key), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("remote item fetch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("remote item fetch returned HTTP %d", resp.StatusCode)
	}

	var item wireItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("parsing remote item response: %w", err)
	}
	rec := toRecord(item)
	return &rec, nil
}

// Collections lists the library's collections.
func (r *Remote) Collections(ctx context.Context) ([]types.Collection, error) {
	var cols []wireCollection
	if err := r.getJSON(ctx, r.apiURL("/collections"), &cols); err != nil {
		return nil, err
	}
	collections := make([]types.Collection, 0, len(cols))
	for _, c := range cols {
		collections = append(collections, toCollection(c))
	}
	return collections, nil
}

// CollectionItems lists the items in one collection.
func (r *Remote) CollectionItems(ctx context.Context, collectionKey string) ([]types.BibRecord, error) {
	var items []wireItem
	if err := r.getJSON(ctx, r.apiURL("/collections/"+collectionKey+"/items"), &items); err != nil {
		return nil, err
	}
	return toRecords(items), nil
}

// writeResponse is the cloud API's write envelope: a map of input index
// to server-assigned key.
type writeResponse struct {
	Success map[string]string `json:"success"`
	Failed  map[string]struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"failed"`
}

// Create persists a new record and returns the server-assigned key.
func (r *Remote) Create(ctx context.Context, rec types.BibRecord, collectionKey string) (string, error) {
	body, err := json.Marshal([]map[string]any{itemPayload(rec, collectionKey)})
	if err != nil {
		return "", fmt.Errorf("encoding item: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL("/items"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("remote create: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("remote create returned HTTP %d", resp.StatusCode)
	}

	var wr writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", fmt.Errorf("parsing remote create response: %w", err)
	}
	if key, ok := wr.Success["0"]; ok && key != "" {
		return key, nil
	}
	if f, ok := wr.Failed["0"]; ok {
		return "", fmt.Errorf("remote create rejected item: %s (code %d)", f.Message, f.Code)
	}
	return "", fmt.Errorf("remote create returned no item key")
}

// Delete removes an item. A 404 means the item is already gone.
func (r *Remote) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.apiURL("/items/"+key), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.do(ctx, req)
	if err != nil {
		return fmt.Errorf("remote delete: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("remote delete returned HTTP %d", resp.StatusCode)
	}
}

// CreateCollection creates a named collection.
func (r *Remote) CreateCollection(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal([]map[string]any{{"name": name}})
	if err != nil {
		return "", fmt.Errorf("encoding collection: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL("/collections"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("remote collection create: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("remote collection create returned HTTP %d", resp.StatusCode)
	}

	var wr writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", fmt.Errorf("parsing collection create response: %w", err)
	}
	if key, ok := wr.Success["0"]; ok && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("remote collection create returned no key")
}

// AddToCollection is unsupported on the cloud API surface this core
// targets; membership rides in the item payload at create time instead.
func (r *Remote) AddToCollection(_ context.Context, _, _ string) error {
	return ErrUnsupported
}

func (r *Remote) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.do(ctx, req)
	if err != nil {
		return fmt.Errorf("remote API request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing remote API response: %w", err)
	}
	return nil
}
