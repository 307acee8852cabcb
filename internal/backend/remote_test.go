// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/refsync/internal/httputil"
	"github.com/pdiddy/refsync/pkg/types"
)

func newTestRemote(srv *httptest.Server) *Remote {
	return NewRemote(types.RemoteConfig{
		BaseURL:   srv.URL,
		LibraryID: "12345",
		APIKey:    "test-key",
	})
}

func TestRemoteItemsSendsBearerAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		if r.URL.Path != "/users/12345/items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]wireItem{{Key: "CLOUD111", Data: map[string]any{"title": "Paper"}}})
	}))
	defer srv.Close()

	records, err := newTestRemote(srv).Items(context.Background(), ItemQuery{})
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(records) != 1 || records[0].Key != "CLOUD111" {
		t.Errorf("records = %+v", records)
	}
}

func TestRemoteGroupLibraryPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups/777/items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	r := NewRemote(types.RemoteConfig{BaseURL: srv.URL, LibraryID: "777", LibraryType: "group"})
	if _, err := r.Items(context.Background(), ItemQuery{}); err != nil {
		t.Fatalf("Items: %v", err)
	}
}

func TestRemoteCreateReturnsAssignedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var items []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
			t.Errorf("decoding create body: %v", err)
		}
		if len(items) != 1 || items[0]["title"] != "New Paper" {
			t.Errorf("create body = %v", items)
		}
		cols, _ := items[0]["collections"].([]any)
		if len(cols) != 1 || cols[0] != "COLL9" {
			t.Errorf("collections = %v, want [COLL9]", items[0]["collections"])
		}
		json.NewEncoder(w).Encode(map[string]any{"success": map[string]string{"0": "NEWKEY99"}})
	}))
	defer srv.Close()

	key, err := newTestRemote(srv).Create(context.Background(), types.BibRecord{Title: "New Paper"}, "COLL9")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if key != "NEWKEY99" {
		t.Errorf("key = %q, want NEWKEY99", key)
	}
}

func TestRemoteCreateReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":{},"failed":{"0":{"code":400,"message":"invalid item type"}}}`))
	}))
	defer srv.Close()

	_, err := newTestRemote(srv).Create(context.Background(), types.BibRecord{Title: "Bad"}, "")
	if err == nil || !strings.Contains(err.Error(), "invalid item type") {
		t.Errorf("err = %v, want rejection message", err)
	}
}

func TestRemoteRetriesRateLimit(t *testing.T) {
	old := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	defer func() { httputil.RetryBaseDelay = old }()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	if _, err := newTestRemote(srv).Items(context.Background(), ItemQuery{}); err != nil {
		t.Fatalf("Items after 429: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRemoteServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestRemote(srv).Items(context.Background(), ItemQuery{})
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("err = %v, want HTTP 500", err)
	}
}

func TestRemoteDeleteTreatsGoneAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if err := newTestRemote(srv).Delete(context.Background(), "GONE1111"); err != nil {
		t.Errorf("Delete: %v", err)
	}
}

func TestRemoteAddToCollectionUnsupported(t *testing.T) {
	err := NewRemote(types.RemoteConfig{}).AddToCollection(context.Background(), "I", "C")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestRemotePing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Error("ping must be authenticated")
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	if err := newTestRemote(srv).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
