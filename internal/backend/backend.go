// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend implements the three channel adapters (local HTTP
// connector, remote cloud API, desktop-socket connector) behind one
// capability interface. Implements: prd012-routing (R2);
//
//	docs/ARCHITECTURE § Backend Adapters.
//
// Each backend kind has a fixed capability set declared in the static
// table below; the router filters orderings on it instead of probing
// adapters at runtime.
package backend

import (
	"context"
	"errors"

	"github.com/pdiddy/refsync/pkg/types"
)

// ErrUnsupported is returned by adapter methods outside the backend's
// capability set.
var ErrUnsupported = errors.New("operation not supported by this backend")

// ErrNotFound is returned by reads that complete but find no such item.
// Distinct from transport failures: the read itself worked.
var ErrNotFound = errors.New("item not found")

// ItemQuery selects items from a backend's library listing.
type ItemQuery struct {
	// Q is a free-text filter, empty for a full scan.
	Q string

	// Limit caps the result count, 0 for the backend default.
	Limit int

	// Start is the pagination offset.
	Start int
}

// Adapter is the capability interface over one backend channel.
type Adapter interface {
	Kind() types.BackendKind

	// Items lists library items matching q.
	Items(ctx context.Context, q ItemQuery) ([]types.BibRecord, error)

	// Item fetches a single item by key, ErrNotFound when absent.
	Item(ctx context.Context, key string) (*types.BibRecord, error)

	// Collections lists the library's collections.
	Collections(ctx context.Context) ([]types.Collection, error)

	// CollectionItems lists the items in one collection.
	CollectionItems(ctx context.Context, collectionKey string) ([]types.BibRecord, error)

	// Create persists a new record, attaching collection membership in
	// the payload when collectionKey is non-empty. Returns the
	// backend-assigned key, or "" for fire-and-forget backends.
	Create(ctx context.Context, rec types.BibRecord, collectionKey string) (string, error)

	// Delete removes an item by key. Deleting an already-absent item is
	// not an error.
	Delete(ctx context.Context, key string) error

	// CreateCollection creates a named collection and returns its key.
	CreateCollection(ctx context.Context, name string) (string, error)

	// AddToCollection assigns an existing item to a collection.
	// ErrUnsupported where the deployment exposes no such primitive.
	AddToCollection(ctx context.Context, itemKey, collectionKey string) error
}

// capabilities is the static capability table. A static fact of the
// external systems, not configuration.
var capabilities = map[types.BackendKind]types.Capability{
	types.BackendLocal:     {CanRead: true, CanWrite: true, CanVerifyWrite: true},
	types.BackendRemote:    {CanRead: true, CanWrite: true, CanVerifyWrite: true},
	types.BackendConnector: {CanWrite: true},
}

// Capabilities returns the fixed capability set for a backend kind.
func Capabilities(kind types.BackendKind) types.Capability {
	return capabilities[kind]
}
