// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package route decides, per operation, which backend channel services a
// read or write, falls back across the remaining capable backends in
// order, and verifies writes when a verification read is possible.
// Implements: prd012-routing (R1-R5).
package route

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pdiddy/refsync/internal/backend"
	"github.com/pdiddy/refsync/pkg/types"
)

// Prober yields the current connectivity state, re-probing when the
// cached state has expired.
type Prober interface {
	Probe(ctx context.Context, force bool) types.ConnectivityState
}

// Router owns the per-operation backend orderings. Decisions are made
// fresh per call from the prober's state and discarded afterwards.
type Router struct {
	adapters map[types.BackendKind]backend.Adapter
	prober   Prober
	w        io.Writer
}

// New builds a Router over the given adapters. Progress and pending-sync
// notes are written to w.
func New(prober Prober, w io.Writer, adapters ...backend.Adapter) *Router {
	if w == nil {
		w = io.Discard
	}
	m := make(map[types.BackendKind]backend.Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Kind()] = a
	}
	return &Router{adapters: m, prober: prober, w: w}
}

// readOrder is the backend preference for reads given current
// connectivity: the remote copy is authoritative when its API answers,
// the local copy otherwise.
func (r *Router) readOrder(state types.ConnectivityState) []types.BackendKind {
	if state.RemoteAPIReachable {
		return []types.BackendKind{types.BackendRemote, types.BackendLocal}
	}
	return []types.BackendKind{types.BackendLocal}
}

// writeOrder is the backend preference for item creation. The local
// REST surface cannot create items, so creation prefers the remote API
// and falls back to the fire-and-forget connector save.
func (r *Router) writeOrder() []types.BackendKind {
	return []types.BackendKind{types.BackendRemote, types.BackendConnector}
}

// deleteOrder is the backend preference for deletion. The connector
// cannot address items; both REST surfaces can.
func (r *Router) deleteOrder(state types.ConnectivityState) []types.BackendKind {
	if state.RemoteAPIReachable {
		return []types.BackendKind{types.BackendRemote, types.BackendLocal}
	}
	return []types.BackendKind{types.BackendLocal}
}

// present filters an ordering down to the backends actually configured.
func (r *Router) present(order []types.BackendKind) []types.BackendKind {
	kinds := make([]types.BackendKind, 0, len(order))
	for _, k := range order {
		if _, ok := r.adapters[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// decision builds the RouteDecision for a completed operation: the
// fallback chain is the operation's ordering minus the chosen backend.
func decision(order []types.BackendKind, chosen types.BackendKind, verified bool) *types.RouteDecision {
	d := &types.RouteDecision{Chosen: chosen, Verified: verified}
	for _, k := range order {
		if k != chosen {
			d.FallbackChain = append(d.FallbackChain, k)
		}
	}
	return d
}

// ReadLibrary lists library items from the first reachable read backend.
func (r *Router) ReadLibrary(ctx context.Context, q backend.ItemQuery) ([]types.BibRecord, *types.RouteDecision, error) {
	var records []types.BibRecord
	dec, err := r.readThrough(ctx, "library read", func(a backend.Adapter) error {
		var err error
		records, err = a.Items(ctx, q)
		return err
	})
	return records, dec, err
}

// ReadCollection lists the items of one collection.
func (r *Router) ReadCollection(ctx context.Context, collectionKey string) ([]types.BibRecord, *types.RouteDecision, error) {
	var records []types.BibRecord
	dec, err := r.readThrough(ctx, "collection read", func(a backend.Adapter) error {
		var err error
		records, err = a.CollectionItems(ctx, collectionKey)
		return err
	})
	return records, dec, err
}

// Collections lists the library's collections.
func (r *Router) Collections(ctx context.Context) ([]types.Collection, *types.RouteDecision, error) {
	var cols []types.Collection
	dec, err := r.readThrough(ctx, "collections read", func(a backend.Adapter) error {
		var err error
		cols, err = a.Collections(ctx)
		return err
	})
	return cols, dec, err
}

// readThrough walks the read ordering until one backend services op.
func (r *Router) readThrough(ctx context.Context, op string, call func(backend.Adapter) error) (*types.RouteDecision, error) {
	state := r.prober.Probe(ctx, false)
	order := r.present(r.readOrder(state))
	if len(order) == 0 {
		return nil, fmt.Errorf("%s: no read backend configured", op)
	}

	var attempts []Attempt
	for _, kind := range order {
		if err := call(r.adapters[kind]); err != nil {
			attempts = append(attempts, Attempt{Backend: kind, Err: err})
			fmt.Fprintf(r.w, "%s via %s failed, trying next backend: %v\n", op, kind, err)
			continue
		}
		return decision(order, kind, true), nil
	}
	return nil, &ExhaustedError{Op: op, Attempts: attempts}
}

// Create persists rec through the write ordering. When offline the write
// is refused immediately without touching any backend. The returned key
// is empty for fire-and-forget saves; Verified reports whether a
// verification read confirmed the item, and an unverified success is
// still a success.
func (r *Router) Create(ctx context.Context, rec types.BibRecord, collectionKey string) (string, *types.RouteDecision, error) {
	state := r.prober.Probe(ctx, false)
	if !state.InternetReachable {
		return "", nil, ErrWriteUnavailableOffline
	}

	order := r.present(r.writeOrder())
	if len(order) == 0 {
		return "", nil, fmt.Errorf("create: no write backend configured")
	}

	var attempts []Attempt
	for _, kind := range order {
		if kind == types.BackendRemote && !state.RemoteAPIReachable {
			attempts = append(attempts, Attempt{Backend: kind, Err: errors.New("remote API unreachable")})
			continue
		}
		key, err := r.adapters[kind].Create(ctx, rec, collectionKey)
		if err != nil {
			attempts = append(attempts, Attempt{Backend: kind, Err: err})
			fmt.Fprintf(r.w, "create via %s failed, trying next backend: %v\n", kind, err)
			continue
		}
		verified := r.verifyWrite(ctx, state, kind, key, rec.Title)
		return key, decision(order, kind, verified), nil
	}
	return "", nil, &ExhaustedError{Op: "create", Attempts: attempts}
}

// verifyWrite re-reads a created item, preferring the backend that
// accepted it and then falling back through the read ordering. Backends
// that return no key cannot be verified; either way a failed or
// impossible verification downgrades the decision, never the write.
func (r *Router) verifyWrite(ctx context.Context, state types.ConnectivityState, kind types.BackendKind, key, title string) bool {
	if key == "" || !backend.Capabilities(kind).CanVerifyWrite {
		fmt.Fprintf(r.w, "created %q via %s without verification; pending sync\n", title, kind)
		return false
	}
	order := []types.BackendKind{kind}
	for _, k := range r.present(r.readOrder(state)) {
		if k != kind {
			order = append(order, k)
		}
	}
	var lastErr error
	for _, k := range order {
		_, err := r.adapters[k].Item(ctx, key)
		if err == nil {
			return true
		}
		lastErr = err
	}
	fmt.Fprintf(r.w, "created %q via %s but verification read failed; pending sync: %v\n", title, kind, lastErr)
	return false
}

// Delete removes an item from the first reachable backend that can
// address it. Offline deletion still works against the local copy.
func (r *Router) Delete(ctx context.Context, key string) (*types.RouteDecision, error) {
	state := r.prober.Probe(ctx, false)
	order := r.present(r.deleteOrder(state))
	if len(order) == 0 {
		return nil, fmt.Errorf("delete: no backend configured")
	}

	var attempts []Attempt
	for _, kind := range order {
		if err := r.adapters[kind].Delete(ctx, key); err != nil {
			attempts = append(attempts, Attempt{Backend: kind, Err: err})
			fmt.Fprintf(r.w, "delete via %s failed, trying next backend: %v\n", kind, err)
			continue
		}
		return decision(order, kind, r.verifyDelete(ctx, kind, key)), nil
	}
	return nil, &ExhaustedError{Op: "delete", Attempts: attempts}
}

// verifyDelete re-reads a deleted key expecting absence. A key that is
// still visible downgrades the decision, never the delete.
func (r *Router) verifyDelete(ctx context.Context, kind types.BackendKind, key string) bool {
	if !backend.Capabilities(kind).CanVerifyWrite {
		return false
	}
	if _, err := r.adapters[kind].Item(ctx, key); !errors.Is(err, backend.ErrNotFound) {
		fmt.Fprintf(r.w, "deleted %s via %s but the key is still visible; pending sync\n", key, kind)
		return false
	}
	return true
}

// AssignToCollection attaches an existing item to a collection. Only the
// local surface exposes the immediate primitive; when it is absent or
// the local backend is not configured the caller gets
// ErrAssignUnavailable and should embed membership at create time.
func (r *Router) AssignToCollection(ctx context.Context, itemKey, collectionKey string) error {
	a, ok := r.adapters[types.BackendLocal]
	if !ok {
		return ErrAssignUnavailable
	}
	err := a.AddToCollection(ctx, itemKey, collectionKey)
	if errors.Is(err, backend.ErrUnsupported) {
		return ErrAssignUnavailable
	}
	if err != nil {
		return &TransportError{Backend: types.BackendLocal, Op: "collection assign", Err: err}
	}
	return nil
}

// EnsureCollection returns the key of the named collection, creating it
// when no backend knows it. Lookup follows the read ordering; creation
// prefers the remote API, then the local surface.
func (r *Router) EnsureCollection(ctx context.Context, name string) (string, error) {
	cols, _, err := r.Collections(ctx)
	if err == nil {
		for _, c := range cols {
			if c.Name == name {
				return c.Key, nil
			}
		}
	}

	state := r.prober.Probe(ctx, false)
	var order []types.BackendKind
	if state.RemoteAPIReachable {
		order = []types.BackendKind{types.BackendRemote, types.BackendLocal}
	} else {
		order = []types.BackendKind{types.BackendLocal}
	}
	order = r.present(order)
	if len(order) == 0 {
		return "", fmt.Errorf("ensure collection %q: no backend configured", name)
	}

	var attempts []Attempt
	for _, kind := range order {
		key, err := r.adapters[kind].CreateCollection(ctx, name)
		if err != nil {
			attempts = append(attempts, Attempt{Backend: kind, Err: err})
			continue
		}
		fmt.Fprintf(r.w, "created collection %q via %s\n", name, kind)
		return key, nil
	}
	return "", &ExhaustedError{Op: fmt.Sprintf("ensure collection %q", name), Attempts: attempts}
}
