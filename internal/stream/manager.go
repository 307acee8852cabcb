// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/refsync/internal/source"
	"github.com/pdiddy/refsync/pkg/types"
)

// Reconciler merges a candidate batch into the library. Satisfied by
// *sync.Orchestrator.
type Reconciler interface {
	Reconcile(ctx context.Context, candidates []types.BibRecord, collectionKey string) (*types.SyncResult, error)
}

// CollectionEnsurer resolves a collection name to a key, creating the
// collection if needed. Satisfied by *route.Router.
type CollectionEnsurer interface {
	EnsureCollection(ctx context.Context, name string) (string, error)
}

// Manager runs stream lifecycle operations over one registry.
type Manager struct {
	store      *Store
	sources    []source.Source
	srcCfg     types.SourcesConfig
	router     CollectionEnsurer
	reconciler Reconciler
	cfg        types.StreamsConfig
	w          io.Writer
}

// NewManager builds a Manager. Progress notes are written to w.
func NewManager(store *Store, sources []source.Source, srcCfg types.SourcesConfig, router CollectionEnsurer, reconciler Reconciler, cfg types.StreamsConfig, w io.Writer) *Manager {
	if w == nil {
		w = io.Discard
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = 20
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = 24 * time.Hour
	}
	return &Manager{
		store:      store,
		sources:    sources,
		srcCfg:     srcCfg,
		router:     router,
		reconciler: reconciler,
		cfg:        cfg,
		w:          w,
	}
}

// Create registers a new stream and binds it to a library collection of
// the same name, creating the collection when the library lacks one.
func (m *Manager) Create(ctx context.Context, name, query string) (*Stream, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("stream name is empty")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("stream query is empty")
	}

	collectionKey, err := m.router.EnsureCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("binding collection for stream %q: %w", name, err)
	}

	st := Stream{
		ID:            slug(name) + "-" + uuid.NewString()[:8],
		Name:          name,
		Query:         query,
		CollectionKey: collectionKey,
		MaxResults:    m.cfg.DefaultMaxResults,
		Interval:      m.cfg.DefaultInterval,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.Put(ctx, st); err != nil {
		return nil, err
	}
	m.export(ctx)
	fmt.Fprintf(m.w, "created stream %s bound to collection %s\n", st.ID, collectionKey)
	return &st, nil
}

// List returns all registered streams.
func (m *Manager) List(ctx context.Context) ([]Stream, error) {
	return m.store.List(ctx)
}

// Get returns one stream by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Stream, error) {
	return m.store.Get(ctx, id)
}

// Delete unregisters a stream. The bound collection and its records stay
// in the library.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.export(ctx)
	return nil
}

// Update runs one stream now: search the external sources, reconcile the
// candidates into the stream's collection, and record the run.
func (m *Manager) Update(ctx context.Context, id string) (*types.SyncResult, error) {
	st, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	srcCfg := m.srcCfg
	if st.MaxResults > 0 {
		srcCfg.MaxResults = st.MaxResults
	}

	out, err := source.SearchAll(ctx, st.Query, m.sources, srcCfg, m.w)
	if err != nil {
		return nil, fmt.Errorf("searching for stream %s: %w", id, err)
	}
	fmt.Fprintf(m.w, "stream %s: %d candidates from sources (%d duplicates removed)\n",
		st.ID, len(out.Records), out.DupsRemoved)

	result, err := m.reconciler.Reconcile(ctx, out.Records, st.CollectionKey)
	if err != nil {
		return nil, fmt.Errorf("reconciling stream %s: %w", id, err)
	}

	st.LastRunAt = time.Now().UTC()
	st.LastCreated = result.Created
	st.LastPresent = result.AlreadyPresent
	st.LastLinked = result.Linked
	if err := m.store.Put(ctx, *st); err != nil {
		return result, fmt.Errorf("recording run for stream %s: %w", id, err)
	}
	m.export(ctx)
	return result, nil
}

// UpdateDue runs every stream whose cadence has elapsed. One stream's
// failure is reported and does not stop the rest.
func (m *Manager) UpdateDue(ctx context.Context, force bool) error {
	streams, err := m.store.List(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var failures int
	for _, st := range streams {
		if !force && !st.Due(now) {
			fmt.Fprintf(m.w, "stream %s not due, skipping\n", st.ID)
			continue
		}
		if _, err := m.Update(ctx, st.ID); err != nil {
			fmt.Fprintf(m.w, "warning: stream %s update failed: %v\n", st.ID, err)
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d stream updates failed", failures, len(streams))
	}
	return nil
}

func (m *Manager) export(ctx context.Context) {
	if err := m.store.ExportYAML(ctx); err != nil {
		fmt.Fprintf(m.w, "warning: streams.yaml write failed: %v\n", err)
	}
}

// slug lowercases a name and collapses runs of non-alphanumerics into
// single hyphens.
func slug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
