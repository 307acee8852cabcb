// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sync reconciles batches of externally-discovered candidate
// records against the library: already-present candidates are skipped or
// linked into the target collection, new ones are persisted through the
// router. Implements: prd013-reconcile (R1-R4).
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	gosync "sync"

	"github.com/pdiddy/refsync/internal/backend"
	"github.com/pdiddy/refsync/internal/match"
	"github.com/pdiddy/refsync/internal/route"
	"github.com/pdiddy/refsync/pkg/types"
)

// Library is the slice of the router the orchestrator needs. Satisfied
// by *route.Router.
type Library interface {
	ReadLibrary(ctx context.Context, q backend.ItemQuery) ([]types.BibRecord, *types.RouteDecision, error)
	ReadCollection(ctx context.Context, collectionKey string) ([]types.BibRecord, *types.RouteDecision, error)
	Create(ctx context.Context, rec types.BibRecord, collectionKey string) (string, *types.RouteDecision, error)
	AssignToCollection(ctx context.Context, itemKey, collectionKey string) error
}

// Orchestrator runs reconcile batches over one router.
type Orchestrator struct {
	router Library
	cfg    types.SyncConfig
	w      io.Writer
}

// New builds an Orchestrator. Progress notes are written to w.
func New(router Library, cfg types.SyncConfig, w io.Writer) *Orchestrator {
	if w == nil {
		w = io.Discard
	}
	return &Orchestrator{router: router, cfg: cfg, w: w}
}

// Reconcile processes candidates against the current library state. The
// existing-records index is read once up front; every candidate is
// decided against that snapshot. collectionKey, when non-empty, is the
// target collection for created and linked records. Per-candidate
// failures are isolated: they are recorded and the batch continues.
func (o *Orchestrator) Reconcile(ctx context.Context, candidates []types.BibRecord, collectionKey string) (*types.SyncResult, error) {
	existing, dec, err := o.router.ReadLibrary(ctx, backend.ItemQuery{Limit: o.cfg.LibraryScanLimit})
	if err != nil {
		return nil, fmt.Errorf("reading existing records: %w", err)
	}
	fmt.Fprintf(o.w, "indexed %d existing records via %s\n", len(existing), dec.Chosen)

	members := o.collectionMembers(ctx, collectionKey)

	result := &types.SyncResult{}
	var mu gosync.Mutex

	process := func(cand types.BibRecord) {
		outcome := o.reconcileOne(ctx, cand, existing, members, collectionKey)
		mu.Lock()
		defer mu.Unlock()
		switch outcome.Action {
		case types.ActionCreated:
			result.Created++
		case types.ActionLinked:
			result.Linked++
		case types.ActionSkipped:
			result.AlreadyPresent++
		case types.ActionFailed:
			result.Errors = append(result.Errors, outcome.Err)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if o.cfg.Concurrency < 2 {
		for _, cand := range candidates {
			if ctx.Err() != nil {
				break
			}
			process(cand)
		}
		return result, nil
	}

	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg gosync.WaitGroup
	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(c types.BibRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			process(c)
		}(cand)
	}
	wg.Wait()
	return result, nil
}

// collectionMembers reads the target collection's current membership.
// A read failure degrades to an empty set with a warning: worst case an
// already-member record is re-linked, which the backend treats as a
// no-op.
func (o *Orchestrator) collectionMembers(ctx context.Context, collectionKey string) map[string]struct{} {
	if collectionKey == "" {
		return nil
	}
	records, _, err := o.router.ReadCollection(ctx, collectionKey)
	if err != nil {
		fmt.Fprintf(o.w, "warning: reading collection %s failed, assuming empty membership: %v\n", collectionKey, err)
		return map[string]struct{}{}
	}
	members := make(map[string]struct{}, len(records))
	for _, r := range records {
		members[r.Key] = struct{}{}
	}
	return members
}

// reconcileOne decides and executes the action for a single candidate.
func (o *Orchestrator) reconcileOne(ctx context.Context, cand types.BibRecord, existing []types.BibRecord, members map[string]struct{}, collectionKey string) types.CandidateOutcome {
	outcome := types.CandidateOutcome{Candidate: cand}

	for i := range existing {
		verdict := match.Evaluate(cand, existing[i])
		if !verdict.Duplicate {
			continue
		}
		if !verdict.Corroborated {
			fmt.Fprintf(o.w, "matched %q to %s by title without corroborating metadata\n", cand.Title, existing[i].Key)
		}
		outcome.Matched = &existing[i]

		if collectionKey == "" || existing[i].Key == "" {
			outcome.Action = types.ActionSkipped
			return outcome
		}
		if _, already := members[existing[i].Key]; already {
			outcome.Action = types.ActionSkipped
			return outcome
		}

		err := o.router.AssignToCollection(ctx, existing[i].Key, collectionKey)
		switch {
		case err == nil:
			outcome.Action = types.ActionLinked
		case errors.Is(err, route.ErrAssignUnavailable):
			fmt.Fprintf(o.w, "cannot link %q into %s: assignment primitive unavailable\n", cand.Title, collectionKey)
			outcome.Action = types.ActionSkipped
		default:
			outcome.Action = types.ActionFailed
			outcome.Err = fmt.Sprintf("linking %q to collection %s: %v", cand.Title, collectionKey, err)
		}
		return outcome
	}

	key, _, err := o.router.Create(ctx, cand, collectionKey)
	if err != nil {
		outcome.Action = types.ActionFailed
		outcome.Err = fmt.Sprintf("creating %q: %v", cand.Title, err)
		return outcome
	}
	outcome.Action = types.ActionCreated
	outcome.CreatedKey = key
	return outcome
}
