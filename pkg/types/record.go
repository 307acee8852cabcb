// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the refsync core.
// Implements: prd010-sync-core (BibRecord, BackendKind, Capability,
//
//	ConnectivityState, RouteDecision, MatchGroup, SyncResult).
//
// See docs/ARCHITECTURE.md § Sync Core, § Data Structures.
package types

import "time"

// BackendKind identifies one of the three independent channels exposing
// the same logical reference library. Fixed at process configuration time.
type BackendKind string

const (
	// BackendLocal is the same-machine HTTP connector with REST-like
	// read/write endpoints.
	BackendLocal BackendKind = "local"

	// BackendRemote is the vendor's authenticated cloud REST API.
	BackendRemote BackendKind = "remote"

	// BackendConnector is the desktop-socket save endpoint. Write-only,
	// fire-and-forget: saves return no identifier.
	BackendConnector BackendKind = "connector"
)

// Capability describes which operations a backend kind supports. Each
// kind has a fixed capability set: this is a static fact of the external
// systems, not configuration.
type Capability struct {
	CanRead        bool
	CanWrite       bool
	CanVerifyWrite bool
}

// ConnectivityState is the prober's cached view of outbound reachability.
// A state older than the prober TTL is treated as unknown and re-probed
// before being trusted for a routing decision.
type ConnectivityState struct {
	// CheckedAt is when the probe that produced this state completed.
	CheckedAt time.Time `json:"checked_at" yaml:"checked_at"`

	// InternetReachable reports whether at least one well-known internet
	// endpoint answered.
	InternetReachable bool `json:"internet_reachable" yaml:"internet_reachable"`

	// RemoteAPIReachable reports whether the remote backend answered an
	// authenticated request. Always false when InternetReachable is false.
	RemoteAPIReachable bool `json:"remote_api_reachable" yaml:"remote_api_reachable"`
}

// BibRecord is the canonical in-memory shape for a single work. Records
// are never mutated in place: matching and enrichment produce new values.
type BibRecord struct {
	// Key is the backend-assigned identifier. Empty until the record has
	// been persisted; not used for identity matching.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// Title is the work's title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists author name strings in source order, either
	// "Lastname, Firstname" or "Firstname Lastname" form.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// DOI is the raw DOI string, possibly carrying a doi: prefix or a
	// resolver URL prefix. Empty when unknown.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// ISBN holds one or more ISBN-10/ISBN-13 forms separated by spaces,
	// commas, or semicolons. Empty when unknown.
	ISBN string `json:"isbn,omitempty" yaml:"isbn,omitempty"`

	// Year is the parsed publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Abstract is the work's abstract or summary, when the source provides one.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// SourceTags names the sources that produced this record
	// (e.g. "arxiv", "openlibrary", or a backend kind).
	SourceTags []string `json:"source_tags,omitempty" yaml:"source_tags,omitempty"`

	// Raw is the opaque backend-specific payload the record was parsed
	// from, kept for round-tripping fields this core does not model.
	Raw map[string]any `json:"-" yaml:"-"`
}

// Collection is a named grouping of records within the library.
type Collection struct {
	Key       string `json:"key" yaml:"key"`
	Name      string `json:"name" yaml:"name"`
	ParentKey string `json:"parent_key,omitempty" yaml:"parent_key,omitempty"`
}

// MatchGroup is one set of records judged to be the same work. Produced
// only by the batch duplicate scan; transient, never persisted.
type MatchGroup struct {
	// CanonicalKey identifies the group: the first member's backend key
	// when present, otherwise its normalized identity.
	CanonicalKey string `json:"canonical_key" yaml:"canonical_key"`

	// Members lists the duplicate records, first-seen first. Always ≥ 2.
	Members []BibRecord `json:"members" yaml:"members"`
}

// RouteDecision records how a single router operation was serviced. It is
// produced per call and discarded afterwards: connectivity can change
// between calls, so decisions are never cached or reused.
type RouteDecision struct {
	// Chosen is the backend that serviced the operation.
	Chosen BackendKind `json:"chosen" yaml:"chosen"`

	// FallbackChain lists the other backends in this operation's
	// ordering: those attempted and failed ahead of Chosen, then those
	// never reached behind it.
	FallbackChain []BackendKind `json:"fallback_chain,omitempty" yaml:"fallback_chain,omitempty"`

	// Verified reports whether a post-write verification read confirmed
	// the expected state. False is not a failure: unverified writes are
	// logged as pending sync and trusted on the write backend's ack.
	Verified bool `json:"verified" yaml:"verified"`
}

// SyncAction classifies what reconcile did with one candidate.
type SyncAction string

const (
	ActionCreated SyncAction = "created"
	ActionLinked  SyncAction = "linked"
	ActionSkipped SyncAction = "skipped"
	ActionFailed  SyncAction = "failed"
)

// CandidateOutcome is the per-candidate pass-through for the report layer.
type CandidateOutcome struct {
	// Candidate is the externally-discovered record as presented.
	Candidate BibRecord `json:"candidate" yaml:"candidate"`

	// Matched is the already-existing library record the candidate was
	// judged a duplicate of, nil when the candidate was new.
	Matched *BibRecord `json:"matched,omitempty" yaml:"matched,omitempty"`

	// CreatedKey is the backend-assigned key for created records, empty
	// for fire-and-forget saves and non-creations.
	CreatedKey string `json:"created_key,omitempty" yaml:"created_key,omitempty"`

	// Action is what reconcile did with this candidate.
	Action SyncAction `json:"action" yaml:"action"`

	// Err is the failure message for ActionFailed, empty otherwise.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SyncResult summarizes one reconcile batch. Per-candidate failures never
// abort the batch; every failure is surfaced in Errors verbatim.
type SyncResult struct {
	// Created counts records persisted as new.
	Created int `json:"created" yaml:"created"`

	// AlreadyPresent counts candidates matched to existing records that
	// needed no write.
	AlreadyPresent int `json:"already_present" yaml:"already_present"`

	// Linked counts existing records newly assigned to the target
	// collection, separate from creations.
	Linked int `json:"linked" yaml:"linked"`

	// Errors lists per-candidate failures with enough context (candidate
	// title, backends attempted, cause) to retry manually.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Outcomes carries the per-candidate detail for display.
	Outcomes []CandidateOutcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}
