// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source queries external bibliographic APIs and returns
// candidate records in the canonical shape, deduplicated within the
// batch before they reach reconcile.
// Implements: prd014-sources (R1-R4).
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pdiddy/refsync/internal/match"
	"github.com/pdiddy/refsync/pkg/types"
)

// Source searches a single external API. Each provider implements this
// interface; failures of one provider never hide another's results.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, cfg types.SourcesConfig) ([]types.BibRecord, error)
}

// Output holds the merged candidate batch and per-source diagnostics.
type Output struct {
	Records      []types.BibRecord
	DupsRemoved  int
	SourceErrors []string
}

// Enabled builds the provider list from config.
func Enabled(cfg types.SourcesConfig) []Source {
	client := &http.Client{Timeout: cfg.Timeout}
	var sources []Source
	if cfg.EnableArxiv {
		sources = append(sources, &ArxivSource{Client: client})
	}
	if cfg.EnableSemanticScholar {
		sources = append(sources, &SemanticScholarSource{Client: client, APIKey: cfg.SemanticScholarAPIKey})
	}
	if cfg.EnableOpenLibrary {
		sources = append(sources, &OpenLibrarySource{Client: client})
	}
	if cfg.EnableGoogleBooks {
		sources = append(sources, &GoogleBooksSource{Client: client})
	}
	return sources
}

// SearchAll fans the query out to all sources concurrently, staggering
// launches by InterSourceDelay, and merges the results into one
// deduplicated candidate batch. A failing source is reported in
// SourceErrors and skipped; cancellation stops further launches and
// reports the unlaunched sources the same way.
func SearchAll(ctx context.Context, query string, sources []Source, cfg types.SourcesConfig, w io.Writer) (Output, error) {
	if query == "" {
		return Output{}, fmt.Errorf("query is empty")
	}
	if len(sources) == 0 {
		return Output{}, fmt.Errorf("no sources enabled")
	}
	if w == nil {
		w = io.Discard
	}

	type sourceResult struct {
		records []types.BibRecord
		err     error
		name    string
	}

	ch := make(chan sourceResult, len(sources))
	var wg sync.WaitGroup

	for i, s := range sources {
		if i > 0 && cfg.InterSourceDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.InterSourceDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			ch <- sourceResult{err: err, name: s.Name()}
			continue
		}
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()
			records, err := s.Search(ctx, query, cfg)
			ch <- sourceResult{records: records, err: err, name: s.Name()}
		}(s)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var all []types.BibRecord
	var sourceErrors []string
	for sr := range ch {
		if sr.err != nil {
			msg := fmt.Sprintf("%s: %v", sr.name, sr.err)
			sourceErrors = append(sourceErrors, msg)
			fmt.Fprintf(w, "warning: source %s failed: %v\n", sr.name, sr.err)
			continue
		}
		all = append(all, sr.records...)
	}

	deduped, removed := deduplicate(all)
	return Output{
		Records:      deduped,
		DupsRemoved:  removed,
		SourceErrors: sourceErrors,
	}, nil
}

// deduplicate merges batch entries judged to be the same work, keeping
// first-seen field values and accumulating source tags.
func deduplicate(records []types.BibRecord) ([]types.BibRecord, int) {
	var deduped []types.BibRecord
	removed := 0

	for _, r := range records {
		merged := false
		for i := range deduped {
			if match.IsDuplicate(r, deduped[i]) {
				mergeInto(&deduped[i], r)
				removed++
				merged = true
				break
			}
		}
		if !merged {
			deduped = append(deduped, r)
		}
	}
	return deduped, removed
}

// mergeInto fills empty fields of dst from src and accumulates source tags.
func mergeInto(dst *types.BibRecord, src types.BibRecord) {
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = src.Authors
	}
	if dst.Abstract == "" && src.Abstract != "" {
		dst.Abstract = src.Abstract
	}
	if dst.DOI == "" && src.DOI != "" {
		dst.DOI = src.DOI
	}
	if dst.ISBN == "" && src.ISBN != "" {
		dst.ISBN = src.ISBN
	}
	if dst.Year == 0 && src.Year > 0 {
		dst.Year = src.Year
	}
	for _, tag := range src.SourceTags {
		if !hasTag(dst.SourceTags, tag) {
			dst.SourceTags = append(dst.SourceTags, tag)
		}
	}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
