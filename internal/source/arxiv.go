// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/refsync/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivSource queries the arXiv Atom API.
type ArxivSource struct {
	Client *http.Client
}

// Name returns the source identifier.
func (s *ArxivSource) Name() string { return "arxiv" }

// Search queries arXiv and maps the Atom feed to candidate records.
func (s *ArxivSource) Search(ctx context.Context, query string, cfg types.SourcesConfig) ([]types.BibRecord, error) {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	terms := strings.Fields(query)
	url := fmt.Sprintf("%s?search_query=all:%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, strings.Join(terms, "+"), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var records []types.BibRecord
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}

		r := types.BibRecord{
			Title:      strings.Join(strings.Fields(entry.Title), " "),
			Abstract:   strings.TrimSpace(entry.Summary),
			DOI:        entry.DOI,
			SourceTags: []string{"arxiv"},
			Raw:        map[string]any{"url": "https://arxiv.org/abs/" + arxivID},
		}
		if r.DOI == "" {
			// Every arXiv entry has a DataCite DOI derived from its ID.
			r.DOI = "10.48550/arXiv." + arxivID
		}

		for _, a := range entry.Authors {
			r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
		}

		if m := arxivYearPattern.FindString(entry.Published); m != "" {
			r.Year, _ = strconv.Atoi(m)
		}

		records = append(records, r)
	}
	return records, nil
}

var arxivYearPattern = regexp.MustCompile(`^\d{4}`)

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	DOI       string        `xml:"doi"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
