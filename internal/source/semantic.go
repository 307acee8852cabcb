// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/refsync/internal/httputil"
	"github.com/pdiddy/refsync/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year"

// SemanticScholarSource queries the Semantic Scholar graph API.
type SemanticScholarSource struct {
	Client *http.Client
	APIKey string
}

// Name returns the source identifier.
func (s *SemanticScholarSource) Name() string { return "semantic_scholar" }

// Search queries Semantic Scholar and maps papers to candidate records.
func (s *SemanticScholarSource) Search(ctx context.Context, query string, cfg types.SourcesConfig) ([]types.BibRecord, error) {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", maxResults)},
		"fields": {semanticFields},
	}
	reqURL := semanticAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	var records []types.BibRecord
	for _, paper := range sr.Data {
		r := types.BibRecord{
			Title:      paper.Title,
			Abstract:   paper.Abstract,
			Year:       paper.Year,
			DOI:        paper.ExternalIDs.DOI,
			SourceTags: []string{"semantic_scholar"},
		}
		if r.DOI == "" && paper.ExternalIDs.ArXiv != "" {
			r.DOI = "10.48550/arXiv." + paper.ExternalIDs.ArXiv
		}
		for _, a := range paper.Authors {
			r.Authors = append(r.Authors, a.Name)
		}
		records = append(records, r)
	}
	return records, nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID     string              `json:"paperId"`
	Title       string              `json:"title"`
	Abstract    string              `json:"abstract"`
	Year        int                 `json:"year"`
	Authors     []semanticAuthor    `json:"authors"`
	ExternalIDs semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}
