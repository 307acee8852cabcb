// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/refsync/pkg/types"
)

// openLibraryAPIBase is the Open Library search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openLibraryAPIBase = "https://openlibrary.org/search.json"

// openLibraryMaxISBNs caps how many ISBN forms are carried per record;
// popular books list hundreds of editions.
const openLibraryMaxISBNs = 5

// OpenLibrarySource queries the Open Library book search API.
type OpenLibrarySource struct {
	Client *http.Client
}

// Name returns the source identifier.
func (s *OpenLibrarySource) Name() string { return "openlibrary" }

// Search queries Open Library and maps docs to candidate records.
func (s *OpenLibrarySource) Search(ctx context.Context, query string, cfg types.SourcesConfig) ([]types.BibRecord, error) {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{
		"q":      {query},
		"limit":  {fmt.Sprintf("%d", maxResults)},
		"fields": {"title,author_name,first_publish_year,isbn,key"},
	}
	reqURL := openLibraryAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Open Library API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Open Library API returned HTTP %d", resp.StatusCode)
	}

	var olr openLibraryResponse
	if err := json.NewDecoder(resp.Body).Decode(&olr); err != nil {
		return nil, fmt.Errorf("parsing Open Library response: %w", err)
	}

	var records []types.BibRecord
	for _, doc := range olr.Docs {
		isbns := doc.ISBN
		if len(isbns) > openLibraryMaxISBNs {
			isbns = isbns[:openLibraryMaxISBNs]
		}
		r := types.BibRecord{
			Title:      doc.Title,
			Authors:    doc.AuthorName,
			Year:       doc.FirstPublishYear,
			ISBN:       strings.Join(isbns, " "),
			SourceTags: []string{"openlibrary"},
			Raw:        map[string]any{"itemType": "book"},
		}
		if doc.Key != "" {
			r.Raw["url"] = "https://openlibrary.org" + doc.Key
		}
		records = append(records, r)
	}
	return records, nil
}

// Open Library API JSON structures.
type openLibraryResponse struct {
	NumFound int              `json:"numFound"`
	Docs     []openLibraryDoc `json:"docs"`
}

type openLibraryDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	ISBN             []string `json:"isbn"`
}
