// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/refsync/pkg/types"
)

// googleBooksAPIBase is the Google Books volume search endpoint. Declared
// as a var so tests can substitute an httptest server.
var googleBooksAPIBase = "https://www.googleapis.com/books/v1/volumes"

// googleBooksMaxResultsCap is the API's hard limit on maxResults.
const googleBooksMaxResultsCap = 40

// GoogleBooksSource queries the Google Books volumes API.
type GoogleBooksSource struct {
	Client *http.Client
}

// Name returns the source identifier.
func (s *GoogleBooksSource) Name() string { return "googlebooks" }

// Search queries Google Books and maps volumes to candidate records.
func (s *GoogleBooksSource) Search(ctx context.Context, query string, cfg types.SourcesConfig) ([]types.BibRecord, error) {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	if maxResults > googleBooksMaxResultsCap {
		maxResults = googleBooksMaxResultsCap
	}

	params := url.Values{
		"q":          {query},
		"maxResults": {strconv.Itoa(maxResults)},
		"printType":  {"books"},
	}
	reqURL := googleBooksAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Google Books API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Google Books API returned HTTP %d", resp.StatusCode)
	}

	var gbr googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&gbr); err != nil {
		return nil, fmt.Errorf("parsing Google Books response: %w", err)
	}

	var records []types.BibRecord
	for _, item := range gbr.Items {
		info := item.VolumeInfo
		r := types.BibRecord{
			Title:      info.Title,
			Authors:    info.Authors,
			Abstract:   info.Description,
			SourceTags: []string{"googlebooks"},
			Raw:        map[string]any{"itemType": "book"},
		}
		if info.Subtitle != "" {
			r.Title = info.Title + ": " + info.Subtitle
		}

		var isbns []string
		for _, id := range info.IndustryIdentifiers {
			if id.Type == "ISBN_10" || id.Type == "ISBN_13" {
				isbns = append(isbns, id.Identifier)
			}
		}
		r.ISBN = strings.Join(isbns, " ")

		if m := gbYearPattern.FindString(info.PublishedDate); m != "" {
			r.Year, _ = strconv.Atoi(m)
		}

		records = append(records, r)
	}
	return records, nil
}

var gbYearPattern = regexp.MustCompile(`^\d{4}`)

// Google Books API JSON structures.
type googleBooksResponse struct {
	TotalItems int               `json:"totalItems"`
	Items      []googleBooksItem `json:"items"`
}

type googleBooksItem struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		Authors             []string `json:"authors"`
		Description         string   `json:"description"`
		PublishedDate       string   `json:"publishedDate"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
	} `json:"volumeInfo"`
}
