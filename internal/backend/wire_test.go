// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"reflect"
	"testing"

	"github.com/pdiddy/refsync/pkg/types"
)

func TestToRecord(t *testing.T) {
	w := wireItem{
		Key: "ABCD1234",
		Data: map[string]any{
			"title":        "Attention Is All You Need",
			"abstractNote": "The dominant sequence transduction models...",
			"DOI":          "10.48550/arXiv.1706.03762",
			"ISBN":         "978-0-13-468599-1",
			"date":         "2017-06-12",
			"creators": []any{
				map[string]any{"creatorType": "author", "lastName": "Vaswani", "firstName": "Ashish"},
				map[string]any{"creatorType": "author", "lastName": "Shazeer"},
				map[string]any{"creatorType": "editor", "lastName": "Ignored", "firstName": "Also"},
				map[string]any{"creatorType": "author", "name": "DeepMind Team"},
			},
		},
	}

	rec := toRecord(w)

	if rec.Key != "ABCD1234" {
		t.Errorf("Key = %q, want ABCD1234", rec.Key)
	}
	if rec.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.Year != 2017 {
		t.Errorf("Year = %d, want 2017", rec.Year)
	}
	if rec.DOI != "10.48550/arXiv.1706.03762" {
		t.Errorf("DOI = %q", rec.DOI)
	}
	want := []string{"Vaswani, Ashish", "Shazeer", "DeepMind Team"}
	if !reflect.DeepEqual(rec.Authors, want) {
		t.Errorf("Authors = %v, want %v", rec.Authors, want)
	}
	if rec.Raw == nil {
		t.Error("Raw data dictionary not preserved")
	}
}

func TestToRecordLowercaseDOIFallback(t *testing.T) {
	rec := toRecord(wireItem{Key: "K", Data: map[string]any{"doi": "10.1000/xyz"}})
	if rec.DOI != "10.1000/xyz" {
		t.Errorf("DOI = %q, want 10.1000/xyz", rec.DOI)
	}
}

func TestToRecordMissingData(t *testing.T) {
	rec := toRecord(wireItem{Key: "K"})
	if rec.Key != "K" || rec.Title != "" || rec.Year != 0 || len(rec.Authors) != 0 {
		t.Errorf("unexpected record from empty data: %+v", rec)
	}
}

func TestCreatorPayload(t *testing.T) {
	tests := []struct {
		name   string
		author string
		want   map[string]any
	}{
		{
			name:   "last comma first",
			author: "Knuth, Donald",
			want:   map[string]any{"creatorType": "author", "lastName": "Knuth", "firstName": "Donald"},
		},
		{
			name:   "first last",
			author: "Donald Knuth",
			want:   map[string]any{"creatorType": "author", "lastName": "Knuth", "firstName": "Donald"},
		},
		{
			name:   "multi-token first name",
			author: "Jan van der Berg",
			want:   map[string]any{"creatorType": "author", "lastName": "Berg", "firstName": "Jan van der"},
		},
		{
			name:   "single token",
			author: "Aristotle",
			want:   map[string]any{"creatorType": "author", "name": "Aristotle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := creatorPayload(tt.author)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("creatorPayload(%q) = %v, want %v", tt.author, got, tt.want)
			}
		})
	}
}

func TestItemPayloadCollectionMembership(t *testing.T) {
	rec := types.BibRecord{Title: "SICP", ISBN: "9780262510875", Year: 1996}

	with := itemPayload(rec, "COLL1")
	cols, ok := with["collections"].([]string)
	if !ok || len(cols) != 1 || cols[0] != "COLL1" {
		t.Errorf("collections = %v, want [COLL1]", with["collections"])
	}

	without := itemPayload(rec, "")
	if _, present := without["collections"]; present {
		t.Error("empty collection key must not attach membership")
	}
	if without["date"] != "1996" {
		t.Errorf("date = %v, want 1996", without["date"])
	}
	if without["itemType"] != "journalArticle" {
		t.Errorf("itemType = %v, want journalArticle default", without["itemType"])
	}
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		kind types.BackendKind
		want types.Capability
	}{
		{types.BackendLocal, types.Capability{CanRead: true, CanWrite: true, CanVerifyWrite: true}},
		{types.BackendRemote, types.Capability{CanRead: true, CanWrite: true, CanVerifyWrite: true}},
		{types.BackendConnector, types.Capability{CanWrite: true}},
	}
	for _, tt := range tests {
		if got := Capabilities(tt.kind); got != tt.want {
			t.Errorf("Capabilities(%s) = %+v, want %+v", tt.kind, got, tt.want)
		}
	}
}
