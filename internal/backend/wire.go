// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/refsync/pkg/types"
)

// wireItem is the JSON shape both REST backends use for a single item:
// a backend-assigned key plus an open field dictionary.
type wireItem struct {
	Key  string         `json:"key"`
	Data map[string]any `json:"data"`
}

// wireCollection is the JSON shape for a collection.
type wireCollection struct {
	Key  string `json:"key"`
	Data struct {
		Name             string `json:"name"`
		ParentCollection any    `json:"parentCollection"`
	} `json:"data"`
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// toRecord maps a wire item to the canonical BibRecord shape. Missing
// fields degrade to zero values; the raw data dictionary is preserved.
func toRecord(w wireItem) types.BibRecord {
	rec := types.BibRecord{
		Key:      w.Key,
		Title:    stringField(w.Data, "title"),
		Abstract: stringField(w.Data, "abstractNote"),
		ISBN:     stringField(w.Data, "ISBN"),
		Raw:      w.Data,
	}

	rec.DOI = stringField(w.Data, "DOI")
	if rec.DOI == "" {
		rec.DOI = stringField(w.Data, "doi")
	}

	if date := stringField(w.Data, "date"); date != "" {
		if m := yearPattern.FindString(date); m != "" {
			rec.Year, _ = strconv.Atoi(m)
		}
	}

	if creators, ok := w.Data["creators"].([]any); ok {
		for _, c := range creators {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if t := stringField(cm, "creatorType"); t != "" && t != "author" {
				continue
			}
			last := strings.TrimSpace(stringField(cm, "lastName"))
			first := strings.TrimSpace(stringField(cm, "firstName"))
			switch {
			case last != "" && first != "":
				rec.Authors = append(rec.Authors, last+", "+first)
			case last != "":
				rec.Authors = append(rec.Authors, last)
			default:
				if name := strings.TrimSpace(stringField(cm, "name")); name != "" {
					rec.Authors = append(rec.Authors, name)
				}
			}
		}
	}

	return rec
}

func toRecords(items []wireItem) []types.BibRecord {
	records := make([]types.BibRecord, 0, len(items))
	for _, w := range items {
		records = append(records, toRecord(w))
	}
	return records
}

// itemPayload maps a BibRecord to the wire field dictionary accepted by
// the write endpoints, attaching collection membership when collectionKey
// is non-empty.
func itemPayload(rec types.BibRecord, collectionKey string) map[string]any {
	data := map[string]any{
		"itemType":     "journalArticle",
		"title":        rec.Title,
		"abstractNote": rec.Abstract,
	}
	if t := stringField(rec.Raw, "itemType"); t != "" {
		data["itemType"] = t
	}
	if rec.DOI != "" {
		data["DOI"] = rec.DOI
	}
	if rec.ISBN != "" {
		data["ISBN"] = rec.ISBN
	}
	if rec.Year > 0 {
		data["date"] = strconv.Itoa(rec.Year)
	}
	if date := stringField(rec.Raw, "date"); date != "" {
		data["date"] = date
	}
	if url := stringField(rec.Raw, "url"); url != "" {
		data["url"] = url
	}

	creators := make([]map[string]any, 0, len(rec.Authors))
	for _, a := range rec.Authors {
		creators = append(creators, creatorPayload(a))
	}
	if len(creators) > 0 {
		data["creators"] = creators
	}

	if len(rec.SourceTags) > 0 {
		tags := make([]map[string]any, 0, len(rec.SourceTags))
		for _, t := range rec.SourceTags {
			tags = append(tags, map[string]any{"tag": t})
		}
		data["tags"] = tags
	}

	if collectionKey != "" {
		data["collections"] = []string{collectionKey}
	}
	return data
}

// creatorPayload splits an author name into the wire creator fields:
// "Last, First" keeps its split, "First Last" puts the final token in
// lastName, single tokens become a bare name.
func creatorPayload(author string) map[string]any {
	c := map[string]any{"creatorType": "author"}
	name := strings.TrimSpace(author)
	if i := strings.Index(name, ","); i >= 0 {
		c["lastName"] = strings.TrimSpace(name[:i])
		c["firstName"] = strings.TrimSpace(name[i+1:])
		return c
	}
	fields := strings.Fields(name)
	if len(fields) > 1 {
		c["lastName"] = fields[len(fields)-1]
		c["firstName"] = strings.Join(fields[:len(fields)-1], " ")
		return c
	}
	c["name"] = name
	return c
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func toCollection(w wireCollection) types.Collection {
	c := types.Collection{Key: w.Key, Name: w.Data.Name}
	if parent, ok := w.Data.ParentCollection.(string); ok {
		c.ParentKey = parent
	}
	return c
}
