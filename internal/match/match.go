// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match decides whether two bibliographic records describe the
// same work. Implements: prd011-dedup (R1-R4);
//
//	docs/ARCHITECTURE § Record Matcher.
//
// Matching is a strict priority chain: DOI, then ISBN, then normalized
// title with year/author corroboration. The first strategy producing a
// definitive verdict wins. Every field access degrades to "signal
// unavailable" on missing data; the matcher never errors.
package match

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/refsync/pkg/types"
)

// Strategy names the matching rule that produced a verdict.
type Strategy string

const (
	StrategyDOI   Strategy = "doi"
	StrategyISBN  Strategy = "isbn"
	StrategyTitle Strategy = "title"
	StrategyNone  Strategy = "none"
)

// minTitleLen guards title-only matches against collisions on short
// generic titles. Normalized titles of this length or shorter never match
// on title alone.
const minTitleLen = 10

// Verdict is the outcome of comparing two records.
type Verdict struct {
	// Duplicate reports whether the records describe the same work.
	Duplicate bool

	// Strategy is the rule that decided, StrategyNone for non-matches.
	Strategy Strategy

	// Corroborated is true for title matches confirmed by at least one
	// secondary signal (year or author). Title matches with no
	// corroboration data available on either side are still positive but
	// flagged for audit logging.
	Corroborated bool
}

// IsDuplicate reports whether candidate and existing describe the same work.
func IsDuplicate(candidate, existing types.BibRecord) bool {
	return Evaluate(candidate, existing).Duplicate
}

// Evaluate compares two records and reports which strategy decided.
func Evaluate(a, b types.BibRecord) Verdict {
	// DOI match: no false-negative tolerance, DOI collision for distinct
	// works is not a realistic occurrence.
	doiA, doiB := NormalizeDOI(a.DOI), NormalizeDOI(b.DOI)
	if doiA != "" && doiB != "" && doiA == doiB {
		return Verdict{Duplicate: true, Strategy: StrategyDOI, Corroborated: true}
	}

	// ISBN match: any form of one side equal to any form of the other.
	if isbnOverlap(ISBNForms(a.ISBN), ISBNForms(b.ISBN)) {
		return Verdict{Duplicate: true, Strategy: StrategyISBN, Corroborated: true}
	}

	// Title match with corroboration.
	titleA, titleB := NormalizeTitle(a.Title), NormalizeTitle(b.Title)
	if titleA != "" && titleA == titleB && utf8.RuneCountInString(titleA) > minTitleLen {
		corroborated, rejected := corroborate(a, b)
		if !rejected {
			return Verdict{Duplicate: true, Strategy: StrategyTitle, Corroborated: corroborated}
		}
	}

	return Verdict{Strategy: StrategyNone}
}

// corroborate applies the secondary signals to a title match. A missing
// signal on either side is skipped rather than treated as rejection:
// absence of information must never manufacture a false rejection.
func corroborate(a, b types.BibRecord) (corroborated, rejected bool) {
	if a.Year > 0 && b.Year > 0 {
		diff := a.Year - b.Year
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			return false, true
		}
		corroborated = true
	}

	authorsA, authorsB := authorSet(a.Authors), authorSet(b.Authors)
	if len(authorsA) > 0 && len(authorsB) > 0 {
		overlap := false
		for name := range authorsA {
			if _, ok := authorsB[name]; ok {
				overlap = true
				break
			}
		}
		if !overlap {
			return false, true
		}
		corroborated = true
	}

	return corroborated, false
}

// FindGroups applies the pairwise test across all unordered pairs in a
// single pass. An item that has joined a group is not re-compared against
// subsequent items, so groups are disjoint. Singletons are not returned.
//
// The pass is O(n²) comparisons, sized for libraries in the thousands;
// callers scanning much larger libraries should pre-bucket by normalized
// DOI prefix or title first letter first.
func FindGroups(records []types.BibRecord) []types.MatchGroup {
	var groups []types.MatchGroup
	grouped := make([]bool, len(records))

	for i := range records {
		if grouped[i] {
			continue
		}
		var members []types.BibRecord
		for j := i + 1; j < len(records); j++ {
			if grouped[j] {
				continue
			}
			if IsDuplicate(records[i], records[j]) {
				if members == nil {
					members = []types.BibRecord{records[i]}
					grouped[i] = true
				}
				members = append(members, records[j])
				grouped[j] = true
			}
		}
		if len(members) >= 2 {
			groups = append(groups, types.MatchGroup{
				CanonicalKey: canonicalKey(members[0]),
				Members:      members,
			})
		}
	}
	return groups
}

// canonicalKey identifies a group by its first member: backend key when
// assigned, else normalized DOI, else normalized title.
func canonicalKey(r types.BibRecord) string {
	if r.Key != "" {
		return r.Key
	}
	if doi := NormalizeDOI(r.DOI); doi != "" {
		return "doi:" + doi
	}
	return "title:" + NormalizeTitle(r.Title)
}

// doiResolverPrefixes are the common resolver URL forms stripped during
// DOI normalization.
var doiResolverPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
}

// NormalizeDOI lower-cases a DOI and strips a leading "doi:" prefix and
// any common resolver URL prefix. Normalization is idempotent.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	d = strings.TrimPrefix(d, "doi:")
	for _, prefix := range doiResolverPrefixes {
		if strings.HasPrefix(d, prefix) {
			d = d[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(d)
}

// NormalizeTitle lower-cases a title, strips all punctuation, and
// collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// isbnSep splits a record's ISBN field into its individual values.
var isbnSep = regexp.MustCompile(`[,;]+`)

// ISBNForms returns the normalized ISBN-10/ISBN-13 forms carried by a
// record's ISBN field: hyphens and spaces stripped within each value,
// check-digit X upper-cased. A comma/semicolon-separated value that does
// not compact to 10 or 13 characters is re-split on whitespace, so both
// "0 306 40615 2" and "0306406152 9780306406157" resolve. Anything else
// is dropped.
func ISBNForms(isbn string) []string {
	var forms []string
	for _, part := range isbnSep.Split(isbn, -1) {
		if f := compactISBN(part); len(f) == 10 || len(f) == 13 {
			forms = append(forms, f)
			continue
		}
		for _, tok := range strings.Fields(part) {
			if f := compactISBN(tok); len(f) == 10 || len(f) == 13 {
				forms = append(forms, f)
			}
		}
	}
	return forms
}

// compactISBN strips hyphens and whitespace and upper-cases the check digit.
func compactISBN(s string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}

func isbnOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// NormalizeAuthor reduces an author name string to lower-case
// "lastname, firstname" form. "Doe, Jane" and "Jane Doe" normalize to the
// same value.
func NormalizeAuthor(name string) string {
	n := strings.TrimSpace(strings.ToLower(name))
	if n == "" {
		return ""
	}
	if i := strings.Index(n, ","); i >= 0 {
		last := strings.TrimSpace(n[:i])
		first := strings.TrimSpace(n[i+1:])
		if first == "" {
			return last
		}
		return last + ", " + first
	}
	fields := strings.Fields(n)
	if len(fields) == 1 {
		return fields[0]
	}
	last := fields[len(fields)-1]
	first := strings.Join(fields[:len(fields)-1], " ")
	return last + ", " + first
}

func authorSet(authors []string) map[string]struct{} {
	set := make(map[string]struct{}, len(authors))
	for _, a := range authors {
		if n := NormalizeAuthor(a); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
