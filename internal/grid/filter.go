package grid

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds s for matching: canonical decomposition (NFD), removal of
// combining marks, then lower-casing. "José" and "JOSE" both become "jose".
func Normalize(s string) string {
	// Transformers carry state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Filter returns the records whose normalized name, MAC or IP contains the
// normalized query. Surrounding whitespace in the query is ignored and a
// blank query returns the input unchanged.
//
// Filter never reorders records, so filtering a filtered list with the same
// query yields the same list.
func Filter(records []DeviceRecord, query string) []DeviceRecord {
	if isBlank(query) {
		return records
	}
	q := Normalize(strings.TrimSpace(query))

	out := make([]DeviceRecord, 0, len(records))
	for _, r := range records {
		if Matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether a record matches an already normalized query.
func Matches(r DeviceRecord, normalizedQuery string) bool {
	return strings.Contains(Normalize(r.Name), normalizedQuery) ||
		strings.Contains(Normalize(r.MAC), normalizedQuery) ||
		strings.Contains(Normalize(r.IP), normalizedQuery)
}

// isBlank reports whether s is empty or whitespace only.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
