package country

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type gazetteerEntry struct {
	key  string
	code string
}

// Resolver infers a country code from free-text locations by substring
// matching against the city names of a Registry.
//
// Entries are scanned in declaration order (countries, then their cities) and
// the first key contained in the input wins, even when a later key is a
// longer match.
type Resolver struct {
	entries []gazetteerEntry
}

func NewResolver(reg *Registry) *Resolver {
	r := &Resolver{}
	seen := make(map[string]bool)

	for _, c := range reg.countries {
		for _, city := range c.Cities {
			key := normalizeLocation(city)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			r.entries = append(r.entries, gazetteerEntry{key: key, code: c.Code})
		}
	}

	return r
}

// ResolveCountryCode returns the code of the first gazetteer city found in
// text. Empty or unmatched input yields fallback, and an empty fallback
// means AllCode.
func (r *Resolver) ResolveCountryCode(text, fallback string) string {
	if fallback == "" {
		fallback = AllCode
	}

	normalized := normalizeLocation(text)
	if normalized == "" {
		return fallback
	}

	for _, e := range r.entries {
		if strings.Contains(normalized, e.key) {
			return e.code
		}
	}

	return fallback
}

// Size returns the number of gazetteer keys.
func (r *Resolver) Size() int {
	return len(r.entries)
}

// normalizeLocation composes Hangul (NFD input from some keyboards would
// otherwise never match), folds case and drops all whitespace.
func normalizeLocation(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
