package feed

import (
	"fmt"
	"strings"
)

// allCountries mirrors country.AllCode; a query for it applies no country filter.
const allCountries = "ALL"

// Query describes one page of a feed. PageIndex 0 replaces the accumulated
// list; any later page appends to it.
type Query struct {
	Category    Category `json:"category"`
	CountryCode string   `json:"country_code"`
	SearchTerm  string   `json:"search_term,omitempty"`
	PageIndex   int      `json:"page_index"`
	PageSize    int      `json:"page_size"`
}

// Identity is the filter part of a Query; two queries with equal identities
// page through the same result set.
type Identity struct {
	Category    Category
	CountryCode string
	SearchTerm  string
}

func (q Query) Identity() Identity {
	return Identity{
		Category:    q.Category,
		CountryCode: strings.ToUpper(strings.TrimSpace(q.CountryCode)),
		SearchTerm:  strings.TrimSpace(q.SearchTerm),
	}
}

func (q Query) Validate() error {
	if !q.Category.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, fmt.Errorf("%w: %q", ErrUnknownCategory, q.Category))
	}
	if q.PageIndex < 0 {
		return fmt.Errorf("%w: negative page index %d", ErrInvalidQuery, q.PageIndex)
	}
	if q.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidQuery, q.PageSize)
	}
	return nil
}

// Range returns the inclusive row range of the page.
func (q Query) Range() (int, int) {
	start := q.PageIndex * q.PageSize
	return start, start + q.PageSize - 1
}

func (q Query) Filters() Filters {
	id := q.Identity()
	f := Filters{Search: id.SearchTerm}
	if id.Category != CategoryAll {
		f.Category = id.Category
	}
	if id.CountryCode != "" && id.CountryCode != allCountries {
		f.CountryCode = id.CountryCode
	}
	return f
}

// First returns q rewound to the first page.
func (q Query) First() Query {
	q.PageIndex = 0
	return q
}

// Next returns the query for the page after q.
func (q Query) Next() Query {
	q.PageIndex++
	return q
}
