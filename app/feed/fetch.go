package feed

import (
	"context"
	"fmt"
)

// Page is the result of executing one Query.
type Page struct {
	Query      Query  `json:"query"`
	Posts      []Post `json:"posts"`
	HasMore    bool   `json:"has_more"`
	Generation uint64 `json:"generation"`
	// Stale is set by Loader when the page arrived after a newer filter was
	// issued and was therefore not applied.
	Stale bool `json:"stale,omitempty"`
}

// Fetch runs q against port without any accumulated state. HasMore is true
// exactly when a full page came back, so a final page that happens to be full
// costs one extra empty fetch.
func Fetch(ctx context.Context, port QueryPort, table string, q Query) (Page, error) {
	if err := q.Validate(); err != nil {
		return Page{Query: q}, err
	}

	start, end := q.Range()
	posts, err := port.Query(ctx, table, q.Filters(), start, end)
	if err != nil {
		return Page{Query: q}, fmt.Errorf("failed to query %s: %w", table, err)
	}

	for _, p := range posts {
		if err := p.Validate(); err != nil {
			return Page{Query: q}, fmt.Errorf("failed to read %s rows: %w", table, err)
		}
	}

	if posts == nil {
		posts = []Post{}
	}

	return Page{
		Query:   q,
		Posts:   posts,
		HasMore: len(posts) == q.PageSize,
	}, nil
}
