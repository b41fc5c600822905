package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// makePosts returns n posts, newest first, one minute apart.
func makePosts(n int, category Category, country string) []Post {
	posts := make([]Post, n)
	for i := range posts {
		posts[i] = Post{
			ID:          uuid.New(),
			Category:    category,
			Title:       fmt.Sprintf("%s post %d", category, i),
			Location:    "파리 15구",
			CountryCode: country,
			AuthorID:    uuid.New(),
			CreatedAt:   baseTime.Add(-time.Duration(i) * time.Minute),
		}
	}
	return posts
}

// gatedPort wraps a QueryPort and blocks queries whose search term has a gate
// until the gate is released.
type gatedPort struct {
	inner QueryPort

	mu      sync.Mutex
	gates   map[string]chan struct{}
	started map[string]chan struct{}
	calls   int
	fail    error
}

func newGatedPort(inner QueryPort) *gatedPort {
	return &gatedPort{
		inner:   inner,
		gates:   make(map[string]chan struct{}),
		started: make(map[string]chan struct{}),
	}
}

// gate blocks queries for search until release is called. The returned
// started channel is closed when such a query reaches the port.
func (g *gatedPort) gate(search string) (started <-chan struct{}, release func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate := make(chan struct{})
	s := make(chan struct{})
	g.gates[search] = gate
	g.started[search] = s
	return s, func() { close(gate) }
}

func (g *gatedPort) Query(ctx context.Context, table string, filters Filters, start, end int) ([]Post, error) {
	g.mu.Lock()
	g.calls++
	gate := g.gates[filters.Search]
	started := g.started[filters.Search]
	delete(g.started, filters.Search)
	fail := g.fail
	g.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}
	return g.inner.Query(ctx, table, filters, start, end)
}

func (g *gatedPort) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *gatedPort) setFailure(err error) {
	g.mu.Lock()
	g.fail = err
	g.mu.Unlock()
}

var errBackendDown = errors.New("backend down")
