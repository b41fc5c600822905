package feed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultDebounce = 300 * time.Millisecond

type LoaderOptions struct {
	// Table defaults to PostsTable.
	Table string
	// Debounce is the quiet period LoadDebounced waits for. Zero means
	// DefaultDebounce.
	Debounce time.Duration
}

// LoaderState is a snapshot of the accumulated feed.
type LoaderState struct {
	Posts      []Post `json:"posts"`
	HasMore    bool   `json:"has_more"`
	Query      Query  `json:"query"`
	Generation uint64 `json:"generation"`
	Loading    bool   `json:"loading"`
}

// Loader accumulates pages of one feed. Every filter change and every reload
// of the first page starts a new generation; a response is applied only if
// its generation is still current, and an appended page only if it has the
// identity of the applied list and directly follows its last page.
type Loader struct {
	port     QueryPort
	table    string
	debounce time.Duration

	mu         sync.Mutex
	posts      []Post
	hasMore    bool
	applied    Query
	appliedGen uint64
	identity   Identity
	generation uint64
	inFlight   int
	pending    *time.Timer
	closed     bool
}

func NewLoader(port QueryPort, opts LoaderOptions) *Loader {
	l := &Loader{
		port:     port,
		table:    opts.Table,
		debounce: opts.Debounce,
	}
	if l.table == "" {
		l.table = PostsTable
	}
	if l.debounce <= 0 {
		l.debounce = DefaultDebounce
	}
	return l
}

// Load fetches q and folds it into the accumulated list. Failures are logged
// and yield an empty page with HasMore false; the list is left untouched.
func (l *Loader) Load(ctx context.Context, q Query) Page {
	if err := q.Validate(); err != nil {
		slog.Warn("Rejected feed query", "category", string(q.Category), "page", q.PageIndex, "error", err)
		return Page{Query: q, Posts: []Post{}}
	}

	l.mu.Lock()
	if q.PageIndex == 0 || q.Identity() != l.identity {
		l.generation++
		l.identity = q.Identity()
	}
	gen := l.generation
	l.inFlight++
	l.mu.Unlock()

	page, err := Fetch(ctx, l.port, l.table, q)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight--

	page.Generation = gen
	if err != nil {
		slog.Error("Feed query failed", "category", string(q.Category), "country", q.CountryCode, "page", q.PageIndex, "error", err)
		return Page{Query: q, Posts: []Post{}, Generation: gen}
	}

	if !l.applicable(gen, q) {
		slog.Debug("Discarding stale feed page", "category", string(q.Category), "page", q.PageIndex, "generation", gen, "current", l.generation)
		page.Stale = true
		return page
	}

	if q.PageIndex == 0 {
		l.posts = slices.Clone(page.Posts)
	} else {
		l.posts = appendUnique(l.posts, page.Posts)
	}
	l.hasMore = page.HasMore
	l.applied = q
	l.appliedGen = gen

	return page
}

// applicable must be called with mu held.
func (l *Loader) applicable(gen uint64, q Query) bool {
	if gen != l.generation {
		return false
	}
	if q.PageIndex == 0 {
		return true
	}
	// Match the applied list, which survives a failed first-page load.
	return q.Identity() == l.applied.Identity() && q.PageIndex == l.applied.PageIndex+1
}

func appendUnique(dst, src []Post) []Post {
	seen := make(map[uuid.UUID]bool, len(dst))
	for _, p := range dst {
		seen[p.ID] = true
	}
	for _, p := range src {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		dst = append(dst, p)
	}
	return dst
}

// Refresh reloads the first page of base.
func (l *Loader) Refresh(ctx context.Context, base Query) Page {
	return l.Load(ctx, base.First())
}

// LoadMore loads the page after current.
func (l *Loader) LoadMore(ctx context.Context, current Query) Page {
	return l.Load(ctx, current.Next())
}

// LoadDebounced waits for the debounce window before loading q. A later call
// inside the window supersedes this one, and fn is then never called.
func (l *Loader) LoadDebounced(ctx context.Context, q Query, fn func(Page)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.pending != nil {
		l.pending.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(l.debounce, func() {
		l.mu.Lock()
		current := l.pending == timer && !l.closed
		if current {
			l.pending = nil
		}
		l.mu.Unlock()

		if !current {
			return
		}

		page := l.Load(ctx, q)
		if fn != nil {
			fn(page)
		}
	})
	l.pending = timer
}

func (l *Loader) State() LoaderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LoaderState{
		Posts:      slices.Clone(l.posts),
		HasMore:    l.hasMore,
		Query:      l.applied,
		Generation: l.appliedGen,
		Loading:    l.inFlight > 0 || l.pending != nil,
	}
}

// Close cancels a pending debounced load. Loads already running complete
// normally.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.pending != nil {
		l.pending.Stop()
		l.pending = nil
	}
}
