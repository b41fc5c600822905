package feed

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process QueryPort holding posts in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	posts []Post
}

func NewMemoryStore(posts ...Post) *MemoryStore {
	m := &MemoryStore{}
	m.Add(posts...)
	return m
}

func (m *MemoryStore) Add(posts ...Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, posts...)
}

// GetPost returns nil, nil when no post has the given id.
func (m *MemoryStore) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.posts {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Query(ctx context.Context, table string, filters Filters, start, end int) ([]Post, error) {
	if table != PostsTable {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid range [%d, %d]", start, end)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := make([]Post, 0, len(m.posts))
	for _, p := range m.posts {
		if matchesFilters(p, filters) {
			matched = append(matched, p)
		}
	}
	m.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if start >= len(matched) {
		return []Post{}, nil
	}
	return matched[start:min(end+1, len(matched))], nil
}

func matchesFilters(p Post, f Filters) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.CountryCode != "" && !strings.EqualFold(p.CountryCode, f.CountryCode) {
		return false
	}
	if f.Search == "" {
		return true
	}
	return containsFold(p.Title, f.Search) ||
		containsFold(p.Description, f.Search) ||
		containsFold(p.Location, f.Search)
}

func containsFold(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}
