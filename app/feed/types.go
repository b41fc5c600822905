package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostsTable is the remote table holding every listing.
const PostsTable = "posts"

var (
	ErrInvalidQuery    = errors.New("invalid feed query")
	ErrInvalidPost     = errors.New("invalid post")
	ErrUnknownCategory = errors.New("unknown category")
)

type Post struct {
	ID          uuid.UUID `json:"id"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	ImageURLs   []string  `json:"image_urls,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	AuthorID    uuid.UUID `json:"author_id"`
	ViewCount   int       `json:"view_count"`
	LikeCount   int       `json:"like_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p Post) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidPost)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("%w: post %s has no created_at", ErrInvalidPost, p.ID)
	}
	if !p.Category.Valid() || p.Category == CategoryAll {
		return fmt.Errorf("%w: post %s has category %q", ErrInvalidPost, p.ID, p.Category)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: post %s has no title", ErrInvalidPost, p.ID)
	}
	return nil
}

// Filters are AND-ed. Empty fields apply no constraint.
type Filters struct {
	Category    Category
	CountryCode string
	Search      string
}

// QueryPort executes one filtered query against the remote store. Rows come
// back newest first and cover the inclusive range [start, end].
type QueryPort interface {
	Query(ctx context.Context, table string, filters Filters, start, end int) ([]Post, error)
}
