package api

import (
	"context"

	"github.com/gktp0528-oss/europe-market-sub001/app/clock"
	"github.com/gktp0528-oss/europe-market-sub001/app/country"
	"github.com/gktp0528-oss/europe-market-sub001/app/database"
	"github.com/gktp0528-oss/europe-market-sub001/app/feed"
	"github.com/google/uuid"
)

type GeneratorInterface interface {
	Run(listing feed.Listing, posts []feed.Post) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// PostStore is the remote listing store.
type PostStore interface {
	feed.QueryPort
	GetPost(ctx context.Context, id uuid.UUID) (*feed.Post, error)
}

var (
	_ PostStore = (*database.PostRepository)(nil)
	_ PostStore = (*feed.MemoryStore)(nil)
)

type Handler struct {
	registry  *country.Registry
	resolver  *country.Resolver
	selection *country.SelectionStore
	ticker    *clock.MinuteTicker
	posts     PostStore
	generator GeneratorInterface
	sessions  *SessionManager
	pageSize  int
}

// postView is a post as rendered to clients.
type postView struct {
	feed.Post
	TimeLabel string `json:"time_label"`
}

type pageView struct {
	Category   feed.Category `json:"category"`
	Country    string        `json:"country"`
	Search     string        `json:"search,omitempty"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	HasMore    bool          `json:"has_more"`
	Generation uint64        `json:"generation,omitempty"`
	Stale      bool          `json:"stale,omitempty"`
	Posts      []postView    `json:"posts"`
}

type sessionView struct {
	ID         string        `json:"id"`
	Category   feed.Category `json:"category,omitempty"`
	Country    string        `json:"country,omitempty"`
	Search     string        `json:"search,omitempty"`
	Page       int           `json:"page"`
	HasMore    bool          `json:"has_more"`
	Loading    bool          `json:"loading"`
	Generation uint64        `json:"generation"`
	Total      int           `json:"total"`
	Posts      []postView    `json:"posts"`
}

type selectRequest struct {
	Code string `json:"code" binding:"required"`
}

type searchRequest struct {
	Category string `json:"category"`
	Country  string `json:"country"`
	Query    string `json:"q"`
}
