package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gktp0528-oss/europe-market-sub001/app/cfg"
	"github.com/gktp0528-oss/europe-market-sub001/app/clock"
	"github.com/gktp0528-oss/europe-market-sub001/app/country"
	"github.com/gktp0528-oss/europe-market-sub001/app/feed"
	"github.com/google/uuid"
)

func NewHandler(registry *country.Registry, resolver *country.Resolver,
	selection *country.SelectionStore, ticker *clock.MinuteTicker,
	posts PostStore, sessions *SessionManager, pageSize int) *Handler {
	return &Handler{
		registry:  registry,
		resolver:  resolver,
		selection: selection,
		ticker:    ticker,
		posts:     posts,
		generator: feed.NewGenerator(),
		sessions:  sessions,
		pageSize:  pageSize,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":          "ok",
		"timestamp":       time.Now().In(time.Local).Format(time.RFC3339),
		"version":         cfg.GetVersion(),
		"countries":       h.registry.Len(),
		"gazetteer_size":  h.resolver.Size(),
		"selection_state": h.selection.State().String(),
		"sessions":        h.sessions.Len(),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListCountries(c *gin.Context) {
	countries := h.registry.List()
	c.JSON(http.StatusOK, gin.H{
		"countries": countries,
		"total":     len(countries),
	})
}

// GetCountry never fails for an unknown code; it answers with the default
// country and marks the response as a fallback.
func (h *Handler) GetCountry(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))

	found, err := h.registry.ByCode(code)
	if err != nil {
		slog.Debug("Unknown country requested", "country", code)
		c.JSON(http.StatusOK, gin.H{
			"country":  h.selection.Default(),
			"fallback": true,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"country":  found,
		"fallback": false,
	})
}

func (h *Handler) ResolveLocation(c *gin.Context) {
	location := c.Query("location")
	fallback := strings.ToUpper(c.DefaultQuery("fallback", country.AllCode))

	c.JSON(http.StatusOK, gin.H{
		"location":     location,
		"country_code": h.resolver.ResolveCountryCode(location, fallback),
	})
}

func (h *Handler) GetSelection(c *gin.Context) {
	c.JSON(http.StatusOK, h.selectionView())
}

func (h *Handler) UpdateSelection(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing country code"})
		return
	}

	err := h.selection.SelectCode(c.Request.Context(), req.Code)
	switch {
	case errors.Is(err, country.ErrNotResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "Country selection is still resolving"})
		return
	case errors.Is(err, country.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unsupported country"})
		return
	case err != nil:
		slog.Error("Country selection failed", "country", req.Code, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Country selection failed"})
		return
	}

	slog.Info("Country selected", "country", strings.ToUpper(req.Code))
	c.JSON(http.StatusOK, h.selectionView())
}

func (h *Handler) selectionView() gin.H {
	sel := h.selection.Current()
	return gin.H{
		"country": sel.Country,
		"loading": sel.Loading,
		"state":   h.selection.State().String(),
		"source":  string(h.selection.Source()),
	}
}

func (h *Handler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": feed.Categories()})
}

func (h *Handler) GetFeed(c *gin.Context) {
	q, ok := h.queryFromRequest(c, c.Param("category"))
	if !ok {
		return
	}

	page, err := feed.Fetch(c.Request.Context(), h.posts, feed.PostsTable, q)
	if err != nil {
		slog.Error("Feed query failed", "category", string(q.Category), "country", q.CountryCode, "page", q.PageIndex, "error", err)
		page = feed.Page{Query: q}
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(page.Posts)))
	c.JSON(http.StatusOK, h.pageView(page))
}

func (h *Handler) GetFeedRSS(c *gin.Context) {
	q, ok := h.queryFromRequest(c, c.Param("category"))
	if !ok {
		return
	}
	q = q.First()

	page, err := feed.Fetch(c.Request.Context(), h.posts, feed.PostsTable, q)
	if err != nil {
		slog.Error("Feed query failed", "category", string(q.Category), "country", q.CountryCode, "error", err)
		page = feed.Page{Query: q}
	}

	listing := feed.Listing{
		Category:    q.Category.Info(),
		CountryCode: q.CountryCode,
		Search:      q.SearchTerm,
	}
	if selected, err := h.registry.ByCode(q.CountryCode); err == nil && !selected.IsAll() {
		listing.CountryName = selected.Name
	}

	rss, err := h.generator.Run(listing, h.withCountryCodes(page.Posts))
	if err != nil {
		slog.Error("RSS generation error", "category", string(q.Category), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(page.Posts)))
	c.String(http.StatusOK, rss)
}

func (h *Handler) GetPost(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	post, err := h.posts.GetPost(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "id", id.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	c.JSON(http.StatusOK, h.postView(*post))
}

// queryFromRequest reads the feed filters from the request. It writes the
// error response itself and reports false when the request is unusable.
func (h *Handler) queryFromRequest(c *gin.Context, rawCategory string) (feed.Query, bool) {
	category, err := feed.ParseCategory(rawCategory)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown category"})
		return feed.Query{}, false
	}

	pageIndex := 0
	if raw := c.Query("page"); raw != "" {
		pageIndex, err = strconv.Atoi(raw)
		if err != nil || pageIndex < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page parameter"})
			return feed.Query{}, false
		}
	}

	return feed.Query{
		Category:    category,
		CountryCode: h.countryCode(c.Query("country")),
		SearchTerm:  strings.TrimSpace(c.Query("q")),
		PageIndex:   pageIndex,
		PageSize:    h.pageSize,
	}, true
}

// countryCode maps a requested code onto the registry. Missing or unknown
// codes fall back to the active selection.
func (h *Handler) countryCode(raw string) string {
	current := h.selection.Current().Country
	if raw == "" {
		return current.Code
	}
	return h.registry.ByCodeOr(strings.ToUpper(strings.TrimSpace(raw)), current).Code
}

func (h *Handler) postView(p feed.Post) postView {
	if p.CountryCode == "" {
		p.CountryCode = h.resolver.ResolveCountryCode(p.Location, country.AllCode)
	}
	return postView{Post: p, TimeLabel: h.ticker.Label(p.CreatedAt)}
}

func (h *Handler) postViews(posts []feed.Post) []postView {
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, h.postView(p))
	}
	return views
}

func (h *Handler) withCountryCodes(posts []feed.Post) []feed.Post {
	out := make([]feed.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, h.postView(p).Post)
	}
	return out
}

func (h *Handler) pageView(page feed.Page) pageView {
	return pageView{
		Category:   page.Query.Category,
		Country:    page.Query.CountryCode,
		Search:     page.Query.SearchTerm,
		Page:       page.Query.PageIndex,
		PageSize:   page.Query.PageSize,
		HasMore:    page.HasMore,
		Generation: page.Generation,
		Stale:      page.Stale,
		Posts:      h.postViews(page.Posts),
	}
}
