package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gktp0528-oss/europe-market-sub001/app/feed"
	"github.com/google/uuid"
)

func (h *Handler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"id": s.ID.String()})
}

func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.sessionView(s))
}

// RefreshSession replaces the session's feed with the first page for the
// requested filters.
func (h *Handler) RefreshSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	q, ok := h.queryFromRequest(c, c.DefaultQuery("category", string(feed.CategoryAll)))
	if !ok {
		return
	}

	page := s.Loader.Refresh(c.Request.Context(), q)
	c.JSON(http.StatusOK, gin.H{
		"page":    h.pageView(page),
		"session": h.sessionView(s),
	})
}

func (h *Handler) LoadMoreSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	state := s.Loader.State()
	if state.Query.PageSize == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "No feed loaded for this session"})
		return
	}

	page := s.Loader.LoadMore(c.Request.Context(), state.Query)
	c.JSON(http.StatusOK, gin.H{
		"page":    h.pageView(page),
		"session": h.sessionView(s),
	})
}

// SearchSession schedules a debounced refresh; clients read the result with
// GetSession once loading is false.
func (h *Handler) SearchSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid search request"})
		return
	}

	category := req.Category
	if category == "" {
		category = string(feed.CategoryAll)
	}
	parsed, err := feed.ParseCategory(category)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown category"})
		return
	}

	q := feed.Query{
		Category:    parsed,
		CountryCode: h.countryCode(req.Country),
		SearchTerm:  req.Query,
		PageSize:    h.pageSize,
	}

	id := s.ID.String()
	s.Loader.LoadDebounced(s.Context(), q, func(page feed.Page) {
		slog.Debug("Debounced search applied", "session", id, "search", q.SearchTerm, "posts", len(page.Posts), "stale", page.Stale)
	})

	c.JSON(http.StatusAccepted, gin.H{"id": id, "search": q.SearchTerm})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	if !h.sessions.Delete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return nil, false
	}

	s, ok := h.sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}

	return s, true
}

func (h *Handler) sessionView(s *Session) sessionView {
	state := s.Loader.State()
	return sessionView{
		ID:         s.ID.String(),
		Category:   state.Query.Category,
		Country:    state.Query.CountryCode,
		Search:     state.Query.SearchTerm,
		Page:       state.Query.PageIndex,
		HasMore:    state.HasMore,
		Loading:    state.Loading,
		Generation: state.Generation,
		Total:      len(state.Posts),
		Posts:      h.postViews(state.Posts),
	}
}
