package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gktp0528-oss/europe-market-sub001/app/cfg"
)

func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/health", handler.GetHealth)

	api := r.Group("/api")
	{
		api.GET("/countries", handler.ListCountries)
		api.GET("/countries/:code", handler.GetCountry)
		api.GET("/resolve", handler.ResolveLocation)

		api.GET("/selection", handler.GetSelection)
		api.PUT("/selection", handler.UpdateSelection)

		api.GET("/categories", handler.ListCategories)
		api.GET("/feeds/:category", handler.GetFeed)
		api.GET("/feeds/:category/rss", handler.GetFeedRSS)
		api.GET("/posts/:id", handler.GetPost)

		api.POST("/sessions", handler.CreateSession)
		api.GET("/sessions/:id", handler.GetSession)
		api.GET("/sessions/:id/feed", handler.RefreshSession)
		api.POST("/sessions/:id/more", handler.LoadMoreSession)
		api.POST("/sessions/:id/search", handler.SearchSession)
		api.DELETE("/sessions/:id", handler.DeleteSession)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "Eurosari",
			"version":     cfg.GetVersion(),
			"description": "Classifieds for Koreans living in Europe",
			"endpoints": map[string]string{
				"health":     "/health",
				"countries":  "/api/countries",
				"resolve":    "/api/resolve?location=<text>",
				"selection":  "/api/selection",
				"categories": "/api/categories",
				"feed":       "/api/feeds/<category>?country=<code>&q=<term>&page=<n>",
				"rss":        "/api/feeds/<category>/rss",
				"post":       "/api/posts/<id>",
				"sessions":   "/api/sessions",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}
