package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/patrickmn/go-cache"
)

// Options configures the router.
type Options struct {
	AllowedOrigins string
	CacheTTL       time.Duration
	PublicURL      string
}

// Router wires HTTP handlers.
type Router struct {
	svc       *districtstats.Service
	origins   string
	publicURL string
	cache     *cache.Cache
}

func NewRouter(svc *districtstats.Service, opts Options) *gin.Engine {
	r := &Router{
		svc:       svc,
		origins:   opts.AllowedOrigins,
		publicURL: strings.TrimSpace(opts.PublicURL),
	}
	if opts.CacheTTL > 0 {
		r.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), r.corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/stats", r.cached(), r.getStats)
		api.POST("/stats/refresh", r.refreshStats)
		api.POST("/stats/refresh/async", r.startRefresh)
		api.DELETE("/stats/refresh/:runId", r.cancelRefresh)
		api.GET("/stats/runs", r.listRuns)

		api.GET("/districts", r.cached(), r.listDistricts)
		api.GET("/districts/ranking", r.cached(), r.rankDistricts)
		api.GET("/districts/locate", r.cached(), r.locateDistrict)
		api.GET("/districts/geojson", r.cached(), r.districtGeoJSON)
		api.GET("/districts/export", r.cached(), r.exportDistricts)
		api.GET("/districts/:name", r.cached(), r.getDistrict)

		api.GET("/share.png", r.shareQR)
	}

	return router
}

func (r *Router) corsMiddleware() gin.HandlerFunc {
	origins := strings.Split(r.origins, ",")
	trimmed := make([]string, 0, len(origins))
	for _, o := range origins {
		if t := strings.TrimSpace(o); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := "*"
		for _, o := range trimmed {
			if o == "*" || o == origin {
				allowed = origin
				break
			}
		}
		c.Header("Access-Control-Allow-Origin", allowed)
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}
