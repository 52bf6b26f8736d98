package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Stats is the operator-facing counters snapshot.
type Stats struct {
	Ingested      int64 `json:"ingested"`
	Persisted     int64 `json:"persisted"`
	Cursor        int64 `json:"cursor"`
	CachedHandles int   `json:"cached_handles"`
}

// Handler serves the operational endpoints: health, stats, and metrics.
type Handler struct {
	stats  func() Stats
	router *gin.Engine
	log    *zap.Logger
}

// NewHandler creates the ops handler
func NewHandler(stats func() Stats, log *zap.Logger) *Handler {
	gin.SetMode(gin.ReleaseMode)

	h := &Handler{
		stats:  stats,
		router: gin.New(),
		log:    log,
	}
	h.router.Use(gin.Recovery())
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/stats", h.getStats)
	h.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// getStats handles GET /stats
func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats())
}
