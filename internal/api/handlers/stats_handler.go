// server/internal/api/handlers/stats_handler.go
package handlers

import (
	"net/http"

	"ambulance-dispatch-api-server/internal/cache"
	"ambulance-dispatch-api-server/internal/dispatch"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	Dispatcher *dispatch.Dispatcher
	Cache      *cache.Client
}

// GetStats returns the fleet overview, served from Redis when fresh.
func (h *StatsHandler) GetStats(c *gin.Context) {
	var cached dispatch.Stats
	if h.Cache.GetStats(c.Request.Context(), &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	stats, err := h.Dispatcher.ComputeStats(c.Request.Context())
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	h.Cache.SetStats(c.Request.Context(), stats)
	c.JSON(http.StatusOK, stats)
}
