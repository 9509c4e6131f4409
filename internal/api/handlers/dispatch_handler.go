// server/internal/api/handlers/dispatch_handler.go
package handlers

import (
	"net/http"

	"ambulance-dispatch-api-server/internal/cache"
	"ambulance-dispatch-api-server/internal/dispatch"

	"github.com/gin-gonic/gin"
)

type DispatchHandler struct {
	Dispatcher *dispatch.Dispatcher
	Cache      *cache.Client
}

// RunAssignmentPass lets an admin force a reassignment pass over
// pending requests, e.g. after bringing units back online.
func (h *DispatchHandler) RunAssignmentPass(c *gin.Context) {
	assigned, err := h.Dispatcher.RunAssignmentPass(c.Request.Context())
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	h.Cache.InvalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "success", "assigned": assigned})
}
