// server/internal/api/handlers/respond.go
package handlers

import (
	"errors"
	"net/http"

	"ambulance-dispatch-api-server/internal/dispatch"

	"github.com/gin-gonic/gin"
)

// respondDispatchError maps dispatcher sentinel errors to HTTP status
// codes. Anything unrecognized is a 500.
func respondDispatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
