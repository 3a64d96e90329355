package registry

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/bridgegate/internal/validation"
)

// Handler provides public read endpoints for destination configuration.
type Handler struct {
	store Store
}

// NewHandler creates a registry handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up public destination routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/destinations", h.ListDestinations)
	r.GET("/destinations/:destinationId", h.GetDestination)
}

// ListDestinations handles GET /v1/destinations
func (h *Handler) ListDestinations(c *gin.Context) {
	dests, err := h.store.ListDestinations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list destinations",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"destinations": dests,
		"count":        len(dests),
	})
}

// GetDestination handles GET /v1/destinations/:destinationId
func (h *Handler) GetDestination(c *gin.Context) {
	id := validation.SanitizeDestinationID(c.Param("destinationId"))

	dest, err := h.store.GetDestination(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrChainNotSupported) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "chain_not_supported",
				"message": "Destination is not configured",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load destination",
		})
		return
	}

	c.JSON(http.StatusOK, dest)
}
