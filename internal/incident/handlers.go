package incident

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/bridgegate/internal/access"
	"github.com/mbd888/bridgegate/internal/auth"
	"github.com/mbd888/bridgegate/internal/logging"
)

// Handler provides HTTP endpoints for incident analysis and state queries.
type Handler struct {
	engine *Engine
}

// NewHandler creates an incident handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes sets up the public state route.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/state", h.GetState)
}

// RegisterProtectedRoutes sets up routes that need an authenticated principal.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/incidents", h.Analyze)
}

// Analyze handles POST /v1/incidents
func (h *Handler) Analyze(c *gin.Context) {
	caller := auth.Principal(c)

	var report Report
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid incident report body",
		})
		return
	}

	summary, err := h.engine.Analyze(c.Request.Context(), caller, &report)
	if err != nil {
		switch {
		case errors.Is(err, access.ErrNotAuthorized):
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "not_authorized",
				"message": "Only the trusted assessor or the owner may submit incident reports",
			})
		case errors.Is(err, ErrInvalidReport):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "threatScore must be between 0 and 100",
			})
		default:
			logging.L(c.Request.Context()).Error("incident analysis failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "An unexpected error occurred",
			})
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetState handles GET /v1/state
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.State())
}
