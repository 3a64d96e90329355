package signals

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/bridgegate/internal/idgen"
	"github.com/mbd888/bridgegate/internal/security"
)

// Handler provides HTTP endpoints for observer subscription management.
type Handler struct {
	store Store
}

// NewHandler creates a subscription handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up observer subscription routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/observers", h.CreateObserver)
	r.GET("/observers", h.ListObservers)
	r.DELETE("/observers/:observerId", h.DeleteObserver)
}

// CreateObserverRequest registers a signal delivery endpoint.
type CreateObserverRequest struct {
	URL   string   `json:"url" binding:"required"`
	Types []string `json:"types"`
}

// CreateObserver handles POST /observers
func (h *Handler) CreateObserver(c *gin.Context) {
	var req CreateObserverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := security.ValidateEndpointURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_url",
			"message": err.Error(),
		})
		return
	}

	types := make([]Type, len(req.Types))
	for i, t := range req.Types {
		types[i] = Type(t)
	}

	secret := generateSecret()
	sub := &Subscription{
		ID:        idgen.WithPrefix("obs_"),
		URL:       req.URL,
		Secret:    secret,
		Types:     types,
		Active:    true,
		CreatedAt: time.Now(),
	}

	if err := h.store.Create(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "create_failed",
			"message": "Failed to create observer subscription",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"observer": gin.H{
			"id":        sub.ID,
			"url":       sub.URL,
			"types":     sub.Types,
			"active":    sub.Active,
			"createdAt": sub.CreatedAt,
		},
		"secret": secret, // shown once
		"usage": gin.H{
			"signature": "Verify with HMAC-SHA256(payload, secret)",
			"header":    "X-Bridgegate-Signature",
		},
	})
}

// ListObservers handles GET /observers
func (h *Handler) ListObservers(c *gin.Context) {
	subs, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list observer subscriptions",
		})
		return
	}

	// Don't expose secrets
	observers := make([]gin.H, len(subs))
	for i, sub := range subs {
		observers[i] = gin.H{
			"id":          sub.ID,
			"url":         sub.URL,
			"types":       sub.Types,
			"active":      sub.Active,
			"createdAt":   sub.CreatedAt,
			"lastSuccess": sub.LastSuccess,
			"lastError":   sub.LastError,
		}
	}

	c.JSON(http.StatusOK, gin.H{"observers": observers})
}

// DeleteObserver handles DELETE /observers/:observerId
func (h *Handler) DeleteObserver(c *gin.Context) {
	id := c.Param("observerId")

	if _, err := h.store.Get(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Observer subscription not found",
		})
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "delete_failed",
			"message": "Failed to delete observer subscription",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func generateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
