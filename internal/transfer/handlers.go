package transfer

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/bridgegate/internal/access"
	"github.com/mbd888/bridgegate/internal/auth"
	"github.com/mbd888/bridgegate/internal/logging"
	"github.com/mbd888/bridgegate/internal/pagination"
	"github.com/mbd888/bridgegate/internal/quota"
	"github.com/mbd888/bridgegate/internal/registry"
	"github.com/mbd888/bridgegate/internal/validation"
)

// Handler provides HTTP endpoints for the transfer lifecycle.
type Handler struct {
	svc *Service
}

// NewHandler creates a transfer handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up public read routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/transfers", h.List)
	r.GET("/transfers/:id", h.Get)
}

// RegisterProtectedRoutes sets up routes that need an authenticated principal.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/transfers", h.Initiate)
	r.POST("/transfers/:id/assessment", h.Assess)
}

// Initiate handles POST /v1/transfers
func (h *Handler) Initiate(c *gin.Context) {
	ctx := c.Request.Context()
	sender := auth.Principal(c)

	var req struct {
		Amount        uint64 `json:"amount" binding:"required"`
		Destination   string `json:"destination" binding:"required"`
		TargetAddress string `json:"targetAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "amount, destination and targetAddress are required",
		})
		return
	}
	if !validation.IsValidAddress(req.TargetAddress) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "targetAddress must be a valid address (0x + 40 hex chars)",
		})
		return
	}
	if !validation.IsValidDestinationID(req.Destination) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_destination",
			"message": "destination must be a short uppercase chain identifier",
		})
		return
	}

	id, err := h.svc.Initiate(ctx, sender, req.Amount, req.Destination, req.TargetAddress)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"requestId": id, "status": StatusPending})
}

// Assess handles POST /v1/transfers/:id/assessment
func (h *Handler) Assess(c *gin.Context) {
	ctx := c.Request.Context()
	caller := auth.Principal(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "request id must be a non-negative integer",
		})
		return
	}

	var req struct {
		Score  *uint64 `json:"score" binding:"required"`
		Reason string  `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "score is required",
		})
		return
	}

	status, err := h.svc.AssessRisk(ctx, caller, id, *req.Score, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requestId": id, "score": *req.Score, "status": status})
}

// Get handles GET /v1/transfers/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid request id"})
		return
	}

	req, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// List handles GET /v1/transfers?limit=N
func (h *Handler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var before uint64
	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid cursor",
		})
		return
	}
	if cursor != nil {
		if id, err := strconv.ParseUint(cursor.ID, 10, 64); err == nil {
			before = id
		}
	}

	// Fetch one extra to know whether another page exists.
	requests, err := h.svc.List(c.Request.Context(), limit+1, before)
	if err != nil {
		h.writeError(c, err)
		return
	}

	requests, next, hasMore := pagination.ComputePage(requests, limit, func(r *Request) (time.Time, string) {
		return r.CreatedAt, strconv.FormatUint(r.ID, 10)
	})

	c.JSON(http.StatusOK, gin.H{
		"transfers":   requests,
		"count":       len(requests),
		"next_cursor": next,
		"has_more":    hasMore,
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTransferPaused):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "transfer_paused",
			"message": "Transfers are globally paused",
		})
	case errors.Is(err, ErrAddressBlocked):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "address_blocked",
			"message": "Sender address is on the blocklist",
		})
	case errors.Is(err, registry.ErrChainNotSupported):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "chain_not_supported",
			"message": "Destination is not configured or inactive",
		})
	case errors.Is(err, quota.ErrLimitExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "limit_exceeded",
			"message": "Amount exceeds the global ceiling or the destination's remaining daily capacity",
		})
	case errors.Is(err, ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Unknown request or parameter out of range",
		})
	case errors.Is(err, access.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_authorized",
			"message": "Caller role does not permit this operation",
		})
	default:
		logging.L(c.Request.Context()).Error("transfer operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}
}
