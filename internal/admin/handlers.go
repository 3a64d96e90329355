package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/bridgegate/internal/access"
	"github.com/mbd888/bridgegate/internal/auth"
	"github.com/mbd888/bridgegate/internal/logging"
	"github.com/mbd888/bridgegate/internal/quota"
	"github.com/mbd888/bridgegate/internal/registry"
	"github.com/mbd888/bridgegate/internal/validation"
)

// Handler provides governance HTTP endpoints. Every route requires an
// authenticated principal; per-route role checks go through the access
// controller so the authorization rules live in one place.
type Handler struct {
	acl     *access.Controller
	reg     registry.Store
	ledger  *quota.Ledger
	authMgr *auth.Manager
}

// NewHandler creates an admin handler.
func NewHandler(acl *access.Controller, reg registry.Store, ledger *quota.Ledger, authMgr *auth.Manager) *Handler {
	return &Handler{acl: acl, reg: reg, ledger: ledger, authMgr: authMgr}
}

// RegisterRoutes sets up the admin route group. The caller is expected to
// have already applied RequireAuth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/roles", h.GetRoles)
	r.POST("/guardians", h.AddGuardian)
	r.DELETE("/guardians/:address", h.RemoveGuardian)
	r.PUT("/assessor", h.SetAssessor)

	r.POST("/blocklist", h.BlockAddress)
	r.DELETE("/blocklist/:address", h.UnblockAddress)
	r.GET("/blocklist/:address", h.CheckBlocked)

	r.PUT("/destinations/:destinationId", h.ConfigureDestination)
	r.POST("/destinations/:destinationId/reset", h.ResetDestinationVolume)

	r.GET("/quota", h.GetQuota)
	r.PUT("/quota", h.SetQuota)

	r.POST("/keys", h.IssueKey)
}

// GetRoles handles GET /v1/admin/roles
func (h *Handler) GetRoles(c *gin.Context) {
	caller := auth.Principal(c)
	if err := h.acl.Require(caller, access.RoleOwner, access.RoleGuardian); err != nil {
		h.forbidden(c, "Only the owner or a guardian may view the role set")
		return
	}

	c.JSON(http.StatusOK, RoleSet{
		Owner:     h.acl.Owner(),
		Assessor:  h.acl.Assessor(),
		Guardians: h.acl.Guardians(),
	})
}

// AddGuardian handles POST /v1/admin/guardians
func (h *Handler) AddGuardian(c *gin.Context) {
	caller := auth.Principal(c)

	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !validation.IsValidAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "address must be a valid address (0x + 40 hex chars)",
		})
		return
	}

	if err := h.acl.AddGuardian(caller, req.Address); err != nil {
		h.forbidden(c, "Only the owner may add guardians")
		return
	}

	logging.L(c.Request.Context()).Info("guardian added",
		"guardian", req.Address,
		"caller", caller)

	c.JSON(http.StatusOK, gin.H{"guardian": req.Address, "added": true})
}

// RemoveGuardian handles DELETE /v1/admin/guardians/:address
func (h *Handler) RemoveGuardian(c *gin.Context) {
	caller := auth.Principal(c)
	addr := c.Param("address")

	if err := h.acl.RemoveGuardian(caller, addr); err != nil {
		h.forbidden(c, "Only the owner may remove guardians")
		return
	}

	logging.L(c.Request.Context()).Info("guardian removed",
		"guardian", addr,
		"caller", caller)

	c.JSON(http.StatusOK, gin.H{"guardian": addr, "removed": true})
}

// SetAssessor handles PUT /v1/admin/assessor
func (h *Handler) SetAssessor(c *gin.Context) {
	caller := auth.Principal(c)

	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !validation.IsValidAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "address must be a valid address (0x + 40 hex chars)",
		})
		return
	}

	if err := h.acl.SetAssessor(caller, req.Address); err != nil {
		h.forbidden(c, "Only the owner may change the trusted assessor")
		return
	}

	logging.L(c.Request.Context()).Info("assessor changed",
		"assessor", req.Address,
		"caller", caller)

	c.JSON(http.StatusOK, gin.H{"assessor": req.Address})
}

// BlockAddress handles POST /v1/admin/blocklist
//
// Blocking an already-blocked address succeeds without complaint; the
// operation is idempotent all the way down to the store.
func (h *Handler) BlockAddress(c *gin.Context) {
	caller := auth.Principal(c)
	if err := h.acl.Require(caller, access.RoleOwner, access.RoleGuardian); err != nil {
		h.forbidden(c, "Only the owner or a guardian may block addresses")
		return
	}

	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !validation.IsValidAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "address must be a valid address (0x + 40 hex chars)",
		})
		return
	}

	if err := h.reg.Block(c.Request.Context(), req.Address); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to block address",
		})
		return
	}

	logging.L(c.Request.Context()).Info("address blocked",
		"address", req.Address,
		"caller", caller)

	c.JSON(http.StatusOK, gin.H{"address": req.Address, "blocked": true})
}

// UnblockAddress handles DELETE /v1/admin/blocklist/:address
func (h *Handler) UnblockAddress(c *gin.Context) {
	caller := auth.Principal(c)
	if err := h.acl.Require(caller, access.RoleOwner, access.RoleGuardian); err != nil {
		h.forbidden(c, "Only the owner or a guardian may unblock addresses")
		return
	}

	addr := c.Param("address")
	if !validation.IsValidAddress(addr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "address must be a valid address (0x + 40 hex chars)",
		})
		return
	}

	if err := h.reg.Unblock(c.Request.Context(), addr); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to unblock address",
		})
		return
	}

	logging.L(c.Request.Context()).Info("address unblocked",
		"address", addr,
		"caller", caller)

	c.JSON(http.StatusOK, gin.H{"address": addr, "blocked": false})
}

// CheckBlocked handles GET /v1/admin/blocklist/:address
func (h *Handler) CheckBlocked(c *gin.Context) {
	caller := auth.Principal(c)
	if err := h.acl.Require(caller, access.RoleOwner, access.RoleGuardian); err != nil {
		h.forbidden(c, "Only the owner or a guardian may query the blocklist")
		return
	}

	addr := c.Param("address")
	blocked, err := h.reg.IsBlocked(c.Request.Context(), addr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to check blocklist",
		})
		return
	}

	c.JSON(http.StatusOK, BlockStatus{
		Address:   addr,
		Blocked:   blocked,
		CheckedAt: time.Now().UTC(),
	})
}

// ConfigureDestination handles PUT /v1/admin/destinations/:destinationId
//
// Configuration is a wholesale overwrite: consumed volume and risk score
// reset alongside the limits.
func (h *Handler) ConfigureDestination(c *gin.Context) {
	caller := auth.Principal(c)
	if err := h.acl.Require(caller, access.RoleOwner); err != nil {
		h.forbidden(c, "Only the owner may configure destinations")
		return
	}

	id := validation.SanitizeDestinationID(c.Param("destinationId"))
	if !validation.IsValidDestinationID(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_destination",
			"message": "destination must be a short uppercase chain identifier",
		})
		return
	}

	var req struct {
		Active     bool   `json:"active"`
		DailyLimit uint64 `json:"dailyLimit"`
		RiskScore  uint64 `json:"riskScore"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid destination configuration body",
		})
		return
	}
	if req.RiskScore > 100 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "riskScore must be between 0 and 100",
		})
		return
	}

	dest := &registry.Destination{
		ID:         id,
		Active:     req.Active,
		DailyLimit: req.DailyLimit,
		RiskScore:  req.RiskScore,
	}
	if err := h.reg.PutDestination(c.Request.Context(), dest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to configure destination",
		})
		return
	}

	logging.L(c.Request.Context()).Info("destination configured",
		"destination", id,
		"active", req.Active,
		"dailyLimit", req.DailyLimit,
		"caller", caller)

	c.JSON(http.StatusOK, dest)
}

// ResetDestinationVolume handles POST /v1/admin/destinations/:destinationId/reset
func (h *Handler) ResetDestinationVolume(c *gin.Context) {
	caller := auth.Principal(c)
	if err := h.acl.Require(caller, access.RoleOwner); err != nil {
		h.forbidden(c, "Only the owner may reset destination volume")
		return
	}

	id := validation.SanitizeDestinationID(c.Param("destinationId"))
	if err := h.ledger.ResetDestinationVolume(c.Request.Context(), id); err != nil {
		if errors.Is(err, registry.ErrChainNotSupported) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "chain_not_supported",
				"message": "Destination is not configured",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to reset destination volume",
		})
		return
	}

	logging.L(c.Request.Context()).Info("destination volume reset",
		"destination", id,
		"caller", caller)

	c.JSON(http.StatusOK, gin.H{"destination": id, "consumedVolume": 0})
}

// GetQuota handles GET /v1/admin/quota
func (h *Handler) GetQuota(c *gin.Context) {
	caller := auth.Principal(c)
	if err := h.acl.Require(caller, access.RoleOwner, access.RoleGuardian); err != nil {
		h.forbidden(c, "Only the owner or a guardian may view quota state")
		return
	}

	c.JSON(http.StatusOK, QuotaStatus{
		GlobalLimit: h.ledger.GlobalLimit(),
		MaxLimit:    h.ledger.MaxLimit(),
	})
}

// SetQuota handles PUT /v1/admin/quota
func (h *Handler) SetQuota(c *gin.Context) {
	caller := auth.Principal(c)
	if err := h.acl.Require(caller, access.RoleOwner); err != nil {
		h.forbidden(c, "Only the owner may set the global limit")
		return
	}

	var req struct {
		GlobalLimit uint64 `json:"globalLimit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.GlobalLimit == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "globalLimit must be a positive integer",
		})
		return
	}
	if req.GlobalLimit > h.ledger.MaxLimit() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "globalLimit cannot exceed the configured ceiling",
		})
		return
	}

	h.ledger.SetGlobalLimit(req.GlobalLimit)

	logging.L(c.Request.Context()).Info("global limit set",
		"globalLimit", req.GlobalLimit,
		"caller", caller)

	c.JSON(http.StatusOK, QuotaStatus{
		GlobalLimit: h.ledger.GlobalLimit(),
		MaxLimit:    h.ledger.MaxLimit(),
	})
}

// IssueKey handles POST /v1/admin/keys
//
// The owner can mint an API key bound to any address, which is how the
// assessor and guardians get their credentials without self-registering.
func (h *Handler) IssueKey(c *gin.Context) {
	caller := auth.Principal(c)
	if err := h.acl.Require(caller, access.RoleOwner); err != nil {
		h.forbidden(c, "Only the owner may issue keys for other addresses")
		return
	}

	var req struct {
		Address string `json:"address" binding:"required"`
		Name    string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !validation.IsValidAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "address must be a valid address (0x + 40 hex chars)",
		})
		return
	}

	rawKey, key, err := h.authMgr.GenerateKey(c.Request.Context(), req.Address, validation.SanitizeString(req.Name, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to generate API key",
		})
		return
	}

	logging.L(c.Request.Context()).Info("api key issued",
		"keyId", key.ID,
		"address", req.Address,
		"caller", caller)

	c.JSON(http.StatusCreated, gin.H{
		"id":      key.ID,
		"key":     rawKey,
		"address": key.Address,
		"name":    key.Name,
		"warning": "Store this key securely. It will not be shown again.",
	})
}

func (h *Handler) forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, gin.H{
		"error":   "not_authorized",
		"message": msg,
	})
}
