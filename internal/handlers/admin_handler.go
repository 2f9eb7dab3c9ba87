package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"aimint-backend/internal/dto"
	"aimint-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler is the owner surface: chain registry, fee bounds, pause,
// fee withdrawal.
type AdminHandler struct {
	hub *services.HubService
}

// NewAdminHandler creates the handler.
func NewAdminHandler(hub *services.HubService) *AdminHandler {
	return &AdminHandler{hub: hub}
}

// RegisterChainHandler POST /api/v1/admin/chains
func (h *AdminHandler) RegisterChainHandler(c *gin.Context) {
	var req dto.RegisterChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	reg, err := h.hub.RegisterChain(c.Request.Context(), req.ChainID, req.Name, req.MinterEndpoint)
	if err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chain": reg})
}

// SetChainEnabledHandler PUT /api/v1/admin/chains/:chainId/enabled
func (h *AdminHandler) SetChainEnabledHandler(c *gin.Context) {
	var req dto.SetChainEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	chainID, err := parseChainParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid chain id"})
		return
	}
	if err := h.hub.SetChainEnabled(c.Request.Context(), chainID, *req.Enabled); err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetFeeHandler PUT /api/v1/admin/fee
func (h *AdminHandler) SetFeeHandler(c *gin.Context) {
	var req dto.SetFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if err := h.hub.SetMinimumFee(req.MinimumFee); err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "minimum_fee": h.hub.MinimumFee()})
}

// PauseHandler POST /api/v1/admin/pause
func (h *AdminHandler) PauseHandler(c *gin.Context) {
	h.hub.SetPaused(true)
	c.JSON(http.StatusOK, gin.H{"success": true, "paused": true})
}

// UnpauseHandler POST /api/v1/admin/unpause
func (h *AdminHandler) UnpauseHandler(c *gin.Context) {
	h.hub.SetPaused(false)
	c.JSON(http.StatusOK, gin.H{"success": true, "paused": false})
}

// WithdrawFeesHandler POST /api/v1/admin/withdraw
func (h *AdminHandler) WithdrawFeesHandler(c *gin.Context) {
	var req dto.WithdrawFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if err := h.hub.WithdrawFees(c.Request.Context(), req.Amount); err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "withdrawn": req.Amount})
}

func parseChainParam(c *gin.Context) (uint32, error) {
	id, err := strconv.ParseUint(c.Param("chainId"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}
