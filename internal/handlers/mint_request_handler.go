package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"aimint-backend/internal/dto"
	"aimint-backend/internal/models"
	"aimint-backend/internal/repository"
	"aimint-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// MintRequestHandler exposes the hub's request lifecycle over HTTP.
type MintRequestHandler struct {
	hub *services.HubService
}

// NewMintRequestHandler creates the handler.
func NewMintRequestHandler(hub *services.HubService) *MintRequestHandler {
	return &MintRequestHandler{hub: hub}
}

// SubmitHandler POST /api/v1/requests
func (h *MintRequestHandler) SubmitHandler(c *gin.Context) {
	var req dto.SubmitMintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	requester := c.GetString("user_address")
	res, err := h.hub.Submit(c.Request.Context(), requester, req.Prompt, req.DestinationChainID, req.Recipient, req.RoyaltyBps, req.FeePaid)
	if err != nil {
		respondHubError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"request": res.Request,
		"refund":  res.Refund,
	})
}

// GetHandler GET /api/v1/requests/:id
func (h *MintRequestHandler) GetHandler(c *gin.Context) {
	req, err := h.hub.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "request": req})
}

// ListByStatusHandler GET /api/v1/requests?status=pending&page=1&page_size=20
func (h *MintRequestHandler) ListByStatusHandler(c *gin.Context) {
	status := models.RequestStatus(c.Query("status"))
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "status query parameter is required"})
		return
	}

	page, pageSize := parsePagination(c)
	reqs, total, err := h.hub.ListByStatus(c.Request.Context(), status, page, pageSize)
	if err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"requests":  reqs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListMineHandler GET /api/v1/my/requests
func (h *MintRequestHandler) ListMineHandler(c *gin.Context) {
	requester := c.GetString("user_address")
	page, pageSize := parsePagination(c)

	reqs, total, err := h.hub.ListByRequester(c.Request.Context(), requester, page, pageSize)
	if err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"requests":  reqs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// CancelHandler POST /api/v1/requests/:id/cancel
func (h *MintRequestHandler) CancelHandler(c *gin.Context) {
	caller := c.GetString("user_address")
	refund, err := h.hub.Cancel(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "refund": refund})
}

// RetryHandler POST /api/v1/requests/:id/retry
func (h *MintRequestHandler) RetryHandler(c *gin.Context) {
	caller := c.GetString("user_address")
	if err := h.hub.Retry(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListChainsHandler GET /api/v1/chains
func (h *MintRequestHandler) ListChainsHandler(c *gin.Context) {
	chains, err := h.hub.ListChains(c.Request.Context())
	if err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chains": chains})
}

// StatsHandler GET /api/v1/stats
func (h *MintRequestHandler) StatsHandler(c *gin.Context) {
	stats, err := h.hub.GetPlatformStats(c.Request.Context())
	if err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// respondHubError maps service errors to HTTP status codes.
func respondHubError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNotRequester),
		errors.Is(err, services.ErrUnauthorizedWorker):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrHubPaused):
		status = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrCannotCancelState),
		errors.Is(err, services.ErrCannotRetryState),
		errors.Is(err, services.ErrMaxRetriesExceeded):
		status = http.StatusConflict
	case errors.Is(err, services.ErrPromptRequired),
		errors.Is(err, services.ErrPromptTooLong),
		errors.Is(err, services.ErrRecipientRequired),
		errors.Is(err, services.ErrInvalidRecipient),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInsufficientFee),
		errors.Is(err, services.ErrFeeOutOfBounds),
		errors.Is(err, services.ErrRoyaltyTooHigh),
		errors.Is(err, services.ErrChainNotRegistered),
		errors.Is(err, services.ErrChainDisabled),
		errors.Is(err, services.ErrTokenURIRequired),
		errors.Is(err, services.ErrInsufficientFunds):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}
