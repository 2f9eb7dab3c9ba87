package handlers

import (
	"fmt"
	"net/http"

	"aimint-backend/internal/dto"
	"aimint-backend/internal/models"
	"aimint-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// WorkerHandler is the callback surface for the off-chain AI worker.
type WorkerHandler struct {
	hub *services.HubService
}

// NewWorkerHandler creates the handler.
func NewWorkerHandler(hub *services.HubService) *WorkerHandler {
	return &WorkerHandler{hub: hub}
}

// PendingHandler GET /api/v1/worker/requests/pending
// The worker polls this read surface for work; the hub never calls out.
func (h *WorkerHandler) PendingHandler(c *gin.Context) {
	page, pageSize := parsePagination(c)
	reqs, total, err := h.hub.ListByStatus(c.Request.Context(), models.RequestStatusPending, page, pageSize)
	if err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"requests": reqs,
		"total":    total,
	})
}

// MarkProcessingHandler POST /api/v1/worker/requests/:id/processing
func (h *WorkerHandler) MarkProcessingHandler(c *gin.Context) {
	caller := c.GetString("worker_identity")
	if err := h.hub.MarkProcessing(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CompleteGenerationHandler POST /api/v1/worker/requests/:id/complete
func (h *WorkerHandler) CompleteGenerationHandler(c *gin.Context) {
	var req dto.CompleteGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	caller := c.GetString("worker_identity")
	if err := h.hub.CompleteGeneration(c.Request.Context(), caller, c.Param("id"), req.TokenURI); err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DispatchHandler POST /api/v1/worker/requests/:id/dispatch
// Explicit dispatch for operators and tests; the dispatcher sweep covers the
// normal path.
func (h *WorkerHandler) DispatchHandler(c *gin.Context) {
	if err := h.hub.Dispatch(c.Request.Context(), c.Param("id")); err != nil {
		respondHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
