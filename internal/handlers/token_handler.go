package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"aimint-backend/internal/dto"
	"aimint-backend/internal/repository"
	"aimint-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// TokenHandler exposes the destination minters' token surface.
type TokenHandler struct {
	minter *services.MinterService
}

// NewTokenHandler creates the handler.
func NewTokenHandler(minter *services.MinterService) *TokenHandler {
	return &TokenHandler{minter: minter}
}

// GetTokenHandler GET /api/v1/chains/:chainId/tokens/:tokenId
func (h *TokenHandler) GetTokenHandler(c *gin.Context) {
	chainID, tokenID, ok := h.parseChainToken(c)
	if !ok {
		return
	}
	token, err := h.minter.GetToken(c.Request.Context(), chainID, tokenID)
	if err != nil {
		respondMinterError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

// GetByRequestHandler GET /api/v1/chains/:chainId/tokens/by-request/:requestId
func (h *TokenHandler) GetByRequestHandler(c *gin.Context) {
	chainID, ok := h.parseChainID(c)
	if !ok {
		return
	}
	token, err := h.minter.GetTokenByRequest(c.Request.Context(), chainID, c.Param("requestId"))
	if err != nil {
		respondMinterError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

// ListByOwnerHandler GET /api/v1/chains/:chainId/tokens?owner=0x..
func (h *TokenHandler) ListByOwnerHandler(c *gin.Context) {
	chainID, ok := h.parseChainID(c)
	if !ok {
		return
	}
	owner := c.Query("owner")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "owner query parameter is required"})
		return
	}

	page, pageSize := parsePagination(c)
	tokens, total, err := h.minter.ListByOwner(c.Request.Context(), chainID, owner, page, pageSize)
	if err != nil {
		respondMinterError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"tokens":    tokens,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// BatchMetadataHandler POST /api/v1/chains/:chainId/tokens/batch
func (h *TokenHandler) BatchMetadataHandler(c *gin.Context) {
	chainID, ok := h.parseChainID(c)
	if !ok {
		return
	}
	var req dto.BatchMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	tokens, err := h.minter.BatchMetadata(c.Request.Context(), chainID, req.TokenIDs)
	if err != nil {
		respondMinterError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tokens": tokens})
}

// UpdateMetadataHandler PUT /api/v1/chains/:chainId/tokens/:tokenId/metadata
func (h *TokenHandler) UpdateMetadataHandler(c *gin.Context) {
	chainID, tokenID, ok := h.parseChainToken(c)
	if !ok {
		return
	}
	var req dto.UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	caller := c.GetString("user_address")
	if err := h.minter.UpdateTokenMetadata(c.Request.Context(), caller, chainID, tokenID, req.TokenURI); err != nil {
		respondMinterError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetRoyaltyHandler PUT /api/v1/chains/:chainId/tokens/:tokenId/royalty
func (h *TokenHandler) SetRoyaltyHandler(c *gin.Context) {
	chainID, tokenID, ok := h.parseChainToken(c)
	if !ok {
		return
	}
	var req dto.SetRoyaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	caller := c.GetString("user_address")
	if err := h.minter.SetRoyalty(c.Request.Context(), caller, chainID, tokenID, req.RoyaltyBps); err != nil {
		respondMinterError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TransferBatchHandler POST /api/v1/chains/:chainId/tokens/transfer-batch
func (h *TokenHandler) TransferBatchHandler(c *gin.Context) {
	chainID, ok := h.parseChainID(c)
	if !ok {
		return
	}
	var req dto.TransferBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	caller := c.GetString("user_address")
	if err := h.minter.TransferBatch(c.Request.Context(), caller, chainID, req.Recipients, req.TokenIDs); err != nil {
		respondMinterError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CollectionHandler GET /api/v1/chains/:chainId/collection
func (h *TokenHandler) CollectionHandler(c *gin.Context) {
	chainID, ok := h.parseChainID(c)
	if !ok {
		return
	}
	coll, err := h.minter.GetCollection(c.Request.Context(), chainID)
	if err != nil {
		respondMinterError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "collection": coll})
}

func (h *TokenHandler) parseChainID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("chainId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid chain id"})
		return 0, false
	}
	return uint32(id), true
}

func (h *TokenHandler) parseChainToken(c *gin.Context) (uint32, uint64, bool) {
	chainID, ok := h.parseChainID(c)
	if !ok {
		return 0, 0, false
	}
	tokenID, err := strconv.ParseUint(c.Param("tokenId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid token id"})
		return 0, 0, false
	}
	return chainID, tokenID, true
}

func respondMinterError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNotTokenOwner):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrDuplicateRequest):
		status = http.StatusConflict
	case errors.Is(err, services.ErrBatchLengthMismatch),
		errors.Is(err, services.ErrEmptyBatch),
		errors.Is(err, services.ErrRoyaltyTooHigh),
		errors.Is(err, services.ErrTokenURIRequired),
		errors.Is(err, services.ErrRecipientRequired),
		errors.Is(err, services.ErrInvalidRecipient):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}
