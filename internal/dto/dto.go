// Package dto holds the request/response shapes of the HTTP surface.
package dto

import (
	"github.com/golang-jwt/jwt/v5"
)

// AuthRequest is a wallet-signature login.
type AuthRequest struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// AuthResponse carries the issued JWT.
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// JWTClaims are the user token claims.
type JWTClaims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// AdminJWTClaims are the admin token claims.
type AdminJWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AdminLoginRequest is the password + TOTP admin login.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"required"`
}

// SubmitMintRequest creates a new mint request.
type SubmitMintRequest struct {
	Prompt             string `json:"prompt" binding:"required"`
	DestinationChainID uint32 `json:"destination_chain_id" binding:"required"`
	Recipient          string `json:"recipient" binding:"required"`
	RoyaltyBps         uint16 `json:"royalty_bps"`
	FeePaid            string `json:"fee_paid" binding:"required"`
}

// CompleteGenerationRequest is the worker's completion callback.
type CompleteGenerationRequest struct {
	TokenURI string `json:"token_uri" binding:"required"`
}

// RegisterChainRequest registers a destination chain.
type RegisterChainRequest struct {
	ChainID        uint32 `json:"chain_id" binding:"required"`
	Name           string `json:"name" binding:"required"`
	MinterEndpoint string `json:"minter_endpoint" binding:"required"`
}

// SetChainEnabledRequest toggles a chain.
type SetChainEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetFeeRequest adjusts the minimum fee.
type SetFeeRequest struct {
	MinimumFee string `json:"minimum_fee" binding:"required"`
}

// WithdrawFeesRequest withdraws collected fees.
type WithdrawFeesRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// UpdateMetadataRequest replaces a token URI.
type UpdateMetadataRequest struct {
	TokenURI string `json:"token_uri" binding:"required"`
}

// SetRoyaltyRequest adjusts a token royalty.
type SetRoyaltyRequest struct {
	RoyaltyBps uint16 `json:"royalty_bps"`
}

// TransferBatchRequest moves several tokens at once.
type TransferBatchRequest struct {
	Recipients []string `json:"recipients" binding:"required"`
	TokenIDs   []uint64 `json:"token_ids" binding:"required"`
}

// BatchMetadataRequest fetches several tokens at once.
type BatchMetadataRequest struct {
	TokenIDs []uint64 `json:"token_ids" binding:"required"`
}
