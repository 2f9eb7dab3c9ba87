package models

import (
	"time"
)

// RequestStatus is the lifecycle status of a MintRequest.
// Transitions are owned by the hub service; nothing else writes status.
type RequestStatus string

const (
	RequestStatusPending           RequestStatus = "pending"             // accepted, fee escrowed, waiting for AI worker
	RequestStatusProcessing        RequestStatus = "processing"          // AI worker picked the request up
	RequestStatusAICompleted       RequestStatus = "ai_completed"        // generation done, tokenURI set, waiting for dispatch
	RequestStatusCrossChainPending RequestStatus = "cross_chain_pending" // mint instruction sent, waiting for inbound resolution
	RequestStatusCompleted         RequestStatus = "completed"           // token minted on destination chain
	RequestStatusFailed            RequestStatus = "failed"              // destination rejected the mint, retryable
	RequestStatusCancelled         RequestStatus = "cancelled"           // cancelled by requester pre-dispatch, fee refunded
)

// MaxRetries bounds user-initiated retries from the failed state.
const MaxRetries = 3

// MaxRoyaltyBps caps per-token royalty at 10%.
const MaxRoyaltyBps = 1000

// MintRequest is the hub-owned canonical request record.
// Requests are never deleted; terminal rows stay as an audit trail.
type MintRequest struct {
	ID                 string        `json:"id" gorm:"primaryKey;size:66"` // 0x + 32-byte keccak(requester|prompt|nonce)
	Requester          string        `json:"requester" gorm:"size:66;not null;index:idx_requester_status"`
	Prompt             string        `json:"prompt" gorm:"type:text;not null"`
	DestinationChainID uint32        `json:"destination_chain_id" gorm:"not null"`
	Recipient          string        `json:"recipient" gorm:"size:130;not null"` // hex, chain-specific address bytes
	Status             RequestStatus `json:"status" gorm:"size:32;not null;index;index:idx_requester_status"`
	RoyaltyBps         uint16        `json:"royalty_bps" gorm:"not null;default:0"`
	Fee                string        `json:"fee" gorm:"size:78;not null"`     // escrowed amount, decimal string
	TokenURI           string        `json:"token_uri" gorm:"type:text"`      // empty until ai_completed
	TokenID            *uint64       `json:"token_id"`                        // set iff status = completed
	FailureReason      string        `json:"failure_reason" gorm:"type:text"` // set iff status = failed
	RetryCount         int           `json:"retry_count" gorm:"default:0"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// ChainRegistration maps a destination chain to its minter endpoint.
// Disabling a chain only blocks new submissions; in-flight requests keep going.
type ChainRegistration struct {
	ChainID        uint32    `json:"chain_id" gorm:"primaryKey;autoIncrement:false"`
	Name           string    `json:"name" gorm:"size:64;not null"`
	MinterEndpoint string    `json:"minter_endpoint" gorm:"size:255;not null"`
	Enabled        bool      `json:"enabled" gorm:"not null;default:true"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MintedToken is a destination-minter-owned token record, one per successful mint.
// Immutable after creation except Owner (transfer) and RoyaltyBps (owner-settable).
type MintedToken struct {
	ID              uint64    `json:"-" gorm:"primaryKey;autoIncrement"`
	ChainID         uint32    `json:"chain_id" gorm:"not null;uniqueIndex:idx_chain_token;index:idx_chain_owner;uniqueIndex:idx_chain_source"`
	TokenID         uint64    `json:"token_id" gorm:"not null;uniqueIndex:idx_chain_token"`
	Owner           string    `json:"owner" gorm:"size:130;not null;index:idx_chain_owner"`
	TokenURI        string    `json:"token_uri" gorm:"type:text;not null"`
	RoyaltyBps      uint16    `json:"royalty_bps" gorm:"not null"`
	SourceRequestID string    `json:"source_request_id" gorm:"size:66;not null;uniqueIndex:idx_chain_source"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProcessedRequest is the minter's persistent idempotency set.
// Primary key on (chain_id, request_id): the insert is the check — a duplicate
// delivery fails the transaction before any token row is written.
type ProcessedRequest struct {
	ChainID     uint32    `json:"chain_id" gorm:"primaryKey;autoIncrement:false"`
	RequestID   string    `json:"request_id" gorm:"primaryKey;size:66"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ChainCollection holds the per-chain token counter and collection statistics,
// updated in the same transaction as each mint.
type ChainCollection struct {
	ChainID      uint32    `json:"chain_id" gorm:"primaryKey;autoIncrement:false"`
	NextTokenID  uint64    `json:"next_token_id" gorm:"not null;default:1"`
	TotalSupply  uint64    `json:"total_supply" gorm:"not null;default:0"`
	UniqueOwners uint64    `json:"unique_owners" gorm:"not null;default:0"`
	TransferVol  uint64    `json:"transfer_volume" gorm:"not null;default:0"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PlatformStats is the hub's derived aggregate ledger. Single row (ID=1),
// incremented inside the same transaction as the transition it reports.
type PlatformStats struct {
	ID                 uint      `json:"-" gorm:"primaryKey"`
	TotalRequests      uint64    `json:"total_requests" gorm:"not null;default:0"`
	CompletedMints     uint64    `json:"completed_mints" gorm:"not null;default:0"`
	TotalFeesCollected string    `json:"total_fees_collected" gorm:"size:78;not null;default:'0'"` // decimal string
	TotalFeesWithdrawn string    `json:"total_fees_withdrawn" gorm:"size:78;not null;default:'0'"` // decimal string
	ActiveChains       uint64    `json:"active_chains" gorm:"not null;default:0"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IsTerminal reports whether no further automatic transition can occur.
// failed is terminal barring an explicit user retry.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusCompleted, RequestStatusCancelled, RequestStatusFailed:
		return true
	}
	return false
}

// CanCancel reports whether the requester may still cancel. Once generation
// output exists or dispatch started, cancellation would leave partial refunds.
func (s RequestStatus) CanCancel() bool {
	return s == RequestStatusPending || s == RequestStatusProcessing
}
