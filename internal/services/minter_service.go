package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"aimint-backend/internal/envelope"
	"aimint-backend/internal/gateway"
	"aimint-backend/internal/metrics"
	"aimint-backend/internal/models"
	"aimint-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrDuplicateRequest    = errors.New("request id already processed on this chain")
	ErrNotTokenOwner       = errors.New("caller does not own the token")
	ErrBatchLengthMismatch = errors.New("recipients and token ids must have equal length")
	ErrEmptyBatch          = errors.New("batch must not be empty")
)

// MinterService executes mint instructions for one or more destination chains.
// The processed-request insert and the token creation share one transaction,
// so a redelivered instruction can never double-mint.
type MinterService struct {
	store repository.Store
	gw    gateway.Gateway
}

// NewMinterService creates the minter over the shared store and gateway.
func NewMinterService(store repository.Store, gw gateway.Gateway) *MinterService {
	return &MinterService{store: store, gw: gw}
}

// HandleInstruction consumes one inbound mint instruction. Any guard failure
// is reported back to the hub as an explicit failure notice — never dropped,
// so the hub's state machine always resolves.
func (s *MinterService) HandleInstruction(ctx context.Context, chainID uint32, msg gateway.Inbound) error {
	instr, err := envelope.UnpackMintInstruction(msg.Payload)
	if err != nil {
		log.Printf("❌ [Minter] Chain %d: malformed instruction (handle=%s): %v", chainID, msg.Handle, err)
		metrics.MintRejections.WithLabelValues(chainLabel(chainID), "malformed").Inc()
		// No request id to report against; the payload is unusable.
		return err
	}

	requestID := common.Hash(instr.RequestID).Hex()
	token, err := s.Mint(ctx, chainID, requestID, instr.Recipient, instr.TokenURI, instr.RoyaltyBps)
	if err != nil {
		reason := err.Error()
		log.Printf("❌ [Minter] Chain %d: mint %s rejected: %s", chainID, requestID, reason)
		metrics.MintRejections.WithLabelValues(chainLabel(chainID), rejectionLabel(err)).Inc()
		return s.sendFailure(ctx, instr.RequestID, reason)
	}

	return s.sendReceipt(ctx, instr.RequestID, token.TokenID)
}

// Mint creates exactly one token for the request id. The idempotency check is
// the primary-key insert into the processed set inside the same transaction.
func (s *MinterService) Mint(ctx context.Context, chainID uint32, requestID string, recipient []byte, tokenURI string, royaltyBps uint16) (*models.MintedToken, error) {
	if len(recipient) == 0 {
		return nil, ErrRecipientRequired
	}
	if tokenURI == "" {
		return nil, ErrTokenURIRequired
	}
	if royaltyBps > models.MaxRoyaltyBps {
		return nil, ErrRoyaltyTooHigh
	}

	owner := hexutil.Encode(recipient)
	var token *models.MintedToken

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Processed().MarkProcessed(ctx, chainID, requestID); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateRequest
			}
			return err
		}

		tokenID, err := tx.Collections().NextTokenID(ctx, chainID)
		if err != nil {
			return err
		}

		ownerTokens, err := tx.Tokens().CountByOwner(ctx, chainID, owner)
		if err != nil {
			return err
		}

		token = &models.MintedToken{
			ChainID:         chainID,
			TokenID:         tokenID,
			Owner:           owner,
			TokenURI:        tokenURI,
			RoyaltyBps:      royaltyBps,
			SourceRequestID: requestID,
		}
		if err := tx.Tokens().Create(ctx, token); err != nil {
			return err
		}
		return tx.Collections().IncrementSupply(ctx, chainID, ownerTokens == 0)
	})
	if err != nil {
		return nil, err
	}

	metrics.TokensMinted.WithLabelValues(chainLabel(chainID)).Inc()
	log.Printf("🪙 [Minter] Chain %d: minted token %d for request %s -> %s", chainID, token.TokenID, requestID, owner)
	return token, nil
}

// UpdateTokenMetadata replaces a token's URI. Owner-only.
func (s *MinterService) UpdateTokenMetadata(ctx context.Context, caller string, chainID uint32, tokenID uint64, newURI string) error {
	if newURI == "" {
		return ErrTokenURIRequired
	}
	if err := s.checkOwner(ctx, caller, chainID, tokenID); err != nil {
		return err
	}
	if err := s.store.Tokens().UpdateTokenURI(ctx, chainID, tokenID, newURI); err != nil {
		return err
	}
	log.Printf("📝 [Minter] Chain %d: token %d metadata updated", chainID, tokenID)
	return nil
}

// SetRoyalty adjusts a token's royalty. Owner-only, bounded.
func (s *MinterService) SetRoyalty(ctx context.Context, caller string, chainID uint32, tokenID uint64, royaltyBps uint16) error {
	if royaltyBps > models.MaxRoyaltyBps {
		return ErrRoyaltyTooHigh
	}
	if err := s.checkOwner(ctx, caller, chainID, tokenID); err != nil {
		return err
	}
	if err := s.store.Tokens().UpdateRoyalty(ctx, chainID, tokenID, royaltyBps); err != nil {
		return err
	}
	log.Printf("💎 [Minter] Chain %d: token %d royalty=%d bps", chainID, tokenID, royaltyBps)
	return nil
}

// TransferBatch moves several tokens at once. The caller must own every
// token; one bad entry fails the whole batch with no transfers applied.
func (s *MinterService) TransferBatch(ctx context.Context, caller string, chainID uint32, recipients []string, tokenIDs []uint64) error {
	if len(recipients) == 0 || len(tokenIDs) == 0 {
		return ErrEmptyBatch
	}
	if len(recipients) != len(tokenIDs) {
		return ErrBatchLengthMismatch
	}
	for _, r := range recipients {
		if _, err := decodeRecipient(r); err != nil {
			return err
		}
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		for i, tokenID := range tokenIDs {
			token, err := tx.Tokens().GetByChainToken(ctx, chainID, tokenID)
			if err != nil {
				return err
			}
			if token.Owner != caller {
				return fmt.Errorf("%w: token %d", ErrNotTokenOwner, tokenID)
			}
			if err := tx.Tokens().UpdateOwner(ctx, chainID, tokenID, recipients[i]); err != nil {
				return err
			}
		}
		return tx.Collections().RecordTransfers(ctx, chainID, len(tokenIDs))
	})
	if err != nil {
		return err
	}
	log.Printf("📦 [Minter] Chain %d: transferred %d tokens from %s", chainID, len(tokenIDs), caller)
	return nil
}

// GetTokenByRequest looks up the token minted for a request id.
func (s *MinterService) GetTokenByRequest(ctx context.Context, chainID uint32, requestID string) (*models.MintedToken, error) {
	return s.store.Tokens().GetBySourceRequest(ctx, chainID, requestID)
}

// GetToken looks up one token.
func (s *MinterService) GetToken(ctx context.Context, chainID uint32, tokenID uint64) (*models.MintedToken, error) {
	return s.store.Tokens().GetByChainToken(ctx, chainID, tokenID)
}

// ListByOwner pages through an owner's tokens on one chain.
func (s *MinterService) ListByOwner(ctx context.Context, chainID uint32, owner string, page, pageSize int) ([]models.MintedToken, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.store.Tokens().FindByOwner(ctx, chainID, owner, page, pageSize)
}

// BatchMetadata fetches several tokens at once. Missing ids are omitted.
func (s *MinterService) BatchMetadata(ctx context.Context, chainID uint32, tokenIDs []uint64) ([]models.MintedToken, error) {
	if len(tokenIDs) == 0 {
		return nil, ErrEmptyBatch
	}
	return s.store.Tokens().BatchGet(ctx, chainID, tokenIDs)
}

// GetCollection returns the chain's collection statistics.
func (s *MinterService) GetCollection(ctx context.Context, chainID uint32) (*models.ChainCollection, error) {
	return s.store.Collections().Get(ctx, chainID)
}

func (s *MinterService) checkOwner(ctx context.Context, caller string, chainID uint32, tokenID uint64) error {
	token, err := s.store.Tokens().GetByChainToken(ctx, chainID, tokenID)
	if err != nil {
		return err
	}
	if token.Owner != caller {
		return ErrNotTokenOwner
	}
	return nil
}

func (s *MinterService) sendReceipt(ctx context.Context, requestID [32]byte, tokenID uint64) error {
	payload, err := envelope.PackMintReceipt(&envelope.MintReceipt{RequestID: requestID, TokenID: tokenID})
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	_, err = s.gw.Send(ctx, gateway.HubChainID, gateway.EndpointReceipt, payload)
	return err
}

func (s *MinterService) sendFailure(ctx context.Context, requestID [32]byte, reason string) error {
	payload, err := envelope.PackFailureNotice(&envelope.FailureNotice{RequestID: requestID, Reason: reason})
	if err != nil {
		return fmt.Errorf("encode failure notice: %w", err)
	}
	_, err = s.gw.Send(ctx, gateway.HubChainID, gateway.EndpointFailure, payload)
	return err
}

func chainLabel(chainID uint32) string {
	return strconv.FormatUint(uint64(chainID), 10)
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate"
	case errors.Is(err, ErrRoyaltyTooHigh):
		return "royalty"
	case errors.Is(err, ErrRecipientRequired), errors.Is(err, ErrTokenURIRequired):
		return "validation"
	default:
		return "internal"
	}
}
