// Package services provides the mint hub orchestration and destination minter logic.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	"aimint-backend/internal/config"
	"aimint-backend/internal/envelope"
	"aimint-backend/internal/gateway"
	"aimint-backend/internal/metrics"
	"aimint-backend/internal/models"
	"aimint-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	ErrHubPaused          = errors.New("hub is paused for new submissions")
	ErrChainNotRegistered = errors.New("destination chain is not registered")
	ErrChainDisabled      = errors.New("destination chain is disabled")
	ErrPromptRequired     = errors.New("prompt must not be empty")
	ErrPromptTooLong      = errors.New("prompt exceeds maximum length")
	ErrRecipientRequired  = errors.New("recipient must not be empty")
	ErrInvalidRecipient   = errors.New("recipient is not valid hex")
	ErrInvalidAmount      = errors.New("amount is not a valid decimal string")
	ErrInsufficientFee    = errors.New("fee below the minimum")
	ErrFeeOutOfBounds     = errors.New("fee outside the allowed bounds")
	ErrRoyaltyTooHigh     = errors.New("royalty exceeds the maximum basis points")
	ErrUnauthorizedWorker = errors.New("caller is not the trusted worker identity")
	ErrNotRequester       = errors.New("caller is not the original requester")
	ErrCannotCancelState  = errors.New("cannot cancel: generation output exists or dispatch started")
	ErrCannotRetryState   = errors.New("cannot retry: request is not failed")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrTokenURIRequired   = errors.New("token uri must not be empty")
	ErrInvalidTransition  = errors.New("request is not in an eligible status")
	ErrInsufficientFunds  = errors.New("withdraw amount exceeds collected fee balance")
)

// StatusNotifier receives every hub-side status change, for push channels.
type StatusNotifier interface {
	NotifyStatus(req *models.MintRequest)
}

// HubService owns the request state machine. Every transition is a single
// store transaction with a guarded status update; a lost guard fails the call
// with no partial state.
type HubService struct {
	store    repository.Store
	gw       gateway.Gateway
	notifier StatusNotifier

	workerIdentity  string
	maxPromptLength int

	mu         sync.RWMutex
	paused     bool
	minimumFee *big.Int
	maximumFee *big.Int
}

// NewHubService creates the hub with fee bounds and worker identity from config.
func NewHubService(store repository.Store, gw gateway.Gateway) (*HubService, error) {
	cfg := config.AppConfig
	minFee, ok := new(big.Int).SetString(cfg.Hub.MinimumFee, 10)
	if !ok || minFee.Sign() <= 0 {
		return nil, fmt.Errorf("invalid hub.minimum_fee: %q", cfg.Hub.MinimumFee)
	}
	maxFee, ok := new(big.Int).SetString(cfg.Hub.MaximumFee, 10)
	if !ok || maxFee.Cmp(minFee) < 0 {
		return nil, fmt.Errorf("invalid hub.maximum_fee: %q", cfg.Hub.MaximumFee)
	}
	return &HubService{
		store:           store,
		gw:              gw,
		workerIdentity:  cfg.Worker.Token,
		maxPromptLength: cfg.Hub.MaxPromptLength,
		minimumFee:      minFee,
		maximumFee:      maxFee,
	}, nil
}

// SetNotifier attaches the push channel. Optional.
func (s *HubService) SetNotifier(n StatusNotifier) {
	s.notifier = n
}

func (s *HubService) notify(req *models.MintRequest) {
	if s.notifier != nil && req != nil {
		s.notifier.NotifyStatus(req)
	}
}

// MinimumFee returns the current minimum fee as a decimal string.
func (s *HubService) MinimumFee() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minimumFee.String()
}

// IsPaused reports whether new submissions are blocked.
func (s *HubService) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// SetPaused pauses or resumes new submissions. In-flight requests keep moving.
func (s *HubService) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
	log.Printf("⏸️ [Hub] Paused=%v", paused)
}

// SetMinimumFee adjusts the fee charged per submission, bounded above by the
// configured maximum.
func (s *HubService) SetMinimumFee(fee string) error {
	v, ok := new(big.Int).SetString(fee, 10)
	if !ok || v.Sign() <= 0 {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Cmp(s.maximumFee) > 0 {
		return ErrFeeOutOfBounds
	}
	s.minimumFee = v
	log.Printf("💰 [Hub] Minimum fee set to %s", fee)
	return nil
}

// SubmitResult reports the accepted request and the immediate refund of any
// payment above the minimum fee.
type SubmitResult struct {
	Request *models.MintRequest
	Refund  string
}

// Submit validates and escrows a new mint request. The excess above the
// minimum fee is returned in the same operation; the escrowed fee is always
// exactly the minimum fee at submission time.
func (s *HubService) Submit(ctx context.Context, requester, prompt string, chainID uint32, recipient string, royaltyBps uint16, feePaid string) (*SubmitResult, error) {
	if s.IsPaused() {
		return nil, ErrHubPaused
	}
	if requester == "" {
		return nil, ErrNotRequester
	}
	if prompt == "" {
		return nil, ErrPromptRequired
	}
	if len(prompt) > s.maxPromptLength {
		return nil, ErrPromptTooLong
	}
	if recipient == "" {
		return nil, ErrRecipientRequired
	}
	if _, err := decodeRecipient(recipient); err != nil {
		return nil, err
	}
	if royaltyBps > models.MaxRoyaltyBps {
		return nil, ErrRoyaltyTooHigh
	}

	paid, ok := new(big.Int).SetString(feePaid, 10)
	if !ok || paid.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	s.mu.RLock()
	minFee := new(big.Int).Set(s.minimumFee)
	s.mu.RUnlock()
	if paid.Cmp(minFee) < 0 {
		return nil, ErrInsufficientFee
	}
	refund := new(big.Int).Sub(paid, minFee)

	chain, err := s.store.Chains().GetByID(ctx, chainID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChainNotRegistered
		}
		return nil, err
	}
	if !chain.Enabled {
		return nil, ErrChainDisabled
	}

	req := &models.MintRequest{
		ID:                 newRequestID(requester, prompt),
		Requester:          requester,
		Prompt:             prompt,
		DestinationChainID: chainID,
		Recipient:          recipient,
		Status:             models.RequestStatusPending,
		RoyaltyBps:         royaltyBps,
		Fee:                minFee.String(),
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.MintRequests().Create(ctx, req); err != nil {
			return err
		}
		return tx.Stats().Apply(ctx, repository.StatsDelta{
			TotalRequests: 1,
			FeeDelta:      minFee.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestTransitions.WithLabelValues(string(models.RequestStatusPending)).Inc()
	log.Printf("📝 [Hub] Request %s accepted: chain=%d fee=%s refund=%s", req.ID, chainID, req.Fee, refund)
	s.notify(req)
	return &SubmitResult{Request: req, Refund: refund.String()}, nil
}

// MarkProcessing moves a pending request to processing. Worker-only.
func (s *HubService) MarkProcessing(ctx context.Context, caller, requestID string) error {
	if err := s.checkWorker(caller); err != nil {
		return err
	}
	err := s.store.MintRequests().UpdateGuarded(ctx, requestID,
		[]models.RequestStatus{models.RequestStatusPending},
		map[string]interface{}{"status": models.RequestStatusProcessing})
	if err != nil {
		return transitionError(err)
	}
	metrics.RequestTransitions.WithLabelValues(string(models.RequestStatusProcessing)).Inc()
	log.Printf("⚙️ [Hub] Request %s -> processing", requestID)
	s.notifyByID(ctx, requestID)
	return nil
}

// CompleteGeneration records the generation output. Worker-only, single-shot:
// once a request is ai_completed or later, a second call is rejected.
func (s *HubService) CompleteGeneration(ctx context.Context, caller, requestID, tokenURI string) error {
	if err := s.checkWorker(caller); err != nil {
		return err
	}
	if tokenURI == "" {
		return ErrTokenURIRequired
	}
	err := s.store.MintRequests().UpdateGuarded(ctx, requestID,
		[]models.RequestStatus{models.RequestStatusPending, models.RequestStatusProcessing},
		map[string]interface{}{
			"status":    models.RequestStatusAICompleted,
			"token_uri": tokenURI,
		})
	if err != nil {
		return transitionError(err)
	}
	metrics.RequestTransitions.WithLabelValues(string(models.RequestStatusAICompleted)).Inc()
	log.Printf("🎨 [Hub] Request %s generation complete: uri=%s", requestID, tokenURI)
	s.notifyByID(ctx, requestID)
	return nil
}

// Dispatch sends the mint instruction for an ai_completed request through the
// gateway and parks it in cross_chain_pending. At-least-once: a re-dispatch of
// an already-minted request resolves through the minter's idempotency notice.
func (s *HubService) Dispatch(ctx context.Context, requestID string) error {
	req, err := s.store.MintRequests().GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != models.RequestStatusAICompleted {
		return ErrInvalidTransition
	}

	chain, err := s.store.Chains().GetByID(ctx, req.DestinationChainID)
	if err != nil {
		return fmt.Errorf("chain %d lookup failed: %w", req.DestinationChainID, err)
	}

	recipient, err := decodeRecipient(req.Recipient)
	if err != nil {
		return err
	}
	payload, err := envelope.PackMintInstruction(&envelope.MintInstruction{
		RequestID:  common.HexToHash(req.ID),
		Recipient:  recipient,
		TokenURI:   req.TokenURI,
		RoyaltyBps: req.RoyaltyBps,
	})
	if err != nil {
		return fmt.Errorf("encode instruction for %s: %w", requestID, err)
	}

	// Transition first: if the send fails the guard update rolls back and the
	// dispatcher will sweep the request again.
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.MintRequests().UpdateGuarded(ctx, requestID,
			[]models.RequestStatus{models.RequestStatusAICompleted},
			map[string]interface{}{"status": models.RequestStatusCrossChainPending}); err != nil {
			return err
		}
		handle, err := s.gw.Send(ctx, req.DestinationChainID, chain.MinterEndpoint, payload)
		if err != nil {
			return fmt.Errorf("gateway send failed: %w", err)
		}
		log.Printf("🚀 [Hub] Request %s dispatched to chain %d (handle=%s)", requestID, req.DestinationChainID, handle)
		return nil
	})
	if err != nil {
		return transitionError(err)
	}

	metrics.RequestTransitions.WithLabelValues(string(models.RequestStatusCrossChainPending)).Inc()
	metrics.RequestsDispatched.Inc()
	s.notifyByID(ctx, requestID)
	return nil
}

// OnMintSuccess resolves a cross_chain_pending request on an authenticated
// receipt. Gateway-only entry.
func (s *HubService) OnMintSuccess(ctx context.Context, requestID string, tokenID uint64) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.MintRequests().UpdateGuarded(ctx, requestID,
			[]models.RequestStatus{models.RequestStatusCrossChainPending},
			map[string]interface{}{
				"status":   models.RequestStatusCompleted,
				"token_id": tokenID,
			}); err != nil {
			return err
		}
		return tx.Stats().Apply(ctx, repository.StatsDelta{CompletedMints: 1})
	})
	if err != nil {
		return transitionError(err)
	}
	metrics.RequestTransitions.WithLabelValues(string(models.RequestStatusCompleted)).Inc()
	log.Printf("🎉 [Hub] Request %s completed: tokenId=%d", requestID, tokenID)
	s.notifyByID(ctx, requestID)
	return nil
}

// OnMintFailure records a destination-side rejection. Always accepted: a
// notice for a request no longer in cross_chain_pending is logged and
// swallowed, never an error back to the transport.
func (s *HubService) OnMintFailure(ctx context.Context, requestID, reason string) error {
	err := s.store.MintRequests().UpdateGuarded(ctx, requestID,
		[]models.RequestStatus{models.RequestStatusCrossChainPending},
		map[string]interface{}{
			"status":         models.RequestStatusFailed,
			"failure_reason": reason,
		})
	if errors.Is(err, repository.ErrStaleStatus) {
		log.Printf("⚠️ [Hub] Late failure notice for %s ignored (not cross_chain_pending): %s", requestID, reason)
		return nil
	}
	if err != nil {
		return err
	}
	metrics.RequestTransitions.WithLabelValues(string(models.RequestStatusFailed)).Inc()
	log.Printf("❌ [Hub] Request %s failed: %s", requestID, reason)
	s.notifyByID(ctx, requestID)
	return nil
}

// Cancel aborts a request before generation output or dispatch exists and
// refunds the escrowed fee in full. Requester-only.
func (s *HubService) Cancel(ctx context.Context, caller, requestID string) (string, error) {
	req, err := s.store.MintRequests().GetByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.Requester != caller {
		return "", ErrNotRequester
	}
	if !req.Status.CanCancel() {
		return "", ErrCannotCancelState
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.MintRequests().UpdateGuarded(ctx, requestID,
			[]models.RequestStatus{models.RequestStatusPending, models.RequestStatusProcessing},
			map[string]interface{}{"status": models.RequestStatusCancelled}); err != nil {
			return err
		}
		// Escrow returns to the requester, so the collected total shrinks.
		return tx.Stats().Apply(ctx, repository.StatsDelta{FeeDelta: "-" + req.Fee})
	})
	if err != nil {
		return "", transitionError(err)
	}

	metrics.RequestTransitions.WithLabelValues(string(models.RequestStatusCancelled)).Inc()
	log.Printf("🚫 [Hub] Request %s cancelled, refund=%s", requestID, req.Fee)
	s.notifyByID(ctx, requestID)
	return req.Fee, nil
}

// Retry moves a failed request back to pending. Requester-only, bounded by
// MaxRetries, never charges a new fee.
func (s *HubService) Retry(ctx context.Context, caller, requestID string) error {
	req, err := s.store.MintRequests().GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Requester != caller {
		return ErrNotRequester
	}
	if req.Status != models.RequestStatusFailed {
		return ErrCannotRetryState
	}
	if req.RetryCount >= models.MaxRetries {
		return ErrMaxRetriesExceeded
	}

	err = s.store.MintRequests().UpdateGuarded(ctx, requestID,
		[]models.RequestStatus{models.RequestStatusFailed},
		map[string]interface{}{
			"status":         models.RequestStatusPending,
			"failure_reason": "",
			"retry_count":    req.RetryCount + 1,
		})
	if err != nil {
		return transitionError(err)
	}
	metrics.RequestTransitions.WithLabelValues(string(models.RequestStatusPending)).Inc()
	log.Printf("🔄 [Hub] Request %s retried (%d/%d)", requestID, req.RetryCount+1, models.MaxRetries)
	s.notifyByID(ctx, requestID)
	return nil
}

// GetRequest fetches one request by id.
func (s *HubService) GetRequest(ctx context.Context, requestID string) (*models.MintRequest, error) {
	return s.store.MintRequests().GetByID(ctx, requestID)
}

// ListByStatus pages through requests in a given status, oldest first.
func (s *HubService) ListByStatus(ctx context.Context, status models.RequestStatus, page, pageSize int) ([]models.MintRequest, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.store.MintRequests().FindByStatus(ctx, status, page, pageSize)
}

// ListByRequester pages through one requester's requests, newest first.
func (s *HubService) ListByRequester(ctx context.Context, requester string, page, pageSize int) ([]models.MintRequest, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.store.MintRequests().FindByRequester(ctx, requester, page, pageSize)
}

// RegisterChain adds or re-points a destination chain registration.
func (s *HubService) RegisterChain(ctx context.Context, chainID uint32, name, minterEndpoint string) (*models.ChainRegistration, error) {
	if name == "" || minterEndpoint == "" {
		return nil, fmt.Errorf("chain name and minter endpoint are required")
	}
	existing, err := s.store.Chains().GetByID(ctx, chainID)
	if err == nil {
		existing.Name = name
		existing.MinterEndpoint = minterEndpoint
		if err := s.store.Chains().Update(ctx, existing); err != nil {
			return nil, err
		}
		log.Printf("🔗 [Hub] Chain %d re-registered -> %s", chainID, minterEndpoint)
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	reg := &models.ChainRegistration{
		ChainID:        chainID,
		Name:           name,
		MinterEndpoint: minterEndpoint,
		Enabled:        true,
	}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Chains().Create(ctx, reg); err != nil {
			return err
		}
		return tx.Stats().Apply(ctx, repository.StatsDelta{ActiveChains: 1})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🔗 [Hub] Chain %d registered: %s -> %s", chainID, name, minterEndpoint)
	return reg, nil
}

// SetChainEnabled toggles a chain. Disabling only blocks new submissions.
func (s *HubService) SetChainEnabled(ctx context.Context, chainID uint32, enabled bool) error {
	chain, err := s.store.Chains().GetByID(ctx, chainID)
	if err != nil {
		return err
	}
	if chain.Enabled == enabled {
		return nil
	}
	delta := int64(-1)
	if enabled {
		delta = 1
	}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Chains().SetEnabled(ctx, chainID, enabled); err != nil {
			return err
		}
		return tx.Stats().Apply(ctx, repository.StatsDelta{ActiveChains: delta})
	})
	if err != nil {
		return err
	}
	log.Printf("🔗 [Hub] Chain %d enabled=%v", chainID, enabled)
	return nil
}

// ListChains returns all registrations.
func (s *HubService) ListChains(ctx context.Context) ([]models.ChainRegistration, error) {
	return s.store.Chains().List(ctx)
}

// WithdrawFees withdraws from the collected fee balance. Owner-only surface;
// the available balance is collected minus already withdrawn.
func (s *HubService) WithdrawFees(ctx context.Context, amount string) error {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok || v.Sign() <= 0 {
		return ErrInvalidAmount
	}
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		stats, err := tx.Stats().Get(ctx)
		if err != nil {
			return err
		}
		collected, ok := new(big.Int).SetString(stats.TotalFeesCollected, 10)
		if !ok {
			return fmt.Errorf("corrupt total_fees_collected: %q", stats.TotalFeesCollected)
		}
		withdrawn, ok := new(big.Int).SetString(stats.TotalFeesWithdrawn, 10)
		if !ok {
			return fmt.Errorf("corrupt total_fees_withdrawn: %q", stats.TotalFeesWithdrawn)
		}
		available := collected.Sub(collected, withdrawn)
		if v.Cmp(available) > 0 {
			return ErrInsufficientFunds
		}
		return tx.Stats().Apply(ctx, repository.StatsDelta{WithdrawnDelta: v.String()})
	})
	if err != nil {
		return err
	}
	log.Printf("💸 [Hub] Withdrew %s from collected fees", amount)
	return nil
}

// GetPlatformStats returns the aggregate ledger row.
func (s *HubService) GetPlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	return s.store.Stats().Get(ctx)
}

// HandleReceipt decodes an inbound gateway receipt and resolves the request.
func (s *HubService) HandleReceipt(ctx context.Context, msg gateway.Inbound) error {
	receipt, err := envelope.UnpackMintReceipt(msg.Payload)
	if err != nil {
		return fmt.Errorf("decode receipt: %w", err)
	}
	return s.OnMintSuccess(ctx, common.Hash(receipt.RequestID).Hex(), receipt.TokenID)
}

// HandleFailure decodes an inbound gateway failure notice.
func (s *HubService) HandleFailure(ctx context.Context, msg gateway.Inbound) error {
	notice, err := envelope.UnpackFailureNotice(msg.Payload)
	if err != nil {
		return fmt.Errorf("decode failure notice: %w", err)
	}
	return s.OnMintFailure(ctx, common.Hash(notice.RequestID).Hex(), notice.Reason)
}

func (s *HubService) checkWorker(caller string) error {
	if s.workerIdentity == "" || caller != s.workerIdentity {
		return ErrUnauthorizedWorker
	}
	return nil
}

func (s *HubService) notifyByID(ctx context.Context, requestID string) {
	if s.notifier == nil {
		return
	}
	if req, err := s.store.MintRequests().GetByID(ctx, requestID); err == nil {
		s.notifier.NotifyStatus(req)
	}
}

// newRequestID derives an unpredictable, collision-resistant request id from
// the requester, the prompt and a fresh nonce.
func newRequestID(requester, prompt string) string {
	nonce := uuid.New()
	hash := crypto.Keccak256Hash([]byte(requester), []byte(prompt), nonce[:])
	return hash.Hex()
}

// decodeRecipient parses the chain-specific recipient address bytes from hex.
func decodeRecipient(recipient string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(recipient, "0x"))
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidRecipient
	}
	return raw, nil
}

// transitionError maps a lost guard onto the state-machine error.
func transitionError(err error) error {
	if errors.Is(err, repository.ErrStaleStatus) {
		return ErrInvalidTransition
	}
	return err
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
