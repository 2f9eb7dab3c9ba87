package services

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"aimint-backend/internal/envelope"
	"aimint-backend/internal/gateway"
	"aimint-backend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRequester = "0x1111111111111111111111111111111111111111"
	testRecipient = "0xdeadbeef01020304"
	testChainID   = uint32(714)
)

func newTestHub(t *testing.T) (*HubService, *memStore, *fakeGateway) {
	t.Helper()
	setupTestConfig()
	store := newMemStore()
	store.addChain(testChainID, true)
	gw := &fakeGateway{}
	hub, err := NewHubService(store, gw)
	require.NoError(t, err)
	return hub, store, gw
}

func submitOne(t *testing.T, hub *HubService, feePaid string) *models.MintRequest {
	t.Helper()
	res, err := hub.Submit(context.Background(), testRequester, "a cat in space", testChainID, testRecipient, 250, feePaid)
	require.NoError(t, err)
	return res.Request
}

func TestSubmitEscrowsMinimumAndRefundsExcess(t *testing.T) {
	hub, store, _ := newTestHub(t)

	paid := new(big.Int)
	paid.SetString(testMinFee, 10)
	paid.Mul(paid, big.NewInt(2))

	res, err := hub.Submit(context.Background(), testRequester, "a cat in space", testChainID, testRecipient, 0, paid.String())
	require.NoError(t, err)

	// feePaid - refund = minimumFee exactly.
	assert.Equal(t, testMinFee, res.Request.Fee)
	assert.Equal(t, testMinFee, res.Refund)
	assert.Equal(t, models.RequestStatusPending, res.Request.Status)

	stats, err := store.Stats().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalRequests)
	assert.Equal(t, testMinFee, stats.TotalFeesCollected)
}

func TestSubmitExactFeeRefundsZero(t *testing.T) {
	hub, _, _ := newTestHub(t)

	res, err := hub.Submit(context.Background(), testRequester, "prompt", testChainID, testRecipient, 0, testMinFee)
	require.NoError(t, err)
	assert.Equal(t, "0", res.Refund)
}

func TestSubmitGuards(t *testing.T) {
	hub, store, _ := newTestHub(t)
	ctx := context.Background()

	_, err := hub.Submit(ctx, testRequester, "", testChainID, testRecipient, 0, testMinFee)
	assert.ErrorIs(t, err, ErrPromptRequired)

	_, err = hub.Submit(ctx, testRequester, "prompt", 999, testRecipient, 0, testMinFee)
	assert.ErrorIs(t, err, ErrChainNotRegistered)

	store.addChain(715, false)
	_, err = hub.Submit(ctx, testRequester, "prompt", 715, testRecipient, 0, testMinFee)
	assert.ErrorIs(t, err, ErrChainDisabled)

	_, err = hub.Submit(ctx, testRequester, "prompt", testChainID, "", 0, testMinFee)
	assert.ErrorIs(t, err, ErrRecipientRequired)

	_, err = hub.Submit(ctx, testRequester, "prompt", testChainID, "not-hex!", 0, testMinFee)
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = hub.Submit(ctx, testRequester, "prompt", testChainID, testRecipient, 1001, testMinFee)
	assert.ErrorIs(t, err, ErrRoyaltyTooHigh)

	_, err = hub.Submit(ctx, testRequester, "prompt", testChainID, testRecipient, 0, "1")
	assert.ErrorIs(t, err, ErrInsufficientFee)

	// No guard failure may leave partial state.
	stats, err := store.Stats().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.TotalRequests)
}

func TestSubmitRejectedWhilePaused(t *testing.T) {
	hub, _, _ := newTestHub(t)
	hub.SetPaused(true)

	_, err := hub.Submit(context.Background(), testRequester, "prompt", testChainID, testRecipient, 0, testMinFee)
	assert.ErrorIs(t, err, ErrHubPaused)

	hub.SetPaused(false)
	_, err = hub.Submit(context.Background(), testRequester, "prompt", testChainID, testRecipient, 0, testMinFee)
	assert.NoError(t, err)
}

func TestRequestIDsAreUniquePerSubmission(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		res, err := hub.Submit(ctx, testRequester, "same prompt", testChainID, testRecipient, 0, testMinFee)
		require.NoError(t, err)
		assert.False(t, seen[res.Request.ID], "request id collision")
		seen[res.Request.ID] = true
	}
}

func TestWorkerTransitions(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)

	assert.ErrorIs(t, hub.MarkProcessing(ctx, "wrong-token", req.ID), ErrUnauthorizedWorker)

	require.NoError(t, hub.MarkProcessing(ctx, testWorkerToken, req.ID))
	got, err := hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusProcessing, got.Status)

	// pending -> processing again is a lost guard.
	assert.ErrorIs(t, hub.MarkProcessing(ctx, testWorkerToken, req.ID), ErrInvalidTransition)

	require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri-1"))
	got, err = hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAICompleted, got.Status)
	assert.Equal(t, "ipfs://uri-1", got.TokenURI)
}

func TestCompleteGenerationIsSingleShot(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)

	require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri-1"))

	// A second call with a different URI is rejected, not overwritten.
	err := hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri-2")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://uri-1", got.TokenURI)
}

func TestCompleteGenerationFromPendingDirectly(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)

	// markProcessing is optional: pending -> ai_completed is allowed.
	require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri"))
}

func TestDispatchSendsInstructionAndParksRequest(t *testing.T) {
	hub, _, gw := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)
	require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri"))

	require.NoError(t, hub.Dispatch(ctx, req.ID))

	got, err := hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCrossChainPending, got.Status)

	sends := gw.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, testChainID, sends[0].ChainID)
	assert.Equal(t, fmt.Sprintf("minter-%d", testChainID), sends[0].Endpoint)

	instr, err := envelope.UnpackMintInstruction(sends[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, req.ID, common.Hash(instr.RequestID).Hex())
	assert.Equal(t, "ipfs://uri", instr.TokenURI)
	assert.Equal(t, uint16(250), instr.RoyaltyBps)

	// Dispatch is only reachable from ai_completed.
	assert.ErrorIs(t, hub.Dispatch(ctx, req.ID), ErrInvalidTransition)
}

func TestDispatchRequiresAICompleted(t *testing.T) {
	hub, _, gw := newTestHub(t)
	req := submitOne(t, hub, testMinFee)

	assert.ErrorIs(t, hub.Dispatch(context.Background(), req.ID), ErrInvalidTransition)
	assert.Empty(t, gw.sent())
}

func TestOnMintSuccessCompletesRequest(t *testing.T) {
	hub, store, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)
	require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri"))
	require.NoError(t, hub.Dispatch(ctx, req.ID))

	require.NoError(t, hub.OnMintSuccess(ctx, req.ID, 7))

	got, err := hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, got.Status)
	require.NotNil(t, got.TokenID)
	assert.Equal(t, uint64(7), *got.TokenID)

	stats, err := store.Stats().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.CompletedMints)

	// A duplicate receipt cannot re-complete.
	assert.ErrorIs(t, hub.OnMintSuccess(ctx, req.ID, 8), ErrInvalidTransition)
}

func TestOnMintFailureMakesRetryAvailable(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)
	require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri"))
	require.NoError(t, hub.Dispatch(ctx, req.ID))

	require.NoError(t, hub.OnMintFailure(ctx, req.ID, "duplicate request"))

	got, err := hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusFailed, got.Status)
	assert.Equal(t, "duplicate request", got.FailureReason)

	require.NoError(t, hub.Retry(ctx, testRequester, req.ID))
	got, err = hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Empty(t, got.FailureReason)
}

func TestLateFailureNoticeIsSwallowed(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)

	// Not cross_chain_pending: accepted without error, no state change.
	require.NoError(t, hub.OnMintFailure(ctx, req.ID, "late notice"))

	got, err := hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, got.Status)
	assert.Empty(t, got.FailureReason)
}

func TestCancelRefundsEscrowInFull(t *testing.T) {
	hub, store, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)

	refund, err := hub.Cancel(ctx, testRequester, req.ID)
	require.NoError(t, err)
	assert.Equal(t, testMinFee, refund)

	got, err := hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, got.Status)

	stats, err := store.Stats().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", stats.TotalFeesCollected)
}

func TestCancelGuards(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)

	_, err := hub.Cancel(ctx, "0x2222222222222222222222222222222222222222", req.ID)
	assert.ErrorIs(t, err, ErrNotRequester)

	require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri"))
	_, err = hub.Cancel(ctx, testRequester, req.ID)
	assert.ErrorIs(t, err, ErrCannotCancelState)
}

func TestCancelAllowedWhileProcessing(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)
	require.NoError(t, hub.MarkProcessing(ctx, testWorkerToken, req.ID))

	refund, err := hub.Cancel(ctx, testRequester, req.ID)
	require.NoError(t, err)
	assert.Equal(t, testMinFee, refund)
}

func TestRetryBoundedByMaxRetries(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)

	fail := func() {
		require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri"))
		require.NoError(t, hub.Dispatch(ctx, req.ID))
		require.NoError(t, hub.OnMintFailure(ctx, req.ID, "rejected"))
	}

	for i := 0; i < models.MaxRetries; i++ {
		fail()
		require.NoError(t, hub.Retry(ctx, testRequester, req.ID))
	}

	fail()
	assert.ErrorIs(t, hub.Retry(ctx, testRequester, req.ID), ErrMaxRetriesExceeded)
}

func TestRetryGuards(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)

	// Only reachable from failed.
	assert.ErrorIs(t, hub.Retry(ctx, testRequester, req.ID), ErrCannotRetryState)

	require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri"))
	require.NoError(t, hub.Dispatch(ctx, req.ID))
	require.NoError(t, hub.OnMintFailure(ctx, req.ID, "rejected"))

	assert.ErrorIs(t, hub.Retry(ctx, "0x2222222222222222222222222222222222222222", req.ID), ErrNotRequester)
}

func TestSetMinimumFeeBoundedByMaximum(t *testing.T) {
	hub, _, _ := newTestHub(t)

	tooHigh := new(big.Int)
	tooHigh.SetString(testMaxFee, 10)
	tooHigh.Add(tooHigh, big.NewInt(1))
	assert.ErrorIs(t, hub.SetMinimumFee(tooHigh.String()), ErrFeeOutOfBounds)

	require.NoError(t, hub.SetMinimumFee("2000000000000000"))
	assert.Equal(t, "2000000000000000", hub.MinimumFee())

	_, err := hub.Submit(context.Background(), testRequester, "prompt", testChainID, testRecipient, 0, testMinFee)
	assert.ErrorIs(t, err, ErrInsufficientFee)
}

func TestWithdrawFeesBoundedByBalance(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	submitOne(t, hub, testMinFee)

	assert.ErrorIs(t, hub.WithdrawFees(ctx, testMaxFee), ErrInsufficientFunds)

	require.NoError(t, hub.WithdrawFees(ctx, testMinFee))

	// Balance exhausted now.
	assert.ErrorIs(t, hub.WithdrawFees(ctx, "1"), ErrInsufficientFunds)
}

func TestHandleReceiptAndFailureDecodeEnvelopes(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	req := submitOne(t, hub, testMinFee)
	require.NoError(t, hub.CompleteGeneration(ctx, testWorkerToken, req.ID, "ipfs://uri"))
	require.NoError(t, hub.Dispatch(ctx, req.ID))

	payload, err := envelope.PackMintReceipt(&envelope.MintReceipt{
		RequestID: common.HexToHash(req.ID),
		TokenID:   3,
	})
	require.NoError(t, err)

	require.NoError(t, hub.HandleReceipt(ctx, gateway.Inbound{Payload: payload}))

	got, err := hub.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, got.Status)

	err = hub.HandleFailure(ctx, gateway.Inbound{Payload: []byte("garbage")})
	assert.ErrorIs(t, err, envelope.ErrMalformedPayload)
}

func TestListQueries(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		submitOne(t, hub, testMinFee)
	}

	reqs, total, err := hub.ListByStatus(ctx, models.RequestStatusPending, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, reqs, 3)

	reqs, total, err = hub.ListByRequester(ctx, testRequester, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, reqs, 2)
}
