package services

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"aimint-backend/internal/config"
	"aimint-backend/internal/gateway"
	"aimint-backend/internal/models"
	"aimint-backend/internal/repository"
)

// memStore is an in-memory Store for service tests. Writes apply eagerly;
// tests exercise guard ordering, not rollback mechanics.
type memStore struct {
	mu          sync.Mutex
	requests    map[string]*models.MintRequest
	chains      map[uint32]*models.ChainRegistration
	tokens      []*models.MintedToken
	processed   map[string]bool
	collections map[uint32]*models.ChainCollection
	stats       *models.PlatformStats
}

func newMemStore() *memStore {
	return &memStore{
		requests:    make(map[string]*models.MintRequest),
		chains:      make(map[uint32]*models.ChainRegistration),
		processed:   make(map[string]bool),
		collections: make(map[uint32]*models.ChainCollection),
		stats:       &models.PlatformStats{ID: 1, TotalFeesCollected: "0", TotalFeesWithdrawn: "0"},
	}
}

func (m *memStore) MintRequests() repository.MintRequestRepository    { return (*memRequests)(m) }
func (m *memStore) Chains() repository.ChainRepository                { return (*memChains)(m) }
func (m *memStore) Tokens() repository.MintedTokenRepository          { return (*memTokens)(m) }
func (m *memStore) Processed() repository.ProcessedRequestRepository  { return (*memProcessed)(m) }
func (m *memStore) Collections() repository.ChainCollectionRepository { return (*memCollections)(m) }
func (m *memStore) Stats() repository.StatsRepository                 { return (*memStats)(m) }

func (m *memStore) Transaction(ctx context.Context, fn func(repository.Store) error) error {
	return fn(m)
}

func (m *memStore) addChain(chainID uint32, enabled bool) {
	m.chains[chainID] = &models.ChainRegistration{
		ChainID:        chainID,
		Name:           fmt.Sprintf("chain-%d", chainID),
		MinterEndpoint: fmt.Sprintf("minter-%d", chainID),
		Enabled:        enabled,
	}
}

type memRequests memStore

func (m *memRequests) Create(ctx context.Context, req *models.MintRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[req.ID]; exists {
		return repository.ErrDuplicate
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memRequests) GetByID(ctx context.Context, id string) (*models.MintRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *memRequests) UpdateGuarded(ctx context.Context, id string, expected []models.RequestStatus, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return repository.ErrStaleStatus
	}
	matched := false
	for _, st := range expected {
		if req.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return repository.ErrStaleStatus
	}
	for col, val := range updates {
		switch col {
		case "status":
			req.Status = val.(models.RequestStatus)
		case "token_uri":
			req.TokenURI = val.(string)
		case "token_id":
			id := val.(uint64)
			req.TokenID = &id
		case "failure_reason":
			req.FailureReason = val.(string)
		case "retry_count":
			req.RetryCount = val.(int)
		default:
			return fmt.Errorf("memStore: unknown column %q", col)
		}
	}
	req.UpdatedAt = time.Now()
	return nil
}

func (m *memRequests) FindByStatus(ctx context.Context, status models.RequestStatus, page, pageSize int) ([]models.MintRequest, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MintRequest
	for _, req := range m.requests {
		if req.Status == status {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, page, pageSize)
}

func (m *memRequests) FindByRequester(ctx context.Context, requester string, page, pageSize int) ([]models.MintRequest, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MintRequest
	for _, req := range m.requests {
		if req.Requester == requester {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page, pageSize)
}

func (m *memRequests) FindStuck(ctx context.Context, status models.RequestStatus, cutoff time.Time, limit int) ([]models.MintRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MintRequest
	for _, req := range m.requests {
		if req.Status == status && req.UpdatedAt.Before(cutoff) {
			out = append(out, *req)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRequests) CountByStatus(ctx context.Context, status models.RequestStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, req := range m.requests {
		if req.Status == status {
			n++
		}
	}
	return n, nil
}

func paginate(in []models.MintRequest, page, pageSize int) ([]models.MintRequest, int64, error) {
	total := int64(len(in))
	start := (page - 1) * pageSize
	if start >= len(in) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(in) {
		end = len(in)
	}
	return in[start:end], total, nil
}

type memChains memStore

func (m *memChains) Create(ctx context.Context, reg *models.ChainRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.chains[reg.ChainID]; exists {
		return repository.ErrDuplicate
	}
	cp := *reg
	m.chains[reg.ChainID] = &cp
	return nil
}

func (m *memChains) GetByID(ctx context.Context, chainID uint32) (*models.ChainRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.chains[chainID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (m *memChains) List(ctx context.Context) ([]models.ChainRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChainRegistration
	for _, reg := range m.chains {
		out = append(out, *reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out, nil
}

func (m *memChains) Update(ctx context.Context, reg *models.ChainRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *reg
	m.chains[reg.ChainID] = &cp
	return nil
}

func (m *memChains) SetEnabled(ctx context.Context, chainID uint32, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.chains[chainID]
	if !ok {
		return repository.ErrNotFound
	}
	reg.Enabled = enabled
	return nil
}

type memTokens memStore

func (m *memTokens) Create(ctx context.Context, token *models.MintedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ChainID == token.ChainID && (t.TokenID == token.TokenID || t.SourceRequestID == token.SourceRequestID) {
			return repository.ErrDuplicate
		}
	}
	token.CreatedAt = time.Now()
	cp := *token
	m.tokens = append(m.tokens, &cp)
	return nil
}

func (m *memTokens) GetByChainToken(ctx context.Context, chainID uint32, tokenID uint64) (*models.MintedToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ChainID == chainID && t.TokenID == tokenID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memTokens) GetBySourceRequest(ctx context.Context, chainID uint32, requestID string) (*models.MintedToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ChainID == chainID && t.SourceRequestID == requestID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memTokens) FindByOwner(ctx context.Context, chainID uint32, owner string, page, pageSize int) ([]models.MintedToken, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MintedToken
	for _, t := range m.tokens {
		if t.ChainID == chainID && t.Owner == owner {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	total := int64(len(out))
	start := (page - 1) * pageSize
	if start >= len(out) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (m *memTokens) BatchGet(ctx context.Context, chainID uint32, tokenIDs []uint64) ([]models.MintedToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[uint64]bool, len(tokenIDs))
	for _, id := range tokenIDs {
		want[id] = true
	}
	var out []models.MintedToken
	for _, t := range m.tokens {
		if t.ChainID == chainID && want[t.TokenID] {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out, nil
}

func (m *memTokens) UpdateTokenURI(ctx context.Context, chainID uint32, tokenID uint64, tokenURI string) error {
	return m.update(chainID, tokenID, func(t *models.MintedToken) { t.TokenURI = tokenURI })
}

func (m *memTokens) UpdateRoyalty(ctx context.Context, chainID uint32, tokenID uint64, royaltyBps uint16) error {
	return m.update(chainID, tokenID, func(t *models.MintedToken) { t.RoyaltyBps = royaltyBps })
}

func (m *memTokens) UpdateOwner(ctx context.Context, chainID uint32, tokenID uint64, newOwner string) error {
	return m.update(chainID, tokenID, func(t *models.MintedToken) { t.Owner = newOwner })
}

func (m *memTokens) update(chainID uint32, tokenID uint64, fn func(*models.MintedToken)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ChainID == chainID && t.TokenID == tokenID {
			fn(t)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memTokens) CountByOwner(ctx context.Context, chainID uint32, owner string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.tokens {
		if t.ChainID == chainID && t.Owner == owner {
			n++
		}
	}
	return n, nil
}

type memProcessed memStore

func (m *memProcessed) MarkProcessed(ctx context.Context, chainID uint32, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d|%s", chainID, requestID)
	if m.processed[key] {
		return repository.ErrDuplicate
	}
	m.processed[key] = true
	return nil
}

func (m *memProcessed) IsProcessed(ctx context.Context, chainID uint32, requestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[fmt.Sprintf("%d|%s", chainID, requestID)], nil
}

type memCollections memStore

func (m *memCollections) NextTokenID(ctx context.Context, chainID uint32) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[chainID]
	if !ok {
		coll = &models.ChainCollection{ChainID: chainID, NextTokenID: 1}
		m.collections[chainID] = coll
	}
	id := coll.NextTokenID
	coll.NextTokenID++
	return id, nil
}

func (m *memCollections) Get(ctx context.Context, chainID uint32) (*models.ChainCollection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[chainID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *coll
	return &cp, nil
}

func (m *memCollections) IncrementSupply(ctx context.Context, chainID uint32, newOwner bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[chainID]
	if !ok {
		return repository.ErrNotFound
	}
	coll.TotalSupply++
	if newOwner {
		coll.UniqueOwners++
	}
	return nil
}

func (m *memCollections) RecordTransfers(ctx context.Context, chainID uint32, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[chainID]
	if !ok {
		return repository.ErrNotFound
	}
	coll.TransferVol += uint64(count)
	return nil
}

type memStats memStore

func (m *memStats) Get(ctx context.Context) (*models.PlatformStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.stats
	return &cp, nil
}

func (m *memStats) Apply(ctx context.Context, delta repository.StatsDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalRequests = uint64(int64(m.stats.TotalRequests) + delta.TotalRequests)
	m.stats.CompletedMints = uint64(int64(m.stats.CompletedMints) + delta.CompletedMints)
	m.stats.ActiveChains = uint64(int64(m.stats.ActiveChains) + delta.ActiveChains)
	if delta.FeeDelta != "" {
		sum, err := addBig(m.stats.TotalFeesCollected, delta.FeeDelta)
		if err != nil {
			return err
		}
		m.stats.TotalFeesCollected = sum
	}
	if delta.WithdrawnDelta != "" {
		sum, err := addBig(m.stats.TotalFeesWithdrawn, delta.WithdrawnDelta)
		if err != nil {
			return err
		}
		m.stats.TotalFeesWithdrawn = sum
	}
	return nil
}

func addBig(a, b string) (string, error) {
	x, ok := new(big.Int).SetString(a, 10)
	if !ok {
		return "", fmt.Errorf("bad amount %q", a)
	}
	y, ok := new(big.Int).SetString(b, 10)
	if !ok {
		return "", fmt.Errorf("bad amount %q", b)
	}
	return x.Add(x, y).String(), nil
}

// fakeGateway records every outbound send and never delivers anything.
type fakeGateway struct {
	mu    sync.Mutex
	sends []fakeSend
}

type fakeSend struct {
	ChainID  uint32
	Endpoint string
	Payload  []byte
}

func (g *fakeGateway) Send(ctx context.Context, chainID uint32, endpoint string, payload []byte) (gateway.DeliveryHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends = append(g.sends, fakeSend{ChainID: chainID, Endpoint: endpoint, Payload: payload})
	return gateway.DeliveryHandle(fmt.Sprintf("handle-%d", len(g.sends))), nil
}

func (g *fakeGateway) RegisterCallHandler(h gateway.CallHandler) error       { return nil }
func (g *fakeGateway) RegisterFailureHandler(h gateway.FailureHandler) error { return nil }
func (g *fakeGateway) RegisterEndpointHandler(chainID uint32, endpoint string, h gateway.CallHandler) error {
	return nil
}
func (g *fakeGateway) Close() {}

func (g *fakeGateway) sent() []fakeSend {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]fakeSend, len(g.sends))
	copy(out, g.sends)
	return out
}

const (
	testWorkerToken = "worker-secret"
	testMinFee      = "1000000000000000"
	testMaxFee      = "100000000000000000"
)

func setupTestConfig() {
	config.AppConfig = &config.Config{
		Hub: config.HubConfig{
			MinimumFee:      testMinFee,
			MaximumFee:      testMaxFee,
			MaxPromptLength: 1000,
		},
		Worker: config.WorkerConfig{Token: testWorkerToken},
		Gateway: config.GatewayConfig{
			TransportPrincipal: "transport-principal",
			SubjectPrefix:      "mintgw",
		},
	}
}
