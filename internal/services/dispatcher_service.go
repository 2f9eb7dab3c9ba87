package services

import (
	"context"
	"log"
	"time"

	"aimint-backend/internal/models"
	"aimint-backend/internal/repository"
)

// DispatcherService sweeps ai_completed requests and pushes them through the
// gateway. Dispatch is at-least-once: if a request was already minted on a
// previous sweep, the minter's idempotency notice resolves it.
type DispatcherService struct {
	store    repository.Store
	hub      *HubService
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewDispatcherService creates the dispatcher sweeping at the given interval.
func NewDispatcherService(store repository.Store, hub *HubService, interval time.Duration) *DispatcherService {
	return &DispatcherService{
		store:    store,
		hub:      hub,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *DispatcherService) Start() {
	log.Printf("🚀 [Dispatcher] Started, interval=%s", s.interval)
	go s.run()
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
func (s *DispatcherService) Stop() {
	close(s.stop)
	<-s.done
	log.Printf("🛑 [Dispatcher] Stopped")
}

func (s *DispatcherService) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep dispatches every ai_completed request it can see. Per-request errors
// are logged and skipped so one bad request cannot stall the rest.
func (s *DispatcherService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	reqs, _, err := s.store.MintRequests().FindByStatus(ctx, models.RequestStatusAICompleted, 1, 50)
	if err != nil {
		log.Printf("❌ [Dispatcher] Sweep query failed: %v", err)
		return
	}
	if len(reqs) == 0 {
		return
	}

	log.Printf("🔍 [Dispatcher] Sweeping %d ai_completed requests", len(reqs))
	for _, req := range reqs {
		if err := s.hub.Dispatch(ctx, req.ID); err != nil {
			log.Printf("⚠️ [Dispatcher] Dispatch %s failed: %v", req.ID, err)
		}
	}
}
