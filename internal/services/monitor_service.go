package services

import (
	"context"
	"log"
	"time"

	"aimint-backend/internal/metrics"
	"aimint-backend/internal/models"
	"aimint-backend/internal/repository"
)

// MonitorService watches for requests stuck in cross_chain_pending. There is
// no protocol timeout: a request with no inbound resolution stays pending
// forever, so the only recourse is making the condition visible to an
// operator through the gauge and the warning log.
type MonitorService struct {
	store     repository.Store
	threshold time.Duration
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

// NewMonitorService creates the monitor with the configured stuck threshold.
func NewMonitorService(store repository.Store, threshold time.Duration) *MonitorService {
	return &MonitorService{
		store:     store,
		threshold: threshold,
		interval:  time.Minute,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the watch loop.
func (s *MonitorService) Start() {
	log.Printf("👁️ [Monitor] Started, stuck threshold=%s", s.threshold)
	go s.run()
}

// Stop terminates the loop.
func (s *MonitorService) Stop() {
	close(s.stop)
	<-s.done
	log.Printf("🛑 [Monitor] Stopped")
}

func (s *MonitorService) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.check()
		}
	}
}

func (s *MonitorService) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.threshold)
	stuck, err := s.store.MintRequests().FindStuck(ctx, models.RequestStatusCrossChainPending, cutoff, 100)
	if err != nil {
		log.Printf("❌ [Monitor] Stuck query failed: %v", err)
		return
	}

	metrics.StuckCrossChainRequests.Set(float64(len(stuck)))
	for _, req := range stuck {
		log.Printf("⚠️ [Monitor] Request %s stuck in cross_chain_pending since %s (chain=%d)",
			req.ID, req.UpdatedAt.Format(time.RFC3339), req.DestinationChainID)
	}
}
