// Package app wires the service graph.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"aimint-backend/internal/config"
	"aimint-backend/internal/db"
	"aimint-backend/internal/gateway"
	"aimint-backend/internal/repository"
	"aimint-backend/internal/services"
)

// ServiceContainer holds the wired singletons.
type ServiceContainer struct {
	Store      repository.Store
	Gateway    gateway.Gateway
	Hub        *services.HubService
	Minter     *services.MinterService
	Push       *services.PushService
	Dispatcher *services.DispatcherService
	Monitor    *services.MonitorService
}

var (
	container *ServiceContainer
	once      sync.Once
)

// GetContainer builds the service graph once and returns it.
func GetContainer() (*ServiceContainer, error) {
	var err error
	once.Do(func() {
		container, err = build()
	})
	if container == nil && err == nil {
		err = fmt.Errorf("service container failed to initialize")
	}
	return container, err
}

func build() (*ServiceContainer, error) {
	cfg := config.AppConfig
	store := repository.NewStore(db.DB)

	gw, err := gateway.NewNATSGateway(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("gateway init failed: %w", err)
	}

	hub, err := services.NewHubService(store, gw)
	if err != nil {
		return nil, fmt.Errorf("hub init failed: %w", err)
	}
	minter := services.NewMinterService(store, gw)

	push := services.NewPushService()
	hub.SetNotifier(push)

	// Hub inbox: receipts and failure notices from the minters.
	if err := gw.RegisterCallHandler(hub.HandleReceipt); err != nil {
		return nil, err
	}
	if err := gw.RegisterFailureHandler(hub.HandleFailure); err != nil {
		return nil, err
	}

	// Minter inboxes: one endpoint subscription per registered chain.
	chains, err := store.Chains().List(context.Background())
	if err != nil {
		return nil, fmt.Errorf("chain registrations load failed: %w", err)
	}
	for _, chain := range chains {
		chainID := chain.ChainID
		err := gw.RegisterEndpointHandler(chainID, chain.MinterEndpoint, func(ctx context.Context, msg gateway.Inbound) error {
			return minter.HandleInstruction(ctx, chainID, msg)
		})
		if err != nil {
			return nil, fmt.Errorf("minter endpoint %d subscription failed: %w", chainID, err)
		}
	}
	log.Printf("✅ [App] Wired %d minter endpoints", len(chains))

	dispatcher := services.NewDispatcherService(store, hub,
		time.Duration(cfg.Hub.DispatchInterval)*time.Second)
	monitor := services.NewMonitorService(store,
		time.Duration(cfg.Hub.StuckThreshold)*time.Second)

	return &ServiceContainer{
		Store:      store,
		Gateway:    gw,
		Hub:        hub,
		Minter:     minter,
		Push:       push,
		Dispatcher: dispatcher,
		Monitor:    monitor,
	}, nil
}

// Start launches the background loops.
func (c *ServiceContainer) Start() {
	c.Dispatcher.Start()
	c.Monitor.Start()
}

// Stop shuts the background loops and the transport down.
func (c *ServiceContainer) Stop() {
	c.Dispatcher.Stop()
	c.Monitor.Stop()
	c.Gateway.Close()
}
