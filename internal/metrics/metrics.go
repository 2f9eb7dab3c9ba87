package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Gateway transport metrics
	// ============================================
	GatewayConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aimint_gateway_connection_status",
		Help: "Gateway transport connection status (1=connected, 0=disconnected)",
	})

	GatewayMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimint_gateway_messages_sent_total",
			Help: "Total number of cross-chain messages sent",
		},
		[]string{"chain_id"},
	)

	GatewayMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimint_gateway_messages_received_total",
			Help: "Total number of cross-chain messages received",
		},
		[]string{"kind"},
	)

	GatewayMessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimint_gateway_messages_rejected_total",
			Help: "Total number of inbound messages rejected before dispatch",
		},
		[]string{"reason"},
	)

	// ============================================
	// Hub lifecycle metrics
	// ============================================
	RequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimint_request_transitions_total",
			Help: "Total number of request status transitions",
		},
		[]string{"to_status"},
	)

	RequestsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aimint_requests_dispatched_total",
		Help: "Total number of mint instructions dispatched through the gateway",
	})

	StuckCrossChainRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aimint_stuck_cross_chain_requests",
		Help: "Requests sitting in cross_chain_pending past the stuck threshold",
	})

	// ============================================
	// Minter metrics
	// ============================================
	TokensMinted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimint_tokens_minted_total",
			Help: "Total number of tokens minted per destination chain",
		},
		[]string{"chain_id"},
	)

	MintRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimint_mint_rejections_total",
			Help: "Total number of mint instructions rejected by a minter",
		},
		[]string{"chain_id", "reason"},
	)

	// ============================================
	// Push channel metrics
	// ============================================
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aimint_websocket_connections",
		Help: "Number of active websocket status subscribers",
	})
)
