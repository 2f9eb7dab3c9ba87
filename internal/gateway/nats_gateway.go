package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"aimint-backend/internal/config"
	"aimint-backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleHeader = "Gateway-Delivery-Handle"

// NATSGateway is the NATS-backed transport adapter. Outbound instructions go
// to <prefix>.<chainID>.<endpoint>; inbound resolutions arrive on
// <prefix>.hub.receipt and <prefix>.hub.failure.
type NATSGateway struct {
	conn      *nats.Conn
	prefix    string
	principal string
}

// NewNATSGateway connects to NATS using the configured timeouts.
func NewNATSGateway(url string) (*NATSGateway, error) {
	connectTimeout := 10 * time.Second
	reconnectWait := 5 * time.Second
	if config.AppConfig != nil {
		if config.AppConfig.NATS.Timeout > 0 {
			connectTimeout = time.Duration(config.AppConfig.NATS.Timeout) * time.Second
		}
		if config.AppConfig.NATS.ReconnectWait > 0 {
			reconnectWait = time.Duration(config.AppConfig.NATS.ReconnectWait) * time.Second
		}
	}

	conn, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ [Gateway] NATS disconnected: %v", err)
			metrics.GatewayConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ [Gateway] NATS reconnected")
			metrics.GatewayConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS failed: %w", err)
	}
	metrics.GatewayConnectionStatus.Set(1)

	g := &NATSGateway{
		conn:      conn,
		prefix:    config.AppConfig.Gateway.SubjectPrefix,
		principal: config.AppConfig.Gateway.TransportPrincipal,
	}
	log.Printf("✅ [Gateway] Connected to NATS at %s (prefix=%s)", url, g.prefix)
	return g, nil
}

// Send publishes the payload to the chain's endpoint subject and returns
// immediately. At-least-once: the caller must tolerate redelivery downstream.
func (g *NATSGateway) Send(ctx context.Context, chainID uint32, endpoint string, payload []byte) (DeliveryHandle, error) {
	if g.conn == nil || g.conn.Status() != nats.CONNECTED {
		return "", ErrNotConnected
	}

	handle := DeliveryHandle(uuid.New().String())
	subject := g.subjectFor(chainID, endpoint)

	msg := nats.NewMsg(subject)
	msg.Header.Set(PrincipalHeader, g.principal)
	msg.Header.Set(handleHeader, string(handle))
	msg.Data = payload

	if err := g.conn.PublishMsg(msg); err != nil {
		metrics.GatewayMessagesRejected.WithLabelValues("publish_error").Inc()
		return "", fmt.Errorf("publish to %s failed: %w", subject, err)
	}

	metrics.GatewayMessagesSent.WithLabelValues(strconv.FormatUint(uint64(chainID), 10)).Inc()
	log.Printf("📨 [Gateway] Sent %d bytes to %s (handle=%s)", len(payload), subject, handle)
	return handle, nil
}

// subjectFor renders a destination subject; the hub chain id renders as "hub".
func (g *NATSGateway) subjectFor(chainID uint32, endpoint string) string {
	if chainID == HubChainID {
		return fmt.Sprintf("%s.hub.%s", g.prefix, endpoint)
	}
	return fmt.Sprintf("%s.%d.%s", g.prefix, chainID, endpoint)
}

// RegisterCallHandler subscribes to inbound mint receipts.
func (g *NATSGateway) RegisterCallHandler(h CallHandler) error {
	return g.subscribeInbound(g.subjectFor(HubChainID, EndpointReceipt), "receipt", func(ctx context.Context, msg Inbound) error {
		return h(ctx, msg)
	})
}

// RegisterFailureHandler subscribes to inbound failure notices.
func (g *NATSGateway) RegisterFailureHandler(h FailureHandler) error {
	return g.subscribeInbound(g.subjectFor(HubChainID, EndpointFailure), "failure", func(ctx context.Context, msg Inbound) error {
		return h(ctx, msg)
	})
}

// RegisterEndpointHandler subscribes a minter endpoint for mint instructions.
func (g *NATSGateway) RegisterEndpointHandler(chainID uint32, endpoint string, h CallHandler) error {
	return g.subscribeInbound(g.subjectFor(chainID, endpoint), "instruction", func(ctx context.Context, msg Inbound) error {
		return h(ctx, msg)
	})
}

// subscribeInbound wires one inbound subject.
func (g *NATSGateway) subscribeInbound(subject, kind string, h func(context.Context, Inbound) error) error {
	_, err := g.conn.Subscribe(subject, func(msg *nats.Msg) {
		g.dispatchInbound(kind, msg.Header.Get(PrincipalHeader), msg.Subject,
			msg.Header.Get(handleHeader), msg.Data, h)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s failed: %w", subject, err)
	}
	log.Printf("✅ [Gateway] Subscribed to %s", subject)
	return nil
}

// dispatchInbound authenticates the sender and forwards the message. The
// principal check happens here, before any payload byte reaches a handler.
func (g *NATSGateway) dispatchInbound(kind, sender, subject, handle string, data []byte, h func(context.Context, Inbound) error) error {
	if sender != g.principal {
		metrics.GatewayMessagesRejected.WithLabelValues("bad_principal").Inc()
		log.Printf("🚫 [Gateway] Rejected %s message on %s: principal %q", kind, subject, sender)
		return ErrUnauthorizedPrincipal
	}

	in := Inbound{
		Handle:  DeliveryHandle(handle),
		ChainID: chainIDFromSubject(subject, g.prefix),
		Payload: data,
	}
	metrics.GatewayMessagesReceived.WithLabelValues(kind).Inc()

	if err := h(context.Background(), in); err != nil {
		log.Printf("❌ [Gateway] %s handler failed (handle=%s): %v", kind, in.Handle, err)
		return err
	}
	return nil
}

// chainIDFromSubject extracts the chain segment when present. Hub-bound
// subjects carry "hub" there, which yields zero.
func chainIDFromSubject(subject, prefix string) uint32 {
	rest := strings.TrimPrefix(subject, prefix+".")
	parts := strings.SplitN(rest, ".", 2)
	if len(parts) == 0 {
		return 0
	}
	id, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(id)
}

// Close drains the connection.
func (g *NATSGateway) Close() {
	if g.conn != nil {
		g.conn.Close()
	}
}
