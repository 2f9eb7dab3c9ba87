// Package gateway adapts the cross-chain messaging transport. The hub and the
// minters never talk to NATS directly; they see this interface, and the
// transport principal check at the inbound edge is the only authentication
// the cross-chain path has.
package gateway

import (
	"context"
	"errors"
)

// PrincipalHeader carries the sender identity on every transport message.
const PrincipalHeader = "Gateway-Principal"

// HubChainID addresses the hub itself. Subjects render the segment as "hub",
// and minters use it to send receipts and failure notices back.
const HubChainID uint32 = 0

// Hub-side endpoints.
const (
	EndpointReceipt = "receipt"
	EndpointFailure = "failure"
)

var (
	// ErrUnauthorizedPrincipal is returned for inbound messages whose
	// principal header does not match the configured transport principal.
	ErrUnauthorizedPrincipal = errors.New("gateway: unauthorized transport principal")
	// ErrNotConnected is returned when the transport connection is down.
	ErrNotConnected = errors.New("gateway: transport not connected")
)

// DeliveryHandle identifies one outbound send for logging and correlation.
// The transport is at-least-once; the handle does not imply receipt.
type DeliveryHandle string

// Inbound is a verified inbound message handed to a registered handler.
type Inbound struct {
	Handle  DeliveryHandle
	ChainID uint32
	Payload []byte
}

// CallHandler consumes verified inbound receipts (successful mints).
type CallHandler func(ctx context.Context, msg Inbound) error

// FailureHandler consumes verified inbound failure notices.
type FailureHandler func(ctx context.Context, msg Inbound) error

// Gateway is the one-way messaging port. Send is non-blocking: it enqueues
// and returns; resolution arrives later through a registered handler.
type Gateway interface {
	Send(ctx context.Context, chainID uint32, endpoint string, payload []byte) (DeliveryHandle, error)
	// RegisterCallHandler wires the hub's receipt inbox.
	RegisterCallHandler(h CallHandler) error
	// RegisterFailureHandler wires the hub's failure inbox.
	RegisterFailureHandler(h FailureHandler) error
	// RegisterEndpointHandler wires a minter endpoint for inbound instructions.
	RegisterEndpointHandler(chainID uint32, endpoint string, h CallHandler) error
	Close()
}
