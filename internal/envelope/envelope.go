// Package envelope defines the cross-chain payload codec. Payloads are
// ABI-encoded with a leading message-type tag; decoding is strict and rejects
// anything malformed instead of defaulting.
package envelope

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Message type tags, first field of every packed payload.
const (
	TypeMintInstruction uint8 = 1
	TypeMintReceipt     uint8 = 2
	TypeFailureNotice   uint8 = 3
)

var (
	ErrMalformedPayload = errors.New("malformed envelope payload")
	ErrWrongMessageType = errors.New("unexpected envelope message type")
	ErrZeroRequestID    = errors.New("request id must not be zero")
	ErrEmptyRecipient   = errors.New("recipient must not be empty")
	ErrEmptyTokenURI    = errors.New("token uri must not be empty")
	ErrEmptyReason      = errors.New("failure reason must not be empty")
)

// MintInstruction orders a destination minter to mint one token.
type MintInstruction struct {
	RequestID  [32]byte
	Recipient  []byte // destination-chain address bytes, format is chain-specific
	TokenURI   string
	RoyaltyBps uint16
}

// MintReceipt reports a successful mint back to the hub.
type MintReceipt struct {
	RequestID [32]byte
	TokenID   uint64
}

// FailureNotice reports a rejected mint back to the hub.
type FailureNotice struct {
	RequestID [32]byte
	Reason    string
}

var (
	instructionArgs abi.Arguments
	receiptArgs     abi.Arguments
	failureArgs     abi.Arguments
)

func init() {
	uint8T, _ := abi.NewType("uint8", "", nil)
	bytes32T, _ := abi.NewType("bytes32", "", nil)
	bytesT, _ := abi.NewType("bytes", "", nil)
	stringT, _ := abi.NewType("string", "", nil)
	uint16T, _ := abi.NewType("uint16", "", nil)
	uint64T, _ := abi.NewType("uint64", "", nil)

	instructionArgs = abi.Arguments{
		{Name: "messageType", Type: uint8T},
		{Name: "requestId", Type: bytes32T},
		{Name: "recipient", Type: bytesT},
		{Name: "tokenUri", Type: stringT},
		{Name: "royaltyBps", Type: uint16T},
	}
	receiptArgs = abi.Arguments{
		{Name: "messageType", Type: uint8T},
		{Name: "requestId", Type: bytes32T},
		{Name: "tokenId", Type: uint64T},
	}
	failureArgs = abi.Arguments{
		{Name: "messageType", Type: uint8T},
		{Name: "requestId", Type: bytes32T},
		{Name: "reason", Type: stringT},
	}
}

// Verify checks the instruction's field invariants.
func (m *MintInstruction) Verify() error {
	if m.RequestID == ([32]byte{}) {
		return ErrZeroRequestID
	}
	if len(m.Recipient) == 0 {
		return ErrEmptyRecipient
	}
	if m.TokenURI == "" {
		return ErrEmptyTokenURI
	}
	return nil
}

// Verify checks the receipt's field invariants.
func (m *MintReceipt) Verify() error {
	if m.RequestID == ([32]byte{}) {
		return ErrZeroRequestID
	}
	return nil
}

// Verify checks the notice's field invariants.
func (m *FailureNotice) Verify() error {
	if m.RequestID == ([32]byte{}) {
		return ErrZeroRequestID
	}
	if m.Reason == "" {
		return ErrEmptyReason
	}
	return nil
}

// PackMintInstruction encodes a verified instruction.
func PackMintInstruction(m *MintInstruction) ([]byte, error) {
	if err := m.Verify(); err != nil {
		return nil, err
	}
	data, err := instructionArgs.Pack(TypeMintInstruction, m.RequestID, m.Recipient, m.TokenURI, m.RoyaltyBps)
	if err != nil {
		return nil, fmt.Errorf("pack mint instruction: %w", err)
	}
	return data, nil
}

// UnpackMintInstruction decodes and verifies an instruction payload.
func UnpackMintInstruction(data []byte) (*MintInstruction, error) {
	values, err := instructionArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(values) != 5 {
		return nil, ErrMalformedPayload
	}
	msgType, ok := values[0].(uint8)
	if !ok || msgType != TypeMintInstruction {
		return nil, ErrWrongMessageType
	}
	m := &MintInstruction{}
	if m.RequestID, ok = values[1].([32]byte); !ok {
		return nil, ErrMalformedPayload
	}
	if m.Recipient, ok = values[2].([]byte); !ok {
		return nil, ErrMalformedPayload
	}
	if m.TokenURI, ok = values[3].(string); !ok {
		return nil, ErrMalformedPayload
	}
	if m.RoyaltyBps, ok = values[4].(uint16); !ok {
		return nil, ErrMalformedPayload
	}
	if err := m.Verify(); err != nil {
		return nil, err
	}
	return m, nil
}

// PackMintReceipt encodes a verified receipt.
func PackMintReceipt(m *MintReceipt) ([]byte, error) {
	if err := m.Verify(); err != nil {
		return nil, err
	}
	data, err := receiptArgs.Pack(TypeMintReceipt, m.RequestID, m.TokenID)
	if err != nil {
		return nil, fmt.Errorf("pack mint receipt: %w", err)
	}
	return data, nil
}

// UnpackMintReceipt decodes and verifies a receipt payload.
func UnpackMintReceipt(data []byte) (*MintReceipt, error) {
	values, err := receiptArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(values) != 3 {
		return nil, ErrMalformedPayload
	}
	msgType, ok := values[0].(uint8)
	if !ok || msgType != TypeMintReceipt {
		return nil, ErrWrongMessageType
	}
	m := &MintReceipt{}
	if m.RequestID, ok = values[1].([32]byte); !ok {
		return nil, ErrMalformedPayload
	}
	if m.TokenID, ok = values[2].(uint64); !ok {
		return nil, ErrMalformedPayload
	}
	if err := m.Verify(); err != nil {
		return nil, err
	}
	return m, nil
}

// PackFailureNotice encodes a verified notice.
func PackFailureNotice(m *FailureNotice) ([]byte, error) {
	if err := m.Verify(); err != nil {
		return nil, err
	}
	data, err := failureArgs.Pack(TypeFailureNotice, m.RequestID, m.Reason)
	if err != nil {
		return nil, fmt.Errorf("pack failure notice: %w", err)
	}
	return data, nil
}

// UnpackFailureNotice decodes and verifies a notice payload.
func UnpackFailureNotice(data []byte) (*FailureNotice, error) {
	values, err := failureArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(values) != 3 {
		return nil, ErrMalformedPayload
	}
	msgType, ok := values[0].(uint8)
	if !ok || msgType != TypeFailureNotice {
		return nil, ErrWrongMessageType
	}
	m := &FailureNotice{}
	if m.RequestID, ok = values[1].([32]byte); !ok {
		return nil, ErrMalformedPayload
	}
	if m.Reason, ok = values[2].(string); !ok {
		return nil, ErrMalformedPayload
	}
	if err := m.Verify(); err != nil {
		return nil, err
	}
	return m, nil
}
