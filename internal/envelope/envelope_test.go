package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequestID() [32]byte {
	var id [32]byte
	for i := range id {
		id[i] = byte(i + 1)
	}
	return id
}

func TestMintInstructionRoundTrip(t *testing.T) {
	in := &MintInstruction{
		RequestID:  testRequestID(),
		Recipient:  []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02},
		TokenURI:   "ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		RoyaltyBps: 500,
	}

	data, err := PackMintInstruction(in)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	out, err := UnpackMintInstruction(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMintReceiptRoundTrip(t *testing.T) {
	in := &MintReceipt{RequestID: testRequestID(), TokenID: 42}

	data, err := PackMintReceipt(in)
	require.NoError(t, err)

	out, err := UnpackMintReceipt(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFailureNoticeRoundTrip(t *testing.T) {
	in := &FailureNotice{RequestID: testRequestID(), Reason: "duplicate request"}

	data, err := PackFailureNotice(in)
	require.NoError(t, err)

	out, err := UnpackFailureNotice(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPackRejectsInvalidFields(t *testing.T) {
	_, err := PackMintInstruction(&MintInstruction{
		Recipient: []byte{0x01},
		TokenURI:  "ipfs://x",
	})
	assert.ErrorIs(t, err, ErrZeroRequestID)

	_, err = PackMintInstruction(&MintInstruction{
		RequestID: testRequestID(),
		TokenURI:  "ipfs://x",
	})
	assert.ErrorIs(t, err, ErrEmptyRecipient)

	_, err = PackMintInstruction(&MintInstruction{
		RequestID: testRequestID(),
		Recipient: []byte{0x01},
	})
	assert.ErrorIs(t, err, ErrEmptyTokenURI)

	_, err = PackFailureNotice(&FailureNotice{RequestID: testRequestID()})
	assert.ErrorIs(t, err, ErrEmptyReason)
}

func TestUnpackRejectsGarbage(t *testing.T) {
	_, err := UnpackMintInstruction([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = UnpackMintReceipt(nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = UnpackFailureNotice([]byte("not an abi payload"))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestUnpackRejectsWrongMessageType(t *testing.T) {
	data, err := PackMintReceipt(&MintReceipt{RequestID: testRequestID(), TokenID: 7})
	require.NoError(t, err)

	// A receipt payload decoded as a failure notice has the wrong tag (and a
	// numeric field where the string offset should be).
	_, err = UnpackFailureNotice(data)
	assert.Error(t, err)

	instr, err := PackMintInstruction(&MintInstruction{
		RequestID:  testRequestID(),
		Recipient:  []byte{0x01},
		TokenURI:   "ipfs://x",
		RoyaltyBps: 100,
	})
	require.NoError(t, err)

	_, err = UnpackMintReceipt(instr)
	assert.Error(t, err)
}

func TestUnpackRejectsZeroRequestID(t *testing.T) {
	// Hand-pack a payload with a zero request id to exercise decode-side checks.
	var zero [32]byte
	data, err := failureArgs.Pack(TypeFailureNotice, zero, "boom")
	require.NoError(t, err)

	_, err = UnpackFailureNotice(data)
	assert.ErrorIs(t, err, ErrZeroRequestID)
}
