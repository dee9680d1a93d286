package database

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrIDMismatch is returned when a block's id is not the hash of its content.
var ErrIDMismatch = errors.New("block id does not match content")

// =============================================================================

// Block represents a mined unit of the chain. Once mined a block is never
// modified; the same value is shared by every branch that includes it.
type Block struct {
	ID        signature.ID // Hash of PrevID, Nonce and the payload encoding.
	PrevID    signature.ID // Id of the block this one extends.
	Nonce     uint64       // Value identified to solve the hash solution.
	Signature []byte       // Sender signature over the payload encoding, if any.
	Payload   Payload      // Empty, WalletRegistration or Transfer.
}

// NewBlock constructs an unmined block with a nonce of zero.
func NewBlock(prevID signature.ID, payload Payload, sig []byte) (Block, error) {
	if payload == nil {
		payload = EmptyPayload{}
	}

	data, err := EncodePayload(payload)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		PrevID:    prevID,
		Signature: bytes.Clone(sig),
		Payload:   payload,
	}
	b.ID = HashBlock(prevID, 0, data)

	return b, nil
}

// Clone returns a copy of the block that shares no byte slices with the
// original.
func (b Block) Clone() Block {
	b.Signature = bytes.Clone(b.Signature)

	if wr, ok := b.Payload.(WalletRegistration); ok {
		wr.PublicKey = bytes.Clone(wr.PublicKey)
		b.Payload = wr
	}

	return b
}

// HashBlock computes the identifier for the block content. The payload
// must already be in its canonical encoding.
func HashBlock(prevID signature.ID, nonce uint64, payload []byte) signature.ID {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)

	return signature.Hash(prevID[:], n[:], payload)
}

// Hash returns the identifier the block's content hashes to. If the payload
// can't be encoded the zero id is returned, which never matches a block.
func (b Block) Hash() signature.ID {
	data, err := EncodePayload(b.Payload)
	if err != nil {
		return signature.ZeroID
	}

	return HashBlock(b.PrevID, b.Nonce, data)
}

// WithNonce returns a copy of the block using the specified nonce with the
// identifier recomputed.
func (b Block) WithNonce(nonce uint64) Block {
	b.Nonce = nonce
	b.ID = b.Hash()
	return b
}

// ValidateID checks the block id is the hash of its content.
func (b Block) ValidateID() error {
	if exp := b.Hash(); b.ID != exp {
		return fmt.Errorf("%w, got %s, exp %s", ErrIDMismatch, b.ID, exp)
	}

	return nil
}

// IsSolved checks the block id complies with the POW rules. We need to
// match a difficulty number of leading zero bytes.
func (b Block) IsSolved(difficulty uint) bool {
	return b.ID.LeadingZeros(difficulty)
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	kind := KindEmpty
	if b.Payload != nil {
		kind = b.Payload.Kind()
	}

	return fmt.Sprintf("%s(%s)<-%s", b.ID.Short(), kind, b.PrevID.Short())
}

// =============================================================================

// BlockData represents the JSON form of a block exchanged with clients.
type BlockData struct {
	ID        signature.ID    `json:"id"`
	PrevID    signature.ID    `json:"prev_id"`
	Nonce     uint64          `json:"nonce"`
	Signature string          `json:"signature,omitempty"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

// NewBlockData constructs the value to serialize for a block.
func NewBlockData(b Block) BlockData {
	bd := BlockData{
		ID:     b.ID,
		PrevID: b.PrevID,
		Nonce:  b.Nonce,
	}

	if len(b.Signature) > 0 {
		bd.Signature = hexutil.Encode(b.Signature)
	}

	// Payloads constructed by this package always encode.
	bd.Payload, _ = EncodePayload(b.Payload)

	return bd
}

// ToBlock converts a BlockData into a Block, checking the id matches the
// content it claims to identify.
func ToBlock(bd BlockData) (Block, error) {
	payload, err := DecodePayload(bd.Payload)
	if err != nil {
		return Block{}, err
	}

	var sig []byte
	if bd.Signature != "" {
		if sig, err = hexutil.Decode(bd.Signature); err != nil {
			return Block{}, fmt.Errorf("decoding signature: %w", err)
		}
	}

	b := Block{
		ID:        bd.ID,
		PrevID:    bd.PrevID,
		Nonce:     bd.Nonce,
		Signature: sig,
		Payload:   payload,
	}

	if err := b.ValidateID(); err != nil {
		return Block{}, err
	}

	return b, nil
}
