// Package database handles the block and payload types that make up the
// blockchain along with their canonical byte encodings used for hashing
// and signing.
package database

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Kind names the payload variant carried by a block.
type Kind string

// Set of payload variants.
const (
	KindEmpty              Kind = "empty"
	KindWalletRegistration Kind = "wallet_registration"
	KindTransfer           Kind = "transfer"
)

// Payload represents the data carried by a block. The set of implementations
// is closed to this package: EmptyPayload, WalletRegistration and Transfer.
type Payload interface {
	Kind() Kind
	payload()
}

// =============================================================================

// EmptyPayload is a block that carries no data.
type EmptyPayload struct{}

// Kind implements the Payload interface.
func (EmptyPayload) Kind() Kind { return KindEmpty }

func (EmptyPayload) payload() {}

// WalletRegistration registers a new wallet identified by the hash of
// its PEM encoded public key.
type WalletRegistration struct {
	PublicKey []byte `json:"public_key"`
}

// NewWalletRegistration constructs the registration for the public key.
func NewWalletRegistration(publicKey *rsa.PublicKey) WalletRegistration {
	return WalletRegistration{
		PublicKey: signature.EncodePublicKey(publicKey),
	}
}

// Kind implements the Payload interface.
func (WalletRegistration) Kind() Kind { return KindWalletRegistration }

func (WalletRegistration) payload() {}

// WalletID returns the identifier of the registered wallet.
func (wr WalletRegistration) WalletID() signature.ID {
	return signature.Hash(wr.PublicKey)
}

// Transfer moves an amount of a currency between two wallets. A transfer
// carries no identity of its own; the block holding it carries the
// sender's signature over its encoding.
type Transfer struct {
	From     signature.ID    `json:"from"`
	To       signature.ID    `json:"to"`
	Currency uint64          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// Kind implements the Payload interface.
func (Transfer) Kind() Kind { return KindTransfer }

func (Transfer) payload() {}

// Sign uses the specified private key to sign the transfer encoding.
func (tr Transfer) Sign(privateKey *rsa.PrivateKey) ([]byte, error) {
	data, err := EncodePayload(tr)
	if err != nil {
		return nil, err
	}

	return signature.Sign(data, privateKey)
}

// String implements the fmt.Stringer interface for logging.
func (tr Transfer) String() string {
	return fmt.Sprintf("%s->%s:%s@%d", tr.From.Short(), tr.To.Short(), tr.Amount, tr.Currency)
}

// =============================================================================

// envelope is the canonical encoding of a payload. The type tag is part of
// the hashed and signed bytes so two variants never share an encoding.
type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload returns the canonical bytes for the payload. The same
// logical value always produces the same bytes. A nil payload is encoded
// as an EmptyPayload.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		p = EmptyPayload{}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", p.Kind(), err)
	}

	return json.Marshal(envelope{Type: p.Kind(), Data: data})
}

// DecodePayload parses bytes produced by EncodePayload.
func DecodePayload(data []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding payload envelope: %w", err)
	}

	switch env.Type {
	case KindEmpty:
		return EmptyPayload{}, nil

	case KindWalletRegistration:
		var wr WalletRegistration
		if err := json.Unmarshal(env.Data, &wr); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		return wr, nil

	case KindTransfer:
		var tr Transfer
		if err := json.Unmarshal(env.Data, &tr); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		return tr, nil
	}

	return nil, fmt.Errorf("unknown payload type %q", env.Type)
}

// =============================================================================

// SignedPayload represents the JSON form of a payload submitted for mining
// along with the sender's signature over its canonical encoding.
type SignedPayload struct {
	Payload   json.RawMessage `json:"payload" validate:"required"`
	Signature string          `json:"signature,omitempty"`
}

// NewSignedPayload constructs the value to serialize for a payload.
func NewSignedPayload(p Payload, sig []byte) (SignedPayload, error) {
	data, err := EncodePayload(p)
	if err != nil {
		return SignedPayload{}, err
	}

	sp := SignedPayload{
		Payload: data,
	}

	if len(sig) > 0 {
		sp.Signature = hexutil.Encode(sig)
	}

	return sp, nil
}

// Decode returns the payload and signature the value carries. A Transfer
// without a signature is refused since no bank would accept it.
func (sp SignedPayload) Decode() (Payload, []byte, error) {
	p, err := DecodePayload(sp.Payload)
	if err != nil {
		return nil, nil, err
	}

	var sig []byte
	if sp.Signature != "" {
		if sig, err = hexutil.Decode(sp.Signature); err != nil {
			return nil, nil, fmt.Errorf("decoding signature: %w", err)
		}
	}

	if p.Kind() == KindTransfer && len(sig) == 0 {
		return nil, nil, fmt.Errorf("%s payload requires a signature", KindTransfer)
	}

	return p, sig, nil
}
