package signature

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// IDLength is the number of bytes in an identifier.
const IDLength = sha256.Size

// ID represents the content hash of a block or a wallet. It is a value type
// that can be compared with == and used as a map key.
type ID [IDLength]byte

// ZeroID represents an identifier of zeros. Genesis blocks point to it.
var ZeroID ID

// Hash returns the SHA-256 content hash over the concatenation of the
// specified parts.
func Hash(parts ...[]byte) ID {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}

	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// ToID converts a hex-encoded string into an identifier. The 0x prefix
// is optional.
func ToID(hex string) (ID, error) {
	if !strings.HasPrefix(hex, "0x") && !strings.HasPrefix(hex, "0X") {
		hex = "0x" + hex
	}

	b, err := hexutil.Decode(hex)
	if err != nil {
		return ZeroID, fmt.Errorf("decoding id: %w", err)
	}

	if len(b) != IDLength {
		return ZeroID, fmt.Errorf("invalid id length, got %d, exp %d", len(b), IDLength)
	}

	var id ID
	copy(id[:], b)
	return id, nil
}

// String returns the 0x prefixed hex representation of the identifier.
func (id ID) String() string {
	return hexutil.Encode(id[:])
}

// Short returns the first four bytes of the identifier for log lines.
func (id ID) Short() string {
	return hexutil.Encode(id[:4])
}

// IsZero reports whether the identifier is the zero value.
func (id ID) IsZero() bool {
	return id == ZeroID
}

// LeadingZeros reports whether the first n bytes of the identifier are zero.
func (id ID) LeadingZeros(n uint) bool {
	if n > IDLength {
		return false
	}

	for i := range n {
		if id[i] != 0 {
			return false
		}
	}

	return true
}

// MarshalText implements the encoding.TextMarshaler interface.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (id *ID) UnmarshalText(data []byte) error {
	v, err := ToID(string(data))
	if err != nil {
		return err
	}

	*id = v
	return nil
}
