package bank

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Wallet represents the balances held by a registered public key.
// Balances never hold zero entries.
type Wallet struct {
	ID        signature.ID
	PublicKey []byte
	Balances  map[uint64]decimal.Decimal
}

// newWallet constructs a wallet with the bootstrap balance applied.
func newWallet(id signature.ID, publicKey []byte) Wallet {
	return Wallet{
		ID:        id,
		PublicKey: bytes.Clone(publicKey),
		Balances: map[uint64]decimal.Decimal{
			BootstrapCurrency: BootstrapAmount,
		},
	}
}

// Balance returns the amount held in the specified currency.
func (w Wallet) Balance(currency uint64) decimal.Decimal {
	return w.Balances[currency]
}

// clone makes a deep copy of the wallet.
func (w Wallet) clone() Wallet {
	return Wallet{
		ID:        w.ID,
		PublicKey: w.PublicKey,
		Balances:  maps.Clone(w.Balances),
	}
}

// equal compares the balances and key of two wallets.
func (w Wallet) equal(o Wallet) bool {
	if w.ID != o.ID || !bytes.Equal(w.PublicKey, o.PublicKey) || len(w.Balances) != len(o.Balances) {
		return false
	}

	for currency, amount := range w.Balances {
		other, exists := o.Balances[currency]
		if !exists || !amount.Equal(other) {
			return false
		}
	}

	return true
}

// String implements the fmt.Stringer interface for logging.
func (w Wallet) String() string {
	var b strings.Builder
	for _, currency := range slices.Sorted(maps.Keys(w.Balances)) {
		fmt.Fprintf(&b, "%d=%s,", currency, w.Balances[currency])
	}

	return strings.TrimSuffix(b.String(), ",")
}
