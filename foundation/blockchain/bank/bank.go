// Package bank maintains the wallet balances for a single branch of the
// blockchain. The bank is a deterministic state machine driven by applying
// and rolling back one block at a time.
package bank

import (
	"errors"
	"fmt"
	"maps"

	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Set of errors returned when a block can't be applied or rolled back.
var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrWalletDuplicate      = errors.New("wallet duplicate")
	ErrSignatureInvalid     = errors.New("signature invalid")
	ErrInsufficientCurrency = errors.New("insufficient currency")
	ErrInvalidTransfer      = errors.New("invalid transfer")
)

// Every registered wallet starts with this balance so it can spend
// immediately.
const BootstrapCurrency uint64 = 1

// BootstrapAmount is the amount of BootstrapCurrency a new wallet holds.
var BootstrapAmount = decimal.NewFromInt(100)

// =============================================================================

// Bank manages the wallets that have been registered on a branch. A bank
// is not safe for concurrent use; the owning shard serializes access.
type Bank struct {
	wallets map[signature.ID]Wallet
}

// New constructs an empty bank.
func New() *Bank {
	return &Bank{
		wallets: make(map[signature.ID]Wallet),
	}
}

// Clone makes a deep copy of the bank.
func (b *Bank) Clone() *Bank {
	bank := New()
	for id, wallet := range b.wallets {
		bank.wallets[id] = wallet.clone()
	}
	return bank
}

// Copy makes a copy of the current information for all wallets.
func (b *Bank) Copy() map[signature.ID]Wallet {
	wallets := make(map[signature.ID]Wallet, len(b.wallets))
	for id, wallet := range b.wallets {
		wallets[id] = wallet.clone()
	}
	return wallets
}

// Query returns a copy of the specified wallet.
func (b *Bank) Query(id signature.ID) (Wallet, error) {
	wallet, exists := b.wallets[id]
	if !exists {
		return Wallet{}, fmt.Errorf("%w: %s", ErrWalletNotFound, id)
	}

	return wallet.clone(), nil
}

// Count returns the number of registered wallets.
func (b *Bank) Count() int {
	return len(b.wallets)
}

// Totals returns the sum of balances per currency across all wallets.
func (b *Bank) Totals() map[uint64]decimal.Decimal {
	totals := make(map[uint64]decimal.Decimal)
	for _, wallet := range b.wallets {
		for currency, amount := range wallet.Balances {
			totals[currency] = totals[currency].Add(amount)
		}
	}
	return totals
}

// Equal reports whether both banks hold the same wallets and balances.
func (b *Bank) Equal(o *Bank) bool {
	return maps.EqualFunc(b.wallets, o.wallets, Wallet.equal)
}

// =============================================================================

// Apply performs the business logic for applying a block to the bank. On
// error the bank is left untouched.
func (b *Bank) Apply(block database.Block) error {
	return b.process(block, false)
}

// Rollback undoes the effect of a block previously applied to the bank. On
// error the bank is left untouched.
func (b *Bank) Rollback(block database.Block) error {
	return b.process(block, true)
}

// process routes the block to the handler for its payload variant.
func (b *Bank) process(block database.Block, invert bool) error {
	switch p := block.Payload.(type) {
	case nil, database.EmptyPayload:
		return nil

	case database.WalletRegistration:
		return b.processRegistration(p, invert)

	case database.Transfer:
		return b.processTransfer(block, p, invert)
	}

	return fmt.Errorf("unknown payload type %T", block.Payload)
}

// processRegistration inserts the wallet, or removes it when inverted.
func (b *Bank) processRegistration(wr database.WalletRegistration, invert bool) error {
	id := wr.WalletID()
	_, exists := b.wallets[id]

	if invert {
		if !exists {
			return fmt.Errorf("%w: %s", ErrWalletNotFound, id)
		}

		delete(b.wallets, id)
		return nil
	}

	if exists {
		return fmt.Errorf("%w: %s", ErrWalletDuplicate, id)
	}

	b.wallets[id] = newWallet(id, wr.PublicKey)
	return nil
}

// processTransfer moves the amount from sender to receiver, or from receiver
// back to sender when inverted. Every check happens before any balance is
// touched so a failure leaves no partial state behind.
func (b *Bank) processTransfer(block database.Block, tr database.Transfer, invert bool) error {
	if tr.From == tr.To {
		return fmt.Errorf("%w: sending money to yourself, wallet %s", ErrInvalidTransfer, tr.From)
	}

	if !tr.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidTransfer, tr.Amount)
	}

	from, exists := b.wallets[tr.From]
	if !exists {
		return fmt.Errorf("%w: from %s", ErrWalletNotFound, tr.From)
	}

	to, exists := b.wallets[tr.To]
	if !exists {
		return fmt.Errorf("%w: to %s", ErrWalletNotFound, tr.To)
	}

	data, err := database.EncodePayload(tr)
	if err != nil {
		return err
	}

	if err := signature.Verify(data, from.PublicKey, block.Signature); err != nil {
		return fmt.Errorf("%w: %s", ErrSignatureInvalid, err)
	}

	// Identify which side is debited based on the direction.
	debit, credit := from, to
	if invert {
		debit, credit = to, from
	}

	if balance := debit.Balance(tr.Currency); balance.LessThan(tr.Amount) {
		return fmt.Errorf("%w: wallet %s, currency %d, bal %s, needed %s", ErrInsufficientCurrency, debit.ID, tr.Currency, balance, tr.Amount)
	}

	b.wallets[debit.ID] = adjust(debit, tr.Currency, tr.Amount.Neg())
	b.wallets[credit.ID] = adjust(credit, tr.Currency, tr.Amount)

	return nil
}

// adjust returns a copy of the wallet with the delta added to the currency.
// Entries that reach zero are removed.
func adjust(w Wallet, currency uint64, delta decimal.Decimal) Wallet {
	w = w.clone()
	if w.Balances == nil {
		w.Balances = make(map[uint64]decimal.Decimal)
	}

	amount := w.Balances[currency].Add(delta)
	switch {
	case amount.IsZero():
		delete(w.Balances, currency)
	default:
		w.Balances[currency] = amount
	}

	return w
}
