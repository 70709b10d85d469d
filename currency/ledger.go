// Package currency implements the balance and reservation ledger spec.md
// §4.2 describes: per (account, asset) free/locked balances with
// lock/unlock/transfer primitives. No operation ever changes an amount's
// asset id.
package currency

import (
	"fmt"
	"math/big"

	"vaultbridge/assets"
	"vaultbridge/crypto"
	"vaultbridge/kernelerrors"
)

// Balance holds the free and locked raw-unit balances for one account/asset
// pair.
type Balance struct {
	Free   *big.Int
	Locked *big.Int
}

func zeroBalance() Balance {
	return Balance{Free: big.NewInt(0), Locked: big.NewInt(0)}
}

// Store persists per (account, asset) balances. Implementations are not
// expected to be safe for concurrent use; the kernel applies commands
// strictly sequentially per spec.md §5.
type Store interface {
	GetBalance(account crypto.Address, asset assets.ID) (Balance, error)
	PutBalance(account crypto.Address, asset assets.ID, bal Balance) error
}

// Ledger mediates free/locked balance transitions for a single Store.
type Ledger struct {
	store Store
}

// New constructs a Ledger backed by the supplied Store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) load(account crypto.Address, asset assets.ID) (Balance, error) {
	bal, err := l.store.GetBalance(account, asset)
	if err != nil {
		return Balance{}, err
	}
	if bal.Free == nil {
		bal.Free = big.NewInt(0)
	}
	if bal.Locked == nil {
		bal.Locked = big.NewInt(0)
	}
	return bal, nil
}

// Free returns the account's free balance for the asset.
func (l *Ledger) Free(account crypto.Address, asset assets.ID) (*big.Int, error) {
	bal, err := l.load(account, asset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(bal.Free), nil
}

// Locked returns the account's locked balance for the asset.
func (l *Ledger) Locked(account crypto.Address, asset assets.ID) (*big.Int, error) {
	bal, err := l.load(account, asset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(bal.Locked), nil
}

// Deposit credits amount to the account's free balance, e.g. when BTC
// payment confirmation mints wrapped tokens. It never fails on overflow
// because math/big integers are unbounded; it only rejects a nil/negative
// amount.
func (l *Ledger) Deposit(account crypto.Address, amount amountArg) error {
	if amount.Raw == nil || amount.Raw.Sign() < 0 {
		return fmt.Errorf("%w: deposit amount must be non-negative", kernelerrors.ErrInvalidCurrency)
	}
	bal, err := l.load(account, amount.Asset)
	if err != nil {
		return err
	}
	bal.Free = new(big.Int).Add(bal.Free, amount.Raw)
	return l.store.PutBalance(account, amount.Asset, bal)
}

// Burn debits amount from the account's free balance, e.g. when a redeem
// request burns wrapped tokens.
func (l *Ledger) Burn(account crypto.Address, amount amountArg) error {
	bal, err := l.load(account, amount.Asset)
	if err != nil {
		return err
	}
	if bal.Free.Cmp(amount.Raw) < 0 {
		return kernelerrors.ErrInsufficientFunds
	}
	bal.Free = new(big.Int).Sub(bal.Free, amount.Raw)
	return l.store.PutBalance(account, amount.Asset, bal)
}

// Lock moves amount from free to locked. Locking more than Free yields
// ErrInsufficientFunds.
func (l *Ledger) Lock(account crypto.Address, amount amountArg) error {
	bal, err := l.load(account, amount.Asset)
	if err != nil {
		return err
	}
	if bal.Free.Cmp(amount.Raw) < 0 {
		return kernelerrors.ErrInsufficientFunds
	}
	bal.Free = new(big.Int).Sub(bal.Free, amount.Raw)
	bal.Locked = new(big.Int).Add(bal.Locked, amount.Raw)
	return l.store.PutBalance(account, amount.Asset, bal)
}

// Unlock moves amount from locked back to free. Unlocking more than Locked
// yields ErrInsufficientReserved.
func (l *Ledger) Unlock(account crypto.Address, amount amountArg) error {
	bal, err := l.load(account, amount.Asset)
	if err != nil {
		return err
	}
	if bal.Locked.Cmp(amount.Raw) < 0 {
		return kernelerrors.ErrInsufficientReserved
	}
	bal.Locked = new(big.Int).Sub(bal.Locked, amount.Raw)
	bal.Free = new(big.Int).Add(bal.Free, amount.Raw)
	return l.store.PutBalance(account, amount.Asset, bal)
}

// Transfer moves amount from `from`'s free balance to `to`'s free balance.
func (l *Ledger) Transfer(from, to crypto.Address, amount amountArg) error {
	fromBal, err := l.load(from, amount.Asset)
	if err != nil {
		return err
	}
	if fromBal.Free.Cmp(amount.Raw) < 0 {
		return kernelerrors.ErrInsufficientFunds
	}
	toBal, err := l.load(to, amount.Asset)
	if err != nil {
		return err
	}
	fromBal.Free = new(big.Int).Sub(fromBal.Free, amount.Raw)
	toBal.Free = new(big.Int).Add(toBal.Free, amount.Raw)
	if err := l.store.PutBalance(from, amount.Asset, fromBal); err != nil {
		return err
	}
	return l.store.PutBalance(to, amount.Asset, toBal)
}

// SlashLocked burns amount directly out of the account's locked balance
// without unlocking it first, used when griefing collateral is forfeited to
// a vault rather than returned to its poster.
func (l *Ledger) SlashLocked(account crypto.Address, amount amountArg) error {
	bal, err := l.load(account, amount.Asset)
	if err != nil {
		return err
	}
	if bal.Locked.Cmp(amount.Raw) < 0 {
		return kernelerrors.ErrInsufficientReserved
	}
	bal.Locked = new(big.Int).Sub(bal.Locked, amount.Raw)
	return l.store.PutBalance(account, amount.Asset, bal)
}

// amountArg is the (raw, asset) pair the ledger operations take; it is an
// alias of assets.Amount, so callers pass an assets.Amount value.
type amountArg = assets.Amount

// MemStore is an in-memory Store implementation used by tests and by the
// kernel before a trie-backed view is wired in.
type MemStore struct {
	balances map[string]Balance
}

// NewMemStore constructs an empty in-memory balance store.
func NewMemStore() *MemStore {
	return &MemStore{balances: make(map[string]Balance)}
}

func memKey(account crypto.Address, asset assets.ID) string {
	return string(account.Bytes()) + ":" + asset.String()
}

func (m *MemStore) GetBalance(account crypto.Address, asset assets.ID) (Balance, error) {
	if bal, ok := m.balances[memKey(account, asset)]; ok {
		return Balance{Free: new(big.Int).Set(bal.Free), Locked: new(big.Int).Set(bal.Locked)}, nil
	}
	return zeroBalance(), nil
}

func (m *MemStore) PutBalance(account crypto.Address, asset assets.ID, bal Balance) error {
	m.balances[memKey(account, asset)] = Balance{Free: new(big.Int).Set(bal.Free), Locked: new(big.Int).Set(bal.Locked)}
	return nil
}
