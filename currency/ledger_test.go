package currency

import (
	"math/big"
	"testing"

	"vaultbridge/assets"
	"vaultbridge/crypto"
)

func mustAddr(t *testing.T, seed byte) crypto.Address {
	t.Helper()
	b := make([]byte, 20)
	b[0] = seed
	addr, err := crypto.NewAddress(crypto.NHBPrefix, b)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	return addr
}

func TestLockInsufficientFunds(t *testing.T) {
	l := New(NewMemStore())
	acc := mustAddr(t, 1)
	if err := l.Lock(acc, assets.New(big.NewInt(10), assets.DOT)); err == nil {
		t.Fatalf("expected insufficient funds")
	}
}

func TestDepositLockUnlock(t *testing.T) {
	l := New(NewMemStore())
	acc := mustAddr(t, 1)
	if err := l.Deposit(acc, assets.New(big.NewInt(100), assets.DOT)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := l.Lock(acc, assets.New(big.NewInt(40), assets.DOT)); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	free, _ := l.Free(acc, assets.DOT)
	locked, _ := l.Locked(acc, assets.DOT)
	if free.Cmp(big.NewInt(60)) != 0 || locked.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected balances free=%s locked=%s", free, locked)
	}
	if err := l.Unlock(acc, assets.New(big.NewInt(40), assets.DOT)); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	free, _ = l.Free(acc, assets.DOT)
	locked, _ = l.Locked(acc, assets.DOT)
	if free.Cmp(big.NewInt(100)) != 0 || locked.Sign() != 0 {
		t.Fatalf("expected full unlock, free=%s locked=%s", free, locked)
	}
}

func TestUnlockInsufficientReserved(t *testing.T) {
	l := New(NewMemStore())
	acc := mustAddr(t, 1)
	if err := l.Unlock(acc, assets.New(big.NewInt(1), assets.DOT)); err == nil {
		t.Fatalf("expected insufficient reserved")
	}
}

func TestTransferBetweenAccounts(t *testing.T) {
	l := New(NewMemStore())
	from := mustAddr(t, 1)
	to := mustAddr(t, 2)
	if err := l.Deposit(from, assets.New(big.NewInt(100), assets.Wrapped)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := l.Transfer(from, to, assets.New(big.NewInt(30), assets.Wrapped)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	fromFree, _ := l.Free(from, assets.Wrapped)
	toFree, _ := l.Free(to, assets.Wrapped)
	if fromFree.Cmp(big.NewInt(70)) != 0 || toFree.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("unexpected post-transfer balances from=%s to=%s", fromFree, toFree)
	}
}
