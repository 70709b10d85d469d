package vaultregistry

import (
	"math/big"
	"testing"

	"vaultbridge/assets"
)

func TestRegisterVaultDepositsOpeningCollateral(t *testing.T) {
	r, ledger := newTestRegistry(t)
	acc := testAddr(t, 1)
	if err := ledger.Deposit(acc, assets.New(big.NewInt(1000), assets.DOT)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := r.RegisterVault(acc, big.NewInt(500), assets.DOT, []byte{0x02}); err != nil {
		t.Fatalf("RegisterVault: %v", err)
	}
	total := r.TotalUserVaultCollateral(assets.DOT)
	if total.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("TotalUserVaultCollateral = %s, want 500", total)
	}
	free, _ := ledger.Free(acc, assets.DOT)
	if free.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("free balance = %s, want 500 after locking half", free)
	}
	events := r.DrainEvents()
	if len(events) != 2 {
		t.Fatalf("expected register + deposit events, got %d", len(events))
	}
}

func TestRegisterVaultRejectsBelowMinimum(t *testing.T) {
	r, ledger := newTestRegistry(t)
	acc := testAddr(t, 1)
	ledger.Deposit(acc, assets.New(big.NewInt(1000), assets.DOT))
	if err := r.RegisterVault(acc, big.NewInt(1), assets.DOT, []byte{0x02}); err == nil {
		t.Fatalf("expected ErrInsufficientCollateral below configured minimum")
	}
}

func TestRegisterVaultRejectsDuplicate(t *testing.T) {
	r, ledger := newTestRegistry(t)
	acc := testAddr(t, 1)
	ledger.Deposit(acc, assets.New(big.NewInt(1000), assets.DOT))
	if err := r.RegisterVault(acc, big.NewInt(100), assets.DOT, []byte{0x02}); err != nil {
		t.Fatalf("first RegisterVault: %v", err)
	}
	if err := r.RegisterVault(acc, big.NewInt(100), assets.DOT, []byte{0x02}); err == nil {
		t.Fatalf("expected ErrVaultAlreadyRegistered on re-registration")
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	r, ledger := newTestRegistry(t)
	acc := testAddr(t, 1)
	ledger.Deposit(acc, assets.New(big.NewInt(1000), assets.DOT))
	if err := r.RegisterVault(acc, big.NewInt(500), assets.DOT, []byte{0x02}); err != nil {
		t.Fatalf("RegisterVault: %v", err)
	}
	if err := r.WithdrawCollateral(acc, big.NewInt(200)); err != nil {
		t.Fatalf("WithdrawCollateral: %v", err)
	}
	total := r.TotalUserVaultCollateral(assets.DOT)
	if total.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("TotalUserVaultCollateral = %s, want 300", total)
	}
	free, _ := ledger.Free(acc, assets.DOT)
	if free.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("free balance after withdrawal = %s, want 700", free)
	}
}

func TestWithdrawCollateralRejectsBelowSecureThreshold(t *testing.T) {
	r, ledger := newTestRegistry(t)
	acc := testAddr(t, 1)
	ledger.Deposit(acc, assets.New(big.NewInt(1000), assets.DOT))
	if err := r.RegisterVault(acc, big.NewInt(300), assets.DOT, []byte{0x02}); err != nil {
		t.Fatalf("RegisterVault: %v", err)
	}
	if err := r.IncreaseToBeIssued(acc, big.NewInt(100)); err != nil {
		t.Fatalf("IncreaseToBeIssued: %v", err)
	}
	if err := r.Issue(acc, big.NewInt(100)); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Secure threshold is 150%; 300 DOT (1:1 rate) backs at most 200 issued.
	// Withdrawing 250 would leave only 50 DOT backing 100 issued (50%).
	if err := r.WithdrawCollateral(acc, big.NewInt(250)); err == nil {
		t.Fatalf("expected withdrawal to be rejected for breaching secure threshold")
	}
}

func TestIssuableTokensRespectsSecureThresholdAndCeiling(t *testing.T) {
	r, ledger := newTestRegistry(t)
	acc := testAddr(t, 1)
	ledger.Deposit(acc, assets.New(big.NewInt(1000), assets.DOT))
	if err := r.RegisterVault(acc, big.NewInt(300), assets.DOT, []byte{0x02}); err != nil {
		t.Fatalf("RegisterVault: %v", err)
	}
	issuable, err := r.IssuableTokens(acc)
	if err != nil {
		t.Fatalf("IssuableTokens: %v", err)
	}
	// 300 DOT / 1.5 secure threshold = 200 wrapped capacity.
	if issuable.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("IssuableTokens = %s, want 200", issuable)
	}
}

func TestIncreaseToBeIssuedRejectsOverCapacity(t *testing.T) {
	r, ledger := newTestRegistry(t)
	acc := testAddr(t, 1)
	ledger.Deposit(acc, assets.New(big.NewInt(1000), assets.DOT))
	r.RegisterVault(acc, big.NewInt(300), assets.DOT, []byte{0x02})
	if err := r.IncreaseToBeIssued(acc, big.NewInt(201)); err == nil {
		t.Fatalf("expected ErrExceedingVaultLimit above issuable capacity")
	}
}

func TestIssueLifecycleMovesToBeIssuedToIssued(t *testing.T) {
	r, ledger := newTestRegistry(t)
	acc := testAddr(t, 1)
	ledger.Deposit(acc, assets.New(big.NewInt(1000), assets.DOT))
	r.RegisterVault(acc, big.NewInt(300), assets.DOT, []byte{0x02})
	if err := r.IncreaseToBeIssued(acc, big.NewInt(100)); err != nil {
		t.Fatalf("IncreaseToBeIssued: %v", err)
	}
	if err := r.Issue(acc, big.NewInt(100)); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	v, err := r.Vault(acc)
	if err != nil {
		t.Fatalf("Vault: %v", err)
	}
	if v.Issued.Cmp(big.NewInt(100)) != 0 || v.ToBeIssued.Sign() != 0 {
		t.Fatalf("unexpected columns issued=%s to_be_issued=%s", v.Issued, v.ToBeIssued)
	}
}

func TestRegisterAddressIsUniqueAndAppendOnly(t *testing.T) {
	r, ledger := newTestRegistry(t)
	a := testAddr(t, 1)
	b := testAddr(t, 2)
	ledger.Deposit(a, assets.New(big.NewInt(1000), assets.DOT))
	ledger.Deposit(b, assets.New(big.NewInt(1000), assets.DOT))
	r.RegisterVault(a, big.NewInt(100), assets.DOT, []byte{0x02})
	r.RegisterVault(b, big.NewInt(100), assets.DOT, []byte{0x02})
	if err := r.RegisterAddress(a, "bc1qexample"); err != nil {
		t.Fatalf("RegisterAddress: %v", err)
	}
	if err := r.RegisterAddress(b, "bc1qexample"); err == nil {
		t.Fatalf("expected ErrReservedDepositAddress for a second vault reusing the address")
	}
	owner, err := r.AddressOwner("bc1qexample")
	if err != nil {
		t.Fatalf("AddressOwner: %v", err)
	}
	if owner.String() != a.String() {
		t.Fatalf("AddressOwner = %s, want %s", owner, a)
	}
}

func TestBanSetsBannedUntil(t *testing.T) {
	r, ledger := newTestRegistry(t)
	acc := testAddr(t, 1)
	ledger.Deposit(acc, assets.New(big.NewInt(1000), assets.DOT))
	r.RegisterVault(acc, big.NewInt(100), assets.DOT, []byte{0x02})
	if err := r.Ban(acc, 500); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	v, _ := r.Vault(acc)
	if !v.IsBanned(100) {
		t.Fatalf("expected vault banned at height 100 < 500")
	}
}
