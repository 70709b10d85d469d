// Package vaultregistry is the ledger of vault balances: collateral, the
// four committed-token counters, threshold/liquidation logic, and the
// synthetic "liquidation vault" aggregate insolvent vaults fold into.
// Generalized from a single-market lending position into a multi-asset,
// multi-vault registry.
package vaultregistry

import (
	"math/big"

	"vaultbridge/assets"
	"vaultbridge/crypto"
	"vaultbridge/kernelerrors"
)

// Status is a vault's lifecycle state. Unlike a request, a vault is never
// removed once registered; Status transitions instead.
type Status int

const (
	// StatusActive is the normal operating state. AcceptsNewIssues gates
	// whether the vault currently accepts new issue reservations, tracked
	// separately on the Vault record.
	StatusActive Status = iota
	// StatusLiquidated means the vault fell below its liquidation threshold
	// (or was reported as such) and its token columns were folded into the
	// per-asset liquidation vault.
	StatusLiquidated
	// StatusCommittedTheft is the liquidated state reached via a proven
	// theft report rather than an undercollateralization report.
	StatusCommittedTheft
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusLiquidated:
		return "liquidated"
	case StatusCommittedTheft:
		return "committed_theft"
	default:
		return "unknown"
	}
}

// Vault is a registered vault operator's bookkeeping record.
type Vault struct {
	Account          crypto.Address
	CollateralAsset  assets.ID
	BTCPublicKey     []byte
	DepositAddresses []string

	Issued         *big.Int
	ToBeIssued     *big.Int
	ToBeRedeemed   *big.Int
	ToBeReplaced   *big.Int

	ReplaceCollateral    *big.Int
	LiquidatedCollateral *big.Int

	BannedUntil uint64
	Status      Status
	// AcceptsNewIssues is only meaningful while Status == StatusActive.
	AcceptsNewIssues bool
}

func newVault(account crypto.Address, collateralAsset assets.ID, btcPubKey []byte) *Vault {
	return &Vault{
		Account:              account,
		CollateralAsset:      collateralAsset,
		BTCPublicKey:         append([]byte(nil), btcPubKey...),
		Issued:               big.NewInt(0),
		ToBeIssued:           big.NewInt(0),
		ToBeRedeemed:         big.NewInt(0),
		ToBeReplaced:         big.NewInt(0),
		ReplaceCollateral:    big.NewInt(0),
		LiquidatedCollateral: big.NewInt(0),
		Status:               StatusActive,
		AcceptsNewIssues:     true,
	}
}

// clone returns a deep copy so speculative token-column updates can be
// validated against the invariants before being committed to the registry.
func (v *Vault) clone() *Vault {
	c := *v
	c.BTCPublicKey = append([]byte(nil), v.BTCPublicKey...)
	c.DepositAddresses = append([]string(nil), v.DepositAddresses...)
	c.Issued = new(big.Int).Set(v.Issued)
	c.ToBeIssued = new(big.Int).Set(v.ToBeIssued)
	c.ToBeRedeemed = new(big.Int).Set(v.ToBeRedeemed)
	c.ToBeReplaced = new(big.Int).Set(v.ToBeReplaced)
	c.ReplaceCollateral = new(big.Int).Set(v.ReplaceCollateral)
	c.LiquidatedCollateral = new(big.Int).Set(v.LiquidatedCollateral)
	return &c
}

// checkColumnInvariants enforces spec.md §3 invariants 1-2: to_be_redeemed
// never exceeds issued, and to_be_replaced plus to_be_redeemed never exceeds
// issued together.
func (v *Vault) checkColumnInvariants() error {
	if v.ToBeRedeemed.Cmp(v.Issued) > 0 {
		return kernelerrors.ErrInsufficientTokensCommitted
	}
	sum := new(big.Int).Add(v.ToBeReplaced, v.ToBeRedeemed)
	if sum.Cmp(v.Issued) > 0 {
		return kernelerrors.ErrInsufficientTokensCommitted
	}
	return nil
}

// BackedTokens is issued + to_be_issued, the quantity threshold checks price
// against.
func (v *Vault) BackedTokens() *big.Int {
	return new(big.Int).Add(v.Issued, v.ToBeIssued)
}

// Redeemable is issued - to_be_redeemed: the capacity left for new redeem
// reservations.
func (v *Vault) Redeemable() *big.Int {
	return new(big.Int).Sub(v.Issued, v.ToBeRedeemed)
}

// ReplaceCapacity is issued - to_be_replaced - to_be_redeemed: the capacity
// left for new replace reservations.
func (v *Vault) ReplaceCapacity() *big.Int {
	out := new(big.Int).Sub(v.Issued, v.ToBeReplaced)
	return out.Sub(out, v.ToBeRedeemed)
}

// IsBanned reports whether the vault is currently banned at the given host
// height.
func (v *Vault) IsBanned(currentHeight uint64) bool {
	return v.BannedUntil > currentHeight
}
