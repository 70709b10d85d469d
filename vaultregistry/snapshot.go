package vaultregistry

import (
	"math/big"

	"vaultbridge/assets"
	"vaultbridge/crypto"
)

// Snapshot is an opaque deep copy of every vault, deposit-address
// reservation, collateral total, and liquidation vault the registry holds.
// The kernel takes one before dispatching a command and restores it if the
// command fails partway through, giving the registry's otherwise
// un-transactional in-memory maps an all-or-nothing commit boundary without
// the registry itself needing to know anything about rollback.
type Snapshot struct {
	vaults           map[string]*Vault
	depositAddresses map[string]string
	totalCollateral  map[assets.ID]*big.Int
	liquidation      map[assets.ID]*LiquidationVault
}

func cloneVault(v *Vault) *Vault {
	clone := *v
	clone.BTCPublicKey = append([]byte(nil), v.BTCPublicKey...)
	clone.DepositAddresses = append([]string(nil), v.DepositAddresses...)
	clone.Issued = new(big.Int).Set(v.Issued)
	clone.ToBeIssued = new(big.Int).Set(v.ToBeIssued)
	clone.ToBeRedeemed = new(big.Int).Set(v.ToBeRedeemed)
	clone.ToBeReplaced = new(big.Int).Set(v.ToBeReplaced)
	clone.ReplaceCollateral = new(big.Int).Set(v.ReplaceCollateral)
	clone.LiquidatedCollateral = new(big.Int).Set(v.LiquidatedCollateral)
	return &clone
}

func cloneLiquidationVault(lv *LiquidationVault) *LiquidationVault {
	return &LiquidationVault{
		Issued:       new(big.Int).Set(lv.Issued),
		ToBeIssued:   new(big.Int).Set(lv.ToBeIssued),
		ToBeRedeemed: new(big.Int).Set(lv.ToBeRedeemed),
		Collateral:   new(big.Int).Set(lv.Collateral),
	}
}

// Snapshot deep-copies the registry's current state.
func (r *Registry) Snapshot() *Snapshot {
	s := &Snapshot{
		vaults:           make(map[string]*Vault, len(r.vaults)),
		depositAddresses: make(map[string]string, len(r.depositAddresses)),
		totalCollateral:  make(map[assets.ID]*big.Int, len(r.totalCollateral)),
		liquidation:      make(map[assets.ID]*LiquidationVault, len(r.liquidation)),
	}
	for k, v := range r.vaults {
		s.vaults[k] = cloneVault(v)
	}
	for k, v := range r.depositAddresses {
		s.depositAddresses[k] = v
	}
	for k, v := range r.totalCollateral {
		s.totalCollateral[k] = new(big.Int).Set(v)
	}
	for k, v := range r.liquidation {
		s.liquidation[k] = cloneLiquidationVault(v)
	}
	return s
}

// Restore replaces the registry's current state with a previously taken
// Snapshot, discarding any mutations made since. It does not touch pending
// events: a rolled-back command's partial event emissions are dropped by
// the kernel re-draining before restoring, never by the registry itself.
func (r *Registry) Restore(s *Snapshot) {
	r.vaults = s.vaults
	r.depositAddresses = s.depositAddresses
	r.totalCollateral = s.totalCollateral
	r.liquidation = s.liquidation
}

// Accounts returns every registered vault's account, in no particular
// order. Used by the reporter's Source and by the kernel's persistence
// layer to enumerate what needs saving.
func (r *Registry) Accounts() []crypto.Address {
	out := make([]crypto.Address, 0, len(r.vaults))
	for _, v := range r.vaults {
		out = append(out, v.Account)
	}
	return out
}
