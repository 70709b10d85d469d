package vaultregistry

import (
	"math/big"

	"vaultbridge/assets"
	"vaultbridge/crypto"
)

// IncreaseReplaceCollateral locks griefing-style collateral on the vault's
// own free balance and records it in the replace_collateral column, per
// request_replace(old_vault, amount, griefing_collateral).
func (r *Registry) IncreaseReplaceCollateral(account crypto.Address, amount *big.Int, asset assets.ID) error {
	if amount.Sign() <= 0 {
		return nil
	}
	if err := r.ledger.Lock(account, assets.New(amount, asset)); err != nil {
		return err
	}
	return r.adjustColumn(account, func(next *Vault) error {
		next.ReplaceCollateral = new(big.Int).Add(next.ReplaceCollateral, amount)
		return nil
	})
}

// ReleaseReplaceCollateral unlocks up to amount of the vault's
// replace_collateral back to its own free balance, used by accept_replace's
// proportional release as tokens are accepted.
func (r *Registry) ReleaseReplaceCollateral(account crypto.Address, amount *big.Int, asset assets.ID) error {
	if amount.Sign() <= 0 {
		return nil
	}
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	if v.ReplaceCollateral.Cmp(amount) < 0 {
		amount = new(big.Int).Set(v.ReplaceCollateral)
	}
	if amount.Sign() <= 0 {
		return nil
	}
	if err := r.ledger.Unlock(account, assets.New(amount, asset)); err != nil {
		return err
	}
	return r.adjustColumn(account, func(next *Vault) error {
		next.ReplaceCollateral = new(big.Int).Sub(next.ReplaceCollateral, amount)
		return nil
	})
}

// ForfeitReplaceCollateral moves old's entire remaining replace_collateral
// to new's free balance: cancel_replace's punishment for an old vault that
// failed to deliver after accept_replace.
func (r *Registry) ForfeitReplaceCollateral(oldVault, newVault crypto.Address, asset assets.ID) error {
	v, err := r.Vault(oldVault)
	if err != nil {
		return err
	}
	amount := new(big.Int).Set(v.ReplaceCollateral)
	if amount.Sign() <= 0 {
		return nil
	}
	if err := r.ledger.Unlock(oldVault, assets.New(amount, asset)); err != nil {
		return err
	}
	if err := r.ledger.Transfer(oldVault, newVault, assets.New(amount, asset)); err != nil {
		return err
	}
	return r.adjustColumn(oldVault, func(next *Vault) error {
		next.ReplaceCollateral = big.NewInt(0)
		return nil
	})
}
