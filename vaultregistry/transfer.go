package vaultregistry

import (
	"math/big"

	"vaultbridge/assets"
	"vaultbridge/crypto"
	"vaultbridge/kernelerrors"
)

// SourceKind tags a Source per spec.md §3's "tagged sum used to
// name balance buckets in a transfer".
type SourceKind int

const (
	SourceFreeBalance SourceKind = iota
	SourceCollateral
	SourceGriefing
	SourceLiquidatedCollateral
	SourceLiquidationVault
)

// Source names one endpoint of a transfer_funds call: a kind plus the
// account/vault it addresses (FreeBalance and Griefing use Account;
// Collateral and LiquidatedCollateral use Account as the vault id;
// LiquidationVault carries no account).
type Source struct {
	Kind    SourceKind
	Account crypto.Address
}

// TransferFunds implements transfer_funds(from, to, amount): the pre-move
// bookkeeping table mediates which sources adjust TotalUserVaultCollateral
// and which touch the staking pool, per spec.md §4.6; the underlying
// free-balance transfer itself always moves between the two resolved ledger
// accounts, and the post-move mirror runs on the destination afterward.
func (r *Registry) TransferFunds(from, to Source, amount *big.Int, asset assets.ID) error {
	if err := r.preMove(from, amount, asset, true); err != nil {
		return err
	}
	if err := r.ledger.Transfer(r.accountOf(from, asset), r.accountOf(to, asset), assets.New(amount, asset)); err != nil {
		return err
	}
	return r.preMove(to, amount, asset, false)
}

// accountOf resolves a Source to the ledger account its free balance is
// addressed at. Every kind but LiquidationVault carries its own account; the
// liquidation vault is ownerless, so its pooled collateral lives in a
// per-asset escrow account instead.
func (r *Registry) accountOf(s Source, asset assets.ID) crypto.Address {
	if s.Kind == SourceLiquidationVault {
		return liquidationEscrowAccount(asset)
	}
	return s.Account
}

// preMove runs the bookkeeping step for one endpoint of a transfer. `debit`
// is true for the source side (collateral leaving, griefing unlocked,
// totals decremented) and false for the destination side (mirror step).
func (r *Registry) preMove(s Source, amount *big.Int, asset assets.ID, debit bool) error {
	switch s.Kind {
	case SourceCollateral:
		v, err := r.Vault(s.Account)
		if err != nil {
			return err
		}
		if v.CollateralAsset != asset {
			return kernelerrors.ErrInvalidCurrency
		}
		if debit {
			if err := r.staking.SlashVault(asset, s.Account, amount); err != nil {
				return err
			}
			if err := r.ledger.Unlock(s.Account, assets.New(amount, asset)); err != nil {
				return err
			}
			r.totalCollateral[asset] = new(big.Int).Sub(r.totalFor(asset), amount)
		} else {
			if err := r.staking.DepositStake(asset, s.Account, s.Account, amount); err != nil {
				return err
			}
			if err := r.ledger.Lock(s.Account, assets.New(amount, asset)); err != nil {
				return err
			}
			r.totalCollateral[asset] = new(big.Int).Add(r.totalFor(asset), amount)
		}
		return nil
	case SourceGriefing:
		if debit {
			return r.ledger.Unlock(s.Account, assets.New(amount, asset))
		}
		return nil
	case SourceLiquidatedCollateral:
		v, err := r.Vault(s.Account)
		if err != nil {
			return err
		}
		if debit {
			if v.LiquidatedCollateral.Cmp(amount) < 0 {
				return kernelerrors.ErrInsufficientTokensCommitted
			}
			next := v.clone()
			next.LiquidatedCollateral = new(big.Int).Sub(next.LiquidatedCollateral, amount)
			r.vaults[vaultKey(s.Account)] = next
			r.totalCollateral[asset] = new(big.Int).Sub(r.totalFor(asset), amount)
		}
		return nil
	case SourceLiquidationVault:
		lv := r.liquidationVault(asset)
		if debit {
			if lv.Collateral.Cmp(amount) < 0 {
				return kernelerrors.ErrInsufficientTokensCommitted
			}
			lv.Collateral = new(big.Int).Sub(lv.Collateral, amount)
			r.totalCollateral[asset] = new(big.Int).Sub(r.totalFor(asset), amount)
		}
		return nil
	case SourceFreeBalance:
		return nil
	default:
		return kernelerrors.ErrInvalidCurrency
	}
}
