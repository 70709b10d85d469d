package vaultregistry

import (
	"math/big"

	"vaultbridge/assets"
	"vaultbridge/crypto"
	"vaultbridge/currency"
	"vaultbridge/events"
	"vaultbridge/kernelerrors"
)

// LiquidationVault is the synthetic, ownerless vault per collateral asset
// that liquidated vaults' token columns fold into, per spec.md §3. It is
// redeemed against directly, paying out a proportional share of its
// collateral.
type LiquidationVault struct {
	Issued       *big.Int
	ToBeIssued   *big.Int
	ToBeRedeemed *big.Int
	Collateral   *big.Int
}

// liquidationEscrowAccount derives the deterministic, ownerless account the
// per-asset LiquidationVault's pooled collateral is held at in the ledger.
// Its first byte is reserved so it can never collide with a key-derived user
// address (see crypto.PublicKey.Address, which always derives from a real
// ECDSA key and so never sets this marker byte on its own).
func liquidationEscrowAccount(asset assets.ID) crypto.Address {
	b := make([]byte, 20)
	b[0] = 0xFF
	b[19] = byte(asset)
	addr, err := crypto.NewAddress(crypto.NHBPrefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func newLiquidationVault() *LiquidationVault {
	return &LiquidationVault{
		Issued:       big.NewInt(0),
		ToBeIssued:   big.NewInt(0),
		ToBeRedeemed: big.NewInt(0),
		Collateral:   big.NewInt(0),
	}
}

func (r *Registry) liquidationVault(asset assets.ID) *LiquidationVault {
	lv, ok := r.liquidation[asset]
	if !ok {
		lv = newLiquidationVault()
		r.liquidation[asset] = lv
	}
	return lv
}

// LiquidationVault exposes the per-asset aggregate for read-only queries.
func (r *Registry) LiquidationVault(asset assets.ID) *LiquidationVault {
	lv := r.liquidationVault(asset)
	return &LiquidationVault{
		Issued:       new(big.Int).Set(lv.Issued),
		ToBeIssued:   new(big.Int).Set(lv.ToBeIssued),
		ToBeRedeemed: new(big.Int).Set(lv.ToBeRedeemed),
		Collateral:   new(big.Int).Set(lv.Collateral),
	}
}

// IsBelowLiquidationThreshold implements is_below_liquidation_threshold(v):
// backing_collateral < issued · liquidation_threshold, converted to the
// wrapped asset via the oracle.
func (r *Registry) IsBelowLiquidationThreshold(account crypto.Address) (bool, error) {
	v, err := r.Vault(account)
	if err != nil {
		return false, err
	}
	if v.Status != StatusActive {
		return false, nil
	}
	asset := v.CollateralAsset
	threshold, ok := r.cfg.LiquidationCollateralThreshold(asset)
	if !ok {
		return false, kernelerrors.ErrThresholdNotSet
	}
	backing := r.staking.CurrentValue(asset, account, account)
	converted, err := r.oracle.Convert(assets.New(backing, asset), r.cfg.WrappedAsset())
	if err != nil {
		return false, err
	}
	required := threshold.MulIntCeil(v.Issued)
	return converted.Raw.Cmp(required) < 0, nil
}

// IsBelowPremiumThreshold reports whether a vault's backing collateral has
// fallen below the premium redeem threshold, the condition request_redeem
// checks to decide whether a redeemer is owed a premium payment.
func (r *Registry) IsBelowPremiumThreshold(account crypto.Address) (bool, error) {
	v, err := r.Vault(account)
	if err != nil {
		return false, err
	}
	if v.Status != StatusActive {
		return false, nil
	}
	asset := v.CollateralAsset
	threshold, ok := r.cfg.PremiumRedeemThreshold(asset)
	if !ok {
		return false, kernelerrors.ErrThresholdNotSet
	}
	backing := r.staking.CurrentValue(asset, account, account)
	converted, err := r.oracle.Convert(assets.New(backing, asset), r.cfg.WrappedAsset())
	if err != nil {
		return false, err
	}
	required := threshold.MulIntCeil(v.Issued)
	return converted.Raw.Cmp(required) < 0, nil
}

// FeePoolAccount derives the deterministic, ownerless account fee income
// (issue/redeem/refund fees) accrues to, keyed per asset the same way
// liquidationEscrowAccount reserves a marker byte no key-derived address can
// produce.
func FeePoolAccount(asset assets.ID) crypto.Address {
	b := make([]byte, 20)
	b[0] = 0xFE
	b[19] = byte(asset)
	addr, err := crypto.NewAddress(crypto.NHBPrefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// Liquidate folds a vault's token columns into the per-asset liquidation
// vault, withdraws its backing collateral from the staking pool, and sets
// aside the pro-rata share needed to satisfy in-flight redeems at the old
// terms. Grounded on native/lending.Engine.Liquidate, generalized from a
// single borrower/collateral seizure into a per-vault-column fold.
func (r *Registry) Liquidate(account crypto.Address, theft bool) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	if v.Status != StatusActive {
		return kernelerrors.ErrVaultNotBelowLiquidationThreshold
	}
	if !theft {
		below, err := r.IsBelowLiquidationThreshold(account)
		if err != nil {
			return err
		}
		if !below {
			return kernelerrors.ErrVaultNotBelowLiquidationThreshold
		}
	}
	asset := v.CollateralAsset
	backing := r.staking.CurrentValue(asset, account, account)
	totalStake := r.staking.TotalStake(asset, account)

	backed := v.BackedTokens()
	liquidated := CalculateCollateral(backing, v.ToBeRedeemed, backed)
	remainder := new(big.Int).Sub(backing, liquidated)
	if remainder.Sign() < 0 {
		remainder = big.NewInt(0)
		liquidated = new(big.Int).Set(backing)
	}

	if totalStake.Sign() > 0 {
		if err := r.staking.WithdrawStake(asset, account, account, totalStake); err != nil {
			return err
		}
	}

	// The vault's own backing collateral unlocks into its free balance; the
	// portion not set aside for in-flight redeems (remainder) then moves on
	// into the per-asset escrow backing the synthetic LiquidationVault, while
	// the rest (liquidated) stays put as the vault's own liquidated_collateral.
	if backing.Sign() > 0 {
		if err := r.ledger.Unlock(account, assets.New(backing, asset)); err != nil {
			return err
		}
	}
	if remainder.Sign() > 0 {
		if err := r.ledger.Transfer(account, liquidationEscrowAccount(asset), assets.New(remainder, asset)); err != nil {
			return err
		}
	}

	lv := r.liquidationVault(asset)
	lv.Issued = new(big.Int).Add(lv.Issued, v.Issued)
	lv.ToBeIssued = new(big.Int).Add(lv.ToBeIssued, v.ToBeIssued)
	lv.ToBeRedeemed = new(big.Int).Add(lv.ToBeRedeemed, v.ToBeRedeemed)
	lv.Collateral = new(big.Int).Add(lv.Collateral, remainder)

	next := v.clone()
	next.Issued = big.NewInt(0)
	next.ToBeIssued = big.NewInt(0)
	next.ToBeRedeemed = big.NewInt(0)
	next.LiquidatedCollateral = new(big.Int).Add(next.LiquidatedCollateral, liquidated)
	if theft {
		next.Status = StatusCommittedTheft
	} else {
		next.Status = StatusLiquidated
	}
	r.vaults[vaultKey(account)] = next

	r.emit(events.New(events.TypeVaultLiquidated, map[string]string{
		"vault": account.String(), "status": next.Status.String(), "liquidated_collateral": liquidated.String(),
	}))
	return nil
}

// DecreaseLiquidatedCollateral releases a vault's pro-rata share of its
// liquidated_collateral back to its free balance as its liquidated
// in-flight redeems drain, per spec.md §4.6.
func (r *Registry) DecreaseLiquidatedCollateral(account crypto.Address, amount *big.Int) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	if v.LiquidatedCollateral.Cmp(amount) < 0 {
		return kernelerrors.ErrInsufficientTokensCommitted
	}
	next := v.clone()
	next.LiquidatedCollateral = new(big.Int).Sub(next.LiquidatedCollateral, amount)
	r.vaults[vaultKey(account)] = next
	return nil
}

// Ledger exposes the registry's underlying currency ledger for packages that
// complete the free-balance side of a liquidated-collateral release.
func (r *Registry) Ledger() *currency.Ledger {
	return r.ledger
}
