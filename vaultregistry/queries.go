package vaultregistry

import (
	"math/big"
	"sort"

	"vaultbridge/assets"
	"vaultbridge/crypto"
	"vaultbridge/kernelerrors"
)

// GetVaultCollateral returns a vault's own self-staked collateral (not
// counting collateral nominated by others).
func (r *Registry) GetVaultCollateral(account crypto.Address) (*big.Int, error) {
	v, err := r.Vault(account)
	if err != nil {
		return nil, err
	}
	return r.staking.CurrentValue(v.CollateralAsset, account, account), nil
}

// GetVaultTotalCollateral returns a vault's backing collateral including
// everything nominated by others.
func (r *Registry) GetVaultTotalCollateral(account crypto.Address) (*big.Int, error) {
	v, err := r.Vault(account)
	if err != nil {
		return nil, err
	}
	return r.staking.TotalStake(v.CollateralAsset, account), nil
}

// GetCollateralizationFromVault computes backing_collateral / backed_tokens
// (or / issued, when onlyIssued is set) converted to the wrapped asset, as a
// fixed-point ratio via divRatio's numerator convention — returned here as
// the raw numerator/denominator pair since the caller may want either a
// ratio or a percentage rendering.
func (r *Registry) GetCollateralizationFromVault(account crypto.Address, onlyIssued bool) (numerator, denominator *big.Int, err error) {
	v, err := r.Vault(account)
	if err != nil {
		return nil, nil, err
	}
	denom := v.BackedTokens()
	if onlyIssued {
		denom = v.Issued
	}
	backing := r.staking.CurrentValue(v.CollateralAsset, account, account)
	converted, err := r.oracle.Convert(assets.New(backing, v.CollateralAsset), r.cfg.WrappedAsset())
	if err != nil {
		return nil, nil, err
	}
	return converted.Raw, denom, nil
}

// GetRequiredCollateralForWrapped returns the collateral (of `asset`) needed
// to back `amount` wrapped tokens at the secure threshold.
func (r *Registry) GetRequiredCollateralForWrapped(amount *big.Int, asset assets.ID) (*big.Int, error) {
	secure, ok := r.cfg.SecureCollateralThreshold(asset)
	if !ok {
		return nil, kernelerrors.ErrThresholdNotSet
	}
	wrappedAmount := secure.MulIntCeil(amount)
	converted, err := r.oracle.Convert(assets.New(wrappedAmount, r.cfg.WrappedAsset()), asset)
	if err != nil {
		return nil, err
	}
	return converted.Raw, nil
}

// GetRequiredCollateralForVault returns the collateral needed for a vault to
// stay at or above the secure threshold given its current backed tokens.
func (r *Registry) GetRequiredCollateralForVault(account crypto.Address) (*big.Int, error) {
	v, err := r.Vault(account)
	if err != nil {
		return nil, err
	}
	return r.GetRequiredCollateralForWrapped(v.BackedTokens(), v.CollateralAsset)
}

// VaultSummary is the read-model row GetPremiumRedeemVaults and the other
// ranked queries return.
type VaultSummary struct {
	Account    crypto.Address
	Redeemable *big.Int
	Issuable   *big.Int
}

// GetPremiumRedeemVaults returns every vault currently below the premium
// redeem threshold, sorted by redeemable tokens descending.
func (r *Registry) GetPremiumRedeemVaults() ([]VaultSummary, error) {
	var out []VaultSummary
	for _, v := range r.vaults {
		if v.Status != StatusActive {
			continue
		}
		premium, ok := r.cfg.PremiumRedeemThreshold(v.CollateralAsset)
		if !ok {
			continue
		}
		backing := r.staking.CurrentValue(v.CollateralAsset, v.Account, v.Account)
		converted, err := r.oracle.Convert(assets.New(backing, v.CollateralAsset), r.cfg.WrappedAsset())
		if err != nil {
			continue
		}
		required := premium.MulIntCeil(v.Issued)
		if converted.Raw.Cmp(required) >= 0 {
			continue
		}
		out = append(out, VaultSummary{Account: v.Account, Redeemable: v.Redeemable()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Redeemable.Cmp(out[j].Redeemable) > 0 })
	return out, nil
}

// GetVaultsWithIssuableTokens returns every active, issue-accepting vault
// with positive issuable capacity.
func (r *Registry) GetVaultsWithIssuableTokens() ([]VaultSummary, error) {
	var out []VaultSummary
	for _, v := range r.vaults {
		if v.Status != StatusActive || !v.AcceptsNewIssues {
			continue
		}
		issuable, err := r.IssuableTokens(v.Account)
		if err != nil || issuable.Sign() <= 0 {
			continue
		}
		out = append(out, VaultSummary{Account: v.Account, Issuable: issuable})
	}
	return out, nil
}

// GetVaultsWithRedeemableTokens returns every vault with positive redeemable
// capacity.
func (r *Registry) GetVaultsWithRedeemableTokens() []VaultSummary {
	var out []VaultSummary
	for _, v := range r.vaults {
		redeemable := v.Redeemable()
		if redeemable.Sign() <= 0 {
			continue
		}
		out = append(out, VaultSummary{Account: v.Account, Redeemable: redeemable})
	}
	return out
}
