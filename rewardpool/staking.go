package rewardpool

import (
	"math/big"

	"vaultbridge/assets"
	"vaultbridge/crypto"
	"vaultbridge/fixedpoint"
)

// vaultPoolKey identifies one vault's staking pool for one collateral asset.
type vaultPoolKey struct {
	asset assets.ID
	vault string
}

// Staking is the (collateral asset, vault, nominator)-keyed instantiation of
// Pool: spec.md §4.5's nominator staking pool, one accumulator per (asset,
// vault) pair, participants keyed by nominator address (the vault's own
// self-stake uses its own address as the nominator key, matching
// native/lending.Engine's treatment of a vault's own collateral as its first
// nomination).
type Staking struct {
	pools map[vaultPoolKey]*Pool
}

// NewStaking constructs an empty set of per-(asset, vault) staking pools.
func NewStaking() *Staking {
	return &Staking{pools: make(map[vaultPoolKey]*Pool)}
}

func (s *Staking) pool(asset assets.ID, vault crypto.Address) *Pool {
	key := vaultPoolKey{asset: asset, vault: vault.String()}
	p, ok := s.pools[key]
	if !ok {
		p = NewPoolWithInitial(fixedpoint.One())
		s.pools[key] = p
	}
	return p
}

func nominatorKey(nominator crypto.Address) string {
	return nominator.String()
}

// DepositStake credits a nominator's collateral stake against a vault's
// (asset-specific) staking pool.
func (s *Staking) DepositStake(asset assets.ID, vault, nominator crypto.Address, x *big.Int) error {
	return s.pool(asset, vault).DepositStake(nominatorKey(nominator), x)
}

// WithdrawStake debits a nominator's collateral stake from a vault's staking
// pool.
func (s *Staking) WithdrawStake(asset assets.ID, vault, nominator crypto.Address, x *big.Int) error {
	return s.pool(asset, vault).WithdrawStake(nominatorKey(nominator), x)
}

// Distribute adds newly accrued rewards (e.g. a vault's share of fees routed
// to its nominators) into the vault's staking pool.
func (s *Staking) Distribute(asset assets.ID, vault crypto.Address, amount *big.Int) *big.Int {
	return s.pool(asset, vault).Distribute(amount)
}

// ComputeReward returns a nominator's currently claimable reward from a
// vault's staking pool.
func (s *Staking) ComputeReward(asset assets.ID, vault, nominator crypto.Address) *big.Int {
	return s.pool(asset, vault).ComputeReward(nominatorKey(nominator))
}

// WithdrawReward pays out and resets a nominator's claimable reward.
func (s *Staking) WithdrawReward(asset assets.ID, vault, nominator crypto.Address) *big.Int {
	return s.pool(asset, vault).WithdrawReward(nominatorKey(nominator))
}

// Stake returns a nominator's current collateral stake against a vault.
func (s *Staking) Stake(asset assets.ID, vault, nominator crypto.Address) *big.Int {
	return s.pool(asset, vault).Stake(nominatorKey(nominator))
}

// CurrentValue returns a nominator's current backing collateral value after
// any slashes applied to the vault's pool, per Pool.CurrentValue.
func (s *Staking) CurrentValue(asset assets.ID, vault, nominator crypto.Address) *big.Int {
	return s.pool(asset, vault).CurrentValue(nominatorKey(nominator))
}

// TotalStake returns the vault's total staked collateral for `asset` across
// all nominators.
func (s *Staking) TotalStake(asset assets.ID, vault crypto.Address) *big.Int {
	return new(big.Int).Set(s.pool(asset, vault).TotalStake)
}

// SlashVault dilutes every nominator's computed stake in a vault's (asset,
// vault) pool pro-rata by `amount`, per spec.md §4.5's slash_stake operation.
// The registry's liquidation and theft-report paths call this with the
// burned collateral amount; see vaultregistry/liquidation.go.
func (s *Staking) SlashVault(asset assets.ID, vault crypto.Address, amount *big.Int) error {
	return s.pool(asset, vault).Slash(amount)
}
