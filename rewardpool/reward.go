package rewardpool

import (
	"math/big"

	"vaultbridge/assets"
	"vaultbridge/crypto"
)

// Reward is the currency-keyed instantiation of Pool: spec.md §4.4's vault
// reward pool, one accumulator per reward currency, participants keyed by
// vault address. Grounded on core/rewards/accumulator.go's per-currency
// epoch bucketing, generalized here into the single Pool core.
type Reward struct {
	pools map[assets.ID]*Pool
}

// NewReward constructs an empty set of per-currency reward pools.
func NewReward() *Reward {
	return &Reward{pools: make(map[assets.ID]*Pool)}
}

func (r *Reward) pool(currency assets.ID) *Pool {
	p, ok := r.pools[currency]
	if !ok {
		p = NewPool()
		r.pools[currency] = p
	}
	return p
}

func vaultKey(vault crypto.Address) string {
	return vault.String()
}

// DepositStake credits a vault's stake in the reward pool for `currency`.
// Stake here tracks the vault's share of the issued-token pie that earns
// fee rewards denominated in `currency`.
func (r *Reward) DepositStake(currency assets.ID, vault crypto.Address, x *big.Int) error {
	return r.pool(currency).DepositStake(vaultKey(vault), x)
}

// WithdrawStake debits a vault's stake in the reward pool for `currency`.
func (r *Reward) WithdrawStake(currency assets.ID, vault crypto.Address, x *big.Int) error {
	return r.pool(currency).WithdrawStake(vaultKey(vault), x)
}

// Distribute adds newly accrued `currency` rewards to the pool, returning any
// leftover that could not be attributed (empty pool).
func (r *Reward) Distribute(currency assets.ID, amount *big.Int) *big.Int {
	return r.pool(currency).Distribute(amount)
}

// ComputeReward returns the vault's currently claimable `currency` reward.
func (r *Reward) ComputeReward(currency assets.ID, vault crypto.Address) *big.Int {
	return r.pool(currency).ComputeReward(vaultKey(vault))
}

// WithdrawReward pays out and resets the vault's claimable `currency` reward.
func (r *Reward) WithdrawReward(currency assets.ID, vault crypto.Address) *big.Int {
	return r.pool(currency).WithdrawReward(vaultKey(vault))
}

// Stake returns the vault's current stake in the `currency` reward pool.
func (r *Reward) Stake(currency assets.ID, vault crypto.Address) *big.Int {
	return r.pool(currency).Stake(vaultKey(vault))
}

// TotalStake returns the reward pool's total stake for `currency`.
func (r *Reward) TotalStake(currency assets.ID) *big.Int {
	return new(big.Int).Set(r.pool(currency).TotalStake)
}
