// Package rewardpool implements the scalable O(1) reward-distribution
// algorithm spec.md §4.4 describes, and its one-layer-deeper staking
// variant (§4.5). Per DESIGN NOTES §9, both are the same generic
// accumulator core parameterized by key layout: Pool is written once here;
// reward.go and staking.go instantiate it keyed by currency, and by
// (collateral asset, vault, nominator), respectively.
package rewardpool

import (
	"math/big"

	"vaultbridge/fixedpoint"
	"vaultbridge/kernelerrors"
)

// Pool is the generic scalable-distribution core. A single reward_per_token
// accumulator lets deposit/withdraw/distribute/compute_reward all run in
// O(1) regardless of participant count. Callers key individual participants
// by an opaque string; the outer (currency, or vault) dimension is the
// caller's responsibility (see Reward and Staking below).
type Pool struct {
	TotalStake     *big.Int
	RewardPerToken fixedpoint.Ratio
	TotalRewards   *big.Int

	stakes  map[string]*big.Int
	tallies map[string]*big.Int
}

// NewPool constructs an empty pool with reward_per_token = 0. This is the
// right starting point for a pure reward-accrual instantiation (Reward),
// where reward_per_token only ever rises from zero as fees accrue.
func NewPool() *Pool {
	return NewPoolWithInitial(fixedpoint.Zero())
}

// NewPoolWithInitial constructs an empty pool with the given starting
// reward_per_token. The staking instantiation (Staking) needs this: there,
// reward_per_token represents the backing-collateral fraction remaining per
// staked unit and must start at 1.0 so a nominator's computed stake equals
// their raw deposit until the first slash.
func NewPoolWithInitial(initial fixedpoint.Ratio) *Pool {
	return &Pool{
		TotalStake:     big.NewInt(0),
		RewardPerToken: initial,
		TotalRewards:   big.NewInt(0),
		stakes:         make(map[string]*big.Int),
		tallies:        make(map[string]*big.Int),
	}
}

func (p *Pool) stakeOf(key string) *big.Int {
	if s, ok := p.stakes[key]; ok {
		return s
	}
	return big.NewInt(0)
}

func (p *Pool) tallyOf(key string) *big.Int {
	if t, ok := p.tallies[key]; ok {
		return t
	}
	return big.NewInt(0)
}

// DepositStake credits x to the participant's stake and the pool total, and
// advances the participant's reward_tally so their past-accrued rewards are
// not double counted: reward_tally[key] += reward_per_token · x.
func (p *Pool) DepositStake(key string, x *big.Int) error {
	if x == nil || x.Sign() <= 0 {
		return nil
	}
	stake := new(big.Int).Add(p.stakeOf(key), x)
	p.stakes[key] = stake
	p.TotalStake = new(big.Int).Add(p.TotalStake, x)
	tallyDelta := p.RewardPerToken.MulIntFloor(x)
	p.tallies[key] = new(big.Int).Add(p.tallyOf(key), tallyDelta)
	return nil
}

// WithdrawStake debits x from the participant's stake and the pool total.
// Requires x <= stake[key]. Symmetric to DepositStake: the tally is reduced
// by the same reward_per_token · x so compute_reward remains correct for the
// remaining stake.
func (p *Pool) WithdrawStake(key string, x *big.Int) error {
	if x == nil || x.Sign() <= 0 {
		return nil
	}
	current := p.stakeOf(key)
	if current.Cmp(x) < 0 {
		return kernelerrors.ErrArithmeticUnderflow
	}
	p.stakes[key] = new(big.Int).Sub(current, x)
	p.TotalStake = new(big.Int).Sub(p.TotalStake, x)
	tallyDelta := p.RewardPerToken.MulIntFloor(x)
	newTally := new(big.Int).Sub(p.tallyOf(key), tallyDelta)
	if newTally.Sign() < 0 {
		newTally = big.NewInt(0)
	}
	p.tallies[key] = newTally
	return nil
}

// Distribute adds R to the pool's reward_per_token accumulator. When
// total_stake is zero there is nobody to distribute to; R is returned
// unconsumed as leftover and callers must explicitly route it elsewhere
// (e.g. to a treasury) — the pool does not enforce this itself, per
// spec.md §9's open question on leftover handling.
func (p *Pool) Distribute(r *big.Int) *big.Int {
	if r == nil || r.Sign() <= 0 {
		return big.NewInt(0)
	}
	if p.TotalStake.Sign() == 0 {
		return new(big.Int).Set(r)
	}
	delta, err := fixedpoint.RatioOfBigInt(r, p.TotalStake)
	if err != nil {
		return new(big.Int).Set(r)
	}
	p.RewardPerToken = p.RewardPerToken.Add(delta)
	p.TotalRewards = new(big.Int).Add(p.TotalRewards, r)
	return big.NewInt(0)
}

// ComputeReward returns floor(stake[key]·reward_per_token − reward_tally[key]).
func (p *Pool) ComputeReward(key string) *big.Int {
	gross := p.RewardPerToken.MulIntFloor(p.stakeOf(key))
	reward := new(big.Int).Sub(gross, p.tallyOf(key))
	if reward.Sign() < 0 {
		return big.NewInt(0)
	}
	return reward
}

// WithdrawReward computes the participant's reward, resets their tally to
// stake·reward_per_token (so future calls see zero until more accrues), and
// decrements total_rewards by the paid amount.
func (p *Pool) WithdrawReward(key string) *big.Int {
	reward := p.ComputeReward(key)
	p.tallies[key] = p.RewardPerToken.MulIntFloor(p.stakeOf(key))
	if p.TotalRewards.Cmp(reward) >= 0 {
		p.TotalRewards = new(big.Int).Sub(p.TotalRewards, reward)
	} else {
		p.TotalRewards = big.NewInt(0)
	}
	return reward
}

// Stake returns the participant's current raw stake.
func (p *Pool) Stake(key string) *big.Int {
	return new(big.Int).Set(p.stakeOf(key))
}

// CurrentValue returns stake[key]·reward_per_token: the participant's
// current backing value once slashes (or any other reward_per_token
// adjustment) are applied. For a plain reward pool this equals raw stake
// until the first dilution; for the staking instantiation, whose
// reward_per_token starts at 1.0, this is the nominator's actual withdrawable
// collateral after accounting for any SlashVault calls.
func (p *Pool) CurrentValue(key string) *big.Int {
	return p.RewardPerToken.MulIntFloor(p.stakeOf(key))
}

// Slash dilutes every participant's computed reward/stake pro-rata by
// reducing reward_per_token as though `amount` were distributed negatively.
// This is the mechanism spec.md §4.5 describes: "a single reward_per_token
// adjustment that dilutes all nominators proportionally". TotalStake is left
// untouched so it remains a stable denominator for subsequent deposits and
// withdrawals (see DESIGN.md for why mutating TotalStake directly here would
// be unsound).
func (p *Pool) Slash(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if p.TotalStake.Sign() == 0 {
		return kernelerrors.ErrArithmeticUnderflow
	}
	delta, err := fixedpoint.RatioOfBigInt(amount, p.TotalStake)
	if err != nil {
		return err
	}
	next, err := p.RewardPerToken.Sub(delta)
	if err != nil {
		// reward_per_token would go negative: clamp to zero, matching a
		// total wipeout of the backing collateral.
		p.RewardPerToken = fixedpoint.Zero()
		return nil
	}
	p.RewardPerToken = next
	return nil
}
