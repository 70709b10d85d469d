package rewardpool

import "math/big"

func clonePool(p *Pool) *Pool {
	clone := &Pool{
		TotalStake:     new(big.Int).Set(p.TotalStake),
		RewardPerToken: p.RewardPerToken,
		TotalRewards:   new(big.Int).Set(p.TotalRewards),
		stakes:         make(map[string]*big.Int, len(p.stakes)),
		tallies:        make(map[string]*big.Int, len(p.tallies)),
	}
	for k, v := range p.stakes {
		clone.stakes[k] = new(big.Int).Set(v)
	}
	for k, v := range p.tallies {
		clone.tallies[k] = new(big.Int).Set(v)
	}
	return clone
}

// StakingSnapshot is an opaque deep copy of every (asset, vault) staking
// pool's stakes and accumulator state. The kernel takes one before
// dispatching a command that touches collateral and restores it on
// failure, giving Staking's in-memory pools the same all-or-nothing commit
// boundary vaultregistry.Snapshot gives the registry.
type StakingSnapshot struct {
	pools map[vaultPoolKey]*Pool
}

// Snapshot deep-copies the staking pool set's current state.
func (s *Staking) Snapshot() *StakingSnapshot {
	snap := &StakingSnapshot{pools: make(map[vaultPoolKey]*Pool, len(s.pools))}
	for k, p := range s.pools {
		snap.pools[k] = clonePool(p)
	}
	return snap
}

// Restore replaces the staking pool set with a previously taken
// StakingSnapshot, discarding any mutations made since.
func (s *Staking) Restore(snap *StakingSnapshot) {
	s.pools = snap.pools
}
