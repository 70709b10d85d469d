package currency

import "math/big"

// MemStoreSnapshot is an opaque deep copy of an in-memory balance store.
// The kernel takes one before dispatching a command and restores it on
// failure, matching the rollback boundary vaultregistry.Snapshot and
// rewardpool.StakingSnapshot give their own in-memory state.
type MemStoreSnapshot struct {
	balances map[string]Balance
}

// Snapshot deep-copies the store's current balances.
func (m *MemStore) Snapshot() *MemStoreSnapshot {
	snap := &MemStoreSnapshot{balances: make(map[string]Balance, len(m.balances))}
	for k, v := range m.balances {
		snap.balances[k] = Balance{Free: new(big.Int).Set(v.Free), Locked: new(big.Int).Set(v.Locked)}
	}
	return snap
}

// Restore replaces the store's balances with a previously taken
// MemStoreSnapshot, discarding any mutations made since.
func (m *MemStore) Restore(snap *MemStoreSnapshot) {
	m.balances = snap.balances
}
