package rewardpool

import (
	"math/big"
	"testing"

	"vaultbridge/assets"
	"vaultbridge/crypto"
)

func stakingAddr(t *testing.T, seed byte) crypto.Address {
	t.Helper()
	b := make([]byte, 20)
	b[0] = seed
	addr, err := crypto.NewAddress(crypto.NHBPrefix, b)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	return addr
}

func TestStakingSlashVaultDilutesNominators(t *testing.T) {
	s := NewStaking()
	vault := stakingAddr(t, 1)
	alice := stakingAddr(t, 2)
	bob := stakingAddr(t, 3)

	if err := s.DepositStake(assets.DOT, vault, alice, big.NewInt(300)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if err := s.DepositStake(assets.DOT, vault, bob, big.NewInt(100)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}

	// Before any slash, CurrentValue matches raw stake.
	if got := s.CurrentValue(assets.DOT, vault, alice); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("alice pre-slash value = %s, want 300", got)
	}

	if err := s.SlashVault(assets.DOT, vault, big.NewInt(40)); err != nil {
		t.Fatalf("slash: %v", err)
	}

	// Total stake was 400; slashing 40 removes 10% of backing value from
	// every nominator proportionally.
	if got := s.CurrentValue(assets.DOT, vault, alice); got.Cmp(big.NewInt(270)) != 0 {
		t.Fatalf("alice post-slash value = %s, want 270", got)
	}
	if got := s.CurrentValue(assets.DOT, vault, bob); got.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("bob post-slash value = %s, want 90", got)
	}

	// Raw stake (ownership units) is untouched by slashing.
	if got := s.Stake(assets.DOT, vault, alice); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("alice raw stake changed by slash: %s", got)
	}
}

func TestStakingPoolsAreIsolatedPerVaultAndAsset(t *testing.T) {
	s := NewStaking()
	vaultA := stakingAddr(t, 1)
	vaultB := stakingAddr(t, 2)
	nominator := stakingAddr(t, 3)

	_ = s.DepositStake(assets.DOT, vaultA, nominator, big.NewInt(50))
	_ = s.DepositStake(assets.KSM, vaultA, nominator, big.NewInt(70))
	_ = s.DepositStake(assets.DOT, vaultB, nominator, big.NewInt(90))

	if got := s.Stake(assets.DOT, vaultA, nominator); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("vaultA/DOT stake = %s, want 50", got)
	}
	if got := s.Stake(assets.KSM, vaultA, nominator); got.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("vaultA/KSM stake = %s, want 70", got)
	}
	if got := s.Stake(assets.DOT, vaultB, nominator); got.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("vaultB/DOT stake = %s, want 90", got)
	}
}
