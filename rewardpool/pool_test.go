package rewardpool

import (
	"math/big"
	"testing"

	"vaultbridge/fixedpoint"
)

func TestDistributeSplitsProRata(t *testing.T) {
	p := NewPool()
	if err := p.DepositStake("alice", big.NewInt(100)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if err := p.DepositStake("bob", big.NewInt(300)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	leftover := p.Distribute(big.NewInt(400))
	if leftover.Sign() != 0 {
		t.Fatalf("expected no leftover, got %s", leftover)
	}
	if got := p.ComputeReward("alice"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("alice reward = %s, want 100", got)
	}
	if got := p.ComputeReward("bob"); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("bob reward = %s, want 300", got)
	}
}

func TestDistributeWithNoStakeReturnsLeftover(t *testing.T) {
	p := NewPool()
	leftover := p.Distribute(big.NewInt(50))
	if leftover.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected full leftover of undistributed reward, got %s", leftover)
	}
}

func TestWithdrawRewardResetsTally(t *testing.T) {
	p := NewPool()
	_ = p.DepositStake("alice", big.NewInt(100))
	p.Distribute(big.NewInt(100))
	got := p.WithdrawReward("alice")
	if got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("first withdrawal = %s, want 100", got)
	}
	if got := p.ComputeReward("alice"); got.Sign() != 0 {
		t.Fatalf("expected zero reward after withdrawal, got %s", got)
	}
}

func TestDepositAfterDistributeDoesNotStealPastRewards(t *testing.T) {
	p := NewPool()
	_ = p.DepositStake("alice", big.NewInt(100))
	p.Distribute(big.NewInt(100))
	// bob joins after the distribution; his tally must absorb the existing
	// reward_per_token so he doesn't retroactively claim alice's share.
	_ = p.DepositStake("bob", big.NewInt(100))
	p.Distribute(big.NewInt(200))
	if got := p.ComputeReward("alice"); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("alice reward = %s, want 200", got)
	}
	if got := p.ComputeReward("bob"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("bob reward = %s, want 100", got)
	}
}

func TestWithdrawStakeUnderflow(t *testing.T) {
	p := NewPool()
	_ = p.DepositStake("alice", big.NewInt(10))
	if err := p.WithdrawStake("alice", big.NewInt(20)); err == nil {
		t.Fatalf("expected underflow error")
	}
}

func TestSlashDilutesAllNominatorsProRata(t *testing.T) {
	// Staking pools start reward_per_token at 1.0 so CurrentValue equals raw
	// stake until a slash occurs; see Staking's pool() constructor.
	p := NewPoolWithInitial(fixedpoint.One())
	_ = p.DepositStake("alice", big.NewInt(100))
	_ = p.DepositStake("bob", big.NewInt(100))
	if err := p.Slash(big.NewInt(100)); err != nil {
		t.Fatalf("slash: %v", err)
	}
	// Total staked collateral was 200; slashing 100 should halve everyone's
	// backing value.
	alice := p.CurrentValue("alice")
	bob := p.CurrentValue("bob")
	if alice.Cmp(big.NewInt(50)) != 0 || bob.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected pro-rata dilution to 50/50, got alice=%s bob=%s", alice, bob)
	}
}
