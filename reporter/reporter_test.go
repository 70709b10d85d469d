package reporter

import (
	"math/big"
	"testing"
	"time"

	"vaultbridge/assets"
	"vaultbridge/crypto"
	"vaultbridge/currency"
	"vaultbridge/fixedpoint"
	"vaultbridge/oracle"
	"vaultbridge/rewardpool"
	"vaultbridge/vaultregistry"
)

type testRegistryConfig struct{}

func (testRegistryConfig) MinimumCollateralVault(assets.ID) *big.Int { return big.NewInt(10) }
func (testRegistryConfig) SystemCollateralCeiling(assets.ID) (*big.Int, bool) {
	return nil, false
}
func (testRegistryConfig) SecureCollateralThreshold(assets.ID) (fixedpoint.Ratio, bool) {
	r, _ := fixedpoint.RatioOf(150, 100)
	return r, true
}
func (testRegistryConfig) PremiumRedeemThreshold(assets.ID) (fixedpoint.Ratio, bool) {
	r, _ := fixedpoint.RatioOf(135, 100)
	return r, true
}
func (testRegistryConfig) LiquidationCollateralThreshold(assets.ID) (fixedpoint.Ratio, bool) {
	r, _ := fixedpoint.RatioOf(110, 100)
	return r, true
}
func (testRegistryConfig) WrappedAsset() assets.ID { return assets.Wrapped }

type sliceSource []crypto.Address

func (s sliceSource) Accounts() []crypto.Address { return s }

func testAddr(t *testing.T, seed byte) crypto.Address {
	t.Helper()
	b := make([]byte, 20)
	b[19] = seed
	addr, err := crypto.NewAddress(crypto.NHBPrefix, b)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	return addr
}

func newTestRegistry(t *testing.T) (*vaultregistry.Registry, *currency.Ledger, *oracle.Aggregator) {
	t.Helper()
	ledger := currency.New(currency.NewMemStore())
	staking := rewardpool.NewStaking()
	agg := oracle.New(time.Hour, []string{"test-source"})
	agg.FeedValues("test-source", time.Unix(1000, 0), map[oracle.Key]fixedpoint.Ratio{
		oracle.RateKey("DOT", "WBTC"): fixedpoint.One(),
		oracle.RateKey("WBTC", "DOT"): fixedpoint.One(),
	})
	agg.Aggregate(time.Unix(1000, 0))
	return vaultregistry.New(testRegistryConfig{}, ledger, staking, agg), ledger, agg
}

func TestTickLiquidatesVaultsBelowThreshold(t *testing.T) {
	r, ledger, agg := newTestRegistry(t)
	healthy := testAddr(t, 1)
	sick := testAddr(t, 2)

	ledger.Deposit(healthy, assets.New(big.NewInt(100000), assets.DOT))
	if err := r.RegisterVault(healthy, big.NewInt(100000), assets.DOT, []byte{0x01}); err != nil {
		t.Fatalf("RegisterVault healthy: %v", err)
	}
	if err := r.IncreaseToBeIssued(healthy, big.NewInt(1000)); err != nil {
		t.Fatalf("IncreaseToBeIssued healthy: %v", err)
	}
	if err := r.Issue(healthy, big.NewInt(1000)); err != nil {
		t.Fatalf("Issue healthy: %v", err)
	}

	ledger.Deposit(sick, assets.New(big.NewInt(2000), assets.DOT))
	if err := r.RegisterVault(sick, big.NewInt(2000), assets.DOT, []byte{0x02}); err != nil {
		t.Fatalf("RegisterVault sick: %v", err)
	}
	if err := r.IncreaseToBeIssued(sick, big.NewInt(1000)); err != nil {
		t.Fatalf("IncreaseToBeIssued sick: %v", err)
	}
	if err := r.Issue(sick, big.NewInt(1000)); err != nil {
		t.Fatalf("Issue sick: %v", err)
	}

	// DOT devalues against WBTC after issuance: sick's 2000 DOT now backs
	// only 1000 wrapped, below the 110% liquidation threshold on 1000
	// issued; healthy's 100000 DOT still comfortably clears it.
	half, err := fixedpoint.RatioOf(1, 2)
	if err != nil {
		t.Fatalf("RatioOf: %v", err)
	}
	agg.FeedValues("test-source", time.Unix(2000, 0), map[oracle.Key]fixedpoint.Ratio{
		oracle.RateKey("DOT", "WBTC"): half,
		oracle.RateKey("WBTC", "DOT"): fixedpoint.One(),
	})
	agg.Aggregate(time.Unix(2000, 0))

	submit := NewRegistrySubmitter(r)
	rep := New(r, sliceSource{healthy, sick}, submit)
	reported, err := rep.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(reported) != 1 || !reported[0].Equal(sick) {
		t.Fatalf("reported = %v, want [sick]", reported)
	}
	v, _ := r.Vault(sick)
	if v.Status != vaultregistry.StatusLiquidated {
		t.Fatalf("sick.Status = %v, want Liquidated", v.Status)
	}
	hv, _ := r.Vault(healthy)
	if hv.Status != vaultregistry.StatusActive {
		t.Fatalf("healthy.Status = %v, want Active", hv.Status)
	}
	events := submit.DrainEvents()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
}
