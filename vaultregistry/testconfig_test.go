package vaultregistry

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
)

func testAddr(t *testing.T, seed byte) crypto.Address {
	t.Helper()
	b := make([]byte, 20)
	b[0] = seed
	addr, err := crypto.NewAddress(crypto.NHBPrefix, b)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	return addr
}

// testConfig is a fixed, in-memory vaultregistry.Config for tests, grounded
// on native/swap.Config's plain-struct-with-getters shape.
type testConfig struct {
	minCollateral map[assets.ID]*big.Int
	ceiling       map[assets.ID]*big.Int
	secure        map[assets.ID]fixedpoint.Ratio
	premium       map[assets.ID]fixedpoint.Ratio
	liquidation   map[assets.ID]fixedpoint.Ratio
}

func newTestConfig() *testConfig {
	secure, _ := fixedpoint.RatioOf(150, 100)
	premium, _ := fixedpoint.RatioOf(135, 100)
	liq, _ := fixedpoint.RatioOf(110, 100)
	return &testConfig{
		minCollateral: map[assets.ID]*big.Int{assets.DOT: big.NewInt(10)},
		ceiling:       map[assets.ID]*big.Int{},
		secure:        map[assets.ID]fixedpoint.Ratio{assets.DOT: secure},
		premium:       map[assets.ID]fixedpoint.Ratio{assets.DOT: premium},
		liquidation:   map[assets.ID]fixedpoint.Ratio{assets.DOT: liq},
	}
}

func (c *testConfig) MinimumCollateralVault(asset assets.ID) *big.Int {
	if v, ok := c.minCollateral[asset]; ok {
		return v
	}
	return big.NewInt(0)
}

func (c *testConfig) SystemCollateralCeiling(asset assets.ID) (*big.Int, bool) {
	v, ok := c.ceiling[asset]
	return v, ok
}

func (c *testConfig) SecureCollateralThreshold(asset assets.ID) (fixedpoint.Ratio, bool) {
	v, ok := c.secure[asset]
	return v, ok
}

func (c *testConfig) PremiumRedeemThreshold(asset assets.ID) (fixedpoint.Ratio, bool) {
	v, ok := c.premium[asset]
	return v, ok
}

func (c *testConfig) LiquidationCollateralThreshold(asset assets.ID) (fixedpoint.Ratio, bool) {
	v, ok := c.liquidation[asset]
	return v, ok
}

func (c *testConfig) WrappedAsset() assets.ID { return assets.Wrapped }

// newTestRegistry wires a registry over an in-memory ledger, a fresh staking
// pool, and an oracle seeded with a 1:1 DOT:WBTC rate from a single
// authorized source, so BackedTokens/IssuableTokens math comes out in round
// numbers in tests.
func newTestRegistry(t *testing.T) (*Registry, *currency.Ledger) {
	t.Helper()
	r, ledger, _ := newTestRegistryWithOracle(t)
	return r, ledger
}

// newTestRegistryWithOracle additionally returns the aggregator so tests that
// need to simulate a price move (e.g. for liquidation) can feed it a new
// rate after setup.
func newTestRegistryWithOracle(t *testing.T) (*Registry, *currency.Ledger, *oracle.Aggregator) {
	t.Helper()
	ledger := currency.New(currency.NewMemStore())
	staking := rewardpool.NewStaking()
	agg := oracle.New(time.Hour, []string{"test-source"})
	one, _ := fixedpoint.RatioOf(1, 1)
	if err := agg.FeedValues("test-source", time.Unix(1000, 0), map[oracle.Key]fixedpoint.Ratio{
		oracle.RateKey("DOT", "WBTC"): one,
		oracle.RateKey("WBTC", "DOT"): one,
	}); err != nil {
		t.Fatalf("FeedValues: %v", err)
	}
	agg.Aggregate(time.Unix(1000, 0))
	cfg := newTestConfig()
	return New(cfg, ledger, staking, agg), ledger, agg
}

// feedRate re-feeds the DOT:WBTC (and inverse) rate from test-source at a
// later timestamp, simulating a price move within the aggregator's freshness
// window.
func feedRate(t *testing.T, agg *oracle.Aggregator, dotPerWbtc, wbtcPerDot fixedpoint.Ratio) {
	t.Helper()
	if err := agg.FeedValues("test-source", time.Unix(2000, 0), map[oracle.Key]fixedpoint.Ratio{
		oracle.RateKey("DOT", "WBTC"): dotPerWbtc,
		oracle.RateKey("WBTC", "DOT"): wbtcPerDot,
	}); err != nil {
		t.Fatalf("FeedValues: %v", err)
	}
	agg.Aggregate(time.Unix(2000, 0))
}
