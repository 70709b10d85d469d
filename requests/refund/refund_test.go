package refund

import (
	"math/big"
	"testing"
	"time"

	"vaultbridge/assets"
	"vaultbridge/btcrelay"
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

type testRefundConfig struct{}

func (testRefundConfig) RefundFeeRatio() fixedpoint.Ratio {
	r, _ := fixedpoint.RatioOf(1, 100)
	return r
}
func (testRefundConfig) WrappedAsset() assets.ID { return assets.Wrapped }

type fakeRelay struct{ tip uint64 }

func (f *fakeRelay) VerifyAndValidateOpReturnTransaction(proof btcrelay.Proof, rawTx []byte, recipient string, minAmountSat uint64, opReturn []byte) error {
	return nil
}
func (f *fakeRelay) ParseMerkleProof(raw []byte) (btcrelay.Proof, error) { return btcrelay.Proof{}, nil }
func (f *fakeRelay) ParseTransaction(raw []byte) (btcrelay.Transaction, error) {
	return btcrelay.Transaction{}, nil
}
func (f *fakeRelay) RelayTipHeight() (uint64, error) { return f.tip, nil }
func (f *fakeRelay) BitcoinExpiryHeight(openingTip, period uint64) uint64 {
	return openingTip + period
}

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

func newTestRegistry(t *testing.T) (*vaultregistry.Registry, *currency.Ledger) {
	t.Helper()
	ledger := currency.New(currency.NewMemStore())
	staking := rewardpool.NewStaking()
	agg := oracle.New(time.Hour, []string{"test-source"})
	agg.FeedValues("test-source", time.Unix(1000, 0), map[oracle.Key]fixedpoint.Ratio{
		oracle.RateKey("DOT", "WBTC"): fixedpoint.One(),
		oracle.RateKey("WBTC", "DOT"): fixedpoint.One(),
	})
	agg.Aggregate(time.Unix(1000, 0))
	return vaultregistry.New(testRegistryConfig{}, ledger, staking, agg), ledger
}

func setupVault(t *testing.T, r *vaultregistry.Registry, ledger *currency.Ledger, vault crypto.Address) {
	t.Helper()
	ledger.Deposit(vault, assets.New(big.NewInt(100000), assets.DOT))
	if err := r.RegisterVault(vault, big.NewInt(100000), assets.DOT, []byte{0x02, 0x03}); err != nil {
		t.Fatalf("RegisterVault: %v", err)
	}
}

func TestOpenRefundMintsFeeToVault(t *testing.T) {
	r, ledger := newTestRegistry(t)
	vault := testAddr(t, 1)
	issuer := testAddr(t, 2)
	setupVault(t, r, ledger, vault)

	m := New(testRefundConfig{}, r, &fakeRelay{tip: 5})
	id, err := m.OpenRefund(vault, issuer, big.NewInt(1000), "bc1qrefund", "issue-1")
	if err != nil {
		t.Fatalf("OpenRefund: %v", err)
	}
	req, err := m.Request(id)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Completed {
		t.Fatalf("Completed = true, want false")
	}
	v, _ := r.Vault(vault)
	wantFee := testRefundConfig{}.RefundFeeRatio().MulIntFloor(big.NewInt(1000))
	if v.Issued.Cmp(wantFee) != 0 {
		t.Fatalf("Issued = %s, want %s (minted fee)", v.Issued, wantFee)
	}
}

func TestExecuteRefundRequiresNotAlreadyCompleted(t *testing.T) {
	r, ledger := newTestRegistry(t)
	vault := testAddr(t, 1)
	issuer := testAddr(t, 2)
	setupVault(t, r, ledger, vault)

	m := New(testRefundConfig{}, r, &fakeRelay{tip: 5})
	id, err := m.OpenRefund(vault, issuer, big.NewInt(1000), "bc1qrefund", "issue-1")
	if err != nil {
		t.Fatalf("OpenRefund: %v", err)
	}
	got, err := m.ExecuteRefund(id, btcrelay.Proof{}, nil)
	if err != nil {
		t.Fatalf("ExecuteRefund: %v", err)
	}
	if !got.Completed {
		t.Fatalf("Completed = false, want true")
	}
	if _, err := m.ExecuteRefund(id, btcrelay.Proof{}, nil); err == nil {
		t.Fatalf("expected error executing an already-completed refund")
	}
}
