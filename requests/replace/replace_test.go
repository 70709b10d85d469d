package replace

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

type testReplaceConfig struct{}

func (testReplaceConfig) ReplacePeriodBlocks() uint64 { return 100 }
func (testReplaceConfig) WrappedAsset() assets.ID     { return assets.Wrapped }

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

func setupVault(t *testing.T, r *vaultregistry.Registry, ledger *currency.Ledger, vault crypto.Address, collateral int64, issued *big.Int) {
	t.Helper()
	ledger.Deposit(vault, assets.New(big.NewInt(collateral), assets.DOT))
	if err := r.RegisterVault(vault, big.NewInt(collateral), assets.DOT, []byte{0x02, 0x03}); err != nil {
		t.Fatalf("RegisterVault: %v", err)
	}
	// Free balance beyond the locked collateral, for griefing deposits.
	ledger.Deposit(vault, assets.New(big.NewInt(1000), assets.DOT))
	if issued.Sign() > 0 {
		if err := r.IncreaseToBeIssued(vault, issued); err != nil {
			t.Fatalf("IncreaseToBeIssued: %v", err)
		}
		if err := r.Issue(vault, issued); err != nil {
			t.Fatalf("Issue: %v", err)
		}
	}
}

func TestRequestReplaceReservesAndLocksCollateral(t *testing.T) {
	r, ledger := newTestRegistry(t)
	old := testAddr(t, 1)
	setupVault(t, r, ledger, old, 100000, big.NewInt(10000))

	m := New(testReplaceConfig{}, r, &fakeRelay{tip: 5})
	req, err := m.RequestReplace(old, big.NewInt(1000), big.NewInt(20), 10)
	if err != nil {
		t.Fatalf("RequestReplace: %v", err)
	}
	if req.RequestedAmount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("RequestedAmount = %s, want 1000", req.RequestedAmount)
	}
	v, _ := r.Vault(old)
	if v.ToBeReplaced.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("ToBeReplaced = %s, want 1000", v.ToBeReplaced)
	}
	if v.ReplaceCollateral.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("ReplaceCollateral = %s, want 20", v.ReplaceCollateral)
	}
}

func TestAcceptReplaceMovesColumnsAndReleasesShare(t *testing.T) {
	r, ledger := newTestRegistry(t)
	old := testAddr(t, 1)
	newV := testAddr(t, 2)
	setupVault(t, r, ledger, old, 100000, big.NewInt(10000))
	setupVault(t, r, ledger, newV, 50000, big.NewInt(0))
	ledger.Deposit(newV, assets.New(big.NewInt(5000), assets.DOT))

	m := New(testReplaceConfig{}, r, &fakeRelay{tip: 5})
	req, err := m.RequestReplace(old, big.NewInt(1000), big.NewInt(100), 10)
	if err != nil {
		t.Fatalf("RequestReplace: %v", err)
	}
	got, err := m.AcceptReplace(req.ID, newV, big.NewInt(400), big.NewInt(1000), "bc1qnew", 11, 6)
	if err != nil {
		t.Fatalf("AcceptReplace: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Fatalf("Status = %v, want Accepted", got.Status)
	}
	oldVault, _ := r.Vault(old)
	if oldVault.ToBeReplaced.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("old.ToBeReplaced = %s, want 600", oldVault.ToBeReplaced)
	}
	if oldVault.ToBeRedeemed.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("old.ToBeRedeemed = %s, want 400", oldVault.ToBeRedeemed)
	}
	wantReleased := vaultregistry.CalculateCollateral(big.NewInt(100), big.NewInt(400), big.NewInt(1000))
	wantRemaining := new(big.Int).Sub(big.NewInt(100), wantReleased)
	if oldVault.ReplaceCollateral.Cmp(wantRemaining) != 0 {
		t.Fatalf("old.ReplaceCollateral = %s, want %s", oldVault.ReplaceCollateral, wantRemaining)
	}
	newVault, _ := r.Vault(newV)
	if newVault.ToBeIssued.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("new.ToBeIssued = %s, want 400", newVault.ToBeIssued)
	}
}

func TestExecuteReplaceCompletesTokenTransfer(t *testing.T) {
	r, ledger := newTestRegistry(t)
	old := testAddr(t, 1)
	newV := testAddr(t, 2)
	setupVault(t, r, ledger, old, 100000, big.NewInt(10000))
	setupVault(t, r, ledger, newV, 50000, big.NewInt(0))
	ledger.Deposit(newV, assets.New(big.NewInt(5000), assets.DOT))

	m := New(testReplaceConfig{}, r, &fakeRelay{tip: 5})
	req, err := m.RequestReplace(old, big.NewInt(1000), big.NewInt(100), 10)
	if err != nil {
		t.Fatalf("RequestReplace: %v", err)
	}
	accepted, err := m.AcceptReplace(req.ID, newV, big.NewInt(1000), big.NewInt(1500), "bc1qnew", 11, 6)
	if err != nil {
		t.Fatalf("AcceptReplace: %v", err)
	}
	got, err := m.ExecuteReplace(accepted.ID, btcrelay.Proof{}, nil)
	if err != nil {
		t.Fatalf("ExecuteReplace: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("Status = %v, want Completed", got.Status)
	}
	oldVault, _ := r.Vault(old)
	if oldVault.Issued.Cmp(big.NewInt(9000)) != 0 {
		t.Fatalf("old.Issued = %s, want 9000", oldVault.Issued)
	}
	newVault, _ := r.Vault(newV)
	if newVault.Issued.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("new.Issued = %s, want 1000", newVault.Issued)
	}
}

func TestCancelReplaceRequiresExpiryAndForfeitsCollateral(t *testing.T) {
	r, ledger := newTestRegistry(t)
	old := testAddr(t, 1)
	newV := testAddr(t, 2)
	setupVault(t, r, ledger, old, 100000, big.NewInt(10000))
	setupVault(t, r, ledger, newV, 50000, big.NewInt(0))
	ledger.Deposit(newV, assets.New(big.NewInt(5000), assets.DOT))

	m := New(testReplaceConfig{}, r, &fakeRelay{tip: 5})
	req, err := m.RequestReplace(old, big.NewInt(1000), big.NewInt(100), 10)
	if err != nil {
		t.Fatalf("RequestReplace: %v", err)
	}
	accepted, err := m.AcceptReplace(req.ID, newV, big.NewInt(1000), big.NewInt(1500), "bc1qnew", 11, 6)
	if err != nil {
		t.Fatalf("AcceptReplace: %v", err)
	}
	if _, err := m.CancelReplace(accepted.ID, 200, 4); err == nil {
		t.Fatalf("expected TimeNotExpired before BTC expiry height reached")
	}
	got, err := m.CancelReplace(accepted.ID, 200, accepted.BTCExpiryHeight)
	if err != nil {
		t.Fatalf("CancelReplace: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("Status = %v, want Cancelled", got.Status)
	}
	newVaultFree, _ := ledger.Free(newV, assets.DOT)
	if newVaultFree.Sign() <= 0 {
		t.Fatalf("expected new vault to receive forfeited replace_collateral, free = %s", newVaultFree)
	}
	oldVault, _ := r.Vault(old)
	if oldVault.ReplaceCollateral.Sign() != 0 {
		t.Fatalf("old.ReplaceCollateral = %s, want 0 after forfeiture", oldVault.ReplaceCollateral)
	}
}
