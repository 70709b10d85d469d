package assets

import (
	"math/big"
	"testing"
)

func TestAmountArithmeticRequiresMatchingAsset(t *testing.T) {
	a := New(big.NewInt(10), DOT)
	b := New(big.NewInt(5), KSM)
	if _, err := a.Add(b); err == nil {
		t.Fatalf("expected cross-asset add to fail")
	}
}

func TestAmountSubUnderflow(t *testing.T) {
	a := New(big.NewInt(1), DOT)
	b := New(big.NewInt(2), DOT)
	if _, err := a.Sub(b); err == nil {
		t.Fatalf("expected underflow error")
	}
}

func TestAmountAddSameAsset(t *testing.T) {
	a := New(big.NewInt(10), DOT)
	b := New(big.NewInt(5), DOT)
	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum.Raw.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("expected 15, got %s", sum.Raw.String())
	}
}

func TestExponentUnknownAsset(t *testing.T) {
	if _, err := Invalid.Exponent(); err == nil {
		t.Fatalf("expected invalid asset to fail")
	}
}
