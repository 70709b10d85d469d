package fixedpoint

import (
	"math/big"
	"testing"
)

func TestRatioOfAndTrunc(t *testing.T) {
	r, err := RatioOf(1, 3)
	if err != nil {
		t.Fatalf("RatioOf: %v", err)
	}
	got := r.MulIntFloor(big.NewInt(9))
	if got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("expected floor(9*trunc(1/3))=2 got %s", got.String())
	}
}

func TestMulIntCeilRoundsUp(t *testing.T) {
	r, err := RatioOf(1, 3)
	if err != nil {
		t.Fatalf("RatioOf: %v", err)
	}
	got := r.MulIntCeil(big.NewInt(10))
	if got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("expected ceil(10/3)=4 got %s", got.String())
	}
	floor := r.MulIntFloor(big.NewInt(10))
	if floor.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("expected floor(10/3)=3 got %s", floor.String())
	}
}

func TestSubUnderflow(t *testing.T) {
	a := FromInt(1)
	b := FromInt(2)
	if _, err := a.Sub(b); err == nil {
		t.Fatalf("expected underflow error")
	}
}

func TestDivByZero(t *testing.T) {
	a := FromInt(1)
	if _, err := a.Div(Zero()); err == nil {
		t.Fatalf("expected division error")
	}
}

func TestMulRoundTrip(t *testing.T) {
	a := FromInt(5)
	b := FromInt(4)
	got := a.Mul(b)
	want := FromInt(20)
	if got.Cmp(want) != 0 {
		t.Fatalf("5*4 = %s, want %s", got.String(), want.String())
	}
}
