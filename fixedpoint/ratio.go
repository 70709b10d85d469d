// Package fixedpoint implements a deterministic, integer-backed fixed-point
// ratio type. Go has no native 128-bit integer; math/big stands in for the
// bit width (the same arithmetic backbone the rest of the kernel's teacher
// codebase uses for ray-scaled interest math), while Accuracy fixes the
// decimal precision so every node computes bit-identical results.
package fixedpoint

import (
	"fmt"
	"math/big"

	"vaultbridge/kernelerrors"
)

// Accuracy is the fixed-point scale: 10^18, matching the "ray" precision
// common lending-engine supply/borrow indices use.
var Accuracy = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Ratio is an unsigned fixed-point number: Inner / Accuracy.
type Ratio struct {
	Inner *big.Int
}

// Zero returns the additive identity.
func Zero() Ratio {
	return Ratio{Inner: big.NewInt(0)}
}

// One returns the multiplicative identity (1.0).
func One() Ratio {
	return Ratio{Inner: new(big.Int).Set(Accuracy)}
}

// FromInt builds a ratio representing the exact integer n.
func FromInt(n uint64) Ratio {
	inner := new(big.Int).SetUint64(n)
	inner.Mul(inner, Accuracy)
	return Ratio{Inner: inner}
}

// FromRaw wraps a raw inner value (already scaled by Accuracy) as a ratio.
func FromRaw(inner *big.Int) Ratio {
	if inner == nil {
		return Zero()
	}
	return Ratio{Inner: new(big.Int).Set(inner)}
}

func (r Ratio) normalized() *big.Int {
	if r.Inner == nil {
		return big.NewInt(0)
	}
	return r.Inner
}

// Sign reports the sign of the ratio; unsigned ratios are always >= 0.
func (r Ratio) Sign() int {
	return r.normalized().Sign()
}

// Cmp compares two ratios.
func (r Ratio) Cmp(other Ratio) int {
	return r.normalized().Cmp(other.normalized())
}

// Add returns r + other. Unsigned addition never overflows in math/big, so
// unlike Sub/Mul/Div, whose failure modes are real, it returns no error.
func (r Ratio) Add(other Ratio) Ratio {
	return Ratio{Inner: new(big.Int).Add(r.normalized(), other.normalized())}
}

// Sub returns r - other, failing with ErrArithmeticUnderflow if the result
// would be negative (ratios are unsigned).
func (r Ratio) Sub(other Ratio) (Ratio, error) {
	out := new(big.Int).Sub(r.normalized(), other.normalized())
	if out.Sign() < 0 {
		return Ratio{}, kernelerrors.ErrArithmeticUnderflow
	}
	return Ratio{Inner: out}, nil
}

// Mul returns r * other, rescaling by Accuracy.
func (r Ratio) Mul(other Ratio) Ratio {
	out := new(big.Int).Mul(r.normalized(), other.normalized())
	out.Quo(out, Accuracy)
	return Ratio{Inner: out}
}

// Div returns r / other, rounding toward zero (truncation), rescaled by
// Accuracy. Division by zero is reported as ErrArithmeticOverflow per the
// kernel's convention of treating arithmetic faults as recoverable errors
// rather than panics.
func (r Ratio) Div(other Ratio) (Ratio, error) {
	if other.Sign() == 0 {
		return Ratio{}, kernelerrors.ErrArithmeticOverflow
	}
	num := new(big.Int).Mul(r.normalized(), Accuracy)
	out := num.Quo(num, other.normalized())
	return Ratio{Inner: out}, nil
}

// RatioOf computes a/b as a ratio (a/b in real terms, represented in
// fixed-point). This is the ratio(a, b) = a/b primitive.
func RatioOf(a, b uint64) (Ratio, error) {
	if b == 0 {
		return Ratio{}, kernelerrors.ErrArithmeticOverflow
	}
	num := new(big.Int).SetUint64(a)
	num.Mul(num, Accuracy)
	num.Quo(num, new(big.Int).SetUint64(b))
	return Ratio{Inner: num}, nil
}

// RatioOfBigInt computes a/b as a ratio for arbitrary-precision operands,
// the big.Int-valued counterpart to RatioOf used where the denominator is a
// pool's accumulated stake rather than a plain uint64.
func RatioOfBigInt(a, b *big.Int) (Ratio, error) {
	if b == nil || b.Sign() == 0 {
		return Ratio{}, kernelerrors.ErrArithmeticOverflow
	}
	if a == nil {
		a = big.NewInt(0)
	}
	num := new(big.Int).Mul(a, Accuracy)
	num.Quo(num, b)
	return Ratio{Inner: num}, nil
}

// MulIntFloor multiplies the ratio by an integer and floors the result to the
// inner integer domain. This is the default rounding mode for all call sites
// except MulIntCeil.
func (r Ratio) MulIntFloor(n *big.Int) *big.Int {
	if n == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(r.normalized(), n)
	return out.Quo(out, Accuracy)
}

// MulIntCeil multiplies the ratio by an integer, rounding up. This is the
// single rounding-up call site the kernel uses (checked_mul_int_rounded_up),
// reserved for situations — like a borrower's minimum required
// collateral — where rounding down would let the caller skirt a threshold.
func (r Ratio) MulIntCeil(n *big.Int) *big.Int {
	if n == nil {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(r.normalized(), n)
	out, rem := new(big.Int).QuoRem(num, Accuracy, new(big.Int))
	if rem.Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// Trunc converts the ratio to its inner integer value using floor
// truncation, discarding the fractional part.
func (r Ratio) Trunc() *big.Int {
	return new(big.Int).Quo(r.normalized(), Accuracy)
}

// String renders the ratio as a decimal string for logging and events.
func (r Ratio) String() string {
	whole := new(big.Int).Quo(r.normalized(), Accuracy)
	frac := new(big.Int).Mod(r.normalized(), Accuracy)
	return fmt.Sprintf("%s.%018s", whole.String(), frac.String())
}
