// Package assets defines the closed, versioned enum of collateral assets the
// kernel supports, plus the Amount pair (raw units, asset id) spec.md §4.1
// builds all arithmetic on.
package assets

import (
	"fmt"
	"math/big"

	"vaultbridge/kernelerrors"
)

// ID identifies a supported asset. Asset 0 is reserved as invalid so a
// zero-valued Amount is never mistaken for a valid collateral/wrapped unit.
type ID uint8

const (
	// Invalid is the zero value; no Amount should ever carry it past
	// construction.
	Invalid ID = iota
	// DOT, KSM, and ETH are supported collateral assets.
	DOT
	KSM
	ETH
	// Wrapped is the single distinguished wrapped-BTC asset issued and
	// redeemed by the bridge.
	Wrapped
)

// decimalExponent fixes each asset's raw-unit scale (10^exponent units per
// whole asset).
var decimalExponent = map[ID]uint8{
	DOT:     10,
	KSM:     12,
	ETH:     18,
	Wrapped: 8,
}

// Exponent returns the asset's fixed decimal exponent.
func (a ID) Exponent() (uint8, error) {
	exp, ok := decimalExponent[a]
	if !ok {
		return 0, fmt.Errorf("%w: asset %d", kernelerrors.ErrInvalidCurrency, a)
	}
	return exp, nil
}

// Valid reports whether the id names a supported asset.
func (a ID) Valid() bool {
	_, ok := decimalExponent[a]
	return ok
}

// IsCollateral reports whether the asset may be locked as vault collateral.
func (a ID) IsCollateral() bool {
	switch a {
	case DOT, KSM, ETH:
		return true
	default:
		return false
	}
}

func (a ID) String() string {
	switch a {
	case DOT:
		return "DOT"
	case KSM:
		return "KSM"
	case ETH:
		return "ETH"
	case Wrapped:
		return "WBTC"
	default:
		return "INVALID"
	}
}

// Amount is a raw-unit integer tagged with the asset it denominates.
// Arithmetic between two Amounts fails unless their asset ids match;
// cross-asset conversion must go through the oracle (see the oracle
// package's Convert helper).
type Amount struct {
	Raw   *big.Int
	Asset ID
}

// New builds an Amount, defensively copying the supplied integer.
func New(raw *big.Int, asset ID) Amount {
	if raw == nil {
		raw = big.NewInt(0)
	}
	return Amount{Raw: new(big.Int).Set(raw), Asset: asset}
}

// Zero returns the additive identity for the given asset.
func Zero(asset ID) Amount {
	return Amount{Raw: big.NewInt(0), Asset: asset}
}

func (a Amount) sameAsset(other Amount) error {
	if a.Asset != other.Asset {
		return fmt.Errorf("%w: amount asset mismatch (%s vs %s)", kernelerrors.ErrInvalidCurrency, a.Asset, other.Asset)
	}
	return nil
}

// Add returns a + other; fails if the assets differ.
func (a Amount) Add(other Amount) (Amount, error) {
	if err := a.sameAsset(other); err != nil {
		return Amount{}, err
	}
	return New(new(big.Int).Add(a.Raw, other.Raw), a.Asset), nil
}

// Sub returns a - other; fails if the assets differ or the result would be
// negative.
func (a Amount) Sub(other Amount) (Amount, error) {
	if err := a.sameAsset(other); err != nil {
		return Amount{}, err
	}
	out := new(big.Int).Sub(a.Raw, other.Raw)
	if out.Sign() < 0 {
		return Amount{}, kernelerrors.ErrArithmeticUnderflow
	}
	return New(out, a.Asset), nil
}

// Cmp compares two same-asset amounts; when the assets differ it returns 0
// and an error instead of a comparison result: arithmetic on two amounts
// fails unless their assets match.
func (a Amount) Cmp(other Amount) (int, error) {
	if err := a.sameAsset(other); err != nil {
		return 0, err
	}
	return a.Raw.Cmp(other.Raw), nil
}

// IsZero reports whether the raw amount is zero.
func (a Amount) IsZero() bool {
	return a.Raw == nil || a.Raw.Sign() == 0
}

// Clone returns a defensive deep copy.
func (a Amount) Clone() Amount {
	return New(a.Raw, a.Asset)
}
