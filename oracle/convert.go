package oracle

import (
	"vaultbridge/assets"
	"vaultbridge/fixedpoint"
)

// Convert applies the aggregator's rate for (from, to) to amount, per
// spec.md §4.1: convert(amount, target_asset) = amount × oracle_rate(from,
// target). The conversion floors to the target asset's raw-unit domain.
func (a *Aggregator) Convert(amount assets.Amount, target assets.ID) (assets.Amount, error) {
	if amount.Asset == target {
		return amount.Clone(), nil
	}
	rate, err := a.Get(RateKey(amount.Asset.String(), target.String()))
	if err != nil {
		return assets.Amount{}, err
	}
	converted := rate.MulIntFloor(amount.Raw)
	return assets.New(converted, target), nil
}
