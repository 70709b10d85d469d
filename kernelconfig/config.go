// Package kernelconfig is the deployment configuration record: per-asset
// thresholds and ceilings, request periods, fees, and the wrapped asset tag.
// Grounded on native/swap.Config's TOML-tagged record plus its Normalise()
// default-filling convention; amounts are stored as decimal strings the way
// native/swap stores wei amounts, and resolved into *big.Int/fixedpoint.Ratio
// once at load time rather than re-parsed on every call.
package kernelconfig

import (
	"fmt"
	"math/big"
	"strings"

	"vaultbridge/assets"
	"vaultbridge/fixedpoint"
	"vaultbridge/kernelerrors"
)

// AssetConfig carries one collateral asset's thresholds and ceiling as
// decimal strings, the shape a TOML deployment file supplies.
type AssetConfig struct {
	MinimumCollateral    string `toml:"minimum_collateral"`
	Ceiling              string `toml:"ceiling"`
	SecureThreshold      string `toml:"secure_threshold"`
	PremiumThreshold     string `toml:"premium_threshold"`
	LiquidationThreshold string `toml:"liquidation_threshold"`
}

// Config is the full deployment record loaded from TOML via
// github.com/BurntSushi/toml.
type Config struct {
	WrappedAsset string                 `toml:"wrapped_asset"`
	Assets       map[string]AssetConfig `toml:"assets"`

	IssuePeriodBlocks     uint64 `toml:"issue_period_blocks"`
	RedeemPeriodBlocks    uint64 `toml:"redeem_period_blocks"`
	ReplacePeriodBlocks   uint64 `toml:"replace_period_blocks"`
	PunishmentDelayBlocks uint64 `toml:"punishment_delay_blocks"`

	IssueFeeRatio         string `toml:"issue_fee_ratio"`
	RedeemFeeRatio        string `toml:"redeem_fee_ratio"`
	RedeemTransferFeeBTC  string `toml:"redeem_transfer_fee_btc"`
	RefundFeeRatio        string `toml:"refund_fee_ratio"`
	PunishmentFeeRatio    string `toml:"punishment_fee_ratio"`
	RedeemDustAmount      string `toml:"redeem_dust_amount"`
	RedeemPremiumFeeRatio string `toml:"redeem_premium_fee_ratio"`

	// OracleSources lists the authorized oracle feed identifiers at genesis.
	OracleSources []string `toml:"oracle_sources"`
	// OracleMaxDelaySeconds bounds how stale a feed reading may be before
	// it is excluded from the per-tick median.
	OracleMaxDelaySeconds int64 `toml:"oracle_max_delay_seconds"`
}

// Normalise fills unset optional fields with conservative defaults, mirroring
// native/swap.Config.Normalise's default-filling convention. It does not
// validate asset thresholds; call Resolve for that.
func (c Config) Normalise() Config {
	cfg := c
	cfg.Assets = make(map[string]AssetConfig, len(c.Assets))
	for name, a := range c.Assets {
		cfg.Assets[strings.ToUpper(strings.TrimSpace(name))] = a
	}
	if cfg.IssuePeriodBlocks == 0 {
		cfg.IssuePeriodBlocks = 2880 // ~1 day at 30s blocks
	}
	if cfg.RedeemPeriodBlocks == 0 {
		cfg.RedeemPeriodBlocks = 2880
	}
	if cfg.ReplacePeriodBlocks == 0 {
		cfg.ReplacePeriodBlocks = 2880
	}
	if cfg.PunishmentDelayBlocks == 0 {
		cfg.PunishmentDelayBlocks = 2880
	}
	if cfg.OracleMaxDelaySeconds == 0 {
		cfg.OracleMaxDelaySeconds = 1800
	}
	if len(cfg.OracleSources) == 0 {
		cfg.OracleSources = []string{"genesis"}
	}
	return cfg
}

// assetByName resolves the closed assets.ID enum from a deployment-file
// asset name ("DOT", "KSM", "ETH", "WBTC"/"WRAPPED").
func assetByName(name string) (assets.ID, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DOT":
		return assets.DOT, true
	case "KSM":
		return assets.KSM, true
	case "ETH":
		return assets.ETH, true
	case "WBTC", "WRAPPED":
		return assets.Wrapped, true
	default:
		return assets.Invalid, false
	}
}

// parseAmount parses a decimal string into a *big.Int, the same
// trim-then-SetString convention native/swap.parseWeiAmount uses for its
// TOML-sourced wei fields, minus the scientific-notation extension this
// kernel's configuration fields never need.
func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s=%q is not a non-negative integer", kernelerrors.ErrInvalidCurrency, field, value)
	}
	return n, nil
}

// parseRatio parses an "a/b" decimal-ratio string into a fixedpoint.Ratio.
func parseRatio(field, value string) (fixedpoint.Ratio, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fixedpoint.Zero(), nil
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return fixedpoint.Ratio{}, fmt.Errorf("%w: %s=%q must be \"a/b\"", kernelerrors.ErrInvalidCurrency, field, value)
	}
	a, ok := new(big.Int).SetString(strings.TrimSpace(parts[0]), 10)
	if !ok {
		return fixedpoint.Ratio{}, fmt.Errorf("%w: %s numerator %q invalid", kernelerrors.ErrInvalidCurrency, field, parts[0])
	}
	b, ok := new(big.Int).SetString(strings.TrimSpace(parts[1]), 10)
	if !ok {
		return fixedpoint.Ratio{}, fmt.Errorf("%w: %s denominator %q invalid", kernelerrors.ErrInvalidCurrency, field, parts[1])
	}
	ratio, err := fixedpoint.RatioOfBigInt(a, b)
	if err != nil {
		return fixedpoint.Ratio{}, fmt.Errorf("%s: %w", field, err)
	}
	return ratio, nil
}

// Resolved is the parsed, validated form of Config that vaultregistry and
// the request-machine packages actually consult; parsing happens once at
// load time rather than on every threshold check.
type Resolved struct {
	wrappedAsset assets.ID

	minCollateral map[assets.ID]*big.Int
	ceiling       map[assets.ID]*big.Int
	secure        map[assets.ID]fixedpoint.Ratio
	premium       map[assets.ID]fixedpoint.Ratio
	liquidation   map[assets.ID]fixedpoint.Ratio

	issuePeriodBlocks     uint64
	redeemPeriodBlocks    uint64
	replacePeriodBlocks   uint64
	punishmentDelayBlocks uint64

	issueFeeRatio         fixedpoint.Ratio
	redeemFeeRatio        fixedpoint.Ratio
	redeemTransferFeeBTC  *big.Int
	refundFeeRatio        fixedpoint.Ratio
	punishmentFeeRatio    fixedpoint.Ratio
	redeemDustAmount      *big.Int
	redeemPremiumFeeRatio fixedpoint.Ratio

	OracleSources         []string
	OracleMaxDelaySeconds int64
}

// Resolve normalises and validates the raw TOML record, parsing every
// decimal/ratio field and checking spec.md §4.6's secure > premium >
// liquidation > 1 threshold ordering per configured asset. A deployment
// file that fails this check is rejected before the kernel ever starts,
// rather than surfacing as a runtime ThresholdNotSet further downstream.
func (c Config) Resolve() (*Resolved, error) {
	cfg := c.Normalise()
	wrapped, ok := assetByName(cfg.WrappedAsset)
	if !ok {
		return nil, fmt.Errorf("%w: unknown wrapped_asset %q", kernelerrors.ErrInvalidCurrency, cfg.WrappedAsset)
	}

	r := &Resolved{
		wrappedAsset:  wrapped,
		minCollateral: make(map[assets.ID]*big.Int),
		ceiling:       make(map[assets.ID]*big.Int),
		secure:        make(map[assets.ID]fixedpoint.Ratio),
		premium:       make(map[assets.ID]fixedpoint.Ratio),
		liquidation:   make(map[assets.ID]fixedpoint.Ratio),

		issuePeriodBlocks:     cfg.IssuePeriodBlocks,
		redeemPeriodBlocks:    cfg.RedeemPeriodBlocks,
		replacePeriodBlocks:   cfg.ReplacePeriodBlocks,
		punishmentDelayBlocks: cfg.PunishmentDelayBlocks,
		OracleSources:         append([]string(nil), cfg.OracleSources...),
		OracleMaxDelaySeconds: cfg.OracleMaxDelaySeconds,
	}

	for name, a := range cfg.Assets {
		asset, ok := assetByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown asset %q in deployment config", kernelerrors.ErrInvalidCurrency, name)
		}
		minCollateral, err := parseAmount(name+".minimum_collateral", a.MinimumCollateral)
		if err != nil {
			return nil, err
		}
		r.minCollateral[asset] = minCollateral

		if strings.TrimSpace(a.Ceiling) != "" {
			ceiling, err := parseAmount(name+".ceiling", a.Ceiling)
			if err != nil {
				return nil, err
			}
			r.ceiling[asset] = ceiling
		}

		secure, err := parseRatio(name+".secure_threshold", a.SecureThreshold)
		if err != nil {
			return nil, err
		}
		premium, err := parseRatio(name+".premium_threshold", a.PremiumThreshold)
		if err != nil {
			return nil, err
		}
		liquidation, err := parseRatio(name+".liquidation_threshold", a.LiquidationThreshold)
		if err != nil {
			return nil, err
		}
		one := fixedpoint.One()
		if secure.Cmp(premium) <= 0 || premium.Cmp(liquidation) <= 0 || liquidation.Cmp(one) <= 0 {
			return nil, fmt.Errorf("%w: asset %s thresholds must satisfy secure > premium > liquidation > 1 (got %s, %s, %s)",
				kernelerrors.ErrInvalidCurrency, name, secure, premium, liquidation)
		}
		r.secure[asset] = secure
		r.premium[asset] = premium
		r.liquidation[asset] = liquidation
	}

	issueFee, err := parseRatio("issue_fee_ratio", cfg.IssueFeeRatio)
	if err != nil {
		return nil, err
	}
	redeemFee, err := parseRatio("redeem_fee_ratio", cfg.RedeemFeeRatio)
	if err != nil {
		return nil, err
	}
	redeemTransferFeeBTC, err := parseAmount("redeem_transfer_fee_btc", cfg.RedeemTransferFeeBTC)
	if err != nil {
		return nil, err
	}
	refundFee, err := parseRatio("refund_fee_ratio", cfg.RefundFeeRatio)
	if err != nil {
		return nil, err
	}
	punishmentFee, err := parseRatio("punishment_fee_ratio", cfg.PunishmentFeeRatio)
	if err != nil {
		return nil, err
	}
	redeemDust, err := parseAmount("redeem_dust_amount", cfg.RedeemDustAmount)
	if err != nil {
		return nil, err
	}
	redeemPremiumFee, err := parseRatio("redeem_premium_fee_ratio", cfg.RedeemPremiumFeeRatio)
	if err != nil {
		return nil, err
	}
	r.issueFeeRatio = issueFee
	r.redeemFeeRatio = redeemFee
	r.redeemTransferFeeBTC = redeemTransferFeeBTC
	r.refundFeeRatio = refundFee
	r.punishmentFeeRatio = punishmentFee
	r.redeemDustAmount = redeemDust
	r.redeemPremiumFeeRatio = redeemPremiumFee
	return r, nil
}

// IssuePeriodBlocks implements requests/issue.Config.
func (r *Resolved) IssuePeriodBlocks() uint64 { return r.issuePeriodBlocks }

// IssueFeeRatio implements requests/issue.Config.
func (r *Resolved) IssueFeeRatio() fixedpoint.Ratio { return r.issueFeeRatio }

// RedeemPeriodBlocks implements requests/redeem.Config.
func (r *Resolved) RedeemPeriodBlocks() uint64 { return r.redeemPeriodBlocks }

// RedeemFeeRatio implements requests/redeem.Config.
func (r *Resolved) RedeemFeeRatio() fixedpoint.Ratio { return r.redeemFeeRatio }

// RedeemTransferFeeBTC implements requests/redeem.Config.
func (r *Resolved) RedeemTransferFeeBTC() *big.Int { return r.redeemTransferFeeBTC }

// RedeemDustAmount implements requests/redeem.Config.
func (r *Resolved) RedeemDustAmount() *big.Int { return r.redeemDustAmount }

// RedeemPremiumFeeRatio implements requests/redeem.Config.
func (r *Resolved) RedeemPremiumFeeRatio() fixedpoint.Ratio { return r.redeemPremiumFeeRatio }

// PunishmentFeeRatio implements requests/redeem.Config.
func (r *Resolved) PunishmentFeeRatio() fixedpoint.Ratio { return r.punishmentFeeRatio }

// PunishmentDelayBlocks implements requests/redeem.Config.
func (r *Resolved) PunishmentDelayBlocks() uint64 { return r.punishmentDelayBlocks }

// ReplacePeriodBlocks implements requests/replace.Config.
func (r *Resolved) ReplacePeriodBlocks() uint64 { return r.replacePeriodBlocks }

// RefundFeeRatio implements requests/refund.Config.
func (r *Resolved) RefundFeeRatio() fixedpoint.Ratio { return r.refundFeeRatio }

// WrappedAsset implements vaultregistry.Config.
func (r *Resolved) WrappedAsset() assets.ID { return r.wrappedAsset }

// MinimumCollateralVault implements vaultregistry.Config.
func (r *Resolved) MinimumCollateralVault(asset assets.ID) *big.Int {
	if v, ok := r.minCollateral[asset]; ok {
		return v
	}
	return big.NewInt(0)
}

// SystemCollateralCeiling implements vaultregistry.Config.
func (r *Resolved) SystemCollateralCeiling(asset assets.ID) (*big.Int, bool) {
	v, ok := r.ceiling[asset]
	return v, ok
}

// SecureCollateralThreshold implements vaultregistry.Config.
func (r *Resolved) SecureCollateralThreshold(asset assets.ID) (fixedpoint.Ratio, bool) {
	v, ok := r.secure[asset]
	return v, ok
}

// PremiumRedeemThreshold implements vaultregistry.Config.
func (r *Resolved) PremiumRedeemThreshold(asset assets.ID) (fixedpoint.Ratio, bool) {
	v, ok := r.premium[asset]
	return v, ok
}

// LiquidationCollateralThreshold implements vaultregistry.Config.
func (r *Resolved) LiquidationCollateralThreshold(asset assets.ID) (fixedpoint.Ratio, bool) {
	v, ok := r.liquidation[asset]
	return v, ok
}

// AdjustSecureCollateralThreshold implements the root-only
// adjust_secure_collateral_threshold command.
func (r *Resolved) AdjustSecureCollateralThreshold(asset assets.ID, ratio fixedpoint.Ratio) {
	r.secure[asset] = ratio
}

// AdjustPremiumRedeemThreshold implements the root-only
// adjust_premium_redeem_threshold command.
func (r *Resolved) AdjustPremiumRedeemThreshold(asset assets.ID, ratio fixedpoint.Ratio) {
	r.premium[asset] = ratio
}

// AdjustLiquidationCollateralThreshold implements the root-only
// adjust_liquidation_collateral_threshold command.
func (r *Resolved) AdjustLiquidationCollateralThreshold(asset assets.ID, ratio fixedpoint.Ratio) {
	r.liquidation[asset] = ratio
}

// AdjustCollateralCeiling implements the root-only
// adjust_collateral_ceiling command.
func (r *Resolved) AdjustCollateralCeiling(asset assets.ID, ceiling *big.Int) {
	r.ceiling[asset] = ceiling
}

// SetIssuePeriod implements the root-only set_issue_period command.
func (r *Resolved) SetIssuePeriod(blocks uint64) { r.issuePeriodBlocks = blocks }

// SetRedeemPeriod implements the root-only set_redeem_period command.
func (r *Resolved) SetRedeemPeriod(blocks uint64) { r.redeemPeriodBlocks = blocks }

// SetReplacePeriod implements the root-only set_replace_period command.
func (r *Resolved) SetReplacePeriod(blocks uint64) { r.replacePeriodBlocks = blocks }
