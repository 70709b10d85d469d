package vaultregistry

import (
	"math/big"

	"vaultbridge/assets"
	coretypes "vaultbridge/core/types"
	"vaultbridge/crypto"
	"vaultbridge/currency"
	"vaultbridge/events"
	"vaultbridge/fixedpoint"
	"vaultbridge/kernelerrors"
	"vaultbridge/oracle"
	"vaultbridge/rewardpool"
)

// Config is the narrow getter interface the registry consults for
// deployment-specific thresholds, ceilings, and the wrapped asset tag, per
// SPEC_FULL.md's "deep generic configuration becomes an explicit
// configuration record" design note. kernelconfig.Config implements this.
type Config interface {
	MinimumCollateralVault(asset assets.ID) *big.Int
	SystemCollateralCeiling(asset assets.ID) (*big.Int, bool)
	SecureCollateralThreshold(asset assets.ID) (fixedpoint.Ratio, bool)
	PremiumRedeemThreshold(asset assets.ID) (fixedpoint.Ratio, bool)
	LiquidationCollateralThreshold(asset assets.ID) (fixedpoint.Ratio, bool)
	WrappedAsset() assets.ID
}

// Registry is the vault ledger: per-vault token columns and collateral,
// threshold checks, liquidation, and deposit-address reservation. Grounded
// on native/lending.Engine, generalized from one market to many
// (collateral-asset, vault) pairs.
type Registry struct {
	cfg     Config
	ledger  *currency.Ledger
	staking *rewardpool.Staking
	oracle  *oracle.Aggregator

	vaults           map[string]*Vault
	depositAddresses map[string]string // bech32/hex deposit address -> vault key
	totalCollateral  map[assets.ID]*big.Int
	liquidation      map[assets.ID]*LiquidationVault

	pending []*coretypes.Event
}

// New constructs an empty registry over the given ledger, staking pool,
// oracle, and configuration.
func New(cfg Config, ledger *currency.Ledger, staking *rewardpool.Staking, agg *oracle.Aggregator) *Registry {
	return &Registry{
		cfg:              cfg,
		ledger:           ledger,
		staking:          staking,
		oracle:           agg,
		vaults:           make(map[string]*Vault),
		depositAddresses: make(map[string]string),
		totalCollateral:  make(map[assets.ID]*big.Int),
		liquidation:      make(map[assets.ID]*LiquidationVault),
	}
}

func vaultKey(account crypto.Address) string { return account.String() }

func (r *Registry) totalFor(asset assets.ID) *big.Int {
	if t, ok := r.totalCollateral[asset]; ok {
		return t
	}
	return big.NewInt(0)
}

// Vault looks up a registered vault, failing with ErrVaultNotFound.
func (r *Registry) Vault(account crypto.Address) (*Vault, error) {
	v, ok := r.vaults[vaultKey(account)]
	if !ok {
		return nil, kernelerrors.ErrVaultNotFound
	}
	return v, nil
}

func (r *Registry) emit(e *coretypes.Event) {
	r.pending = append(r.pending, e)
}

// DrainEvents returns and clears every event emitted since the last drain.
// The kernel dispatcher calls this after a command commits successfully.
func (r *Registry) DrainEvents() []*coretypes.Event {
	out := r.pending
	r.pending = nil
	return out
}

// TotalUserVaultCollateral returns the global backing total for a
// collateral asset (spec.md §3 invariant 4's right-hand side).
func (r *Registry) TotalUserVaultCollateral(asset assets.ID) *big.Int {
	return new(big.Int).Set(r.totalFor(asset))
}

// RegisterVault implements _register_vault: fails VaultAlreadyRegistered if
// present, InsufficientCollateral if under the configured minimum, else
// creates the Active vault and deposits its opening collateral.
func (r *Registry) RegisterVault(account crypto.Address, collateral *big.Int, collateralAsset assets.ID, btcPubKey []byte) error {
	key := vaultKey(account)
	if _, exists := r.vaults[key]; exists {
		return kernelerrors.ErrVaultAlreadyRegistered
	}
	min := r.cfg.MinimumCollateralVault(collateralAsset)
	if min != nil && collateral.Cmp(min) < 0 {
		return kernelerrors.ErrInsufficientCollateral
	}
	v := newVault(account, collateralAsset, btcPubKey)
	r.vaults[key] = v
	if err := r.DepositCollateral(account, collateral); err != nil {
		delete(r.vaults, key)
		return err
	}
	r.emit(events.New(events.TypeVaultRegistered, map[string]string{
		"vault": account.String(), "collateral_asset": collateralAsset.String(), "collateral": collateral.String(),
	}))
	return nil
}

// DepositCollateral implements try_deposit_collateral: the vault must be
// Active; the post-deposit total must not exceed the system collateral
// ceiling; the amount moves from the vault's free balance to locked and is
// deposited into the vault's own staking-pool self-stake.
func (r *Registry) DepositCollateral(account crypto.Address, amount *big.Int) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	if v.Status != StatusActive {
		return kernelerrors.ErrVaultBanned
	}
	asset := v.CollateralAsset
	projected := new(big.Int).Add(r.totalFor(asset), amount)
	if ceiling, ok := r.cfg.SystemCollateralCeiling(asset); ok && ceiling != nil {
		if projected.Cmp(ceiling) > 0 {
			return kernelerrors.ErrCurrencyCeilingExceeded
		}
	}
	amt := assets.New(amount, asset)
	if err := r.ledger.Lock(account, amt); err != nil {
		return err
	}
	if err := r.staking.DepositStake(asset, account, account, amount); err != nil {
		return err
	}
	r.totalCollateral[asset] = projected
	r.emit(events.New(events.TypeCollateralDeposited, map[string]string{
		"vault": account.String(), "asset": asset.String(), "amount": amount.String(),
	}))
	return nil
}

// WithdrawCollateral implements try_withdraw_collateral: the vault must
// remain above secure_threshold after the withdrawal and the max-nomination
// ratio invariant must hold; on success it is symmetric to deposit.
func (r *Registry) WithdrawCollateral(account crypto.Address, amount *big.Int) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	asset := v.CollateralAsset
	selfStake := r.staking.CurrentValue(asset, account, account)
	if selfStake.Cmp(amount) < 0 {
		return kernelerrors.ErrInsufficientCollateral
	}
	remaining := new(big.Int).Sub(selfStake, amount)
	secure, ok := r.cfg.SecureCollateralThreshold(asset)
	if !ok {
		return kernelerrors.ErrThresholdNotSet
	}
	backed := v.BackedTokens()
	if backed.Sign() > 0 {
		converted, err := r.oracle.Convert(assets.New(remaining, asset), r.cfg.WrappedAsset())
		if err != nil {
			return err
		}
		required := secure.MulIntCeil(backed)
		if converted.Raw.Cmp(required) < 0 {
			return kernelerrors.ErrInsufficientCollateral
		}
	}
	if err := r.checkMaxNominationRatio(v, asset, remaining); err != nil {
		return err
	}
	if err := r.staking.WithdrawStake(asset, account, account, amount); err != nil {
		return err
	}
	if err := r.ledger.Unlock(account, assets.New(amount, asset)); err != nil {
		return err
	}
	r.totalCollateral[asset] = new(big.Int).Sub(r.totalFor(asset), amount)
	r.emit(events.New(events.TypeCollateralWithdrawn, map[string]string{
		"vault": account.String(), "asset": asset.String(), "amount": amount.String(),
	}))
	return nil
}

// checkMaxNominationRatio enforces spec.md §4.6's MaxNominationRatio =
// secure_threshold/premium_threshold − 1: the collateral nominated by
// others must never exceed the vault's own self-stake by more than this
// ratio, so the vault operator always carries meaningful skin in the game.
func (r *Registry) checkMaxNominationRatio(v *Vault, asset assets.ID, selfRemaining *big.Int) error {
	secure, ok := r.cfg.SecureCollateralThreshold(asset)
	if !ok {
		return kernelerrors.ErrThresholdNotSet
	}
	premium, ok := r.cfg.PremiumRedeemThreshold(asset)
	if !ok {
		return kernelerrors.ErrThresholdNotSet
	}
	if premium.Sign() == 0 {
		return kernelerrors.ErrThresholdNotSet
	}
	ratioPlusOne, err := secure.Div(premium)
	if err != nil {
		return err
	}
	maxRatio, err := ratioPlusOne.Sub(fixedpoint.One())
	if err != nil {
		maxRatio = fixedpoint.Zero()
	}
	total := r.staking.TotalStake(asset, v.Account)
	nominated := new(big.Int).Sub(total, r.staking.Stake(asset, v.Account, v.Account))
	if nominated.Sign() <= 0 || selfRemaining.Sign() == 0 {
		return nil
	}
	limit := maxRatio.MulIntFloor(selfRemaining)
	if nominated.Cmp(limit) > 0 {
		return kernelerrors.ErrMaxNominationRatioViolation
	}
	return nil
}

// IssuableTokens computes issuable_tokens = min(backed capacity at secure
// threshold, collateral ceiling capacity) − issued − to_be_issued.
func (r *Registry) IssuableTokens(account crypto.Address) (*big.Int, error) {
	v, err := r.Vault(account)
	if err != nil {
		return nil, err
	}
	asset := v.CollateralAsset
	secure, ok := r.cfg.SecureCollateralThreshold(asset)
	if !ok {
		return nil, kernelerrors.ErrThresholdNotSet
	}
	backing := r.staking.CurrentValue(asset, account, account)
	converted, err := r.oracle.Convert(assets.New(backing, asset), r.cfg.WrappedAsset())
	if err != nil {
		return nil, err
	}
	// backed_capacity_at_secure_threshold = converted_collateral / secure_threshold
	secureCapacity, err := divRatio(converted.Raw, secure)
	if err != nil {
		return nil, err
	}
	capacityLimit := secureCapacity
	if ceiling, ok := r.cfg.SystemCollateralCeiling(asset); ok && ceiling != nil {
		remainingCeiling := new(big.Int).Sub(ceiling, r.totalFor(asset))
		if remainingCeiling.Sign() < 0 {
			remainingCeiling = big.NewInt(0)
		}
		ceilingConverted, err := r.oracle.Convert(assets.New(remainingCeiling, asset), r.cfg.WrappedAsset())
		if err != nil {
			return nil, err
		}
		if ceilingConverted.Raw.Cmp(capacityLimit) < 0 {
			capacityLimit = ceilingConverted.Raw
		}
	}
	usable := new(big.Int).Sub(capacityLimit, v.BackedTokens())
	if usable.Sign() < 0 {
		usable = big.NewInt(0)
	}
	return usable, nil
}

// divRatio computes x / ratio as an integer, floor rounding.
func divRatio(x *big.Int, ratio fixedpoint.Ratio) (*big.Int, error) {
	if ratio.Sign() == 0 {
		return nil, kernelerrors.ErrArithmeticOverflow
	}
	num := new(big.Int).Mul(x, fixedpoint.Accuracy)
	return num.Quo(num, ratio.Inner), nil
}

// IncreaseToBeIssued implements try_increase_to_be_issued_tokens: the vault
// must be Active and accepting new issues, and the requested amount must not
// exceed IssuableTokens.
func (r *Registry) IncreaseToBeIssued(account crypto.Address, amount *big.Int) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	if v.Status != StatusActive || !v.AcceptsNewIssues {
		return kernelerrors.ErrVaultBanned
	}
	issuable, err := r.IssuableTokens(account)
	if err != nil {
		return err
	}
	if amount.Cmp(issuable) > 0 {
		return kernelerrors.ErrExceedingVaultLimit
	}
	next := v.clone()
	next.ToBeIssued = new(big.Int).Add(next.ToBeIssued, amount)
	if err := next.checkColumnInvariants(); err != nil {
		return err
	}
	r.vaults[vaultKey(account)] = next
	return nil
}

// DecreaseToBeIssued implements decrease_to_be_issued_tokens.
func (r *Registry) DecreaseToBeIssued(account crypto.Address, amount *big.Int) error {
	return r.adjustColumn(account, func(next *Vault) error {
		if next.ToBeIssued.Cmp(amount) < 0 {
			return kernelerrors.ErrInsufficientTokensCommitted
		}
		next.ToBeIssued = new(big.Int).Sub(next.ToBeIssued, amount)
		return nil
	})
}

// Issue implements issue_tokens: moves amount from to_be_issued to issued.
func (r *Registry) Issue(account crypto.Address, amount *big.Int) error {
	return r.adjustColumn(account, func(next *Vault) error {
		if next.ToBeIssued.Cmp(amount) < 0 {
			return kernelerrors.ErrInsufficientTokensCommitted
		}
		next.ToBeIssued = new(big.Int).Sub(next.ToBeIssued, amount)
		next.Issued = new(big.Int).Add(next.Issued, amount)
		return nil
	})
}

// IncreaseToBeRedeemed implements try_increase_to_be_redeemed_tokens.
func (r *Registry) IncreaseToBeRedeemed(account crypto.Address, amount *big.Int) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	if amount.Cmp(v.Redeemable()) > 0 {
		return kernelerrors.ErrExceedingVaultLimit
	}
	return r.adjustColumn(account, func(next *Vault) error {
		next.ToBeRedeemed = new(big.Int).Add(next.ToBeRedeemed, amount)
		return nil
	})
}

// DecreaseToBeRedeemed implements decrease_to_be_redeemed_tokens.
func (r *Registry) DecreaseToBeRedeemed(account crypto.Address, amount *big.Int) error {
	return r.adjustColumn(account, func(next *Vault) error {
		if next.ToBeRedeemed.Cmp(amount) < 0 {
			return kernelerrors.ErrInsufficientTokensCommitted
		}
		next.ToBeRedeemed = new(big.Int).Sub(next.ToBeRedeemed, amount)
		return nil
	})
}

// DecreaseTokens implements decrease_tokens: drops issued and to_be_redeemed
// together (used on redeem/replace completion).
func (r *Registry) DecreaseTokens(account crypto.Address, amount *big.Int) error {
	return r.adjustColumn(account, func(next *Vault) error {
		if next.Issued.Cmp(amount) < 0 || next.ToBeRedeemed.Cmp(amount) < 0 {
			return kernelerrors.ErrInsufficientTokensCommitted
		}
		next.Issued = new(big.Int).Sub(next.Issued, amount)
		next.ToBeRedeemed = new(big.Int).Sub(next.ToBeRedeemed, amount)
		return nil
	})
}

// IncreaseToBeReplaced implements try_increase_to_be_replaced_tokens, capped
// by issued − to_be_replaced − to_be_redeemed.
func (r *Registry) IncreaseToBeReplaced(account crypto.Address, amount *big.Int) (*big.Int, error) {
	v, err := r.Vault(account)
	if err != nil {
		return nil, err
	}
	capacity := v.ReplaceCapacity()
	accepted := amount
	if accepted.Cmp(capacity) > 0 {
		accepted = capacity
	}
	if accepted.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	err = r.adjustColumn(account, func(next *Vault) error {
		next.ToBeReplaced = new(big.Int).Add(next.ToBeReplaced, accepted)
		return nil
	})
	return accepted, err
}

// DecreaseToBeReplaced implements decrease_to_be_replaced_tokens.
func (r *Registry) DecreaseToBeReplaced(account crypto.Address, amount *big.Int) error {
	return r.adjustColumn(account, func(next *Vault) error {
		if next.ToBeReplaced.Cmp(amount) < 0 {
			next.ToBeReplaced = big.NewInt(0)
			return nil
		}
		next.ToBeReplaced = new(big.Int).Sub(next.ToBeReplaced, amount)
		return nil
	})
}

// adjustColumn is the shared commit protocol every token-column update uses:
// clone, mutate, validate, and only then replace the stored vault. A failed
// invariant check leaves the stored vault untouched, matching spec.md §5's
// all-or-nothing-per-command rule at the registry's finest grain.
func (r *Registry) adjustColumn(account crypto.Address, mutate func(*Vault) error) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	next := v.clone()
	if err := mutate(next); err != nil {
		return err
	}
	if err := next.checkColumnInvariants(); err != nil {
		return err
	}
	r.vaults[vaultKey(account)] = next
	return nil
}

// RegisterAddress reserves a fresh BTC deposit address for the vault.
// Reservation is append-only and globally unique (spec.md §3 invariant 5).
func (r *Registry) RegisterAddress(account crypto.Address, address string) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	if owner, exists := r.depositAddresses[address]; exists {
		if owner != vaultKey(account) {
			return kernelerrors.ErrReservedDepositAddress
		}
		return nil
	}
	r.depositAddresses[address] = vaultKey(account)
	v.DepositAddresses = append(v.DepositAddresses, address)
	return nil
}

// AddressOwner resolves a reserved deposit address back to its vault.
func (r *Registry) AddressOwner(address string) (crypto.Address, error) {
	key, ok := r.depositAddresses[address]
	if !ok {
		return crypto.Address{}, kernelerrors.ErrVaultNotFound
	}
	v, ok := r.vaults[key]
	if !ok {
		return crypto.Address{}, kernelerrors.ErrVaultNotFound
	}
	return v.Account, nil
}

// UpdatePublicKey rotates a vault's BTC public key.
func (r *Registry) UpdatePublicKey(account crypto.Address, pubKey []byte) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	if len(pubKey) == 0 {
		return kernelerrors.ErrInvalidPublicKey
	}
	v.BTCPublicKey = append([]byte(nil), pubKey...)
	return nil
}

// SetAcceptsNewIssues toggles whether the vault accepts new issue
// reservations, without affecting in-flight ones.
func (r *Registry) SetAcceptsNewIssues(account crypto.Address, accept bool) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	v.AcceptsNewIssues = accept
	return nil
}

// Ban marks the vault banned until the given host height.
func (r *Registry) Ban(account crypto.Address, untilHeight uint64) error {
	v, err := r.Vault(account)
	if err != nil {
		return err
	}
	v.BannedUntil = untilHeight
	r.emit(events.New(events.TypeVaultBanned, map[string]string{
		"vault": account.String(),
	}))
	return nil
}

// CalculateCollateral returns ⌊c·n/d⌋ with the special rule that n == d == 0
// returns c unchanged. Used everywhere liquidated collateral is apportioned
// to a partial redeem (spec.md §4.6).
func CalculateCollateral(c, n, d *big.Int) *big.Int {
	if n.Sign() == 0 && d.Sign() == 0 {
		return new(big.Int).Set(c)
	}
	if d.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(c, n)
	return out.Quo(out, d)
}
