// Package redeem implements the redeem request state machine (spec.md
// §4.8): a user burns wrapped tokens and a vault pays BTC back, with premium
// compensation when the vault is undercollateralized and a punishment path
// when the vault fails to deliver in time. Grounded on native/escrow's
// case lifecycle and id scheme, same as the issue package.
package redeem

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"vaultbridge/assets"
	"vaultbridge/btcrelay"
	coretypes "vaultbridge/core/types"
	"vaultbridge/crypto"
	"vaultbridge/currency"
	"vaultbridge/events"
	"vaultbridge/fixedpoint"
	"vaultbridge/kernelerrors"
	"vaultbridge/vaultregistry"
)

// Status is a RedeemRequest's lifecycle state.
type Status int

const (
	StatusPending Status = iota
	StatusCompleted
	StatusReimbursed
	StatusRetried
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusReimbursed:
		return "reimbursed"
	case StatusRetried:
		return "retried"
	default:
		return "unknown"
	}
}

// Request is one redeem request's persisted record.
type Request struct {
	ID              string
	User            crypto.Address
	Vault           crypto.Address
	AmountWrapped   *big.Int
	Fee             *big.Int
	TransferFeeBTC  *big.Int
	AmountBTC       *big.Int
	BTCAddress      string
	Premium         *big.Int
	OpenTime        uint64
	Period          uint64
	BTCExpiryHeight uint64
	Status          Status
	// ReimbursedFully records whether a reimburse=true cancellation found
	// the vault able to remint equivalent tokens (Reimbursed(true) in
	// spec.md §4.8) or not (Reimbursed(false)).
	ReimbursedFully bool
}

// Config is the narrow getter interface the machine consults.
type Config interface {
	RedeemPeriodBlocks() uint64
	RedeemFeeRatio() fixedpoint.Ratio
	RedeemTransferFeeBTC() *big.Int
	RedeemDustAmount() *big.Int
	RedeemPremiumFeeRatio() fixedpoint.Ratio
	PunishmentFeeRatio() fixedpoint.Ratio
	PunishmentDelayBlocks() uint64
	WrappedAsset() assets.ID
}

// Machine is the redeem request store plus the registry/ledger/relay it
// mutates.
type Machine struct {
	cfg      Config
	registry *vaultregistry.Registry
	ledger   *currency.Ledger
	relay    btcrelay.Verifier

	requests map[string]*Request
	nonce    uint64
	pending  []*coretypes.Event
}

// New constructs a redeem machine.
func New(cfg Config, registry *vaultregistry.Registry, ledger *currency.Ledger, relay btcrelay.Verifier) *Machine {
	return &Machine{cfg: cfg, registry: registry, ledger: ledger, relay: relay, requests: make(map[string]*Request)}
}

func (m *Machine) emit(e *coretypes.Event) { m.pending = append(m.pending, e) }

// DrainEvents returns and clears every event emitted since the last drain.
func (m *Machine) DrainEvents() []*coretypes.Event {
	out := m.pending
	m.pending = nil
	return out
}

// Request looks up a persisted request, failing with ErrRequestNotFound.
func (m *Machine) Request(id string) (*Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, kernelerrors.ErrRequestNotFound
	}
	return r, nil
}

func (m *Machine) nextID(user, vault crypto.Address) string {
	m.nonce++
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], m.nonce)
	h := ethcrypto.Keccak256Hash(user.Bytes(), vault.Bytes(), nonceBytes[:])
	return h.Hex()
}

// RequestRedeem implements request_redeem: burns the user's wrapped tokens
// immediately, reserves to_be_redeemed on the vault, and records a premium
// payable if the vault is already below the premium redeem threshold.
func (m *Machine) RequestRedeem(user, vault crypto.Address, amountWrapped *big.Int, btcAddress string, currentHeight, relayTip uint64) (*Request, error) {
	if amountWrapped.Cmp(m.cfg.RedeemDustAmount()) < 0 {
		return nil, kernelerrors.ErrAmountBelowDustAmount
	}
	v, err := m.registry.Vault(vault)
	if err != nil {
		return nil, err
	}
	if v.Status != vaultregistry.StatusActive {
		return nil, kernelerrors.ErrVaultBanned
	}

	fee := m.cfg.RedeemFeeRatio().MulIntFloor(amountWrapped)
	transferFeeBTC := m.cfg.RedeemTransferFeeBTC()
	amountBTC := new(big.Int).Sub(amountWrapped, fee)
	amountBTC.Sub(amountBTC, transferFeeBTC)
	if amountBTC.Sign() <= 0 {
		return nil, kernelerrors.ErrAmountBelowDustAmount
	}

	if err := m.ledger.Burn(user, assets.New(amountWrapped, m.cfg.WrappedAsset())); err != nil {
		return nil, err
	}
	toReserve := new(big.Int).Sub(amountWrapped, fee)
	if err := m.registry.IncreaseToBeRedeemed(vault, toReserve); err != nil {
		return nil, err
	}

	premium := big.NewInt(0)
	below, err := m.registry.IsBelowPremiumThreshold(vault)
	if err != nil && err != kernelerrors.ErrThresholdNotSet {
		return nil, err
	}
	if below {
		premium = m.cfg.RedeemPremiumFeeRatio().MulIntFloor(amountWrapped)
	}

	id := m.nextID(user, vault)
	period := m.cfg.RedeemPeriodBlocks()
	req := &Request{
		ID:              id,
		User:            user,
		Vault:           vault,
		AmountWrapped:   new(big.Int).Set(amountWrapped),
		Fee:             fee,
		TransferFeeBTC:  new(big.Int).Set(transferFeeBTC),
		AmountBTC:       amountBTC,
		BTCAddress:      btcAddress,
		Premium:         premium,
		OpenTime:        currentHeight,
		Period:          period,
		BTCExpiryHeight: m.relay.BitcoinExpiryHeight(relayTip, period),
		Status:          StatusPending,
	}
	m.requests[id] = req
	m.emit(events.RedeemRequested(id, user.String(), vault.String(), amountWrapped.String(), btcAddress))
	return req, nil
}

// ExecuteRedeem implements execute_redeem: verifies the BTC payout, then
// completes the token-side bookkeeping (decrease columns, pay any premium,
// release any pro-rata liquidated-collateral share, mint the fee).
func (m *Machine) ExecuteRedeem(redeemID string, proof btcrelay.Proof, rawTx []byte) (*Request, error) {
	req, err := m.Request(redeemID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, kernelerrors.ErrRequestCompleted
	}
	if !req.AmountBTC.IsUint64() {
		return nil, kernelerrors.ErrTryIntoIntError
	}
	if err := m.relay.VerifyAndValidateOpReturnTransaction(proof, rawTx, req.BTCAddress, req.AmountBTC.Uint64(), []byte(redeemID)); err != nil {
		return nil, err
	}

	burned := new(big.Int).Sub(req.AmountWrapped, req.Fee)
	v, err := m.registry.Vault(req.Vault)
	if err != nil {
		return nil, err
	}
	if err := m.registry.DecreaseTokens(req.Vault, burned); err != nil {
		return nil, err
	}

	if req.Premium.Sign() > 0 {
		if v.Status == vaultregistry.StatusActive {
			from := vaultregistry.Source{Kind: vaultregistry.SourceCollateral, Account: req.Vault}
			to := vaultregistry.Source{Kind: vaultregistry.SourceFreeBalance, Account: req.User}
			if err := m.registry.TransferFunds(from, to, req.Premium, v.CollateralAsset); err != nil {
				return nil, err
			}
		} else {
			share := vaultregistry.CalculateCollateral(v.LiquidatedCollateral, burned, v.ToBeRedeemed)
			if share.Sign() > 0 {
				from := vaultregistry.Source{Kind: vaultregistry.SourceLiquidatedCollateral, Account: req.Vault}
				to := vaultregistry.Source{Kind: vaultregistry.SourceFreeBalance, Account: req.User}
				if err := m.registry.TransferFunds(from, to, share, v.CollateralAsset); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := m.ledger.Deposit(vaultregistry.FeePoolAccount(m.cfg.WrappedAsset()), assets.New(req.Fee, m.cfg.WrappedAsset())); err != nil {
		return nil, err
	}
	req.Status = StatusCompleted
	m.emit(events.RedeemCompleted(req.ID, req.Vault.String(), req.AmountWrapped.String(), req.Premium.String()))
	return req, nil
}

// CancelRedeem implements cancel_redeem: only after expiry. Both outcomes
// ban the vault for PunishmentDelay blocks and transfer punishment
// collateral from the vault to the user.
func (m *Machine) CancelRedeem(redeemID string, reimburse bool, currentHeight, relayTip uint64) (*Request, error) {
	req, err := m.Request(redeemID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, kernelerrors.ErrRequestCompleted
	}
	if currentHeight <= req.OpenTime+req.Period || relayTip < req.BTCExpiryHeight {
		return nil, kernelerrors.ErrTimeNotExpired
	}
	v, err := m.registry.Vault(req.Vault)
	if err != nil {
		return nil, err
	}

	punishment := m.cfg.PunishmentFeeRatio().MulIntCeil(req.AmountWrapped)
	if punishment.Sign() > 0 {
		from := vaultregistry.Source{Kind: vaultregistry.SourceCollateral, Account: req.Vault}
		to := vaultregistry.Source{Kind: vaultregistry.SourceFreeBalance, Account: req.User}
		if err := m.registry.TransferFunds(from, to, punishment, v.CollateralAsset); err != nil {
			return nil, err
		}
	}
	if err := m.registry.Ban(req.Vault, currentHeight+m.cfg.PunishmentDelayBlocks()); err != nil {
		return nil, err
	}

	burned := new(big.Int).Sub(req.AmountWrapped, req.Fee)
	outcome := "retried"
	if reimburse {
		if err := m.registry.DecreaseToBeRedeemed(req.Vault, burned); err != nil {
			return nil, err
		}
		if err := m.ledger.Deposit(req.User, assets.New(req.AmountWrapped, m.cfg.WrappedAsset())); err != nil {
			return nil, err
		}
		issuable, err := m.registry.IssuableTokens(req.Vault)
		if err == nil && issuable.Cmp(burned) >= 0 {
			if err := m.registry.IncreaseToBeIssued(req.Vault, burned); err == nil {
				m.registry.Issue(req.Vault, burned)
				req.ReimbursedFully = true
			}
		}
		req.Status = StatusReimbursed
		outcome = "reimbursed"
	} else {
		if err := m.registry.DecreaseToBeRedeemed(req.Vault, burned); err != nil {
			return nil, err
		}
		if err := m.ledger.Deposit(req.User, assets.New(req.AmountWrapped, m.cfg.WrappedAsset())); err != nil {
			return nil, err
		}
		req.Status = StatusRetried
	}
	m.emit(events.RedeemCancelled(req.ID, req.Vault.String(), outcome))
	return req, nil
}
