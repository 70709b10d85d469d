// Package issue implements the issue request state machine (spec.md §4.7):
// a user reserves to_be_issued capacity on a vault, pays BTC to a reserved
// deposit address, and the relay-verified payment mints wrapped tokens.
// Grounded on native/escrow's realm/case lifecycle (open → execute/cancel,
// clone-validate-commit per step) and its Keccak256(nonce)-derived,
// storage-free id scheme (native/escrow/trade_engine.go).
package issue

import (
	"encoding/binary"
	"fmt"
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

// Status is an IssueRequest's lifecycle state.
type Status int

const (
	StatusPending Status = iota
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Request is one issue request's persisted record.
type Request struct {
	ID                 string
	User               crypto.Address
	Vault              crypto.Address
	AmountWrapped      *big.Int
	Fee                *big.Int
	GriefingCollateral *big.Int
	DepositAddress     string
	OpenTime           uint64
	Period             uint64
	BTCExpiryHeight    uint64
	Status             Status
	// RefundID is set when execute_issue completed via the overpay path and
	// the vault could not back the excess, per spec.md §4.7.
	RefundID string
}

// Config is the narrow getter interface the machine consults for deployment
// parameters, mirroring vaultregistry.Config's getter-only shape.
type Config interface {
	IssuePeriodBlocks() uint64
	IssueFeeRatio() fixedpoint.Ratio
	WrappedAsset() assets.ID
}

// RefundOpener is the one capability the issue machine borrows from the
// refund machine: opening a RefundRequest for an overpaid amount the vault
// cannot back. Kept as a narrow interface rather than a concrete import so
// refund has no reverse dependency on issue.
type RefundOpener interface {
	OpenRefund(vault, issuer crypto.Address, wrappedAmount *big.Int, btcAddress, issueID string) (string, error)
}

// Machine is the issue request store plus the registry/ledger/relay it
// mutates. The kernel dispatcher owns atomicity (snapshot before, restore on
// error); the machine itself performs straight-line mutations.
type Machine struct {
	cfg      Config
	registry *vaultregistry.Registry
	ledger   *currency.Ledger
	relay    btcrelay.Verifier
	refunds  RefundOpener

	requests map[string]*Request
	nonce    uint64
	pending  []*coretypes.Event
}

// New constructs an issue machine. refunds may be nil; ExecuteIssue then
// completes an overpayment the vault cannot back without opening a refund
// for the excess.
func New(cfg Config, registry *vaultregistry.Registry, ledger *currency.Ledger, relay btcrelay.Verifier, refunds RefundOpener) *Machine {
	return &Machine{
		cfg:      cfg,
		registry: registry,
		ledger:   ledger,
		relay:    relay,
		refunds:  refunds,
		requests: make(map[string]*Request),
	}
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

// nextID derives a deterministic request id from an internal monotonic
// nonce, the same way native/escrow/trade_engine.go derives trade ids:
// Keccak256(user, vault, nonce) without ever persisting the nonce itself.
func (m *Machine) nextID(user, vault crypto.Address) string {
	m.nonce++
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], m.nonce)
	h := ethcrypto.Keccak256Hash(user.Bytes(), vault.Bytes(), nonceBytes[:])
	return h.Hex()
}

// depositAddress derives a per-request deposit address identifier from the
// vault's BTC public key and the request id. A real deployment would derive
// an actual P2WSH/P2TR Bitcoin address here; that derivation is the relay's
// concern (btcrelay.Verifier), so this id only needs to be a stable, unique
// key the registry can reserve and the relay can match a payment against.
func depositAddress(btcPubKey []byte, id string) string {
	h := ethcrypto.Keccak256Hash(btcPubKey, []byte(id))
	return fmt.Sprintf("tb1q%x", h.Bytes()[:20])
}

// RequestIssue implements request_issue: locks griefing collateral, reserves
// to_be_issued capacity on the vault, and registers a fresh deposit address.
func (m *Machine) RequestIssue(user, vault crypto.Address, amountWrapped, griefingCollateral *big.Int, currentHeight, relayTip uint64) (*Request, error) {
	v, err := m.registry.Vault(vault)
	if err != nil {
		return nil, err
	}
	if v.Status != vaultregistry.StatusActive || !v.AcceptsNewIssues {
		return nil, kernelerrors.ErrVaultBanned
	}
	fee := m.cfg.IssueFeeRatio().MulIntFloor(amountWrapped)
	total := new(big.Int).Add(amountWrapped, fee)

	if err := m.ledger.Lock(user, assets.New(griefingCollateral, v.CollateralAsset)); err != nil {
		return nil, err
	}
	if err := m.registry.IncreaseToBeIssued(vault, total); err != nil {
		return nil, err
	}

	id := m.nextID(user, vault)
	addr := depositAddress(v.BTCPublicKey, id)
	if err := m.registry.RegisterAddress(vault, addr); err != nil {
		return nil, err
	}
	period := m.cfg.IssuePeriodBlocks()
	req := &Request{
		ID:                 id,
		User:               user,
		Vault:              vault,
		AmountWrapped:      new(big.Int).Set(amountWrapped),
		Fee:                fee,
		GriefingCollateral: new(big.Int).Set(griefingCollateral),
		DepositAddress:     addr,
		OpenTime:           currentHeight,
		Period:             period,
		BTCExpiryHeight:    m.relay.BitcoinExpiryHeight(relayTip, period),
		Status:             StatusPending,
	}
	m.requests[id] = req
	m.emit(events.IssueRequested(id, user.String(), vault.String(), amountWrapped.String(), addr))
	return req, nil
}

func paidToAddress(tx btcrelay.Transaction, address string) uint64 {
	var total uint64
	for _, out := range tx.Outputs {
		if out.Recipient == address {
			total += out.AmountSat
		}
	}
	return total
}

// ExecuteIssue implements execute_issue: verifies the relay proof, then
// either completes the happy path or, if the payment overshoots what the
// vault can additionally back, spins off a RefundRequest for the excess.
func (m *Machine) ExecuteIssue(issueID string, proof btcrelay.Proof, rawTx []byte, currentHeight, relayTip uint64, caller crypto.Address) (*Request, error) {
	req, err := m.Request(issueID)
	if err != nil {
		return nil, err
	}
	if req.Status == StatusCancelled {
		return nil, kernelerrors.ErrRequestCancelled
	}
	if req.Status == StatusCompleted {
		return nil, kernelerrors.ErrRequestCompleted
	}

	expired := currentHeight > req.OpenTime+req.Period && relayTip >= req.BTCExpiryHeight
	if expired && !caller.Equal(req.User) {
		return nil, kernelerrors.ErrCommitPeriodExpired
	}

	total := new(big.Int).Add(req.AmountWrapped, req.Fee)
	if !total.IsUint64() {
		return nil, kernelerrors.ErrTryIntoIntError
	}
	if err := m.relay.VerifyAndValidateOpReturnTransaction(proof, rawTx, req.DepositAddress, total.Uint64(), []byte(issueID)); err != nil {
		return nil, err
	}
	tx, err := m.relay.ParseTransaction(rawTx)
	if err != nil {
		return nil, err
	}
	paid := new(big.Int).SetUint64(paidToAddress(tx, req.DepositAddress))
	delta := new(big.Int).Sub(paid, total)

	v, err := m.registry.Vault(req.Vault)
	if err != nil {
		return nil, err
	}

	switch {
	case delta.Sign() <= 0:
		if err := m.registry.Issue(req.Vault, total); err != nil {
			return nil, err
		}
		if err := m.ledger.Deposit(req.User, assets.New(req.AmountWrapped, m.cfg.WrappedAsset())); err != nil {
			return nil, err
		}
		if err := m.ledger.Deposit(vaultregistry.FeePoolAccount(m.cfg.WrappedAsset()), assets.New(req.Fee, m.cfg.WrappedAsset())); err != nil {
			return nil, err
		}
	default:
		issuable, err := m.registry.IssuableTokens(req.Vault)
		if err != nil {
			return nil, err
		}
		if issuable.Cmp(delta) >= 0 {
			if err := m.registry.Issue(req.Vault, total); err != nil {
				return nil, err
			}
			if err := m.registry.IncreaseToBeIssued(req.Vault, delta); err != nil {
				return nil, err
			}
			if err := m.registry.Issue(req.Vault, delta); err != nil {
				return nil, err
			}
			minted := new(big.Int).Add(req.AmountWrapped, delta)
			if err := m.ledger.Deposit(req.User, assets.New(minted, m.cfg.WrappedAsset())); err != nil {
				return nil, err
			}
			if err := m.ledger.Deposit(vaultregistry.FeePoolAccount(m.cfg.WrappedAsset()), assets.New(req.Fee, m.cfg.WrappedAsset())); err != nil {
				return nil, err
			}
		} else {
			if err := m.registry.Issue(req.Vault, total); err != nil {
				return nil, err
			}
			if err := m.ledger.Deposit(req.User, assets.New(req.AmountWrapped, m.cfg.WrappedAsset())); err != nil {
				return nil, err
			}
			if err := m.ledger.Deposit(vaultregistry.FeePoolAccount(m.cfg.WrappedAsset()), assets.New(req.Fee, m.cfg.WrappedAsset())); err != nil {
				return nil, err
			}
			if m.refunds != nil {
				id, err := m.refunds.OpenRefund(req.Vault, req.User, delta, req.DepositAddress, req.ID)
				if err != nil {
					return nil, err
				}
				req.RefundID = id
			}
		}
	}

	if err := m.ledger.Unlock(req.User, assets.New(req.GriefingCollateral, v.CollateralAsset)); err != nil {
		return nil, err
	}
	req.Status = StatusCompleted
	m.emit(events.IssueCompleted(req.ID, req.User.String(), req.Vault.String(), req.AmountWrapped.String(), req.Fee.String(), req.RefundID))
	return req, nil
}

// CancelIssue implements cancel_issue: both clocks must have expired.
func (m *Machine) CancelIssue(issueID string, currentHeight, relayTip uint64) (*Request, error) {
	req, err := m.Request(issueID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, kernelerrors.ErrRequestCompleted
	}
	if currentHeight <= req.OpenTime+req.Period || relayTip < req.BTCExpiryHeight {
		return nil, kernelerrors.ErrTimeNotExpired
	}
	total := new(big.Int).Add(req.AmountWrapped, req.Fee)
	if err := m.registry.DecreaseToBeIssued(req.Vault, total); err != nil {
		return nil, err
	}
	v, err := m.registry.Vault(req.Vault)
	if err != nil {
		return nil, err
	}
	from := vaultregistry.Source{Kind: vaultregistry.SourceGriefing, Account: req.User}
	to := vaultregistry.Source{Kind: vaultregistry.SourceFreeBalance, Account: req.Vault}
	if err := m.registry.TransferFunds(from, to, req.GriefingCollateral, v.CollateralAsset); err != nil {
		return nil, err
	}
	req.Status = StatusCancelled
	m.emit(events.IssueCancelled(req.ID, req.Vault.String()))
	return req, nil
}
