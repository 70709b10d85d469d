// Package replace implements the replace request state machine (spec.md
// §4.9): one vault operator hands a slice of its issued tokens off to
// another vault, so the first can withdraw collateral without a user-facing
// redeem. Grounded on native/escrow's case lifecycle, same id scheme as
// requests/issue and requests/redeem.
package replace

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"vaultbridge/assets"
	"vaultbridge/btcrelay"
	coretypes "vaultbridge/core/types"
	"vaultbridge/crypto"
	"vaultbridge/events"
	"vaultbridge/kernelerrors"
	"vaultbridge/vaultregistry"
)

// Status is a ReplaceRequest's lifecycle state.
type Status int

const (
	StatusRequested Status = iota
	StatusAccepted
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusAccepted:
		return "accepted"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Request is one replace request's persisted record. OldVault is fixed at
// request_replace time; NewVault, Collateral and BTCAddress are only set
// once accept_replace is called.
type Request struct {
	ID              string
	OldVault        crypto.Address
	NewVault        crypto.Address
	RequestedAmount *big.Int
	AcceptedAmount  *big.Int
	Collateral      *big.Int
	BTCAddress      string
	OpenTime        uint64
	Period          uint64
	BTCExpiryHeight uint64
	Status          Status
}

// Config is the narrow getter interface the machine consults.
type Config interface {
	ReplacePeriodBlocks() uint64
	WrappedAsset() assets.ID
}

// Machine is the replace request store plus the registry/relay it mutates.
type Machine struct {
	cfg      Config
	registry *vaultregistry.Registry
	relay    btcrelay.Verifier

	requests map[string]*Request
	nonce    uint64
	pending  []*coretypes.Event
}

// New constructs a replace machine.
func New(cfg Config, registry *vaultregistry.Registry, relay btcrelay.Verifier) *Machine {
	return &Machine{cfg: cfg, registry: registry, relay: relay, requests: make(map[string]*Request)}
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

func (m *Machine) nextID(oldVault crypto.Address) string {
	m.nonce++
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], m.nonce)
	h := ethcrypto.Keccak256Hash(oldVault.Bytes(), nonceBytes[:])
	return h.Hex()
}

// RequestReplace implements request_replace: reserves to_be_replaced on the
// old vault (capped by issued − to_be_replaced − to_be_redeemed) and locks
// griefingCollateral as replace_collateral on the old vault's own account.
func (m *Machine) RequestReplace(oldVault crypto.Address, amount, griefingCollateral *big.Int, currentHeight uint64) (*Request, error) {
	v, err := m.registry.Vault(oldVault)
	if err != nil {
		return nil, err
	}
	if v.Status != vaultregistry.StatusActive {
		return nil, kernelerrors.ErrVaultBanned
	}
	accepted, err := m.registry.IncreaseToBeReplaced(oldVault, amount)
	if err != nil {
		return nil, err
	}
	if accepted.Sign() <= 0 {
		return nil, kernelerrors.ErrExceedingVaultLimit
	}
	if err := m.registry.IncreaseReplaceCollateral(oldVault, griefingCollateral, v.CollateralAsset); err != nil {
		return nil, err
	}

	id := m.nextID(oldVault)
	req := &Request{
		ID:              id,
		OldVault:        oldVault,
		RequestedAmount: new(big.Int).Set(accepted),
		Collateral:      new(big.Int).Set(griefingCollateral),
		OpenTime:        currentHeight,
		Period:          m.cfg.ReplacePeriodBlocks(),
		Status:          StatusRequested,
	}
	m.requests[id] = req
	m.emit(events.ReplaceRequested(id, oldVault.String(), accepted.String()))
	return req, nil
}

// AcceptReplace implements accept_replace: a new vault takes on up to
// min(amount, old.to_be_replaced), moving that slice into old's
// to_be_redeemed, reserving to_be_issued on itself, locking its own fresh
// collateral, and releasing a proportional share of old's
// replace_collateral back to old.
func (m *Machine) AcceptReplace(requestID string, newVault crypto.Address, amount, collateral *big.Int, btcAddress string, currentHeight, relayTip uint64) (*Request, error) {
	req, err := m.Request(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusRequested {
		return nil, kernelerrors.ErrRequestCompleted
	}
	old, err := m.registry.Vault(req.OldVault)
	if err != nil {
		return nil, err
	}
	accepted := new(big.Int).Set(amount)
	if accepted.Cmp(old.ToBeReplaced) > 0 {
		accepted = new(big.Int).Set(old.ToBeReplaced)
	}
	if accepted.Sign() <= 0 {
		return nil, kernelerrors.ErrExceedingVaultLimit
	}

	if err := m.registry.DecreaseToBeReplaced(req.OldVault, accepted); err != nil {
		return nil, err
	}
	if err := m.registry.IncreaseToBeRedeemed(req.OldVault, accepted); err != nil {
		return nil, err
	}
	if err := m.registry.IncreaseToBeIssued(newVault, accepted); err != nil {
		return nil, err
	}
	if err := m.registry.DepositCollateral(newVault, collateral); err != nil {
		return nil, err
	}

	if req.RequestedAmount.Sign() > 0 {
		share := vaultregistry.CalculateCollateral(req.Collateral, accepted, req.RequestedAmount)
		if err := m.registry.ReleaseReplaceCollateral(req.OldVault, share, old.CollateralAsset); err != nil {
			return nil, err
		}
	}

	req.NewVault = newVault
	req.AcceptedAmount = accepted
	req.Collateral = new(big.Int).Set(collateral)
	req.BTCAddress = btcAddress
	req.BTCExpiryHeight = m.relay.BitcoinExpiryHeight(relayTip, req.Period)
	req.OpenTime = currentHeight
	req.Status = StatusAccepted
	m.emit(events.ReplaceAccepted(req.ID, req.OldVault.String(), newVault.String(), accepted.String()))
	return req, nil
}

// ExecuteReplace implements execute_replace: BTC verification as in issue
// and redeem, then replace_tokens(old, new, amount, collateral) -
// decrease_tokens on old, issue_tokens on new, releasing old's pro-rata
// liquidated_collateral slice if it was liquidated in the interim.
func (m *Machine) ExecuteReplace(requestID string, proof btcrelay.Proof, rawTx []byte) (*Request, error) {
	req, err := m.Request(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusAccepted {
		return nil, kernelerrors.ErrRequestCompleted
	}
	if !req.Collateral.IsUint64() {
		return nil, kernelerrors.ErrTryIntoIntError
	}
	if err := m.relay.VerifyAndValidateOpReturnTransaction(proof, rawTx, req.BTCAddress, req.Collateral.Uint64(), []byte(requestID)); err != nil {
		return nil, err
	}

	old, err := m.registry.Vault(req.OldVault)
	if err != nil {
		return nil, err
	}
	if err := m.registry.DecreaseTokens(req.OldVault, req.AcceptedAmount); err != nil {
		return nil, err
	}
	if err := m.registry.Issue(req.NewVault, req.AcceptedAmount); err != nil {
		return nil, err
	}

	if old.Status != vaultregistry.StatusActive && old.ToBeRedeemed.Sign() > 0 {
		share := vaultregistry.CalculateCollateral(old.LiquidatedCollateral, req.AcceptedAmount, old.ToBeRedeemed)
		if share.Sign() > 0 {
			from := vaultregistry.Source{Kind: vaultregistry.SourceLiquidatedCollateral, Account: req.OldVault}
			to := vaultregistry.Source{Kind: vaultregistry.SourceCollateral, Account: req.OldVault}
			if err := m.registry.TransferFunds(from, to, share, old.CollateralAsset); err != nil {
				return nil, err
			}
		}
	}

	req.Status = StatusCompleted
	m.emit(events.ReplaceCompleted(req.ID, req.OldVault.String(), req.NewVault.String(), req.AcceptedAmount.String()))
	return req, nil
}

// CancelReplace implements cancel_replace: only after expiry. Releases old's
// reservations and forfeits whatever of old's replace_collateral remains to
// the new vault as punishment for the undelivered BTC payment.
func (m *Machine) CancelReplace(requestID string, currentHeight, relayTip uint64) (*Request, error) {
	req, err := m.Request(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusAccepted {
		return nil, kernelerrors.ErrRequestCompleted
	}
	if currentHeight <= req.OpenTime+req.Period || relayTip < req.BTCExpiryHeight {
		return nil, kernelerrors.ErrTimeNotExpired
	}
	old, err := m.registry.Vault(req.OldVault)
	if err != nil {
		return nil, err
	}

	if err := m.registry.DecreaseToBeRedeemed(req.OldVault, req.AcceptedAmount); err != nil {
		return nil, err
	}
	if err := m.registry.DecreaseToBeIssued(req.NewVault, req.AcceptedAmount); err != nil {
		return nil, err
	}
	if err := m.registry.WithdrawCollateral(req.NewVault, req.Collateral); err != nil {
		return nil, err
	}
	if err := m.registry.ForfeitReplaceCollateral(req.OldVault, req.NewVault, old.CollateralAsset); err != nil {
		return nil, err
	}

	req.Status = StatusCancelled
	m.emit(events.ReplaceCancelled(req.ID, req.OldVault.String(), req.NewVault.String()))
	return req, nil
}
