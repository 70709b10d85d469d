// Package refund implements the refund request state machine (spec.md
// §4.10): a one-shot return of BTC overpaid against an issue request, with
// the vault minted a fee for its trouble. It implements issue.RefundOpener
// so requests/issue can spin a refund off directly without importing this
// package back.
package refund

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"vaultbridge/assets"
	"vaultbridge/btcrelay"
	coretypes "vaultbridge/core/types"
	"vaultbridge/crypto"
	"vaultbridge/events"
	"vaultbridge/fixedpoint"
	"vaultbridge/kernelerrors"
	"vaultbridge/vaultregistry"
)

// Request is one refund request's persisted record.
type Request struct {
	ID            string
	Vault         crypto.Address
	Issuer        crypto.Address
	AmountWrapped *big.Int
	Fee           *big.Int
	BTCAddress    string
	IssueID       string
	Completed     bool
}

// Config is the narrow getter interface the machine consults.
type Config interface {
	RefundFeeRatio() fixedpoint.Ratio
	WrappedAsset() assets.ID
}

// Machine is the refund request store plus the registry/relay it mutates.
type Machine struct {
	cfg      Config
	registry *vaultregistry.Registry
	relay    btcrelay.Verifier

	requests map[string]*Request
	nonce    uint64
	pending  []*coretypes.Event
}

// New constructs a refund machine.
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

func (m *Machine) nextID(vault, issuer crypto.Address) string {
	m.nonce++
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], m.nonce)
	h := ethcrypto.Keccak256Hash(vault.Bytes(), issuer.Bytes(), nonceBytes[:])
	return h.Hex()
}

// OpenRefund implements request_refund and satisfies issue.RefundOpener:
// computes the refund fee, increases and immediately issues to_be_issued on
// the vault for the fee portion (the vault profits when sending the
// refund), and persists the request with Completed=false.
func (m *Machine) OpenRefund(vault, issuer crypto.Address, wrappedAmount *big.Int, btcAddress, issueID string) (string, error) {
	fee := m.cfg.RefundFeeRatio().MulIntFloor(wrappedAmount)
	if fee.Sign() > 0 {
		if err := m.registry.IncreaseToBeIssued(vault, fee); err != nil {
			return "", err
		}
		if err := m.registry.Issue(vault, fee); err != nil {
			return "", err
		}
	}

	id := m.nextID(vault, issuer)
	req := &Request{
		ID:            id,
		Vault:         vault,
		Issuer:        issuer,
		AmountWrapped: new(big.Int).Set(wrappedAmount),
		Fee:           fee,
		BTCAddress:    btcAddress,
		IssueID:       issueID,
		Completed:     false,
	}
	m.requests[id] = req
	m.emit(events.RefundRequested(id, issuer.String(), vault.String(), wrappedAmount.String()))
	return id, nil
}

// ExecuteRefund implements execute_refund: requires Completed=false, then
// BTC-verifies the vault's payout to the issuer before marking it done.
func (m *Machine) ExecuteRefund(refundID string, proof btcrelay.Proof, rawTx []byte) (*Request, error) {
	req, err := m.Request(refundID)
	if err != nil {
		return nil, err
	}
	if req.Completed {
		return nil, kernelerrors.ErrRequestCompleted
	}
	if !req.AmountWrapped.IsUint64() {
		return nil, kernelerrors.ErrTryIntoIntError
	}
	if err := m.relay.VerifyAndValidateOpReturnTransaction(proof, rawTx, req.BTCAddress, req.AmountWrapped.Uint64(), []byte(refundID)); err != nil {
		return nil, err
	}
	req.Completed = true
	m.emit(events.RefundCompleted(req.ID, req.Vault.String()))
	return req, nil
}
