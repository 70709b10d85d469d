// Package reporter implements the off-chain undercollateralization reporter
// (spec.md §4.11): each tick it scans every registered vault and submits an
// unsigned report_undercollateralized_vault command for any vault that has
// fallen below its liquidation threshold. Submissions are locally produced,
// carry a fixed priority, expire quickly, and are never gossiped to peers -
// the same acceptance discipline consensus/potso/evidence applies to
// locally observed misbehavior, simplified here to a single boolean gate
// instead of a full evidence store, since a report carries no signature or
// persisted history to verify.
package reporter

import (
	"github.com/google/uuid"

	coretypes "vaultbridge/core/types"
	"vaultbridge/crypto"
	"vaultbridge/events"
	"vaultbridge/vaultregistry"
)

// Priority is the fixed scheduling priority every report submission carries.
// Reports never compete with user transactions for block space beyond this
// single reserved slot class.
const Priority = 0

// Longevity bounds how many host heights a submitted report remains valid
// for before it must be recomputed; short by design; see spec.md §4.11.
const Longevity = 1

// Source supplies the set of vault accounts to scan each tick. A production
// kernel backs this with kernelstate's vault index; tests back it with a
// literal slice.
type Source interface {
	Accounts() []crypto.Address
}

// Submitter accepts a locally-produced, unsigned
// report_undercollateralized_vault command. A real deployment places it in
// the node's local-only submission lane (Priority, Longevity, no gossip);
// Reporter itself does not know how the command is scheduled.
type Submitter interface {
	ReportUndercollateralizedVault(vault crypto.Address) error
}

// Reporter drives one tick of the off-chain scan.
type Reporter struct {
	registry *vaultregistry.Registry
	source   Source
	submit   Submitter
}

// New constructs a Reporter.
func New(registry *vaultregistry.Registry, source Source, submit Submitter) *Reporter {
	return &Reporter{registry: registry, source: source, submit: submit}
}

// Tick implements the per-tick hook of spec.md §5: iterate registered
// vaults, compute is_below_liquidation_threshold, and submit a report for
// every hit. It returns the accounts reported, in scan order, and the first
// error encountered (the scan does not stop early on a single vault's
// error; it continues checking the rest, since one vault's stale state
// should not block reporting the others).
func (rp *Reporter) Tick() ([]crypto.Address, error) {
	var reported []crypto.Address
	var firstErr error
	for _, account := range rp.source.Accounts() {
		below, err := rp.registry.IsBelowLiquidationThreshold(account)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !below {
			continue
		}
		if err := rp.submit.ReportUndercollateralizedVault(account); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reported = append(reported, account)
	}
	return reported, firstErr
}

// ReportUndercollateralizedVault implements report_undercollateralized_vault
// directly against a registry: re-checks the threshold (state may have
// moved between the reporter's scan and the command's execution) and
// liquidates the vault if it still holds. This is the in-kernel Submitter a
// production deployment wires the Reporter to; Tick's locally-produced
// command and this execution are kept as separate steps so a kernel can
// interpose its own atomicity/rollback boundary between them.
type RegistrySubmitter struct {
	registry *vaultregistry.Registry
	pending  []*coretypes.Event
}

// NewRegistrySubmitter constructs a Submitter that liquidates on report.
func NewRegistrySubmitter(registry *vaultregistry.Registry) *RegistrySubmitter {
	return &RegistrySubmitter{registry: registry}
}

// DrainEvents returns and clears every event emitted since the last drain.
func (s *RegistrySubmitter) DrainEvents() []*coretypes.Event {
	out := s.pending
	s.pending = nil
	return out
}

// ReportUndercollateralizedVault re-verifies the threshold and liquidates
// the vault if it still qualifies, emitting UndercollateralizationReported
// either way so indexers see every accepted report, not only the ones that
// still triggered liquidation.
func (s *RegistrySubmitter) ReportUndercollateralizedVault(vault crypto.Address) error {
	below, err := s.registry.IsBelowLiquidationThreshold(vault)
	if err != nil {
		return err
	}
	event := events.UndercollateralizationReported(vault.String())
	// A random submission id gives every report event its own identity; a
	// retried tick gets a fresh id, so an earlier report of the same vault is
	// not detected here.
	event.Attributes["submission_id"] = uuid.NewString()
	s.pending = append(s.pending, event)
	if !below {
		return nil
	}
	return s.registry.Liquidate(vault, false)
}
