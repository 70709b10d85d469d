// Package kernel wires the vault registry, currency ledger, reward pool,
// oracle, and the four request state machines into a single command
// dispatcher, the way core/node.go wires the chain's native modules
// together. Every exported method is one spec.md §6 command: it snapshots
// whatever in-memory state the command can touch, runs the mutation, and
// either restores every snapshot on error or persists the post-state into
// the trie-backed kernelstate.Manager on success. Commands run strictly
// sequentially; there is no internal concurrency to guard against.
package kernel

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"vaultbridge/assets"
	"vaultbridge/btcrelay"
	"vaultbridge/crypto"
	"vaultbridge/currency"
	"vaultbridge/fixedpoint"
	"vaultbridge/kernelconfig"
	"vaultbridge/kernelerrors"
	"vaultbridge/kernelstate"
	"vaultbridge/observability/logging"
	"vaultbridge/oracle"
	"vaultbridge/reporter"
	"vaultbridge/requests/issue"
	"vaultbridge/requests/redeem"
	"vaultbridge/requests/refund"
	"vaultbridge/requests/replace"
	"vaultbridge/rewardpool"
	"vaultbridge/vaultregistry"
)

var loggerOnce sync.Once

// baseLogger configures the process-wide JSON logger once, the way a
// node's main() calls observability/logging.Setup a single time at
// startup, and returns the kernel-scoped child logger every instance uses.
func baseLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logging.Setup("vaultbridge-kernel", "")
	})
	return slog.Default().With("component", "kernel")
}

// Kernel is the single entry point for every ledger command in spec.md §6.
// It owns the live, in-memory domain objects the hot path mutates and a
// kernelstate.Manager side-mirror commands persist into once committed.
type Kernel struct {
	cfg     *kernelconfig.Resolved
	root    crypto.Address
	relay   btcrelay.Verifier
	ledger  *currency.Ledger
	store   *currency.MemStore
	staking *rewardpool.Staking
	oracle  *oracle.Aggregator
	registry *vaultregistry.Registry

	issueMachine   *issue.Machine
	redeemMachine  *redeem.Machine
	replaceMachine *replace.Machine
	refundMachine  *refund.Machine

	reporter   *reporter.Reporter
	submitter  *reporter.RegistrySubmitter
	state      *kernelstate.Manager
	height     uint64

	log     *slog.Logger
	metrics *kernelMetrics
}

// New wires a Kernel from a resolved deployment configuration, a Bitcoin
// relay client, the account authorized to call root-only commands, and the
// trie-backed state manager commands persist into. It builds every domain
// object itself (registry, ledger, staking, oracle, the four request
// machines, the reporter) the way core/node.go constructs its native
// modules, so callers never assemble the wiring themselves.
func New(cfg *kernelconfig.Resolved, relay btcrelay.Verifier, root crypto.Address, state *kernelstate.Manager, oracleMaxDelay time.Duration, oracleSources []string) *Kernel {
	store := currency.NewMemStore()
	ledger := currency.New(store)
	staking := rewardpool.NewStaking()
	agg := oracle.New(oracleMaxDelay, oracleSources)
	registry := vaultregistry.New(cfg, ledger, staking, agg)

	k := &Kernel{
		cfg:      cfg,
		root:     root,
		relay:    relay,
		ledger:   ledger,
		store:    store,
		staking:  staking,
		oracle:   agg,
		registry: registry,
		state:    state,
		log:      baseLogger(),
		metrics:  metricsInstance(),
	}
	k.redeemMachine = redeem.New(cfg, registry, ledger, relay)
	k.replaceMachine = replace.New(cfg, registry, relay)
	k.refundMachine = refund.New(cfg, registry, relay)
	k.issueMachine = issue.New(cfg, registry, ledger, relay, k.refundMachine)
	k.submitter = reporter.NewRegistrySubmitter(registry)
	k.reporter = reporter.New(registry, registry, k.submitter)
	return k
}

// Height returns the host ledger height the kernel currently advances
// commands against; only Tick changes it, setting it to the height it is
// given.
func (k *Kernel) Height() uint64 { return k.height }

// checkpoint is a closure over a Snapshot/Restore pair already taken; it is
// returned so atomic can defer the actual restore until a command fails.
type checkpoint func() func()

func (k *Kernel) checkpointRegistry() func() {
	s := k.registry.Snapshot()
	return func() { k.registry.Restore(s) }
}

func (k *Kernel) checkpointStaking() func() {
	s := k.staking.Snapshot()
	return func() { k.staking.Restore(s) }
}

func (k *Kernel) checkpointLedger() func() {
	s := k.store.Snapshot()
	return func() { k.store.Restore(s) }
}

func (k *Kernel) checkpointIssue() func() {
	s := k.issueMachine.Snapshot()
	return func() { k.issueMachine.Restore(s) }
}

func (k *Kernel) checkpointRedeem() func() {
	s := k.redeemMachine.Snapshot()
	return func() { k.redeemMachine.Restore(s) }
}

func (k *Kernel) checkpointReplace() func() {
	s := k.replaceMachine.Snapshot()
	return func() { k.replaceMachine.Restore(s) }
}

func (k *Kernel) checkpointRefund() func() {
	s := k.refundMachine.Snapshot()
	return func() { k.refundMachine.Restore(s) }
}

// atomic takes every listed checkpoint before running fn and, if fn
// returns an error, restores every one of them in order before returning
// that error. On success no rollback happens and the caller is responsible
// for persisting whatever changed. This is the all-or-nothing commit
// boundary spec.md §5's shared-resource policy requires, implemented over
// plain in-memory maps rather than the trie. name identifies the command
// for structured logging and the kernel's dispatch counter.
func (k *Kernel) atomic(name string, fn func() error, points ...checkpoint) error {
	rollbacks := make([]func(), len(points))
	for i, cp := range points {
		rollbacks[i] = cp()
	}
	err := fn()
	if err != nil {
		for _, rb := range rollbacks {
			rb()
		}
		k.log.Warn("command rolled back", "command", name, "error", err)
	} else {
		k.log.Debug("command committed", "command", name)
	}
	k.metrics.observe(name, err)
	return err
}

func (k *Kernel) requireRoot(caller crypto.Address) error {
	if !caller.Equal(k.root) {
		k.log.Warn("rejected root-only command from non-root caller", "caller", caller.String())
		return kernelerrors.ErrUnauthorized
	}
	return nil
}

// persistVault mirrors one vault's current state into the durability
// layer. Called after any command that touched the vault, best-effort: a
// failure here does not unwind the already-committed in-memory mutation,
// it only means a restart replays from a slightly stale mirror.
func (k *Kernel) persistVault(account crypto.Address) error {
	v, err := k.registry.Vault(account)
	if err != nil {
		return err
	}
	return k.state.SaveVault(v)
}

func (k *Kernel) persistBalance(account crypto.Address, asset assets.ID) error {
	bal, err := k.store.GetBalance(account, asset)
	if err != nil {
		return err
	}
	return k.state.SaveBalance(account, asset, bal)
}

// --- vault registry commands ---

// RegisterVault implements register_vault.
func (k *Kernel) RegisterVault(account crypto.Address, collateral *big.Int, collateralAsset assets.ID, btcPubKey []byte) error {
	err := k.atomic("register_vault", func() error {
		return k.registry.RegisterVault(account, collateral, collateralAsset, btcPubKey)
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger)
	if err != nil {
		return err
	}
	if err := k.persistVault(account); err != nil {
		return err
	}
	return k.persistBalance(account, collateralAsset)
}

// DepositCollateral implements deposit_collateral.
func (k *Kernel) DepositCollateral(account crypto.Address, amount *big.Int) error {
	err := k.atomic("deposit_collateral", func() error {
		return k.registry.DepositCollateral(account, amount)
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger)
	if err != nil {
		return err
	}
	if err := k.persistVault(account); err != nil {
		return err
	}
	v, err := k.registry.Vault(account)
	if err != nil {
		return err
	}
	return k.persistBalance(account, v.CollateralAsset)
}

// WithdrawCollateral implements withdraw_collateral.
func (k *Kernel) WithdrawCollateral(account crypto.Address, amount *big.Int) error {
	err := k.atomic("withdraw_collateral", func() error {
		return k.registry.WithdrawCollateral(account, amount)
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger)
	if err != nil {
		return err
	}
	if err := k.persistVault(account); err != nil {
		return err
	}
	v, err := k.registry.Vault(account)
	if err != nil {
		return err
	}
	return k.persistBalance(account, v.CollateralAsset)
}

// UpdatePublicKey implements update_public_key.
func (k *Kernel) UpdatePublicKey(account crypto.Address, pubKey []byte) error {
	if err := k.atomic("update_public_key", func() error {
		return k.registry.UpdatePublicKey(account, pubKey)
	}, k.checkpointRegistry); err != nil {
		return err
	}
	return k.persistVault(account)
}

// RegisterAddress implements register_address.
func (k *Kernel) RegisterAddress(account crypto.Address, address string) error {
	if err := k.atomic("register_address", func() error {
		return k.registry.RegisterAddress(account, address)
	}, k.checkpointRegistry); err != nil {
		return err
	}
	return k.persistVault(account)
}

// AcceptNewIssues implements accept_new_issues(bool).
func (k *Kernel) AcceptNewIssues(account crypto.Address, accept bool) error {
	if err := k.atomic("accept_new_issues", func() error {
		return k.registry.SetAcceptsNewIssues(account, accept)
	}, k.checkpointRegistry); err != nil {
		return err
	}
	return k.persistVault(account)
}

// ReportUndercollateralizedVault implements report_undercollateralized_vault
// directly: re-checks the threshold and liquidates the vault if it still
// holds, same as reporter.RegistrySubmitter but routed through the
// kernel's own atomic/persist boundary instead of the reporter's.
func (k *Kernel) ReportUndercollateralizedVault(vault crypto.Address) error {
	before, err := k.registry.Vault(vault)
	if err != nil {
		return err
	}
	wasActive := before.Status == vaultregistry.StatusActive
	if err := k.atomic("report_undercollateralized_vault", func() error {
		return k.submitter.ReportUndercollateralizedVault(vault)
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger); err != nil {
		return err
	}
	if after, err := k.registry.Vault(vault); err == nil && wasActive && after.Status != vaultregistry.StatusActive {
		k.metrics.liquidations.Inc()
	}
	return k.persistVault(vault)
}

// AdjustCollateralCeiling implements the root-only
// adjust_collateral_ceiling.
func (k *Kernel) AdjustCollateralCeiling(caller crypto.Address, asset assets.ID, ceiling *big.Int) error {
	if err := k.requireRoot(caller); err != nil {
		return err
	}
	k.cfg.AdjustCollateralCeiling(asset, ceiling)
	return nil
}

// AdjustSecureCollateralThreshold implements the root-only
// adjust_secure_collateral_threshold.
func (k *Kernel) AdjustSecureCollateralThreshold(caller crypto.Address, asset assets.ID, ratio fixedpoint.Ratio) error {
	if err := k.requireRoot(caller); err != nil {
		return err
	}
	k.cfg.AdjustSecureCollateralThreshold(asset, ratio)
	return nil
}

// AdjustPremiumRedeemThreshold implements the root-only
// adjust_premium_redeem_threshold.
func (k *Kernel) AdjustPremiumRedeemThreshold(caller crypto.Address, asset assets.ID, ratio fixedpoint.Ratio) error {
	if err := k.requireRoot(caller); err != nil {
		return err
	}
	k.cfg.AdjustPremiumRedeemThreshold(asset, ratio)
	return nil
}

// AdjustLiquidationCollateralThreshold implements the root-only
// adjust_liquidation_collateral_threshold.
func (k *Kernel) AdjustLiquidationCollateralThreshold(caller crypto.Address, asset assets.ID, ratio fixedpoint.Ratio) error {
	if err := k.requireRoot(caller); err != nil {
		return err
	}
	k.cfg.AdjustLiquidationCollateralThreshold(asset, ratio)
	return nil
}

// --- issue commands ---

// RequestIssue implements request_issue.
func (k *Kernel) RequestIssue(user, vault crypto.Address, amountWrapped, griefingCollateral *big.Int) (*issue.Request, error) {
	tip, err := k.relay.RelayTipHeight()
	if err != nil {
		return nil, err
	}
	var req *issue.Request
	err = k.atomic("request_issue", func() error {
		r, err := k.issueMachine.RequestIssue(user, vault, amountWrapped, griefingCollateral, k.height, tip)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointIssue)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveIssueRequest(req); err != nil {
		return nil, err
	}
	return req, k.persistVault(vault)
}

// ExecuteIssue implements execute_issue.
func (k *Kernel) ExecuteIssue(issueID string, proof btcrelay.Proof, rawTx []byte, caller crypto.Address) (*issue.Request, error) {
	tip, err := k.relay.RelayTipHeight()
	if err != nil {
		return nil, err
	}
	var req *issue.Request
	err = k.atomic("execute_issue", func() error {
		r, err := k.issueMachine.ExecuteIssue(issueID, proof, rawTx, k.height, tip, caller)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointIssue, k.checkpointRefund)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveIssueRequest(req); err != nil {
		return nil, err
	}
	if req.RefundID != "" {
		if refundReq, rerr := k.refundMachine.Request(req.RefundID); rerr == nil {
			if err := k.state.SaveRefundRequest(refundReq); err != nil {
				return nil, err
			}
		}
	}
	if err := k.persistVault(req.Vault); err != nil {
		return nil, err
	}
	return req, k.persistBalance(req.User, k.cfg.WrappedAsset())
}

// CancelIssue implements cancel_issue.
func (k *Kernel) CancelIssue(issueID string) (*issue.Request, error) {
	tip, err := k.relay.RelayTipHeight()
	if err != nil {
		return nil, err
	}
	var req *issue.Request
	err = k.atomic("cancel_issue", func() error {
		r, err := k.issueMachine.CancelIssue(issueID, k.height, tip)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointIssue)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveIssueRequest(req); err != nil {
		return nil, err
	}
	return req, k.persistVault(req.Vault)
}

// SetIssuePeriod implements the root-only set_issue_period.
func (k *Kernel) SetIssuePeriod(caller crypto.Address, blocks uint64) error {
	if err := k.requireRoot(caller); err != nil {
		return err
	}
	k.cfg.SetIssuePeriod(blocks)
	return nil
}

// --- redeem commands ---

// RequestRedeem implements request_redeem.
func (k *Kernel) RequestRedeem(user, vault crypto.Address, amountWrapped *big.Int, btcAddress string) (*redeem.Request, error) {
	tip, err := k.relay.RelayTipHeight()
	if err != nil {
		return nil, err
	}
	var req *redeem.Request
	err = k.atomic("request_redeem", func() error {
		r, err := k.redeemMachine.RequestRedeem(user, vault, amountWrapped, btcAddress, k.height, tip)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointRedeem)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveRedeemRequest(req); err != nil {
		return nil, err
	}
	if err := k.persistVault(vault); err != nil {
		return nil, err
	}
	return req, k.persistBalance(user, k.cfg.WrappedAsset())
}

// ExecuteRedeem implements execute_redeem.
func (k *Kernel) ExecuteRedeem(redeemID string, proof btcrelay.Proof, rawTx []byte) (*redeem.Request, error) {
	var req *redeem.Request
	err := k.atomic("execute_redeem", func() error {
		r, err := k.redeemMachine.ExecuteRedeem(redeemID, proof, rawTx)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointRedeem)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveRedeemRequest(req); err != nil {
		return nil, err
	}
	return req, k.persistVault(req.Vault)
}

// CancelRedeem implements cancel_redeem.
func (k *Kernel) CancelRedeem(redeemID string, reimburse bool) (*redeem.Request, error) {
	tip, err := k.relay.RelayTipHeight()
	if err != nil {
		return nil, err
	}
	var req *redeem.Request
	err = k.atomic("cancel_redeem", func() error {
		r, err := k.redeemMachine.CancelRedeem(redeemID, reimburse, k.height, tip)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointRedeem)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveRedeemRequest(req); err != nil {
		return nil, err
	}
	return req, k.persistVault(req.Vault)
}

// SetRedeemPeriod implements the root-only set_redeem_period.
func (k *Kernel) SetRedeemPeriod(caller crypto.Address, blocks uint64) error {
	if err := k.requireRoot(caller); err != nil {
		return err
	}
	k.cfg.SetRedeemPeriod(blocks)
	return nil
}

// --- replace commands ---

// RequestReplace implements request_replace.
func (k *Kernel) RequestReplace(oldVault crypto.Address, amount, griefingCollateral *big.Int) (*replace.Request, error) {
	var req *replace.Request
	err := k.atomic("request_replace", func() error {
		r, err := k.replaceMachine.RequestReplace(oldVault, amount, griefingCollateral, k.height)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointReplace)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveReplaceRequest(req); err != nil {
		return nil, err
	}
	return req, k.persistVault(oldVault)
}

// AcceptReplace implements accept_replace.
func (k *Kernel) AcceptReplace(requestID string, newVault crypto.Address, amount, collateral *big.Int, btcAddress string) (*replace.Request, error) {
	tip, err := k.relay.RelayTipHeight()
	if err != nil {
		return nil, err
	}
	var req *replace.Request
	err = k.atomic("accept_replace", func() error {
		r, err := k.replaceMachine.AcceptReplace(requestID, newVault, amount, collateral, btcAddress, k.height, tip)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointReplace)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveReplaceRequest(req); err != nil {
		return nil, err
	}
	if err := k.persistVault(req.OldVault); err != nil {
		return nil, err
	}
	return req, k.persistVault(newVault)
}

// ExecuteReplace implements execute_replace.
func (k *Kernel) ExecuteReplace(requestID string, proof btcrelay.Proof, rawTx []byte) (*replace.Request, error) {
	var req *replace.Request
	err := k.atomic("execute_replace", func() error {
		r, err := k.replaceMachine.ExecuteReplace(requestID, proof, rawTx)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointReplace)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveReplaceRequest(req); err != nil {
		return nil, err
	}
	if err := k.persistVault(req.OldVault); err != nil {
		return nil, err
	}
	return req, k.persistVault(req.NewVault)
}

// CancelReplace implements cancel_replace.
func (k *Kernel) CancelReplace(requestID string) (*replace.Request, error) {
	tip, err := k.relay.RelayTipHeight()
	if err != nil {
		return nil, err
	}
	var req *replace.Request
	err = k.atomic("cancel_replace", func() error {
		r, err := k.replaceMachine.CancelReplace(requestID, k.height, tip)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointReplace)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveReplaceRequest(req); err != nil {
		return nil, err
	}
	return req, k.persistVault(req.OldVault)
}

// SetReplacePeriod implements the root-only set_replace_period.
func (k *Kernel) SetReplacePeriod(caller crypto.Address, blocks uint64) error {
	if err := k.requireRoot(caller); err != nil {
		return err
	}
	k.cfg.SetReplacePeriod(blocks)
	return nil
}

// --- refund commands ---

// OpenRefund implements the refund side of execute_issue's overpay path,
// exposed directly for a kernel caller that wants to open one without
// going through ExecuteIssue (e.g. a migration tool backfilling a refund
// the original run failed to open).
func (k *Kernel) OpenRefund(vault, issuer crypto.Address, wrappedAmount *big.Int, btcAddress, issueID string) (string, error) {
	var id string
	err := k.atomic("open_refund", func() error {
		refundID, err := k.refundMachine.OpenRefund(vault, issuer, wrappedAmount, btcAddress, issueID)
		if err != nil {
			return err
		}
		id = refundID
		return nil
	}, k.checkpointRegistry, k.checkpointRefund)
	if err != nil {
		return "", err
	}
	req, err := k.refundMachine.Request(id)
	if err != nil {
		return "", err
	}
	return id, k.state.SaveRefundRequest(req)
}

// ExecuteRefund implements execute_refund.
func (k *Kernel) ExecuteRefund(refundID string, proof btcrelay.Proof, rawTx []byte) (*refund.Request, error) {
	var req *refund.Request
	err := k.atomic("execute_refund", func() error {
		r, err := k.refundMachine.ExecuteRefund(refundID, proof, rawTx)
		if err != nil {
			return err
		}
		req = r
		return nil
	}, k.checkpointRegistry, k.checkpointStaking, k.checkpointLedger, k.checkpointRefund)
	if err != nil {
		return nil, err
	}
	if err := k.state.SaveRefundRequest(req); err != nil {
		return nil, err
	}
	return req, k.persistVault(req.Vault)
}

// --- oracle commands ---

// FeedValues implements feed_values(source, [(key, value)]).
func (k *Kernel) FeedValues(source string, now time.Time, values map[oracle.Key]fixedpoint.Ratio) error {
	return k.oracle.FeedValues(source, now, values)
}

// InsertAuthorizedOracle implements the root-only insert_authorized_oracle.
func (k *Kernel) InsertAuthorizedOracle(caller crypto.Address, source string) error {
	if err := k.requireRoot(caller); err != nil {
		return err
	}
	k.oracle.InsertAuthorizedSource(source)
	return nil
}

// RemoveAuthorizedOracle implements the root-only remove_authorized_oracle.
func (k *Kernel) RemoveAuthorizedOracle(caller crypto.Address, source string) error {
	if err := k.requireRoot(caller); err != nil {
		return err
	}
	k.oracle.RemoveAuthorizedSource(source)
	return nil
}

// --- read-only queries (pass straight through to the registry) ---

func (k *Kernel) GetVaultCollateral(account crypto.Address) (*big.Int, error) {
	return k.registry.GetVaultCollateral(account)
}

func (k *Kernel) GetVaultTotalCollateral(account crypto.Address) (*big.Int, error) {
	return k.registry.GetVaultTotalCollateral(account)
}

func (k *Kernel) GetPremiumRedeemVaults() ([]vaultregistry.VaultSummary, error) {
	return k.registry.GetPremiumRedeemVaults()
}

func (k *Kernel) GetVaultsWithIssuableTokens() ([]vaultregistry.VaultSummary, error) {
	return k.registry.GetVaultsWithIssuableTokens()
}

func (k *Kernel) GetVaultsWithRedeemableTokens() []vaultregistry.VaultSummary {
	return k.registry.GetVaultsWithRedeemableTokens()
}

func (k *Kernel) GetCollateralizationFromVault(account crypto.Address, onlyIssued bool) (numerator, denominator *big.Int, err error) {
	return k.registry.GetCollateralizationFromVault(account, onlyIssued)
}

func (k *Kernel) GetRequiredCollateralForWrapped(amount *big.Int, asset assets.ID) (*big.Int, error) {
	return k.registry.GetRequiredCollateralForWrapped(amount, asset)
}

func (k *Kernel) GetRequiredCollateralForVault(account crypto.Address) (*big.Int, error) {
	return k.registry.GetRequiredCollateralForVault(account)
}

// --- per-tick hook ---

// Tick implements spec.md §5's per-tick hook: it advances the kernel's own
// height, aggregates the oracle's fed-in readings, and runs the off-chain
// reporter's scan for undercollateralized vaults. It runs to completion
// before the next command is accepted, same as the deterministic per-block
// hooks every host runtime expects. Expiry-driven scans are left to callers:
// a request only needs cancelling once someone (a user, a keeper) calls
// CancelIssue/CancelRedeem/CancelReplace against it, so there is no
// separate expiry sweep to run here beyond the reporter's liquidation scan.
func (k *Kernel) Tick(height uint64, now time.Time) ([]crypto.Address, error) {
	k.height = height
	k.oracle.Aggregate(now)
	reported, err := k.reporter.Tick()
	for _, account := range reported {
		if perr := k.persistVault(account); perr != nil && err == nil {
			err = perr
		}
	}
	if len(reported) > 0 {
		k.log.Info("tick reported undercollateralized vaults", "height", height, "count", len(reported))
	}
	k.metrics.observe("tick", err)
	return reported, err
}
