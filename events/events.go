// Package events defines the kernel's typed event constructors, built on
// core/types.Event: every mutation emits one, naming the affected accounts
// and deltas, for downstream indexers.
package events

import (
	"strconv"

	"vaultbridge/core/types"
)

const (
	TypeVaultRegistered        = "vault.registered"
	TypeCollateralDeposited    = "vault.collateral.deposited"
	TypeCollateralWithdrawn    = "vault.collateral.withdrawn"
	TypeVaultLiquidated        = "vault.liquidated"
	TypeVaultBanned            = "vault.banned"
	TypeIssueRequested         = "issue.requested"
	TypeIssueCompleted         = "issue.completed"
	TypeIssueCancelled         = "issue.cancelled"
	TypeRedeemRequested        = "redeem.requested"
	TypeRedeemCompleted        = "redeem.completed"
	TypeRedeemCancelled        = "redeem.cancelled"
	TypeReplaceRequested       = "replace.requested"
	TypeReplaceAccepted        = "replace.accepted"
	TypeReplaceCompleted       = "replace.completed"
	TypeReplaceCancelled       = "replace.cancelled"
	TypeRefundRequested        = "refund.requested"
	TypeRefundCompleted        = "refund.completed"
	TypeOracleSourceInserted   = "oracle.source.inserted"
	TypeOracleSourceRemoved    = "oracle.source.removed"
	TypeUndercollateralization = "reporter.undercollateralized"
)

// New builds a typed event from a flat attribute map. Callers in each
// subsystem provide small constructors below rather than building the map
// ad hoc, to keep attribute names stable for indexers.
func New(eventType string, attrs map[string]string) *types.Event {
	return &types.Event{Type: eventType, Attributes: attrs}
}

// VaultRegistered reports a new vault registration and its opening
// collateral deposit.
func VaultRegistered(vault, collateralAsset, collateral string) *types.Event {
	return New(TypeVaultRegistered, map[string]string{
		"vault":            vault,
		"collateral_asset": collateralAsset,
		"collateral":       collateral,
	})
}

// CollateralDeposited reports a successful deposit_collateral command.
func CollateralDeposited(vault, asset, amount string) *types.Event {
	return New(TypeCollateralDeposited, map[string]string{
		"vault": vault, "asset": asset, "amount": amount,
	})
}

// CollateralWithdrawn reports a successful withdraw_collateral command.
func CollateralWithdrawn(vault, asset, amount string) *types.Event {
	return New(TypeCollateralWithdrawn, map[string]string{
		"vault": vault, "asset": asset, "amount": amount,
	})
}

// VaultLiquidated reports a vault transitioning to Liquidated or
// CommittedTheft.
func VaultLiquidated(vault, status string, liquidatedCollateral string) *types.Event {
	return New(TypeVaultLiquidated, map[string]string{
		"vault": vault, "status": status, "liquidated_collateral": liquidatedCollateral,
	})
}

// VaultBanned reports a punitive ban applied after a cancelled redeem.
func VaultBanned(vault string, untilHeight uint64) *types.Event {
	return New(TypeVaultBanned, map[string]string{
		"vault": vault, "banned_until": strconv.FormatUint(untilHeight, 10),
	})
}

// IssueRequested reports a new pending IssueRequest.
func IssueRequested(id, user, vault, amount, depositAddress string) *types.Event {
	return New(TypeIssueRequested, map[string]string{
		"id": id, "user": user, "vault": vault, "amount": amount, "deposit_address": depositAddress,
	})
}

// IssueCompleted reports a completed issue, optionally naming a spun-off
// RefundRequest id when the payment overshot what the vault could back.
func IssueCompleted(id, user, vault, amount, fee, refundID string) *types.Event {
	return New(TypeIssueCompleted, map[string]string{
		"id": id, "user": user, "vault": vault, "amount": amount, "fee": fee, "refund_id": refundID,
	})
}

// IssueCancelled reports an expired issue request cancellation.
func IssueCancelled(id, vault string) *types.Event {
	return New(TypeIssueCancelled, map[string]string{"id": id, "vault": vault})
}

// RedeemRequested reports a new pending RedeemRequest.
func RedeemRequested(id, user, vault, amount, btcAddress string) *types.Event {
	return New(TypeRedeemRequested, map[string]string{
		"id": id, "user": user, "vault": vault, "amount": amount, "btc_address": btcAddress,
	})
}

// RedeemCompleted reports a completed redeem, naming any premium paid.
func RedeemCompleted(id, vault, amount, premium string) *types.Event {
	return New(TypeRedeemCompleted, map[string]string{
		"id": id, "vault": vault, "amount": amount, "premium": premium,
	})
}

// RedeemCancelled reports a cancelled redeem and its outcome
// ("reimbursed" or "retried").
func RedeemCancelled(id, vault, outcome string) *types.Event {
	return New(TypeRedeemCancelled, map[string]string{"id": id, "vault": vault, "outcome": outcome})
}

// ReplaceRequested reports a new ReplaceRequest opened by the old vault.
func ReplaceRequested(id, oldVault, amount string) *types.Event {
	return New(TypeReplaceRequested, map[string]string{"id": id, "old_vault": oldVault, "amount": amount})
}

// ReplaceAccepted reports a new vault accepting a replace request.
func ReplaceAccepted(id, oldVault, newVault, amount string) *types.Event {
	return New(TypeReplaceAccepted, map[string]string{
		"id": id, "old_vault": oldVault, "new_vault": newVault, "amount": amount,
	})
}

// ReplaceCompleted reports a completed replace.
func ReplaceCompleted(id, oldVault, newVault, amount string) *types.Event {
	return New(TypeReplaceCompleted, map[string]string{
		"id": id, "old_vault": oldVault, "new_vault": newVault, "amount": amount,
	})
}

// ReplaceCancelled reports an expired replace request cancellation.
func ReplaceCancelled(id, oldVault, newVault string) *types.Event {
	return New(TypeReplaceCancelled, map[string]string{"id": id, "old_vault": oldVault, "new_vault": newVault})
}

// RefundRequested reports a new RefundRequest opened alongside an overpaid
// issue.
func RefundRequested(id, issuer, vault, amount string) *types.Event {
	return New(TypeRefundRequested, map[string]string{
		"id": id, "issuer": issuer, "vault": vault, "amount": amount,
	})
}

// RefundCompleted reports a completed refund.
func RefundCompleted(id, vault string) *types.Event {
	return New(TypeRefundCompleted, map[string]string{"id": id, "vault": vault})
}

// UndercollateralizationReported reports the off-chain reporter's
// report_undercollateralized_vault submission.
func UndercollateralizationReported(vault string) *types.Event {
	return New(TypeUndercollateralization, map[string]string{"vault": vault})
}
