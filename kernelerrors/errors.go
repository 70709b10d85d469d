// Package kernelerrors defines the closed set of sentinel error kinds the
// vault kernel surfaces to callers. Every kernel command aborts with full
// rollback on any of these; none are retried internally.
package kernelerrors

import "errors"

var (
	// Collateral / vault errors.
	ErrInsufficientCollateral        = errors.New("insufficient collateral")
	ErrInsufficientTokensCommitted   = errors.New("insufficient tokens committed")
	ErrExceedingVaultLimit           = errors.New("exceeding vault limit")
	ErrVaultNotFound                 = errors.New("vault not found")
	ErrVaultAlreadyRegistered        = errors.New("vault already registered")
	ErrVaultBanned                   = errors.New("vault banned")
	ErrVaultNotBelowLiquidationThreshold = errors.New("vault not below liquidation threshold")
	ErrReservedDepositAddress        = errors.New("deposit address already reserved")
	ErrInvalidPublicKey              = errors.New("invalid public key")
	ErrMaxNominationRatioViolation   = errors.New("max nomination ratio violation")
	ErrCurrencyCeilingExceeded       = errors.New("currency ceiling exceeded")
	ErrInvalidCurrency               = errors.New("invalid currency")
	ErrThresholdNotSet               = errors.New("threshold not set")
	ErrCeilingNotSet                 = errors.New("ceiling not set")
	ErrNoTokensIssued                = errors.New("no tokens issued")
	ErrNoVaultWithSufficientCollateral = errors.New("no vault with sufficient collateral")

	// Arithmetic.
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	ErrTryIntoIntError     = errors.New("integer conversion failed")

	// Currency ledger.
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientReserved = errors.New("insufficient reserved balance")

	// Request lifecycle.
	ErrRequestNotFound     = errors.New("request not found")
	ErrRequestCompleted    = errors.New("request already completed")
	ErrRequestCancelled    = errors.New("request already cancelled")
	ErrCommitPeriodExpired = errors.New("commit period expired")
	ErrTimeNotExpired      = errors.New("time not expired")
	ErrAmountBelowDustAmount = errors.New("amount below dust threshold")

	// Oracle.
	ErrMissingExchangeRate = errors.New("missing exchange rate")
	ErrUnauthorizedSource  = errors.New("oracle source not authorized")

	// Authorization.
	ErrUnauthorized = errors.New("caller not authorized")
)
