// Package btcrelay declares the Bitcoin-side capability the kernel consumes
// but never implements: SPV-proof verification and relay-tip height
// tracking live in a separate relay process, out of scope here. This
// package names the interface the request machines call through so a real
// relay client can be wired in without touching requests/{issue,redeem,
// replace,refund}.
package btcrelay

import "vaultbridge/kernelerrors"

// ErrInvalidProof is returned by Verifier.VerifyAndValidateOpReturnTransaction when the
// supplied merkle proof or raw transaction fails SPV verification, pays an
// insufficient amount, pays the wrong recipient, or carries the wrong
// OP_RETURN payload.
var ErrInvalidProof = kernelerrors.ErrInvalidCurrency

// Proof is an opaque SPV merkle proof as produced by ParseMerkleProof.
type Proof struct {
	// MerkleBranch is the sibling hash path from the transaction to the
	// block's merkle root, root-end first.
	MerkleBranch [][]byte
	// TxIndex is the transaction's position within the block.
	TxIndex uint32
	// BlockHeight is the Bitcoin height the proof is anchored to.
	BlockHeight uint64
}

// Transaction is a parsed Bitcoin transaction's payment-relevant fields:
// the raw_tx's outputs, reduced to what verification needs.
type Transaction struct {
	// Outputs pays (recipient script, amount in satoshis).
	Outputs []TxOutput
	// OpReturn is the first OP_RETURN output's payload, or nil if absent.
	OpReturn []byte
}

// TxOutput is one output of a parsed Transaction.
type TxOutput struct {
	Recipient string
	AmountSat uint64
}

// Verifier is the external Bitcoin-relay capability consumed by
// requests/{issue,redeem,replace,refund}: SPV-proof verification, raw
// transaction parsing, and relay-tip/expiry height queries. A production
// kernel wires in a client that talks to a running relay; tests wire in a
// stub that returns canned proofs.
type Verifier interface {
	// VerifyAndValidateOpReturnTransaction verifies the merkle proof for
	// raw_tx against the relay's known chain, then checks that raw_tx pays
	// at least minAmountSat satoshis to recipient and carries opReturn as
	// its OP_RETURN payload. It returns ErrInvalidProof (or a wrapped
	// variant) on any failure.
	VerifyAndValidateOpReturnTransaction(proof Proof, rawTx []byte, recipient string, minAmountSat uint64, opReturn []byte) error

	// ParseMerkleProof decodes a wire-format SPV proof.
	ParseMerkleProof(raw []byte) (Proof, error)

	// ParseTransaction decodes a wire-format Bitcoin transaction.
	ParseTransaction(raw []byte) (Transaction, error)

	// RelayTipHeight returns the current Bitcoin height the relay has
	// confirmed, used as one half of a request's dual-clock expiry check.
	RelayTipHeight() (uint64, error)

	// BitcoinExpiryHeight computes the Bitcoin height a request opened at
	// openingTip expires at after period BTC blocks.
	BitcoinExpiryHeight(openingTip uint64, period uint64) uint64
}
