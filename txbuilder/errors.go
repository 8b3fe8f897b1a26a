package txbuilder

import "github.com/pkg/errors"

var (
	// ErrCommitmentMismatch means the UTXO is not locked to the multisig
	// commitment being spent from.
	ErrCommitmentMismatch = errors.New("utxo does not belong to the multisig commitment")

	// ErrInsufficientFunds means the send amount exceeds the UTXO amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount means the send amount is zero or negative.
	ErrInvalidAmount = errors.New("invalid send amount")

	// ErrFeeTooLow means the implicit fee is not positive or is below the
	// minimum fee rate.
	ErrFeeTooLow = errors.New("fee too low")

	// ErrDuplicateSigner means a signature for the signer index is already
	// present.
	ErrDuplicateSigner = errors.New("signer already signed")

	// ErrInvalidSignature means the signature is malformed or does not
	// verify against the signer's key and the transaction sighash.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrSignatureOrder means the assembled witness would not satisfy
	// OP_CHECKMULTISIG.
	ErrSignatureOrder = errors.New("witness signatures out of order")

	// ErrInsufficientSignatures means fewer than threshold signatures have
	// been collected.
	ErrInsufficientSignatures = errors.New("insufficient signatures")

	// ErrDecoding means transaction bytes, an address or a PSBT could not be
	// decoded.
	ErrDecoding = errors.New("decoding error")

	// ErrClosed means the signature set was already finalized or failed.
	ErrClosed = errors.New("signature set is closed")
)
