package txbuilder

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// maxDERSigLen is the largest DER signature plus its sighash byte.
const maxDERSigLen = 73

// EstimateVSize returns the upper bound virtual size of a one input, one
// output transaction spending a P2WSH multisig output with threshold
// signatures.
func EstimateVSize(threshold, witnessScriptLen, outputScriptLen int) int64 {
	base := 4 + // version
		wire.VarIntSerializeSize(1) +
		chainhash.HashSize + 4 + // outpoint
		wire.VarIntSerializeSize(0) + // empty scriptSig
		4 + // sequence
		wire.VarIntSerializeSize(1) +
		8 + wire.VarIntSerializeSize(uint64(outputScriptLen)) + outputScriptLen +
		4 // locktime

	witness := 2 + // marker and flag
		wire.VarIntSerializeSize(uint64(threshold+2)) +
		1 + // OP_CHECKMULTISIG dummy element
		threshold*(1+maxDERSigLen) +
		wire.VarIntSerializeSize(uint64(witnessScriptLen)) + witnessScriptLen

	weight := base*4 + witness
	return int64((weight + 3) / 4)
}
