package txbuilder

import (
	"bytes"
	"encoding/binary"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/cpacia/multisig/multisig"
	"github.com/pkg/errors"
)

// SigHashType is the only sighash type produced and accepted.
const SigHashType = txscript.SigHashAll

// ComputeSighash returns the BIP143 SIGHASH_ALL digest every signer signs
// for the single input of tx. The witness script is the script code.
func ComputeSighash(tx *UnsignedTx, c *multisig.Commitment) ([]byte, error) {
	if c == nil || tx.Commitment == nil || !bytes.Equal(c.WitnessScript, tx.Commitment.WitnessScript) {
		return nil, errors.Wrapf(ErrCommitmentMismatch, "utxo %s", tx.Request.UTXO.OutPoint())
	}
	return witnessSighash(tx.tx, 0, c.WitnessScript, tx.Request.UTXO.Amount), nil
}

func witnessSighash(msg *wire.MsgTx, idx int, witnessScript []byte, amount int64) []byte {
	var (
		prevouts  bytes.Buffer
		sequences bytes.Buffer
		outputs   bytes.Buffer
		preimage  bytes.Buffer
		scratch   [8]byte
	)
	putUint32 := func(w *bytes.Buffer, v uint32) {
		binary.LittleEndian.PutUint32(scratch[:4], v)
		w.Write(scratch[:4])
	}
	putUint64 := func(w *bytes.Buffer, v uint64) {
		binary.LittleEndian.PutUint64(scratch[:], v)
		w.Write(scratch[:])
	}

	for _, in := range msg.TxIn {
		prevouts.Write(in.PreviousOutPoint.Hash[:])
		putUint32(&prevouts, in.PreviousOutPoint.Index)
		putUint32(&sequences, in.Sequence)
	}
	for _, out := range msg.TxOut {
		putUint64(&outputs, uint64(out.Value))
		wire.WriteVarBytes(&outputs, 0, out.PkScript)
	}

	in := msg.TxIn[idx]
	putUint32(&preimage, uint32(msg.Version))
	preimage.Write(chainhash.DoubleHashB(prevouts.Bytes()))
	preimage.Write(chainhash.DoubleHashB(sequences.Bytes()))
	preimage.Write(in.PreviousOutPoint.Hash[:])
	putUint32(&preimage, in.PreviousOutPoint.Index)
	wire.WriteVarBytes(&preimage, 0, witnessScript)
	putUint64(&preimage, uint64(amount))
	putUint32(&preimage, in.Sequence)
	preimage.Write(chainhash.DoubleHashB(outputs.Bytes()))
	putUint32(&preimage, msg.LockTime)
	putUint32(&preimage, uint32(SigHashType))

	return chainhash.DoubleHashB(preimage.Bytes())
}
