package txbuilder

import (
	"bytes"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// SignedTransaction is a finalized spend ready for broadcast.
type SignedTransaction struct {
	Tx    *wire.MsgTx
	Bytes []byte
	TxID  chainhash.Hash
}

// Finalize assembles the witness from the first threshold signatures in
// witness script key order and returns the signed transaction. The set is
// marked finalized on success.
func Finalize(tx *UnsignedTx, set *PartialSignatureSet) (*SignedTransaction, error) {
	sighash, err := ComputeSighash(tx, tx.Commitment)
	if err != nil {
		return nil, err
	}

	set.mtx.Lock()
	defer set.mtx.Unlock()

	if set.failure != "" {
		return nil, errors.Wrap(ErrClosed, set.failure)
	}
	if !bytes.Equal(sighash, set.sighash) {
		return nil, errors.Wrapf(ErrInvalidSignature, "signature set does not belong to transaction %s", tx.TxHash())
	}
	if len(set.sigs) < set.threshold {
		return nil, errors.Wrapf(ErrInsufficientSignatures, "have %d of %d", len(set.sigs), set.threshold)
	}

	idxs := set.indices()[:set.threshold]
	witness := make(wire.TxWitness, 0, set.threshold+2)
	witness = append(witness, nil)
	for _, i := range idxs {
		witness = append(witness, set.sigs[i])
	}
	witness = append(witness, tx.Commitment.WitnessScript)

	if err := checkMultiSigStack(witness, set.sighash, set.pubKeys, set.threshold); err != nil {
		return nil, errors.Wrap(ErrSignatureOrder, err.Error())
	}

	msg := tx.MsgTx()
	msg.TxIn[0].Witness = witness

	st := &SignedTransaction{
		Tx:   msg,
		TxID: msg.TxHash(),
	}
	st.Bytes = Serialize(st)
	set.finalized = true
	return st, nil
}

// checkMultiSigStack applies OP_CHECKMULTISIG matching to the witness: the
// dummy element must be empty, and each signature must match a key that
// comes after the key matched by the previous signature.
func checkMultiSigStack(witness wire.TxWitness, sighash []byte, pubKeys [][]byte, threshold int) error {
	if len(witness) != threshold+2 {
		return errors.Errorf("witness has %d elements, expected %d", len(witness), threshold+2)
	}
	if len(witness[0]) != 0 {
		return errors.New("dummy element is not empty")
	}
	sigs := witness[1 : len(witness)-1]
	k := 0
	for n, sig := range sigs {
		for k < len(pubKeys) && verifySignature(sig, sighash, pubKeys[k]) != nil {
			k++
		}
		if k == len(pubKeys) {
			return errors.Errorf("signature %d matches no remaining key", n)
		}
		k++
	}
	return nil
}
