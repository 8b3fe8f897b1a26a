package txbuilder

import (
	"bytes"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil/psbt"
	"github.com/pkg/errors"
	"strings"
)

// ExportPSBT encodes tx and the signatures collected so far as a base64
// BIP174 packet so an external wallet can add its signature.
func ExportPSBT(tx *UnsignedTx, set *PartialSignatureSet) (string, error) {
	msg := tx.MsgTx()
	outpoints := make([]*wire.OutPoint, len(msg.TxIn))
	sequences := make([]uint32, len(msg.TxIn))
	for i, in := range msg.TxIn {
		op := in.PreviousOutPoint
		outpoints[i] = &op
		sequences[i] = in.Sequence
	}
	packet, err := psbt.New(outpoints, msg.TxOut, msg.Version, msg.LockTime, sequences)
	if err != nil {
		return "", err
	}

	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return "", err
	}
	utxo := tx.Request.UTXO
	if err := updater.AddInWitnessUtxo(wire.NewTxOut(utxo.Amount, utxo.LockingScript), 0); err != nil {
		return "", err
	}
	if err := updater.AddInWitnessScript(tx.Commitment.WitnessScript, 0); err != nil {
		return "", err
	}
	if err := updater.AddInSighashType(SigHashType, 0); err != nil {
		return "", err
	}

	if set != nil {
		set.mtx.RLock()
		for _, i := range set.indices() {
			packet.Inputs[0].PartialSigs = append(packet.Inputs[0].PartialSigs, &psbt.PartialSig{
				PubKey:    set.pubKeys[i],
				Signature: set.sigs[i],
			})
		}
		set.mtx.RUnlock()
	}
	return packet.B64Encode()
}

// ImportPSBT decodes a base64 packet for tx and returns a signature set
// holding every partial signature that verifies. A signature whose key is
// not in the witness script, or which fails verification, is an error.
func ImportPSBT(b64 string, tx *UnsignedTx) (*PartialSignatureSet, error) {
	packet, err := psbt.NewFromRawBytes(strings.NewReader(strings.TrimSpace(b64)), true)
	if err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	if packet.UnsignedTx.TxHash() != tx.TxHash() {
		return nil, errors.Wrapf(ErrDecoding, "packet spends transaction %s, expected %s", packet.UnsignedTx.TxHash(), tx.TxHash())
	}
	if len(packet.Inputs) != 1 {
		return nil, errors.Wrapf(ErrDecoding, "packet has %d inputs", len(packet.Inputs))
	}

	set, err := NewSignatureSet(tx)
	if err != nil {
		return nil, err
	}
	for _, ps := range packet.Inputs[0].PartialSigs {
		idx := -1
		for i, k := range set.pubKeys {
			if bytes.Equal(k, ps.PubKey) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, errors.Wrapf(ErrInvalidSignature, "public key %x is not in the witness script", ps.PubKey)
		}
		if err := set.AddSignature(idx, ps.Signature); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Merge adds every signature of other that s does not already hold. Both
// sets must belong to the same transaction.
func (s *PartialSignatureSet) Merge(other *PartialSignatureSet) error {
	if !bytes.Equal(s.sighash, other.sighash) {
		return errors.Wrap(ErrInvalidSignature, "signature sets belong to different transactions")
	}
	for _, i := range other.Indices() {
		if _, ok := s.Signature(i); ok {
			continue
		}
		sig, _ := other.Signature(i)
		if err := s.AddSignature(i, sig); err != nil {
			return err
		}
	}
	return nil
}
