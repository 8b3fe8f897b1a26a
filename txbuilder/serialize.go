package txbuilder

import (
	"bytes"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// Serialize returns the segwit wire encoding of the signed transaction.
func Serialize(st *SignedTransaction) []byte {
	var buf bytes.Buffer
	buf.Grow(st.Tx.SerializeSize())
	st.Tx.Serialize(&buf)
	return buf.Bytes()
}

// Deserialize decodes a wire encoded transaction, with or without witness
// data. Trailing bytes are rejected.
func Deserialize(b []byte) (*wire.MsgTx, error) {
	r := bytes.NewReader(b)
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(r); err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(ErrDecoding, "%d trailing bytes", r.Len())
	}
	return tx, nil
}
