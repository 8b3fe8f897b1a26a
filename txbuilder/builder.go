// Package txbuilder builds, signs and finalizes transactions spending a
// single P2WSH multisig output to a single destination.
//
// A spend moves through Begin, AddSignature (once per signer, in any order)
// and Finalize. None of the operations perform I/O.
package txbuilder

import (
	"bytes"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/cpacia/multisig/multisig"
	"github.com/pkg/errors"
)

const (
	// TxVersion is the version of every transaction built here.
	TxVersion = 2

	// InputSequence signals replace-by-fee and leaves the locktime disabled.
	InputSequence = 0xfffffffd

	// DefaultMinFeeRate is the default minimum fee rate in sat/vbyte.
	DefaultMinFeeRate = 1
)

// UTXOReference identifies the funding output being spent. It comes from
// outside the builder and is only trusted after Begin checks it against the
// commitment.
type UTXOReference struct {
	TxID          chainhash.Hash
	OutputIndex   uint32
	Amount        int64
	LockingScript []byte
	Confirmations int64
}

// OutPoint returns the wire outpoint of the UTXO.
func (u UTXOReference) OutPoint() *wire.OutPoint {
	return wire.NewOutPoint(&u.TxID, u.OutputIndex)
}

// SpendRequest pays SendAmount of the UTXO to Destination. The remainder
// is the fee.
type SpendRequest struct {
	UTXO        UTXOReference
	Destination string
	SendAmount  int64
}

// Options configures Begin.
type Options struct {
	MinFeeRate int64
	Params     *chaincfg.Params
}

// Option is a functional option for Begin.
type Option func(*Options) error

// MinFeeRate sets the minimum fee rate in sat/vbyte.
func MinFeeRate(rate int64) Option {
	return func(o *Options) error {
		if rate < 0 {
			return errors.Errorf("negative fee rate %d", rate)
		}
		o.MinFeeRate = rate
		return nil
	}
}

// Params sets the network the destination address must belong to.
func Params(params *chaincfg.Params) Option {
	return func(o *Options) error {
		if params == nil {
			return errors.New("nil network params")
		}
		o.Params = params
		return nil
	}
}

func defaultOptions() *Options {
	return &Options{
		MinFeeRate: DefaultMinFeeRate,
		Params:     &chaincfg.TestNet3Params,
	}
}

// UnsignedTx is a spend that has passed validation and is ready to be
// signed.
type UnsignedTx struct {
	tx *wire.MsgTx

	Request    SpendRequest
	Commitment *multisig.Commitment
	Fee        int64
	Params     *chaincfg.Params
}

// Begin validates the request against the commitment and builds the
// unsigned transaction.
func Begin(req SpendRequest, c *multisig.Commitment, opts ...Option) (*UnsignedTx, error) {
	options := defaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	outpoint := req.UTXO.OutPoint()
	if req.SendAmount <= 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "send amount %d", req.SendAmount)
	}
	if req.SendAmount > req.UTXO.Amount {
		return nil, errors.Wrapf(ErrInsufficientFunds, "utxo %s holds %d, send amount %d", outpoint, req.UTXO.Amount, req.SendAmount)
	}
	if c == nil || !bytes.Equal(req.UTXO.LockingScript, c.OutputScript) {
		return nil, errors.Wrapf(ErrCommitmentMismatch, "utxo %s", outpoint)
	}
	threshold, _, err := multisig.ParseWitnessScript(c.WitnessScript)
	if err != nil {
		return nil, err
	}

	payScript, err := destinationScript(req.Destination, options.Params)
	if err != nil {
		return nil, err
	}

	fee := req.UTXO.Amount - req.SendAmount
	if fee <= 0 {
		return nil, errors.Wrapf(ErrFeeTooLow, "utxo %s: fee %d", outpoint, fee)
	}
	vsize := EstimateVSize(threshold, len(c.WitnessScript), len(payScript))
	if minFee := options.MinFeeRate * vsize; fee < minFee {
		return nil, errors.Wrapf(ErrFeeTooLow, "utxo %s: fee %d below minimum %d (%d sat/vbyte, %d vbytes)", outpoint, fee, minFee, options.MinFeeRate, vsize)
	}

	tx := wire.NewMsgTx(TxVersion)
	in := wire.NewTxIn(outpoint, nil, nil)
	in.Sequence = InputSequence
	tx.AddTxIn(in)
	tx.AddTxOut(wire.NewTxOut(req.SendAmount, payScript))
	tx.LockTime = 0

	return &UnsignedTx{
		tx:         tx,
		Request:    req,
		Commitment: c,
		Fee:        fee,
		Params:     options.Params,
	}, nil
}

// Load rebuilds an UnsignedTx from its serialization. The transaction must
// spend utxo with a single output, as produced by Begin.
func Load(raw []byte, utxo UTXOReference, c *multisig.Commitment, params *chaincfg.Params) (*UnsignedTx, error) {
	tx, err := Deserialize(raw)
	if err != nil {
		return nil, err
	}
	if len(tx.TxIn) != 1 || len(tx.TxOut) != 1 {
		return nil, errors.Wrapf(ErrDecoding, "expected 1 input and 1 output, got %d and %d", len(tx.TxIn), len(tx.TxOut))
	}
	if tx.TxIn[0].PreviousOutPoint != *utxo.OutPoint() {
		return nil, errors.Wrapf(ErrCommitmentMismatch, "transaction spends %s, not %s", tx.TxIn[0].PreviousOutPoint, utxo.OutPoint())
	}
	if c == nil || !bytes.Equal(utxo.LockingScript, c.OutputScript) {
		return nil, errors.Wrapf(ErrCommitmentMismatch, "utxo %s", utxo.OutPoint())
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(tx.TxOut[0].PkScript, params)
	if err != nil || len(addrs) != 1 {
		return nil, errors.Wrap(ErrDecoding, "output script has no destination address")
	}
	for _, in := range tx.TxIn {
		in.Witness = nil
	}
	return &UnsignedTx{
		tx: tx,
		Request: SpendRequest{
			UTXO:        utxo,
			Destination: addrs[0].EncodeAddress(),
			SendAmount:  tx.TxOut[0].Value,
		},
		Commitment: c,
		Fee:        utxo.Amount - tx.TxOut[0].Value,
		Params:     params,
	}, nil
}

// MsgTx returns a copy of the unsigned wire transaction.
func (u *UnsignedTx) MsgTx() *wire.MsgTx {
	return u.tx.Copy()
}

// TxHash returns the transaction id. It does not change when witnesses are
// added.
func (u *UnsignedTx) TxHash() chainhash.Hash {
	return u.tx.TxHash()
}

// Bytes returns the serialized unsigned transaction.
func (u *UnsignedTx) Bytes() []byte {
	var buf bytes.Buffer
	u.tx.Serialize(&buf)
	return buf.Bytes()
}

func destinationScript(dest string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(dest, params)
	if err != nil {
		return nil, errors.Wrapf(ErrDecoding, "destination %q: %s", dest, err)
	}
	if !addr.IsForNet(params) {
		return nil, errors.Wrapf(ErrDecoding, "destination %q is not a %s address", dest, params.Name)
	}
	return txscript.PayToAddrScript(addr)
}
