// Package multisig derives the P2WSH commitment for an M-of-N policy.
//
// The witness script is
//
//	OP_M <pubkey_1> ... <pubkey_N> OP_N OP_CHECKMULTISIG
//
// with the public keys in exactly the order given by the policy. The
// funding output script is OP_0 <sha256(witnessScript)>.
package multisig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
	"sort"
)

// MaxKeys is the largest number of keys a standard CHECKMULTISIG witness
// script can commit to with small-integer opcodes.
const MaxKeys = 16

// ErrPolicy is returned for any policy that cannot produce a valid witness
// script.
var ErrPolicy = errors.New("invalid multisig policy")

// Policy is an M-of-N spending policy over an ordered set of compressed
// public keys.
type Policy struct {
	Threshold  int
	Total      int
	PublicKeys [][]byte
}

// NewPolicy returns a policy whose total is the number of keys given.
func NewPolicy(threshold int, pubKeys [][]byte) Policy {
	keys := make([][]byte, len(pubKeys))
	for i, k := range pubKeys {
		keys[i] = append([]byte(nil), k...)
	}
	return Policy{
		Threshold:  threshold,
		Total:      len(keys),
		PublicKeys: keys,
	}
}

// Validate checks the policy fields and that every key is a valid
// compressed secp256k1 point.
func (p Policy) Validate() error {
	if p.Total < 1 || p.Total > MaxKeys {
		return errors.Wrapf(ErrPolicy, "total: %d not in [1, %d]", p.Total, MaxKeys)
	}
	if p.Threshold < 1 {
		return errors.Wrapf(ErrPolicy, "threshold: %d must be positive", p.Threshold)
	}
	if p.Threshold > p.Total {
		return errors.Wrapf(ErrPolicy, "threshold: %d exceeds total %d", p.Threshold, p.Total)
	}
	if len(p.PublicKeys) != p.Total {
		return errors.Wrapf(ErrPolicy, "publicKeys: have %d, total is %d", len(p.PublicKeys), p.Total)
	}
	for i, k := range p.PublicKeys {
		if len(k) != btcec.PubKeyBytesLenCompressed {
			return errors.Wrapf(ErrPolicy, "publicKeys[%d]: expected %d byte compressed key, got %d bytes", i, btcec.PubKeyBytesLenCompressed, len(k))
		}
		if _, err := btcec.ParsePubKey(k, btcec.S256()); err != nil {
			return errors.Wrapf(ErrPolicy, "publicKeys[%d]: %s", i, err)
		}
	}
	return nil
}

// SortKeys returns a copy of the keys in lexicographic order. Derive never
// sorts; callers who want a canonical order apply this themselves.
func SortKeys(pubKeys [][]byte) [][]byte {
	sorted := make([][]byte, len(pubKeys))
	copy(sorted, pubKeys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// Commitment is everything needed to fund and later spend a multisig output.
type Commitment struct {
	Address       string
	WitnessScript []byte
	OutputScript  []byte
	ScriptHash    []byte
}

// Derive builds the witness script for the policy and its P2WSH address,
// output script and script hash.
func Derive(policy Policy, params *chaincfg.Params) (*Commitment, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(smallIntOp(policy.Threshold))
	for _, k := range policy.PublicKeys {
		bldr.AddData(k)
	}
	bldr.AddOp(smallIntOp(policy.Total))
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	witnessScript, err := bldr.Script()
	if err != nil {
		return nil, errors.Wrap(ErrPolicy, err.Error())
	}
	return FromWitnessScript(witnessScript, params)
}

// FromWitnessScript computes the commitment for an existing witness script.
func FromWitnessScript(witnessScript []byte, params *chaincfg.Params) (*Commitment, error) {
	scriptHash := sha256.Sum256(witnessScript)
	addr, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], params)
	if err != nil {
		return nil, err
	}
	outputScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	return &Commitment{
		Address:       addr.EncodeAddress(),
		WitnessScript: witnessScript,
		OutputScript:  outputScript,
		ScriptHash:    scriptHash[:],
	}, nil
}

// Verify re-derives the commitment from the policy and reports whether it
// matches c byte for byte.
func (c *Commitment) Verify(policy Policy, params *chaincfg.Params) error {
	derived, err := Derive(policy, params)
	if err != nil {
		return err
	}
	switch {
	case !bytes.Equal(derived.WitnessScript, c.WitnessScript):
		return errors.Wrap(ErrPolicy, "witnessScript does not match policy")
	case !bytes.Equal(derived.OutputScript, c.OutputScript):
		return errors.Wrap(ErrPolicy, "output script does not match policy")
	case !bytes.Equal(derived.ScriptHash, c.ScriptHash):
		return errors.Wrap(ErrPolicy, "script hash does not match policy")
	case derived.Address != c.Address:
		return errors.Wrap(ErrPolicy, "address does not match policy")
	}
	return nil
}

// Policy parses the commitment's witness script back into a policy.
func (c *Commitment) Policy() (Policy, error) {
	threshold, keys, err := ParseWitnessScript(c.WitnessScript)
	if err != nil {
		return Policy{}, err
	}
	return Policy{Threshold: threshold, Total: len(keys), PublicKeys: keys}, nil
}

// ParseWitnessScript extracts the threshold and ordered public keys from a
// CHECKMULTISIG witness script.
func ParseWitnessScript(script []byte) (int, [][]byte, error) {
	if txscript.GetScriptClass(script) != txscript.MultiSigTy {
		return 0, nil, errors.Wrap(ErrPolicy, "witnessScript is not a multisig script")
	}
	numKeys, threshold, err := txscript.CalcMultiSigStats(script)
	if err != nil {
		return 0, nil, errors.Wrap(ErrPolicy, err.Error())
	}
	keys, err := txscript.PushedData(script)
	if err != nil {
		return 0, nil, errors.Wrap(ErrPolicy, err.Error())
	}
	if len(keys) != numKeys {
		return 0, nil, errors.Wrapf(ErrPolicy, "witnessScript pushes %d items for %d keys", len(keys), numKeys)
	}
	return threshold, keys, nil
}

func smallIntOp(n int) byte {
	return txscript.OP_1 + byte(n-1)
}

type commitmentJSON struct {
	Address       string `json:"address"`
	WitnessScript string `json:"witnessScript"`
	Output        string `json:"output"`
	Hash          string `json:"hash"`
}

// MarshalJSON encodes the commitment with hex fields.
func (c Commitment) MarshalJSON() ([]byte, error) {
	return json.Marshal(commitmentJSON{
		Address:       c.Address,
		WitnessScript: hex.EncodeToString(c.WitnessScript),
		Output:        hex.EncodeToString(c.OutputScript),
		Hash:          hex.EncodeToString(c.ScriptHash),
	})
}

// UnmarshalJSON decodes a commitment and checks that the address, output
// script and hash are consistent with the witness script. The network is
// not checked here; see CheckNetwork.
func (c *Commitment) UnmarshalJSON(b []byte) error {
	var cj commitmentJSON
	if err := json.Unmarshal(b, &cj); err != nil {
		return err
	}
	ws, err := hex.DecodeString(cj.WitnessScript)
	if err != nil {
		return errors.Wrap(err, "witnessScript")
	}
	out, err := hex.DecodeString(cj.Output)
	if err != nil {
		return errors.Wrap(err, "output")
	}
	hash, err := hex.DecodeString(cj.Hash)
	if err != nil {
		return errors.Wrap(err, "hash")
	}
	scriptHash := sha256.Sum256(ws)
	if !bytes.Equal(scriptHash[:], hash) {
		return errors.Wrap(ErrPolicy, "hash does not commit to witnessScript")
	}
	expectedOut, err := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(hash).Script()
	if err != nil {
		return err
	}
	if !bytes.Equal(out, expectedOut) {
		return errors.Wrap(ErrPolicy, "output does not pay to hash")
	}
	// Bech32 addresses carry their own network prefix so any registered
	// network decodes them.
	addr, err := btcutil.DecodeAddress(cj.Address, &chaincfg.MainNetParams)
	if err != nil {
		return errors.Wrapf(ErrPolicy, "address: %s", err)
	}
	if _, ok := addr.(*btcutil.AddressWitnessScriptHash); !ok || !bytes.Equal(addr.ScriptAddress(), hash) {
		return errors.Wrap(ErrPolicy, "address does not commit to hash")
	}
	*c = Commitment{
		Address:       cj.Address,
		WitnessScript: ws,
		OutputScript:  out,
		ScriptHash:    hash,
	}
	return nil
}

// CheckNetwork verifies the address encodes the output script on the
// given network.
func (c *Commitment) CheckNetwork(params *chaincfg.Params) error {
	derived, err := FromWitnessScript(c.WitnessScript, params)
	if err != nil {
		return err
	}
	if derived.Address != c.Address || !bytes.Equal(derived.OutputScript, c.OutputScript) {
		return errors.Wrapf(ErrPolicy, "commitment %s is not for network %s", c.Address, params.Name)
	}
	return nil
}
