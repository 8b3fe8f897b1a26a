package txbuilder

import (
	"bytes"
	"github.com/btcsuite/btcd/btcec"
	"github.com/cpacia/multisig/multisig"
	"github.com/pkg/errors"
	"math/big"
	"sort"
	"sync"
)

// State is the position of a spend in the signing state machine.
type State int

const (
	StateUnsigned State = iota
	StatePartiallySigned
	StateFullySigned
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnsigned:
		return "unsigned"
	case StatePartiallySigned:
		return "partially_signed"
	case StateFullySigned:
		return "fully_signed"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for st := StateUnsigned; st <= StateFailed; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StateFailed, errors.Errorf("unknown state %q", s)
}

var halfOrder = new(big.Int).Rsh(btcec.S256().N, 1)

// Signer produces DER signatures over a 32 byte hash.
type Signer interface {
	PublicKey() []byte
	Sign(hash []byte) ([]byte, error)
}

// PartialSignatureSet collects signatures for one UnsignedTx keyed by signer
// index. The signer index is the position of the signer's public key in the
// witness script. It is safe for concurrent use.
type PartialSignatureSet struct {
	mtx sync.RWMutex

	sighash   []byte
	threshold int
	pubKeys   [][]byte
	sigs      map[int][]byte

	finalized bool
	failure   string
}

// NewSignatureSet returns an empty signature set for tx.
func NewSignatureSet(tx *UnsignedTx) (*PartialSignatureSet, error) {
	sighash, err := ComputeSighash(tx, tx.Commitment)
	if err != nil {
		return nil, err
	}
	threshold, keys, err := multisig.ParseWitnessScript(tx.Commitment.WitnessScript)
	if err != nil {
		return nil, err
	}
	return &PartialSignatureSet{
		sighash:   sighash,
		threshold: threshold,
		pubKeys:   keys,
		sigs:      make(map[int][]byte),
	}, nil
}

// Sighash returns the digest signers must sign.
func (s *PartialSignatureSet) Sighash() []byte {
	return append([]byte(nil), s.sighash...)
}

// Threshold returns the number of signatures Finalize requires.
func (s *PartialSignatureSet) Threshold() int {
	return s.threshold
}

// AddSignature verifies sig, a DER signature followed by the sighash type
// byte, against the key at signerIndex and stores it. A rejected signature
// leaves the set unchanged.
func (s *PartialSignatureSet) AddSignature(signerIndex int, sig []byte) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.finalized || s.failure != "" {
		return errors.Wrapf(ErrClosed, "signer %d", signerIndex)
	}
	if signerIndex < 0 || signerIndex >= len(s.pubKeys) {
		return errors.Wrapf(ErrInvalidSignature, "signer index %d out of range [0, %d)", signerIndex, len(s.pubKeys))
	}
	if _, ok := s.sigs[signerIndex]; ok {
		return errors.Wrapf(ErrDuplicateSigner, "signer %d", signerIndex)
	}
	if err := verifySignature(sig, s.sighash, s.pubKeys[signerIndex]); err != nil {
		return errors.Wrapf(ErrInvalidSignature, "signer %d: %s", signerIndex, err)
	}
	s.sigs[signerIndex] = append([]byte(nil), sig...)
	return nil
}

// Sign signs the sighash with signer and adds the result at signerIndex.
// The signer's public key must be the key at that index.
func (s *PartialSignatureSet) Sign(signerIndex int, signer Signer) ([]byte, error) {
	if signerIndex < 0 || signerIndex >= len(s.pubKeys) {
		return nil, errors.Wrapf(ErrInvalidSignature, "signer index %d out of range [0, %d)", signerIndex, len(s.pubKeys))
	}
	if !bytes.Equal(signer.PublicKey(), s.pubKeys[signerIndex]) {
		return nil, errors.Wrapf(ErrInvalidSignature, "signer %d: key is not in witness script position %d", signerIndex, signerIndex)
	}
	sig, err := signHash(s.sighash, signer)
	if err != nil {
		return nil, err
	}
	if err := s.AddSignature(signerIndex, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// Count returns the number of collected signatures.
func (s *PartialSignatureSet) Count() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.sigs)
}

// Complete reports whether at least threshold signatures are present.
func (s *PartialSignatureSet) Complete() bool {
	return s.Count() >= s.threshold
}

// Indices returns the signed signer indices in ascending order.
func (s *PartialSignatureSet) Indices() []int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.indices()
}

func (s *PartialSignatureSet) indices() []int {
	idxs := make([]int, 0, len(s.sigs))
	for i := range s.sigs {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs
}

// Signature returns the signature at signerIndex, if present.
func (s *PartialSignatureSet) Signature(signerIndex int) ([]byte, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	sig, ok := s.sigs[signerIndex]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), sig...), true
}

// State returns the current state of the spend.
func (s *PartialSignatureSet) State() State {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	switch {
	case s.failure != "":
		return StateFailed
	case s.finalized:
		return StateFinalized
	case len(s.sigs) == 0:
		return StateUnsigned
	case len(s.sigs) < s.threshold:
		return StatePartiallySigned
	}
	return StateFullySigned
}

// Fail moves the set to the failed state. Collected signatures are kept.
func (s *PartialSignatureSet) Fail(reason string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if reason == "" {
		reason = "unknown failure"
	}
	s.failure = reason
}

// Failure returns the failure reason, or an empty string.
func (s *PartialSignatureSet) Failure() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.failure
}

// SignWith computes the sighash of tx and returns signer's signature over
// it with the sighash type appended.
func SignWith(tx *UnsignedTx, c *multisig.Commitment, signer Signer) ([]byte, error) {
	sighash, err := ComputeSighash(tx, c)
	if err != nil {
		return nil, err
	}
	return signHash(sighash, signer)
}

func signHash(sighash []byte, signer Signer) ([]byte, error) {
	der, err := signer.Sign(sighash)
	if err != nil {
		return nil, err
	}
	return append(der, byte(SigHashType)), nil
}

func verifySignature(sig, sighash, pubKey []byte) error {
	if len(sig) < 2 {
		return errors.New("signature too short")
	}
	if hashType := sig[len(sig)-1]; hashType != byte(SigHashType) {
		return errors.Errorf("sighash type 0x%02x, expected 0x%02x", hashType, byte(SigHashType))
	}
	parsed, err := btcec.ParseDERSignature(sig[:len(sig)-1], btcec.S256())
	if err != nil {
		return err
	}
	if parsed.S.Cmp(halfOrder) > 0 {
		return errors.New("signature s value is not canonical")
	}
	pub, err := btcec.ParsePubKey(pubKey, btcec.S256())
	if err != nil {
		return err
	}
	if !parsed.Verify(sighash, pub) {
		return errors.New("signature does not verify")
	}
	return nil
}
