package keys

import (
	"crypto/rand"
	"encoding/hex"
	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
	"io"
	"math/big"
)

// SchemeSize is the number of signer keys held by a key ring in the
// 2-of-3 multisig scheme.
const SchemeSize = 3

var (
	// ErrEntropy is returned when the random source used to generate keys
	// fails to produce enough bytes.
	ErrEntropy = errors.New("entropy source unavailable")

	// ErrDecoding is returned when persisted key material cannot be decoded.
	ErrDecoding = errors.New("malformed key encoding")

	// ErrKeyCount is returned when the number of restored keys does not
	// match the size of the scheme.
	ErrKeyCount = errors.New("unexpected number of keys")
)

// KeyPair is a secp256k1 private key together with its compressed public
// key. The public key is always derived from the private key.
type KeyPair struct {
	priv *btcec.PrivateKey
	pub  []byte
}

func newKeyPair(priv *btcec.PrivateKey) *KeyPair {
	return &KeyPair{
		priv: priv,
		pub:  priv.PubKey().SerializeCompressed(),
	}
}

// PublicKey returns a copy of the 33 byte compressed public key.
func (kp *KeyPair) PublicKey() []byte {
	pub := make([]byte, len(kp.pub))
	copy(pub, kp.pub)
	return pub
}

// PublicKeyHex returns the compressed public key hex encoded.
func (kp *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.pub)
}

// WIF returns the wallet import format encoding of the private key for
// the given network.
func (kp *KeyPair) WIF(params *chaincfg.Params) (string, error) {
	wif, err := btcutil.NewWIF(kp.priv, params, true)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}

// Sign signs the 32 byte hash with RFC6979 deterministic nonces and returns
// the DER encoded signature.
func (kp *KeyPair) Sign(hash []byte) ([]byte, error) {
	sig, err := kp.priv.Sign(hash)
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// KeyRing is an ordered set of signer key pairs. The position of a key in
// the ring is its signer index.
type KeyRing struct {
	pairs []*KeyPair
}

// Generate creates count fresh key pairs using entropy read from r.
func Generate(count int, r io.Reader) (*KeyRing, error) {
	if count <= 0 {
		return nil, errors.Wrapf(ErrKeyCount, "cannot generate %d keys", count)
	}
	ring := &KeyRing{pairs: make([]*KeyPair, 0, count)}
	for len(ring.pairs) < count {
		priv, err := newPrivateKey(r)
		if err != nil {
			return nil, err
		}
		ring.pairs = append(ring.pairs, newKeyPair(priv))
	}
	return ring, nil
}

// GenerateDefault creates count fresh key pairs using crypto/rand.
func GenerateDefault(count int) (*KeyRing, error) {
	return Generate(count, rand.Reader)
}

// newPrivateKey reads 32 bytes at a time from r until they form a scalar in
// the range [1, N-1].
func newPrivateKey(r io.Reader) (*btcec.PrivateKey, error) {
	n := btcec.S256().N
	buf := make([]byte, 32)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(ErrEntropy, err.Error())
		}
		k := new(big.Int).SetBytes(buf)
		if k.Sign() == 0 || k.Cmp(n) >= 0 {
			continue
		}
		priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), buf)
		return priv, nil
	}
}

// Restore decodes a key ring from WIF encoded private keys. The keys must
// belong to the given network and there must be exactly SchemeSize of them.
func Restore(encoded []string, params *chaincfg.Params) (*KeyRing, error) {
	return restore(encoded, params, SchemeSize)
}

func restore(encoded []string, params *chaincfg.Params, expected int) (*KeyRing, error) {
	ring := &KeyRing{pairs: make([]*KeyPair, 0, len(encoded))}
	for i, enc := range encoded {
		wif, err := btcutil.DecodeWIF(enc)
		if err != nil {
			return nil, errors.Wrapf(ErrDecoding, "key %d: %s", i, err)
		}
		if !wif.IsForNet(params) {
			return nil, errors.Wrapf(ErrDecoding, "key %d: not for network %s", i, params.Name)
		}
		if !wif.CompressPubKey {
			return nil, errors.Wrapf(ErrDecoding, "key %d: uncompressed keys are not supported", i)
		}
		ring.pairs = append(ring.pairs, newKeyPair(wif.PrivKey))
	}
	if len(ring.pairs) != expected {
		return nil, errors.Wrapf(ErrKeyCount, "expected %d keys, got %d", expected, len(ring.pairs))
	}
	return ring, nil
}

// Len returns the number of key pairs in the ring.
func (kr *KeyRing) Len() int {
	return len(kr.pairs)
}

// PublicKeys returns the compressed public keys in ring order.
func (kr *KeyRing) PublicKeys() [][]byte {
	keys := make([][]byte, len(kr.pairs))
	for i, kp := range kr.pairs {
		keys[i] = kp.PublicKey()
	}
	return keys
}

// Pair returns the key pair at index i.
func (kr *KeyRing) Pair(i int) (*KeyPair, error) {
	if i < 0 || i >= len(kr.pairs) {
		return nil, errors.Errorf("signer index %d out of range [0, %d)", i, len(kr.pairs))
	}
	return kr.pairs[i], nil
}

// Signer signs hashes with a key whose private half stays inside the ring.
type Signer interface {
	PublicKey() []byte
	Sign(hash []byte) ([]byte, error)
}

// Signer returns the key at signer index i as a Signer.
func (kr *KeyRing) Signer(i int) (Signer, error) {
	kp, err := kr.Pair(i)
	if err != nil {
		return nil, err
	}
	return kp, nil
}

// EncodeWIF returns the WIF encodings of every private key in ring order.
func (kr *KeyRing) EncodeWIF(params *chaincfg.Params) ([]string, error) {
	out := make([]string, len(kr.pairs))
	for i, kp := range kr.pairs {
		wif, err := kp.WIF(params)
		if err != nil {
			return nil, err
		}
		out[i] = wif
	}
	return out, nil
}
