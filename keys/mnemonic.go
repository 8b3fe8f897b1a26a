package keys

import (
	"github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"math/big"
	"strings"
)

// Mnemonic encodes the raw 32 byte private key as a 24 word BIP39 phrase.
// This is a paper backup of a single key, not a seed: restoring it yields
// the same scalar, no derivation is applied.
func (kp *KeyPair) Mnemonic() (string, error) {
	return bip39.NewMnemonic(paddedScalar(kp.priv))
}

// Mnemonics returns the paper backup phrase of every key in ring order.
func (kr *KeyRing) Mnemonics() ([]string, error) {
	out := make([]string, len(kr.pairs))
	for i, kp := range kr.pairs {
		m, err := kp.Mnemonic()
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// RestoreMnemonics rebuilds a key ring from paper backup phrases produced
// by Mnemonics.
func RestoreMnemonics(phrases []string) (*KeyRing, error) {
	ring := &KeyRing{pairs: make([]*KeyPair, 0, len(phrases))}
	for i, phrase := range phrases {
		entropy, err := bip39.EntropyFromMnemonic(strings.Join(strings.Fields(phrase), " "))
		if err != nil {
			return nil, errors.Wrapf(ErrDecoding, "key %d: %s", i, err)
		}
		if len(entropy) != 32 {
			return nil, errors.Wrapf(ErrDecoding, "key %d: phrase encodes %d bytes, expected 32", i, len(entropy))
		}
		k := new(big.Int).SetBytes(entropy)
		if k.Sign() == 0 || k.Cmp(btcec.S256().N) >= 0 {
			return nil, errors.Wrapf(ErrDecoding, "key %d: scalar out of range", i)
		}
		priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), entropy)
		ring.pairs = append(ring.pairs, newKeyPair(priv))
	}
	if len(ring.pairs) != SchemeSize {
		return nil, errors.Wrapf(ErrKeyCount, "expected %d keys, got %d", SchemeSize, len(ring.pairs))
	}
	return ring, nil
}

func paddedScalar(priv *btcec.PrivateKey) []byte {
	b := priv.Serialize()
	if len(b) == 32 {
		return b
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}
