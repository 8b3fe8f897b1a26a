package keys

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
	"io"
	"time"
)

const (
	saltLen  = 16
	nonceLen = 24

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// KeyFile is the persisted form of a key ring. Entries are kept in ring
// order.
type KeyFile struct {
	KeyPairs  []KeyFileEntry `json:"keyPairs"`
	Timestamp time.Time      `json:"timestamp"`
}

// KeyFileEntry holds one WIF encoded private key and its public key hex.
type KeyFileEntry struct {
	Private string `json:"private"`
	Public  string `json:"public"`
}

// Export builds a KeyFile for the ring stamped with the given time.
func (kr *KeyRing) Export(params *chaincfg.Params, ts time.Time) (*KeyFile, error) {
	wifs, err := kr.EncodeWIF(params)
	if err != nil {
		return nil, err
	}
	kf := &KeyFile{
		KeyPairs:  make([]KeyFileEntry, len(wifs)),
		Timestamp: ts.UTC(),
	}
	for i, wif := range wifs {
		kf.KeyPairs[i] = KeyFileEntry{
			Private: wif,
			Public:  kr.pairs[i].PublicKeyHex(),
		}
	}
	return kf, nil
}

// Ring decodes the key file into a key ring. The stored public keys are
// checked against the ones derived from the private keys.
func (kf *KeyFile) Ring(params *chaincfg.Params) (*KeyRing, error) {
	encoded := make([]string, len(kf.KeyPairs))
	for i, e := range kf.KeyPairs {
		encoded[i] = e.Private
	}
	ring, err := Restore(encoded, params)
	if err != nil {
		return nil, err
	}
	for i, e := range kf.KeyPairs {
		if e.Public == "" {
			continue
		}
		pub, err := hex.DecodeString(e.Public)
		if err != nil {
			return nil, errors.Wrapf(ErrDecoding, "key %d: public key hex: %s", i, err)
		}
		if !bytes.Equal(pub, ring.pairs[i].pub) {
			return nil, errors.Wrapf(ErrDecoding, "key %d: public key does not match private key", i)
		}
	}
	return ring, nil
}

// MarshalKeyFile encodes the key file as indented JSON.
func MarshalKeyFile(kf *KeyFile) ([]byte, error) {
	return json.MarshalIndent(kf, "", "  ")
}

// UnmarshalKeyFile decodes a JSON key file.
func UnmarshalKeyFile(b []byte) (*KeyFile, error) {
	var kf KeyFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return nil, errors.Wrap(ErrDecoding, err.Error())
	}
	if len(kf.KeyPairs) == 0 {
		return nil, errors.Wrap(ErrDecoding, "key file has no key pairs")
	}
	return &kf, nil
}

// Seal encrypts plaintext with a key stretched from passphrase using scrypt.
// The output is salt || nonce || secretbox.
func Seal(plaintext []byte, passphrase string, r io.Reader) ([]byte, error) {
	var (
		salt  = make([]byte, saltLen)
		nonce [nonceLen]byte
	)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, errors.Wrap(ErrEntropy, err.Error())
	}
	if _, err := io.ReadFull(r, nonce[:]); err != nil {
		return nil, errors.Wrap(ErrEntropy, err.Error())
	}
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, saltLen+nonceLen+len(plaintext)+secretbox.Overhead)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, key), nil
}

// SealDefault is Seal using crypto/rand.
func SealDefault(plaintext []byte, passphrase string) ([]byte, error) {
	return Seal(plaintext, passphrase, rand.Reader)
}

// Open reverses Seal. A wrong passphrase or corrupted input returns
// ErrDecoding.
func Open(sealed []byte, passphrase string) ([]byte, error) {
	if len(sealed) < saltLen+nonceLen+secretbox.Overhead {
		return nil, errors.Wrap(ErrDecoding, "sealed key file too short")
	}
	var nonce [nonceLen]byte
	salt := sealed[:saltLen]
	copy(nonce[:], sealed[saltLen:saltLen+nonceLen])

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, ok := secretbox.Open(nil, sealed[saltLen+nonceLen:], &nonce, key)
	if !ok {
		return nil, errors.Wrap(ErrDecoding, "incorrect passphrase or corrupted key file")
	}
	return plaintext, nil
}

func deriveKey(passphrase string, salt []byte) (*[32]byte, error) {
	k, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, err
	}
	var key [32]byte
	copy(key[:], k)
	return &key, nil
}
