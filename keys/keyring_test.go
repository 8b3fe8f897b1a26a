package keys

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"testing"
	"time"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("no entropy")
}

// seqReader returns a repeating, non-zero byte pattern so that generated
// keys are reproducible in tests.
type seqReader struct {
	b byte
}

func (r *seqReader) Read(p []byte) (int, error) {
	for i := range p {
		r.b++
		if r.b == 0 {
			r.b = 1
		}
		p[i] = r.b
	}
	return len(p), nil
}

func TestGenerate(t *testing.T) {
	ring, err := Generate(SchemeSize, &seqReader{})
	if err != nil {
		t.Fatal(err)
	}
	if ring.Len() != SchemeSize {
		t.Fatalf("Expected %d keys, got %d", SchemeSize, ring.Len())
	}

	again, err := Generate(SchemeSize, &seqReader{})
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i, pub := range ring.PublicKeys() {
		if len(pub) != 33 {
			t.Errorf("Key %d: expected 33 byte public key, got %d", i, len(pub))
		}
		if _, err := btcec.ParsePubKey(pub, btcec.S256()); err != nil {
			t.Errorf("Key %d: invalid public key: %s", i, err)
		}
		if seen[string(pub)] {
			t.Errorf("Key %d: duplicate public key", i)
		}
		seen[string(pub)] = true

		if !bytes.Equal(pub, again.PublicKeys()[i]) {
			t.Errorf("Key %d: same entropy produced different keys", i)
		}
	}
}

func TestGenerate_EntropyFailure(t *testing.T) {
	_, err := Generate(SchemeSize, failingReader{})
	if !errors.Is(err, ErrEntropy) {
		t.Errorf("Expected ErrEntropy, got %v", err)
	}
}

func TestGenerate_InvalidCount(t *testing.T) {
	_, err := Generate(0, &seqReader{})
	if !errors.Is(err, ErrKeyCount) {
		t.Errorf("Expected ErrKeyCount, got %v", err)
	}
}

func TestKeyPair_Sign(t *testing.T) {
	ring, err := Generate(1, &seqReader{})
	if err != nil {
		t.Fatal(err)
	}
	kp, err := ring.Pair(0)
	if err != nil {
		t.Fatal(err)
	}
	hash := sha256.Sum256([]byte("multisig"))
	der, err := kp.Sign(hash[:])
	if err != nil {
		t.Fatal(err)
	}
	sig, err := btcec.ParseDERSignature(der, btcec.S256())
	if err != nil {
		t.Fatal(err)
	}
	pub, err := btcec.ParsePubKey(kp.PublicKey(), btcec.S256())
	if err != nil {
		t.Fatal(err)
	}
	if !sig.Verify(hash[:], pub) {
		t.Error("Signature failed to verify")
	}

	if _, err := ring.Pair(1); err == nil {
		t.Error("Expected out of range error")
	}
}

func TestRestore(t *testing.T) {
	ring, err := Generate(SchemeSize, &seqReader{})
	if err != nil {
		t.Fatal(err)
	}
	wifs, err := ring.EncodeWIF(&chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}

	restored, err := Restore(wifs, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	for i, pub := range restored.PublicKeys() {
		if !bytes.Equal(pub, ring.PublicKeys()[i]) {
			t.Errorf("Key %d: restored public key does not match", i)
		}
	}

	tests := []struct {
		name     string
		encoded  []string
		params   *chaincfg.Params
		expected error
	}{
		{
			name:     "malformed entry",
			encoded:  []string{wifs[0], "not-a-wif", wifs[2]},
			params:   &chaincfg.TestNet3Params,
			expected: ErrDecoding,
		},
		{
			name:     "wrong network",
			encoded:  wifs,
			params:   &chaincfg.MainNetParams,
			expected: ErrDecoding,
		},
		{
			name:     "too few keys",
			encoded:  wifs[:2],
			params:   &chaincfg.TestNet3Params,
			expected: ErrKeyCount,
		},
		{
			name:     "too many keys",
			encoded:  append(append([]string{}, wifs...), wifs[0]),
			params:   &chaincfg.TestNet3Params,
			expected: ErrKeyCount,
		},
	}
	for _, test := range tests {
		_, err := Restore(test.encoded, test.params)
		if !errors.Is(err, test.expected) {
			t.Errorf("%s: expected %v, got %v", test.name, test.expected, err)
		}
	}
}

func TestKeyFile(t *testing.T) {
	ring, err := Generate(SchemeSize, &seqReader{})
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	kf, err := ring.Export(&chaincfg.TestNet3Params, ts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalKeyFile(kf)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := UnmarshalKeyFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Timestamp.Equal(ts) {
		t.Errorf("Expected timestamp %s, got %s", ts, decoded.Timestamp)
	}
	restored, err := decoded.Ring(&chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	for i, pub := range restored.PublicKeys() {
		if !bytes.Equal(pub, ring.PublicKeys()[i]) {
			t.Errorf("Key %d: restored public key does not match", i)
		}
	}

	decoded.KeyPairs[1].Public = decoded.KeyPairs[0].Public
	if _, err := decoded.Ring(&chaincfg.TestNet3Params); !errors.Is(err, ErrDecoding) {
		t.Errorf("Expected ErrDecoding for mismatched public key, got %v", err)
	}

	for _, malformed := range [][]byte{[]byte("{"), []byte(`{"keyPairs":[]}`), []byte("null")} {
		if _, err := UnmarshalKeyFile(malformed); !errors.Is(err, ErrDecoding) {
			t.Errorf("Expected ErrDecoding for %q, got %v", malformed, err)
		}
	}
}

func TestSealOpen(t *testing.T) {
	plaintext := []byte(`{"keyPairs":[]}`)
	sealed, err := Seal(plaintext, "correct horse", &seqReader{})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("Sealed output contains the plaintext")
	}

	opened, err := Open(sealed, "correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Expected %s, got %s", plaintext, opened)
	}

	if _, err := Open(sealed, "battery staple"); !errors.Is(err, ErrDecoding) {
		t.Errorf("Expected ErrDecoding for wrong passphrase, got %v", err)
	}
	if _, err := Open(sealed[:10], "correct horse"); !errors.Is(err, ErrDecoding) {
		t.Errorf("Expected ErrDecoding for truncated input, got %v", err)
	}
	if _, err := Seal(plaintext, "x", failingReader{}); !errors.Is(err, ErrEntropy) {
		t.Errorf("Expected ErrEntropy, got %v", err)
	}
}

func TestMnemonics(t *testing.T) {
	ring, err := Generate(SchemeSize, &seqReader{})
	if err != nil {
		t.Fatal(err)
	}
	phrases, err := ring.Mnemonics()
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range phrases {
		if n := len(bytes.Fields([]byte(p))); n != 24 {
			t.Errorf("Phrase %d: expected 24 words, got %d", i, n)
		}
	}

	restored, err := RestoreMnemonics(phrases)
	if err != nil {
		t.Fatal(err)
	}
	for i, pub := range restored.PublicKeys() {
		if !bytes.Equal(pub, ring.PublicKeys()[i]) {
			t.Errorf("Key %d: restored public key does not match", i)
		}
	}

	if _, err := RestoreMnemonics(phrases[:1]); !errors.Is(err, ErrKeyCount) {
		t.Errorf("Expected ErrKeyCount, got %v", err)
	}
	if _, err := RestoreMnemonics([]string{"abandon abandon", phrases[1], phrases[2]}); !errors.Is(err, ErrDecoding) {
		t.Errorf("Expected ErrDecoding, got %v", err)
	}
}
