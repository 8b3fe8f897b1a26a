package multisig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
	"strings"
	"testing"
)

// Compressed encodings of G, 2G and 3G.
var testKeys = []string{
	"0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
	"02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5",
	"02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9",
}

func mustKeys(t *testing.T, hexKeys ...string) [][]byte {
	t.Helper()
	keys := make([][]byte, len(hexKeys))
	for i, h := range hexKeys {
		b, err := hex.DecodeString(h)
		if err != nil {
			t.Fatal(err)
		}
		keys[i] = b
	}
	return keys
}

func TestDerive(t *testing.T) {
	keys := mustKeys(t, testKeys...)
	c, err := Derive(NewPolicy(2, keys), &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}

	var expectedScript []byte
	expectedScript = append(expectedScript, txscript.OP_2)
	for _, k := range keys {
		expectedScript = append(expectedScript, txscript.OP_DATA_33)
		expectedScript = append(expectedScript, k...)
	}
	expectedScript = append(expectedScript, txscript.OP_3, txscript.OP_CHECKMULTISIG)
	if !bytes.Equal(c.WitnessScript, expectedScript) {
		t.Errorf("Incorrect witness script. Expected %x, got %x", expectedScript, c.WitnessScript)
	}

	h := sha256.Sum256(expectedScript)
	if !bytes.Equal(c.ScriptHash, h[:]) {
		t.Errorf("Incorrect script hash. Expected %x, got %x", h, c.ScriptHash)
	}
	expectedOutput := append([]byte{txscript.OP_0, txscript.OP_DATA_32}, h[:]...)
	if !bytes.Equal(c.OutputScript, expectedOutput) {
		t.Errorf("Incorrect output script. Expected %x, got %x", expectedOutput, c.OutputScript)
	}

	if !strings.HasPrefix(c.Address, "tb1q") {
		t.Errorf("Expected testnet bech32 address, got %s", c.Address)
	}
	addr, err := btcutil.DecodeAddress(c.Address, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(addr.ScriptAddress(), h[:]) {
		t.Errorf("Address does not commit to the script hash")
	}
}

func TestDerive_Deterministic(t *testing.T) {
	keys := mustKeys(t, testKeys...)
	a, err := Derive(NewPolicy(2, keys), &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Derive(NewPolicy(2, keys), &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	if a.Address != b.Address || !bytes.Equal(a.WitnessScript, b.WitnessScript) ||
		!bytes.Equal(a.ScriptHash, b.ScriptHash) || !bytes.Equal(a.OutputScript, b.OutputScript) {
		t.Error("Derive is not deterministic")
	}
}

func TestDerive_KeyOrderPreserved(t *testing.T) {
	keys := mustKeys(t, testKeys[2], testKeys[0], testKeys[1])
	c, err := Derive(NewPolicy(2, keys), &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	threshold, parsed, err := ParseWitnessScript(c.WitnessScript)
	if err != nil {
		t.Fatal(err)
	}
	if threshold != 2 {
		t.Errorf("Expected threshold 2, got %d", threshold)
	}
	for i := range keys {
		if !bytes.Equal(parsed[i], keys[i]) {
			t.Errorf("Key %d out of order. Expected %x, got %x", i, keys[i], parsed[i])
		}
	}

	sorted, err := Derive(NewPolicy(2, SortKeys(keys)), &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	if sorted.Address == c.Address {
		t.Error("Different key order should produce a different address")
	}
}

func TestDerive_PolicyErrors(t *testing.T) {
	keys := mustKeys(t, testKeys...)
	notOnCurve := mustKeys(t, "020000000000000000000000000000000000000000000000000000000000000007")[0]
	uncompressed := append([]byte{0x04}, make([]byte, 64)...)

	tests := []struct {
		name   string
		policy Policy
	}{
		{"threshold above total", Policy{Threshold: 4, Total: 3, PublicKeys: keys}},
		{"zero threshold", Policy{Threshold: 0, Total: 3, PublicKeys: keys}},
		{"key count mismatch", Policy{Threshold: 2, Total: 3, PublicKeys: keys[:2]}},
		{"no keys", Policy{Threshold: 1, Total: 0}},
		{"invalid point", Policy{Threshold: 2, Total: 3, PublicKeys: [][]byte{keys[0], keys[1], notOnCurve}}},
		{"uncompressed key", Policy{Threshold: 1, Total: 1, PublicKeys: [][]byte{uncompressed}}},
		{"too many keys", Policy{Threshold: 1, Total: 17, PublicKeys: make([][]byte, 17)}},
	}
	for _, test := range tests {
		_, err := Derive(test.policy, &chaincfg.TestNet3Params)
		if !errors.Is(err, ErrPolicy) {
			t.Errorf("%s: expected ErrPolicy, got %v", test.name, err)
		}
	}
}

func TestCommitment_Verify(t *testing.T) {
	keys := mustKeys(t, testKeys...)
	policy := NewPolicy(2, keys)
	c, err := Derive(policy, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Verify(policy, &chaincfg.TestNet3Params); err != nil {
		t.Errorf("Expected commitment to verify, got %s", err)
	}
	if err := c.Verify(NewPolicy(1, keys), &chaincfg.TestNet3Params); !errors.Is(err, ErrPolicy) {
		t.Errorf("Expected ErrPolicy for different threshold, got %v", err)
	}
	if err := c.CheckNetwork(&chaincfg.MainNetParams); !errors.Is(err, ErrPolicy) {
		t.Errorf("Expected ErrPolicy for wrong network, got %v", err)
	}

	parsed, err := c.Policy()
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Threshold != 2 || parsed.Total != 3 {
		t.Errorf("Expected 2-of-3, got %d-of-%d", parsed.Threshold, parsed.Total)
	}
}

func TestCommitment_JSON(t *testing.T) {
	keys := mustKeys(t, testKeys...)
	c, err := Derive(NewPolicy(2, keys), &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]string
	if err := json.Unmarshal(b, &fields); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"address", "witnessScript", "output", "hash"} {
		if fields[name] == "" {
			t.Errorf("Missing field %s in %s", name, string(b))
		}
	}

	var decoded Commitment
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Address != c.Address || !bytes.Equal(decoded.WitnessScript, c.WitnessScript) {
		t.Error("Commitment did not survive JSON round trip")
	}

	fields["hash"] = hex.EncodeToString(make([]byte, 32))
	tampered, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(tampered, &decoded); !errors.Is(err, ErrPolicy) {
		t.Errorf("Expected ErrPolicy for tampered hash, got %v", err)
	}
}

func TestCommitment_UnmarshalJSONMismatch(t *testing.T) {
	c, err := Derive(NewPolicy(2, mustKeys(t, testKeys...)), &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}
	other, err := Derive(NewPolicy(1, mustKeys(t, testKeys[0])), &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		field string
		value string
	}{
		{
			name:  "address of another script",
			field: "address",
			value: other.Address,
		},
		{
			name:  "garbage address",
			field: "address",
			value: "notanaddress",
		},
		{
			name:  "output of another script",
			field: "output",
			value: hex.EncodeToString(other.OutputScript),
		},
	}

	for _, test := range tests {
		b, err := json.Marshal(c)
		if err != nil {
			t.Fatal(err)
		}
		var fields map[string]string
		if err := json.Unmarshal(b, &fields); err != nil {
			t.Fatal(err)
		}
		fields[test.field] = test.value
		tampered, err := json.Marshal(fields)
		if err != nil {
			t.Fatal(err)
		}
		var decoded Commitment
		if err := json.Unmarshal(tampered, &decoded); !errors.Is(err, ErrPolicy) {
			t.Errorf("%s: expected ErrPolicy, got %v", test.name, err)
		}
	}
}
