package txbuilder

import (
	"bytes"
	"errors"
	"github.com/btcsuite/btcd/txscript"
	"testing"
)

func TestTwoOfThree_SkipMiddleSigner(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewSignatureSet(tx)
	if err != nil {
		t.Fatal(err)
	}
	if set.State() != StateUnsigned {
		t.Errorf("Expected state %s, got %s", StateUnsigned, set.State())
	}

	// Signer 2 arrives before signer 0.
	if err := set.AddSignature(2, f.sign(t, tx, 2)); err != nil {
		t.Fatal(err)
	}
	if set.State() != StatePartiallySigned {
		t.Errorf("Expected state %s, got %s", StatePartiallySigned, set.State())
	}
	if err := set.AddSignature(0, f.sign(t, tx, 0)); err != nil {
		t.Fatal(err)
	}
	if set.State() != StateFullySigned {
		t.Errorf("Expected state %s, got %s", StateFullySigned, set.State())
	}

	st, err := Finalize(tx, set)
	if err != nil {
		t.Fatal(err)
	}
	if set.State() != StateFinalized {
		t.Errorf("Expected state %s, got %s", StateFinalized, set.State())
	}

	witness := st.Tx.TxIn[0].Witness
	if len(witness) != 4 {
		t.Fatalf("Expected 4 witness elements, got %d", len(witness))
	}
	if len(witness[0]) != 0 {
		t.Errorf("Expected empty dummy element, got %x", witness[0])
	}
	if !bytes.Equal(witness[3], f.commitment.WitnessScript) {
		t.Errorf("Expected witness script as last element")
	}

	sighash := set.Sighash()
	pubKeys := f.ring.PublicKeys()
	for i, keyIdx := range []int{0, 2} {
		if err := verifySignature(witness[i+1], sighash, pubKeys[keyIdx]); err != nil {
			t.Errorf("Witness signature %d does not belong to signer %d: %s", i, keyIdx, err)
		}
	}

	if st.TxID != tx.TxHash() {
		t.Errorf("Expected txid %s, got %s", tx.TxHash(), st.TxID)
	}

	vm, err := txscript.NewEngine(f.commitment.OutputScript, st.Tx, 0, txscript.StandardVerifyFlags, nil, nil, f.utxo.Amount)
	if err != nil {
		t.Fatal(err)
	}
	if err := vm.Execute(); err != nil {
		t.Errorf("Script execution failed: %s", err)
	}
}

func TestFinalize_PermutationInvariant(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	sigs := [][]byte{f.sign(t, tx, 0), f.sign(t, tx, 1), f.sign(t, tx, 2)}

	orders := [][]int{
		{0, 1, 2},
		{0, 2, 1},
		{1, 0, 2},
		{1, 2, 0},
		{2, 0, 1},
		{2, 1, 0},
	}
	var expected []byte
	for _, order := range orders {
		set, err := NewSignatureSet(tx)
		if err != nil {
			t.Fatal(err)
		}
		for _, i := range order {
			if err := set.AddSignature(i, sigs[i]); err != nil {
				t.Fatal(err)
			}
		}
		st, err := Finalize(tx, set)
		if err != nil {
			t.Fatal(err)
		}
		if expected == nil {
			expected = st.Bytes
			continue
		}
		if !bytes.Equal(st.Bytes, expected) {
			t.Errorf("Order %v produced a different transaction", order)
		}
	}
}

func TestFinalize_RoundTrip(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewSignatureSet(tx)
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range []int{1, 2} {
		signer, err := f.ring.Signer(i)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := set.Sign(i, signer); err != nil {
			t.Fatal(err)
		}
	}
	st, err := Finalize(tx, set)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Deserialize(Serialize(st))
	if err != nil {
		t.Fatal(err)
	}
	if decoded.TxIn[0].PreviousOutPoint != *f.utxo.OutPoint() {
		t.Errorf("Expected outpoint %s, got %s", f.utxo.OutPoint(), decoded.TxIn[0].PreviousOutPoint)
	}
	if decoded.TxOut[0].Value != 90000 {
		t.Errorf("Expected value 90000, got %d", decoded.TxOut[0].Value)
	}
	if !bytes.Equal(decoded.TxOut[0].PkScript, f.destScript) {
		t.Errorf("Incorrect output script. Expected %x, got %x", f.destScript, decoded.TxOut[0].PkScript)
	}
	w := decoded.TxIn[0].Witness
	if !bytes.Equal(w[len(w)-1], f.commitment.WitnessScript) {
		t.Error("Witness script did not survive round trip")
	}
	if decoded.TxHash() != st.TxID || decoded.WitnessHash() != st.Tx.WitnessHash() {
		t.Error("Decoded transaction hashes differ")
	}
}

func TestAddSignature_Rejects(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewSignatureSet(tx)
	if err != nil {
		t.Fatal(err)
	}
	sig0 := f.sign(t, tx, 0)
	sig1 := f.sign(t, tx, 1)

	// Wrong sighash type.
	wrongType := append(append([]byte(nil), sig0[:len(sig0)-1]...), byte(txscript.SigHashNone))

	// Valid signature over a different message.
	kp, err := f.ring.Pair(0)
	if err != nil {
		t.Fatal(err)
	}
	otherHash := bytes.Repeat([]byte{0x01}, 32)
	der, err := kp.Sign(otherHash)
	if err != nil {
		t.Fatal(err)
	}
	wrongMessage := append(der, byte(txscript.SigHashAll))

	tests := []struct {
		name     string
		index    int
		sig      []byte
		expected error
	}{
		{"signature from another signer", 0, sig1, ErrInvalidSignature},
		{"index out of range", 3, sig0, ErrInvalidSignature},
		{"negative index", -1, sig0, ErrInvalidSignature},
		{"malformed der", 0, []byte{0x30, 0x01, 0x01}, ErrInvalidSignature},
		{"empty signature", 0, nil, ErrInvalidSignature},
		{"wrong sighash type", 0, wrongType, ErrInvalidSignature},
		{"wrong message", 0, wrongMessage, ErrInvalidSignature},
	}
	for _, test := range tests {
		if err := set.AddSignature(test.index, test.sig); !errors.Is(err, test.expected) {
			t.Errorf("%s: expected %v, got %v", test.name, test.expected, err)
		}
		if set.Count() != 0 {
			t.Fatalf("%s: rejected signature was stored", test.name)
		}
	}

	if err := set.AddSignature(0, sig0); err != nil {
		t.Fatal(err)
	}
	if err := set.AddSignature(0, sig0); !errors.Is(err, ErrDuplicateSigner) {
		t.Errorf("Expected ErrDuplicateSigner, got %v", err)
	}
	if set.Count() != 1 {
		t.Errorf("Expected 1 signature, got %d", set.Count())
	}
}

func TestFinalize_InsufficientSignatures(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewSignatureSet(tx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Finalize(tx, set); !errors.Is(err, ErrInsufficientSignatures) {
		t.Errorf("Expected ErrInsufficientSignatures, got %v", err)
	}
	if err := set.AddSignature(1, f.sign(t, tx, 1)); err != nil {
		t.Fatal(err)
	}
	st, err := Finalize(tx, set)
	if !errors.Is(err, ErrInsufficientSignatures) {
		t.Errorf("Expected ErrInsufficientSignatures, got %v", err)
	}
	if st != nil {
		t.Error("Expected no transaction")
	}
	if set.State() != StatePartiallySigned {
		t.Errorf("Expected state %s, got %s", StatePartiallySigned, set.State())
	}
}

func TestFinalize_ForeignSignatureSet(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	other, err := Begin(f.request(80000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewSignatureSet(other)
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range []int{0, 1} {
		if err := set.AddSignature(i, f.sign(t, other, i)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := Finalize(tx, set); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
}

func TestCheckMultiSigStack(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	sighash, err := ComputeSighash(tx, f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	pubKeys := f.ring.PublicKeys()
	sig0, sig2 := f.sign(t, tx, 0), f.sign(t, tx, 2)
	ws := f.commitment.WitnessScript

	tests := []struct {
		name    string
		witness [][]byte
		valid   bool
	}{
		{"key order", [][]byte{nil, sig0, sig2, ws}, true},
		{"reversed", [][]byte{nil, sig2, sig0, ws}, false},
		{"repeated signature", [][]byte{nil, sig0, sig0, ws}, false},
		{"non-empty dummy", [][]byte{{0x01}, sig0, sig2, ws}, false},
		{"missing signature", [][]byte{nil, sig0, ws}, false},
	}
	for _, test := range tests {
		err := checkMultiSigStack(test.witness, sighash, pubKeys, 2)
		if test.valid && err != nil {
			t.Errorf("%s: unexpected error %s", test.name, err)
		}
		if !test.valid && err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
}

func TestSignatureSet_Fail(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewSignatureSet(tx)
	if err != nil {
		t.Fatal(err)
	}
	if err := set.AddSignature(0, f.sign(t, tx, 0)); err != nil {
		t.Fatal(err)
	}
	set.Fail("broadcast rejected")
	if set.State() != StateFailed {
		t.Errorf("Expected state %s, got %s", StateFailed, set.State())
	}
	if set.Failure() != "broadcast rejected" {
		t.Errorf("Expected failure reason, got %q", set.Failure())
	}
	if set.Count() != 1 {
		t.Errorf("Expected failed set to keep its signature, got %d", set.Count())
	}
	if err := set.AddSignature(2, f.sign(t, tx, 2)); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestSign_WrongKey(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewSignatureSet(tx)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := f.ring.Signer(1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := set.Sign(0, signer); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
	if set.Count() != 0 {
		t.Errorf("Expected no signatures, got %d", set.Count())
	}
}

func TestParseState(t *testing.T) {
	for st := StateUnsigned; st <= StateFailed; st++ {
		parsed, err := ParseState(st.String())
		if err != nil {
			t.Fatal(err)
		}
		if parsed != st {
			t.Errorf("Expected %s, got %s", st, parsed)
		}
	}
	if _, err := ParseState("bogus"); err == nil {
		t.Error("Expected error for unknown state")
	}
}
