package txbuilder

import (
	"errors"
	"testing"
)

func TestPSBT_ExportImport(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewSignatureSet(tx)
	if err != nil {
		t.Fatal(err)
	}
	if err := set.AddSignature(2, f.sign(t, tx, 2)); err != nil {
		t.Fatal(err)
	}

	b64, err := ExportPSBT(tx, set)
	if err != nil {
		t.Fatal(err)
	}
	imported, err := ImportPSBT(b64, tx)
	if err != nil {
		t.Fatal(err)
	}
	if idxs := imported.Indices(); len(idxs) != 1 || idxs[0] != 2 {
		t.Fatalf("Expected signer 2 in imported set, got %v", idxs)
	}

	local, err := NewSignatureSet(tx)
	if err != nil {
		t.Fatal(err)
	}
	if err := local.AddSignature(0, f.sign(t, tx, 0)); err != nil {
		t.Fatal(err)
	}
	if err := local.Merge(imported); err != nil {
		t.Fatal(err)
	}
	if local.Count() != 2 {
		t.Errorf("Expected 2 signatures after merge, got %d", local.Count())
	}
	if _, err := Finalize(tx, local); err != nil {
		t.Errorf("Finalize after merge failed: %s", err)
	}
}

func TestPSBT_ImportErrors(t *testing.T) {
	f := newFixture(t)
	tx, err := Begin(f.request(90000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	other, err := Begin(f.request(85000), f.commitment)
	if err != nil {
		t.Fatal(err)
	}
	b64, err := ExportPSBT(other, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ImportPSBT(b64, tx); !errors.Is(err, ErrDecoding) {
		t.Errorf("Expected ErrDecoding for packet of another transaction, got %v", err)
	}
	if _, err := ImportPSBT("cHNidP8=", tx); !errors.Is(err, ErrDecoding) {
		t.Errorf("Expected ErrDecoding for truncated packet, got %v", err)
	}
	if _, err := ImportPSBT("%%%", tx); !errors.Is(err, ErrDecoding) {
		t.Errorf("Expected ErrDecoding for invalid base64, got %v", err)
	}
}
