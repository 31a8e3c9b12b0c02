package bitcoinwire

import (
	"bytes"
	"testing"
)

func TestExtractPubKeyHashP2PKH(t *testing.T) {
	var h [20]byte
	for i := range h {
		h[i] = byte(i + 1)
	}
	script := append([]byte{0x76, 0xa9, 0x14}, h[:]...)
	script = append(script, 0x88, 0xac)

	got, typ, ok := ExtractPubKeyHash(script)
	if !ok {
		t.Fatalf("expected p2pkh match")
	}
	if typ != ScriptTypeP2PKH {
		t.Errorf("got type %q, want p2pkh", typ)
	}
	if !bytes.Equal(got[:], h[:]) {
		t.Errorf("hash mismatch: got %x, want %x", got, h)
	}
}

func TestExtractPubKeyHashP2WPKH(t *testing.T) {
	var h [20]byte
	for i := range h {
		h[i] = byte(i + 1)
	}
	script := append([]byte{0x00, 0x14}, h[:]...)

	got, typ, ok := ExtractPubKeyHash(script)
	if !ok {
		t.Fatalf("expected p2wpkh match")
	}
	if typ != ScriptTypeP2WPKH {
		t.Errorf("got type %q, want p2wpkh", typ)
	}
	if !bytes.Equal(got[:], h[:]) {
		t.Errorf("hash mismatch: got %x, want %x", got, h)
	}
}

func TestExtractPubKeyHashUnsupported(t *testing.T) {
	// OP_RETURN script, not a template we recognize.
	script := []byte{0x6a, 0x04, 1, 2, 3, 4}
	if _, _, ok := ExtractPubKeyHash(script); ok {
		t.Errorf("expected no match for OP_RETURN script")
	}
}
