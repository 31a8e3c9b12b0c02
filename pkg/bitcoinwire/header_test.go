package bitcoinwire

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderSize)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("rand: %v", err)
	}

	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}

	if got := h.Serialize(); !bytes.Equal(got, buf) {
		t.Errorf("serialize(parse(b)) != b: got %x, want %x", got, buf)
	}
}

func TestHeaderWrongLength(t *testing.T) {
	if _, err := ParseHeader(make([]byte, 79)); err == nil {
		t.Errorf("expected error for truncated header")
	}
	if _, err := ParseHeader(make([]byte, 81)); err == nil {
		t.Errorf("expected error for oversized header")
	}
}

func TestHeaderLinkage(t *testing.T) {
	h1 := BlockHeader{Version: 1, Timestamp: 100, Bits: 0x1d00ffff, Nonce: 1}
	h2 := BlockHeader{Version: 1, PrevHash: h1.Hash(), Timestamp: 200, Bits: 0x1d00ffff, Nonce: 2}

	if h2.PrevHash != h1.Hash() {
		t.Errorf("header chain linkage broken")
	}

	corrupt := h1.Serialize()
	corrupt[0] ^= 0xff
	corruptHeader, err := ParseHeader(corrupt)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if corruptHeader.Hash() == h1.Hash() {
		t.Errorf("flipping a byte should change the computed hash")
	}
	if h2.PrevHash == corruptHeader.Hash() {
		t.Errorf("linkage should break once the parent header is corrupted")
	}
}
