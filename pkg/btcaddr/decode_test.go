package btcaddr

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

func TestDecodeBech32KnownVector(t *testing.T) {
	addr := "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	want, err := hex.DecodeString("751e76e8199196d454941c45d1b3a323f1433bd6")
	if err != nil {
		t.Fatalf("bad test vector: %v", err)
	}

	got, err := Decode(addr)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ScriptType != bitcoinwire.ScriptTypeP2WPKH {
		t.Errorf("script type = %q, want p2wpkh", got.ScriptType)
	}
	if hex.EncodeToString(got.PubKeyHash[:]) != hex.EncodeToString(want) {
		t.Errorf("pubkey hash = %x, want %x", got.PubKeyHash, want)
	}
}

func TestDecodeBech32SingleCharMutationFailsChecksum(t *testing.T) {
	valid := "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	mutated := []byte(valid)
	// Flip a data character (not the '1' separator or HRP).
	if mutated[10] == 'q' {
		mutated[10] = 'p'
	} else {
		mutated[10] = 'q'
	}

	if _, err := Decode(string(mutated)); err == nil {
		t.Errorf("expected checksum failure for mutated address")
	}
}

func TestDecodeBase58P2PKH(t *testing.T) {
	// Well-known mainnet P2PKH address (Bitcoin genesis coinbase payout address).
	got, err := Decode("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ScriptType != bitcoinwire.ScriptTypeP2PKH {
		t.Errorf("script type = %q, want p2pkh", got.ScriptType)
	}
}

func TestDecodeRejectsP2SH(t *testing.T) {
	// Mainnet P2SH address (version byte 0x05).
	_, err := Decode("3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress for P2SH, got %v", err)
	}
}
