package btcsig

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

func TestVerifyP2WPKHCompressedRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}

	message := "hashcredit-claim:borrower=0xabc:nonce=deadbeef"
	hash := messageHash(message)

	compact, err := ecdsa.SignCompact(priv, hash[:], true)
	if err != nil {
		t.Fatalf("SignCompact: %v", err)
	}
	recID := int(compact[0]-27) % 4
	sig := make([]byte, 65)
	sig[0] = byte(39 + recID)
	copy(sig[1:], compact[1:])

	pubKeyHash := hash160(priv.PubKey().SerializeCompressed())

	if err := Verify(message, sig, pubKeyHash, bitcoinwire.ScriptTypeP2WPKH); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyP2PKHUncompressedRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}

	message := "hashcredit-claim:borrower=0xdef:nonce=cafebabe"
	hash := messageHash(message)

	sig, err := ecdsa.SignCompact(priv, hash[:], false)
	if err != nil {
		t.Fatalf("SignCompact: %v", err)
	}
	pubKeyHash := hash160(priv.PubKey().SerializeUncompressed())

	if err := Verify(message, sig, pubKeyHash, bitcoinwire.ScriptTypeP2PKH); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsFamilyMismatch(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}

	message := "hashcredit-claim:borrower=0xdef:nonce=cafebabe"
	hash := messageHash(message)
	compact, err := ecdsa.SignCompact(priv, hash[:], true)
	if err != nil {
		t.Fatalf("SignCompact: %v", err)
	}
	recID := int(compact[0]-31) % 4
	sig := make([]byte, 65)
	sig[0] = byte(31 + recID) // P2PKH-compressed header
	copy(sig[1:], compact[1:])

	pubKeyHash := hash160(priv.PubKey().SerializeCompressed())

	if err := Verify(message, sig, pubKeyHash, bitcoinwire.ScriptTypeP2WPKH); err == nil {
		t.Fatal("want error for header/address-family mismatch")
	}
}

func TestVerifyRejectsWrongLengthSignature(t *testing.T) {
	if err := Verify("m", make([]byte, 10), [20]byte{}, bitcoinwire.ScriptTypeP2PKH); err == nil {
		t.Fatal("want error for wrong-length signature")
	}
}

func TestVerifyRejectsUnsupportedHeaderByte(t *testing.T) {
	sig := make([]byte, 65)
	sig[0] = 36 // P2SH-segwit range, explicitly unsupported
	if err := Verify("m", sig, [20]byte{}, bitcoinwire.ScriptTypeP2WPKH); err == nil {
		t.Fatal("want error for unsupported header byte")
	}
}

func TestVerifyRejectsWrongPubKeyHash(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}

	message := "some message"
	hash := messageHash(message)
	compact, err := ecdsa.SignCompact(priv, hash[:], true)
	if err != nil {
		t.Fatalf("SignCompact: %v", err)
	}
	recID := int(compact[0]-31) % 4
	sig := make([]byte, 65)
	sig[0] = byte(39 + recID)
	copy(sig[1:], compact[1:])

	var wrongHash [20]byte
	wrongHash[0] = 0xff

	if err := Verify(message, sig, wrongHash, bitcoinwire.ScriptTypeP2WPKH); err == nil {
		t.Fatal("want error for pubkey hash mismatch")
	}
}
