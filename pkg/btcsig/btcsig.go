// Package btcsig verifies BIP-137 "Bitcoin Signed Message" signatures
// against a decoded Bitcoin address, used by the claim protocol to
// prove control of a BTC payout key.
package btcsig

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // ripemd160 is a Bitcoin wire-format requirement, not a general hash choice

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

// ErrInvalidSignature covers any structurally malformed signature: wrong
// length, unrecognized header byte, or a header/address-family mismatch.
var ErrInvalidSignature = errors.New("btcsig: invalid signature")

// ErrSignatureMismatch is returned when recovery succeeds but the
// recovered pubkey hash does not match the claimed address.
var ErrSignatureMismatch = errors.New("btcsig: signature does not match address")

const magicPrefix = "\x18Bitcoin Signed Message:\n"

// addressFamily distinguishes the three header-byte ranges BIP-137
// defines; P2SH-segwit (35-38) is explicitly out of scope.
type addressFamily int

const (
	familyP2PKHUncompressed addressFamily = iota
	familyP2PKHCompressed
	familyP2WPKHCompressed
)

// decodeHeader maps a BIP-137 header byte to its recovery id, required
// compression, and expected address family.
func decodeHeader(header byte) (recID int, compressed bool, family addressFamily, err error) {
	switch {
	case header >= 27 && header <= 30:
		return int(header - 27), false, familyP2PKHUncompressed, nil
	case header >= 31 && header <= 34:
		return int(header - 31), true, familyP2PKHCompressed, nil
	case header >= 39 && header <= 42:
		return int(header - 39), true, familyP2WPKHCompressed, nil
	default:
		return 0, false, 0, fmt.Errorf("%w: unsupported header byte 0x%02x", ErrInvalidSignature, header)
	}
}

// familyMatchesScriptType checks the header-implied address family
// against the scriptType the address actually decoded to.
func familyMatchesScriptType(family addressFamily, scriptType bitcoinwire.ScriptType) bool {
	switch family {
	case familyP2PKHUncompressed, familyP2PKHCompressed:
		return scriptType == bitcoinwire.ScriptTypeP2PKH
	case familyP2WPKHCompressed:
		return scriptType == bitcoinwire.ScriptTypeP2WPKH
	default:
		return false
	}
}

// messageHash computes sha256d(magic || varint(len(message)) || message),
// the digest BIP-137 signatures are taken over.
func messageHash(message string) bitcoinwire.InternalHash {
	msg := []byte(message)
	buf := make([]byte, 0, len(magicPrefix)+9+len(msg))
	buf = append(buf, magicPrefix...)
	buf = appendVarint(buf, uint64(len(msg)))
	buf = append(buf, msg...)
	return bitcoinwire.Sha256d(buf)
}

func appendVarint(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n <= 0xffff:
		tmp := make([]byte, 2)
		binary.LittleEndian.PutUint16(tmp, uint16(n))
		return append(append(buf, 0xfd), tmp...)
	case n <= 0xffffffff:
		tmp := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp, uint32(n))
		return append(append(buf, 0xfe), tmp...)
	default:
		tmp := make([]byte, 8)
		binary.LittleEndian.PutUint64(tmp, n)
		return append(append(buf, 0xff), tmp...)
	}
}

func hash160(b []byte) [20]byte {
	sh := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sh[:])
	var out [20]byte
	copy(out[:], r.Sum(nil))
	return out
}

// Verify checks signatureB64-decoded bytes against message and the
// pubkey hash / script type a Bitcoin address decoded to. Callers decode
// the address via pkg/btcaddr first so the pubKeyHash/scriptType pair
// reflects its address-family rules.
func Verify(message string, signature []byte, pubKeyHash [20]byte, scriptType bitcoinwire.ScriptType) error {
	if len(signature) != 65 {
		return fmt.Errorf("%w: signature is %d bytes, want 65", ErrInvalidSignature, len(signature))
	}

	recID, compressed, family, err := decodeHeader(signature[0])
	if err != nil {
		return err
	}
	if !familyMatchesScriptType(family, scriptType) {
		return fmt.Errorf("%w: header implies a different address family than the decoded address", ErrInvalidSignature)
	}

	hash := messageHash(message)

	compact := make([]byte, 65)
	compact[0] = byte(27 + recID)
	if compressed {
		compact[0] += 4
	}
	copy(compact[1:], signature[1:])

	pubKey, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var serialized []byte
	if compressed {
		serialized = pubKey.SerializeCompressed()
	} else {
		serialized = pubKey.SerializeUncompressed()
	}

	if hash160(serialized) != pubKeyHash {
		return ErrSignatureMismatch
	}
	return nil
}
