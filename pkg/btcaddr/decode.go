// Package btcaddr decodes Bitcoin addresses into a 20-byte pubkey hash
// plus script type: Bech32 (BIP-173) for native SegWit v0 P2WPKH,
// Base58Check for legacy P2PKH. Any other template (P2SH, taproot,
// witness versions other than 0, unrecognized HRPs or version bytes) is
// rejected with ErrInvalidAddress.
package btcaddr

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

const (
	mainnetP2PKHVersion = 0x00
	testnetP2PKHVersion = 0x6f
)

var bech32HRPs = []string{"bc1", "tb1", "bcrt1"}

// Decoded is the result of decoding a Bitcoin address.
type Decoded struct {
	PubKeyHash [20]byte
	ScriptType bitcoinwire.ScriptType
}

// Decode dispatches on the address prefix: addresses
// beginning with a recognized Bech32 HRP ("bc1", "tb1", "bcrt1") go through
// the Bech32 path; everything else is attempted as Base58Check.
func Decode(addr string) (Decoded, error) {
	for _, hrp := range bech32HRPs {
		if strings.HasPrefix(addr, hrp) {
			return decodeBech32(addr)
		}
	}
	return decodeBase58(addr)
}

func decodeBech32(addr string) (Decoded, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrBech32ChecksumFail, err)
	}

	if !validHRP(hrp) {
		return Decoded{}, fmt.Errorf("%w: unrecognized hrp %q", ErrInvalidAddress, hrp)
	}

	if len(data) < 1 {
		return Decoded{}, fmt.Errorf("%w: empty bech32 payload", ErrInvalidAddress)
	}

	witnessVersion := data[0]
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	// Only witness version 0 with a 20-byte program (P2WPKH) is accepted;
	// witness v0 with a 32-byte program is P2WSH and out of scope, and any
	// other version (including v1 taproot) is rejected.
	if witnessVersion != 0 || len(program) != 20 {
		return Decoded{}, fmt.Errorf("%w: unsupported witness version/program length", ErrInvalidAddress)
	}

	var out Decoded
	copy(out.PubKeyHash[:], program)
	out.ScriptType = bitcoinwire.ScriptTypeP2WPKH
	return out, nil
}

func validHRP(hrp string) bool {
	switch hrp {
	case "bc", "tb", "bcrt":
		return true
	default:
		return false
	}
}

func decodeBase58(addr string) (Decoded, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrBase58ChecksumFail, err)
	}

	if version != mainnetP2PKHVersion && version != testnetP2PKHVersion {
		// Covers P2SH (mainnet 0x05, testnet 0xc4) and any other version byte.
		return Decoded{}, fmt.Errorf("%w: unsupported version byte 0x%02x", ErrInvalidAddress, version)
	}

	if len(payload) != 20 {
		return Decoded{}, fmt.Errorf("%w: payload is %d bytes, want 20", ErrInvalidAddress, len(payload))
	}

	var out Decoded
	copy(out.PubKeyHash[:], payload)
	out.ScriptType = bitcoinwire.ScriptTypeP2PKH
	return out, nil
}
