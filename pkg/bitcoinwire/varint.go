package bitcoinwire

import (
	"encoding/binary"
	"fmt"
)

// DecodeVarInt decodes a Bitcoin CompactSize integer starting at buf[0].
// It returns the decoded value and the number of bytes consumed.
func DecodeVarInt(buf []byte) (uint64, int, error) {
	if len(buf) < 1 {
		return 0, 0, fmt.Errorf("%w: empty varint", ErrMalformedTransaction)
	}

	switch prefix := buf[0]; {
	case prefix < 0xfd:
		return uint64(prefix), 1, nil
	case prefix == 0xfd:
		if len(buf) < 3 {
			return 0, 0, fmt.Errorf("%w: truncated 2-byte varint", ErrMalformedTransaction)
		}
		return uint64(binary.LittleEndian.Uint16(buf[1:3])), 3, nil
	case prefix == 0xfe:
		if len(buf) < 5 {
			return 0, 0, fmt.Errorf("%w: truncated 4-byte varint", ErrMalformedTransaction)
		}
		return uint64(binary.LittleEndian.Uint32(buf[1:5])), 5, nil
	default: // 0xff
		if len(buf) < 9 {
			return 0, 0, fmt.Errorf("%w: truncated 8-byte varint", ErrMalformedTransaction)
		}
		return binary.LittleEndian.Uint64(buf[1:9]), 9, nil
	}
}

// EncodeVarInt encodes n as a Bitcoin CompactSize integer.
func EncodeVarInt(n uint64) []byte {
	switch {
	case n < 0xfd:
		return []byte{byte(n)}
	case n <= 0xffff:
		out := make([]byte, 3)
		out[0] = 0xfd
		binary.LittleEndian.PutUint16(out[1:], uint16(n))
		return out
	case n <= 0xffffffff:
		out := make([]byte, 5)
		out[0] = 0xfe
		binary.LittleEndian.PutUint32(out[1:], uint32(n))
		return out
	default:
		out := make([]byte, 9)
		out[0] = 0xff
		binary.LittleEndian.PutUint64(out[1:], n)
		return out
	}
}
