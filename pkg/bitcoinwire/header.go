package bitcoinwire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed serialized size of a Bitcoin block header.
const HeaderSize = 80

// BlockHeader is the 80-byte Bitcoin block header.
type BlockHeader struct {
	Version    uint32
	PrevHash   InternalHash
	MerkleRoot InternalHash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// ParseHeader parses an 80-byte serialized header. Parsing fails if len(b) != 80.
func ParseHeader(b []byte) (BlockHeader, error) {
	if len(b) != HeaderSize {
		return BlockHeader{}, fmt.Errorf("%w: header is %d bytes, want %d", ErrMalformedHeader, len(b), HeaderSize)
	}

	var h BlockHeader
	h.Version = binary.LittleEndian.Uint32(b[0:4])
	copy(h.PrevHash[:], b[4:36])
	copy(h.MerkleRoot[:], b[36:68])
	h.Timestamp = binary.LittleEndian.Uint32(b[68:72])
	h.Bits = binary.LittleEndian.Uint32(b[72:76])
	h.Nonce = binary.LittleEndian.Uint32(b[76:80])
	return h, nil
}

// Serialize returns the canonical 80-byte wire encoding of the header.
func (h BlockHeader) Serialize() []byte {
	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], h.Version)
	copy(out[4:36], h.PrevHash[:])
	copy(out[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(out[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(out[72:76], h.Bits)
	binary.LittleEndian.PutUint32(out[76:80], h.Nonce)
	return out
}

// Hash returns sha256d(serialized header), in internal byte order.
func (h BlockHeader) Hash() InternalHash {
	return Sha256d(h.Serialize())
}
