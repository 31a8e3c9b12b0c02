package btcaddr

import "errors"

var (
	// ErrInvalidAddress covers every rejection path except a bad checksum:
	// unknown HRP/version byte, wrong payload length, or an unsupported
	// witness version/program length. Checksum failures are reported as
	// ErrBech32ChecksumFail or ErrBase58ChecksumFail.
	ErrInvalidAddress     = errors.New("btcaddr: invalid address")
	ErrBech32ChecksumFail = errors.New("btcaddr: bech32 checksum verification failed")
	ErrBase58ChecksumFail = errors.New("btcaddr: base58check checksum verification failed")
)
