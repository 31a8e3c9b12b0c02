// Package payoutstore is the durable, idempotent key-value layer over
// (txid, vout) that backs the relayer's crash-safe, exactly-once
// submission guarantee.
package payoutstore

import "time"

// PendingPayout is a detected, not-yet-submitted output.
// Txid and BlockHash are stored in internal (non-display) byte order,
// matching the form the proof builder and local verifier operate on.
type PendingPayout struct {
	Txid        [32]byte
	OutputIndex uint32

	Borrower    [20]byte
	BtcAddress  string
	AmountSats  uint64
	BlockHeight uint32
	BlockHash   [32]byte
	FirstSeen   time.Time
}

// SubmittedPayout is a payout whose proof has been accepted on-chain.
// Rows here are terminal and never deleted. Txid is in
// internal byte order, matching PendingPayout.
type SubmittedPayout struct {
	Txid        [32]byte
	OutputIndex uint32

	Borrower    [20]byte
	AmountSats  uint64
	BlockHeight uint32
	SubmittedAt time.Time
	EvmTxHash   [32]byte
}
