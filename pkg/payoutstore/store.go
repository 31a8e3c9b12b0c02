package payoutstore

import "context"

// Store is the capability interface the watcher and relayer loop depend
// on. Two backends exist: an embedded bbolt-backed Store for
// single-process deployments, and a postgres-backed Store for
// server deployments sharing state across processes.
type Store interface {
	// AddPending upserts row, returning true only on first insertion.
	// Duplicate discovery of the same (txid, vout) is a no-op.
	AddPending(ctx context.Context, row PendingPayout) (bool, error)

	IsSubmitted(ctx context.Context, txid [32]byte, outputIndex uint32) (bool, error)

	// MarkSubmitted atomically moves the row identified by (txid,
	// outputIndex) from pending to submitted. If the pending row is
	// already gone (already moved), it is a no-op.
	MarkSubmitted(ctx context.Context, txid [32]byte, outputIndex uint32, evmTxHash [32]byte) error

	// RemovePending is used only on reorg detection.
	RemovePending(ctx context.Context, txid [32]byte, outputIndex uint32) error

	GetPending(ctx context.Context) ([]PendingPayout, error)
}
