// Package chainadapter abstracts over a Bitcoin node RPC or an
// Esplora-style REST indexer, exposing only the queries the
// SPV proof pipeline and the address watcher need.
package chainadapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

// ErrChainRPC wraps any transport-level failure talking to the underlying
// Bitcoin node or indexer. ChainRPCError carries structured context.
var ErrChainRPC = errors.New("chainadapter: chain RPC error")

// ChainRPCError is the structured form of a chain adapter failure: which
// method failed, and why.
type ChainRPCError struct {
	Method string
	Err    error
}

func (e *ChainRPCError) Error() string {
	return fmt.Sprintf("chainadapter: %s: %v", e.Method, e.Err)
}

func (e *ChainRPCError) Unwrap() error { return ErrChainRPC }

// HeaderInfo is the subset of a block header's metadata the checkpoint
// flow needs beyond the raw 80 bytes.
type HeaderInfo struct {
	Time         uint32
	ChainworkHex string
	Bits         uint32
}

// TxOut is one decoded output from a verbose block, used by the address
// watcher when the adapter can decode scripts itself.
type TxOut struct {
	Index           uint32
	ValueBTCString  string
	ScriptPubKeyHex string
	Address         string
}

// VerboseTx is a transaction as returned by an adapter's verbose block
// query, when supported.
type VerboseTx struct {
	Txid    string
	Outputs []TxOut
}

// ChainAdapter is the capability interface the pipeline depends on. Two
// concrete variants exist: NodeRPC (Bitcoin Core JSON-RPC) and Esplora
// (REST indexer); a Mock variant backs unit tests.
type ChainAdapter interface {
	GetTipHeight(ctx context.Context) (uint32, error)
	GetBlockHash(ctx context.Context, height uint32) (bitcoinwire.DisplayHash, error)
	GetBlockHeaderBytes(ctx context.Context, hash bitcoinwire.DisplayHash) ([]byte, error)
	GetBlockHeaderInfo(ctx context.Context, hash bitcoinwire.DisplayHash) (HeaderInfo, error)
	GetBlockTxids(ctx context.Context, hash bitcoinwire.DisplayHash) ([]bitcoinwire.DisplayHash, error)
	GetRawTx(ctx context.Context, txid bitcoinwire.DisplayHash) ([]byte, error)
}

// VerboseBlockAdapter is implemented by adapters that can return
// already-decoded outputs for every transaction in a block; the watcher
// uses this to skip re-parsing scripts when available.
type VerboseBlockAdapter interface {
	GetBlockVerbose(ctx context.Context, hash bitcoinwire.DisplayHash) ([]VerboseTx, error)
}
