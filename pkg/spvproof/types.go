package spvproof

import (
	"math/big"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

// MinConfirmations is the default confirmation depth required before a
// payout is eligible for submission.
const MinConfirmations = 6

// MaxHeaderChain is the contract-defined ceiling on how many headers a
// single proof may carry.
const MaxHeaderChain = 144

// BuildParams are the inputs to BuildProof.
type BuildParams struct {
	TxidDisplay      bitcoinwire.DisplayHash
	OutputIndex      uint32
	CheckpointHeight uint32
	TargetHeight     uint32
	BorrowerEVM      [20]byte

	// TipHeight is optional; a nil value defaults to
	// TargetHeight + MinConfirmations - 1.
	TipHeight *uint32
}

// SpvProof mirrors the on-chain tuple BtcSpvVerifier.verifyAndSettle
// expects:
//	(checkpoint_height, headers, tx_block_index, raw_tx, merkle_proof,
//	 tx_index, output_index, borrower)
type SpvProof struct {
	CheckpointHeight uint32
	Headers          [][]byte // each exactly bitcoinwire.HeaderSize bytes, in order
	TxBlockIndex     uint32
	RawTx            []byte
	MerkleProof      [][32]byte
	TxIndex          *big.Int
	OutputIndex      uint32
	Borrower         [20]byte

	// AmountSats and ScriptType are not part of the ABI tuple but are
	// useful bookkeeping the builder recovers along the way.
	AmountSats uint64
	ScriptType bitcoinwire.ScriptType
}

func (p *SpvProof) confirmations() uint32 {
	return uint32(len(p.Headers)) - p.TxBlockIndex
}
