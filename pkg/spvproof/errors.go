// Package spvproof builds and locally verifies the SPV proof tuple that
// BtcSpvVerifier checks on-chain.
package spvproof

import "errors"

// Each failure mode of the build/verify pipeline is a distinct sentinel so
// callers (the relayer loop, tests) can branch on exactly what went wrong.
var (
	ErrTxidMismatch             = errors.New("spvproof: sha256d(raw_tx) reversed does not match txid_display")
	ErrOutputIndexOOB           = errors.New("spvproof: output_index out of range")
	ErrUnsupportedScript        = errors.New("spvproof: output script is not a recognized template")
	ErrHeightOrdering           = errors.New("spvproof: height ordering invariant violated")
	ErrInsufficientConfirmations = errors.New("spvproof: insufficient confirmations")
	ErrHeaderChainTooLong       = errors.New("spvproof: header chain exceeds MAX_HEADER_CHAIN")
	ErrTxNotInBlock             = errors.New("spvproof: txid not found in target block")
	ErrMerkleRootMismatch       = errors.New("spvproof: derived merkle root does not match block header")
	ErrHeaderLinkage            = errors.New("spvproof: header chain linkage broken")
	ErrBlockIndexOOB            = errors.New("spvproof: tx_block_index out of range")
)
