// Package evmclient submits the relayer's on-chain calls against the
// CheckpointManager, BtcSpvVerifier, and HashCreditManager contract suite.
package evmclient

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// ErrEvmRPC wraps any transport-level failure talking to the Ethereum
// node after the client is constructed (nonce fetch, gas price, gas
// estimate, signing, broadcast, receipt wait, eth_call). A dial failure
// in NewClient is returned as a plain wrapped error.
var ErrEvmRPC = errors.New("evmclient: evm rpc error")

// EvmRevert is returned when a transaction is mined but its receipt
// status is not 1.
type EvmRevert struct {
	Method  string
	Receipt *types.Receipt
}

func (e *EvmRevert) Error() string {
	return fmt.Sprintf("evmclient: %s reverted (status %d, tx %s)", e.Method, e.Receipt.Status, e.Receipt.TxHash.Hex())
}

// EvmRPCError is the structured form of ErrEvmRPC.
type EvmRPCError struct {
	Method string
	Err    error
}

func (e *EvmRPCError) Error() string {
	return fmt.Sprintf("evmclient: %s: %v", e.Method, e.Err)
}

func (e *EvmRPCError) Unwrap() error { return ErrEvmRPC }
