package spvproof

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
	"github.com/hashcredit/spvbridge/pkg/chainadapter"
)

// BuildProof runs the proof-builder pipeline against adapter.
func BuildProof(ctx context.Context, adapter chainadapter.ChainAdapter, params BuildParams) (*SpvProof, error) {
	tipHeight := params.TargetHeight + MinConfirmations - 1
	if params.TipHeight != nil {
		tipHeight = *params.TipHeight
	}

	rawTx, err := adapter.GetRawTx(ctx, params.TxidDisplay)
	if err != nil {
		return nil, fmt.Errorf("spvproof: %w", err)
	}

	computed := bitcoinwire.Sha256d(rawTx)
	if computed.Reverse() != params.TxidDisplay {
		return nil, ErrTxidMismatch
	}

	outputs, err := bitcoinwire.ParseTxOutputs(rawTx)
	if err != nil {
		return nil, fmt.Errorf("spvproof: %w", err)
	}
	if int(params.OutputIndex) >= len(outputs) {
		return nil, fmt.Errorf("%w: index %d, len %d", ErrOutputIndexOOB, params.OutputIndex, len(outputs))
	}
	out := outputs[params.OutputIndex]

	_, scriptType, ok := bitcoinwire.ExtractPubKeyHash(out.ScriptPubKey)
	if !ok {
		return nil, ErrUnsupportedScript
	}

	if err := validateHeights(params.TargetHeight, params.CheckpointHeight, tipHeight); err != nil {
		return nil, err
	}

	headers, err := fetchHeaders(ctx, adapter, params.CheckpointHeight, tipHeight)
	if err != nil {
		return nil, err
	}

	txBlockIndex := params.TargetHeight - params.CheckpointHeight - 1
	if int(txBlockIndex) >= len(headers) {
		return nil, fmt.Errorf("%w: %d, len %d", ErrBlockIndexOOB, txBlockIndex, len(headers))
	}

	targetBlockHash, err := adapter.GetBlockHash(ctx, params.TargetHeight)
	if err != nil {
		return nil, fmt.Errorf("spvproof: %w", err)
	}
	txids, err := adapter.GetBlockTxids(ctx, targetBlockHash)
	if err != nil {
		return nil, fmt.Errorf("spvproof: %w", err)
	}

	txIndex := -1
	leaves := make([]bitcoinwire.InternalHash, len(txids))
	for i, txid := range txids {
		leaves[i] = txid.Reverse()
		if txid == params.TxidDisplay {
			txIndex = i
		}
	}
	if txIndex < 0 {
		return nil, ErrTxNotInBlock
	}

	merkleProof, root, err := bitcoinwire.GenerateMerkleProof(leaves, txIndex)
	if err != nil {
		return nil, fmt.Errorf("spvproof: %w", err)
	}

	targetHeader, err := bitcoinwire.ParseHeader(headers[txBlockIndex])
	if err != nil {
		return nil, fmt.Errorf("spvproof: %w", err)
	}
	if root != targetHeader.MerkleRoot {
		return nil, ErrMerkleRootMismatch
	}

	proof := &SpvProof{
		CheckpointHeight: params.CheckpointHeight,
		Headers:          headers,
		TxBlockIndex:     txBlockIndex,
		RawTx:            rawTx,
		MerkleProof:      toFixedProof(merkleProof),
		TxIndex:          big.NewInt(int64(txIndex)),
		OutputIndex:      params.OutputIndex,
		Borrower:         params.BorrowerEVM,
		AmountSats:       out.ValueSats,
		ScriptType:       scriptType,
	}
	return proof, nil
}

func validateHeights(targetHeight, checkpointHeight, tipHeight uint32) error {
	if !(targetHeight > checkpointHeight) {
		return fmt.Errorf("%w: target_height %d <= checkpoint_height %d", ErrHeightOrdering, targetHeight, checkpointHeight)
	}
	if tipHeight < targetHeight {
		return fmt.Errorf("%w: tip_height %d < target_height %d", ErrHeightOrdering, tipHeight, targetHeight)
	}
	if tipHeight-targetHeight+1 < MinConfirmations {
		return fmt.Errorf("%w: only %d confirmations", ErrInsufficientConfirmations, tipHeight-targetHeight+1)
	}
	if tipHeight-checkpointHeight > MaxHeaderChain {
		return fmt.Errorf("%w: %d headers requested", ErrHeaderChainTooLong, tipHeight-checkpointHeight)
	}
	return nil
}

func fetchHeaders(ctx context.Context, adapter chainadapter.ChainAdapter, checkpointHeight, tipHeight uint32) ([][]byte, error) {
	headers := make([][]byte, 0, tipHeight-checkpointHeight)
	for h := checkpointHeight + 1; h <= tipHeight; h++ {
		hash, err := adapter.GetBlockHash(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("spvproof: %w", err)
		}
		raw, err := adapter.GetBlockHeaderBytes(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("spvproof: %w", err)
		}
		headers = append(headers, raw)
	}
	return headers, nil
}

func toFixedProof(proof []bitcoinwire.InternalHash) [][32]byte {
	out := make([][32]byte, len(proof))
	for i, h := range proof {
		out[i] = [32]byte(h)
	}
	return out
}
