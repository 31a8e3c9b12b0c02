package spvproof

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// abiArguments describes the SpvProof tuple's wire encoding:
// (checkpoint_height u32, headers bytes[], tx_block_index u32, raw_tx
// bytes, merkle_proof bytes32[], tx_index u256, output_index u32,
// borrower address).
func abiArguments() (abi.Arguments, error) {
	uint32Ty, err := abi.NewType("uint32", "", nil)
	if err != nil {
		return nil, err
	}
	bytesTy, err := abi.NewType("bytes", "", nil)
	if err != nil {
		return nil, err
	}
	bytesArrTy, err := abi.NewType("bytes[]", "", nil)
	if err != nil {
		return nil, err
	}
	bytes32ArrTy, err := abi.NewType("bytes32[]", "", nil)
	if err != nil {
		return nil, err
	}
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, err
	}
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}

	return abi.Arguments{
		{Type: uint32Ty},     // checkpoint_height
		{Type: bytesArrTy},   // headers
		{Type: uint32Ty},     // tx_block_index
		{Type: bytesTy},      // raw_tx
		{Type: bytes32ArrTy}, // merkle_proof
		{Type: uint256Ty},    // tx_index
		{Type: uint32Ty},     // output_index
		{Type: addressTy},    // borrower
	}, nil
}

// Encode ABI-encodes the proof as the tuple BtcSpvVerifier expects.
func (p *SpvProof) Encode() ([]byte, error) {
	args, err := abiArguments()
	if err != nil {
		return nil, fmt.Errorf("spvproof: build abi arguments: %w", err)
	}

	headers := make([][]byte, len(p.Headers))
	copy(headers, p.Headers)

	merkleProof := make([][32]byte, len(p.MerkleProof))
	copy(merkleProof, p.MerkleProof)

	txIndex := p.TxIndex
	if txIndex == nil {
		txIndex = big.NewInt(0)
	}

	packed, err := args.Pack(
		p.CheckpointHeight,
		headers,
		p.TxBlockIndex,
		p.RawTx,
		merkleProof,
		txIndex,
		p.OutputIndex,
		common.Address(p.Borrower),
	)
	if err != nil {
		return nil, fmt.Errorf("spvproof: abi pack: %w", err)
	}
	return packed, nil
}
