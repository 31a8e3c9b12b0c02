package evmclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// setCheckpoint is the five-argument form:
// setCheckpoint(uint32 height, bytes32 blockHash, uint256 chainWork,
// uint32 timestamp, uint32 bits). Confirm against the deployed ABI
// before pointing this client at a new contract suite.
const checkpointManagerABI = `[
	{"type":"function","name":"setCheckpoint","inputs":[
		{"name":"height","type":"uint32"},
		{"name":"blockHash","type":"bytes32"},
		{"name":"chainWork","type":"uint256"},
		{"name":"timestamp","type":"uint32"},
		{"name":"bits","type":"uint32"}
	],"outputs":[]},
	{"type":"function","name":"latestCheckpointHeight","inputs":[],"outputs":[{"name":"","type":"uint32"}],"stateMutability":"view"}
]`

// SetCheckpoint calls CheckpointManager.setCheckpoint. This is an
// operator action, not loop-driven: a revert surfaces directly to the
// caller.
func (c *Client) SetCheckpoint(ctx context.Context, height uint32, blockHashInternal [32]byte, chainWork *big.Int, timestamp, bits uint32) (*types.Receipt, error) {
	return c.call(ctx, c.checkpointManagerAddr, checkpointManagerABI, "setCheckpoint", height, blockHashInternal, chainWork, timestamp, bits)
}

// LatestCheckpointHeight reads CheckpointManager.latestCheckpointHeight()
// for checkpoint-anchor selection.
func (c *Client) LatestCheckpointHeight(ctx context.Context) (uint32, error) {
	outputs, err := c.callView(ctx, c.checkpointManagerAddr, checkpointManagerABI, "latestCheckpointHeight")
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, fmt.Errorf("evmclient: latestCheckpointHeight returned %d outputs, want 1", len(outputs))
	}
	height, ok := outputs[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("evmclient: latestCheckpointHeight returned unexpected type %T", outputs[0])
	}
	return height, nil
}
