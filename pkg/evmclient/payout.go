package evmclient

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
)

// SubmitPayout calls HashCreditManager.submitPayout with an
// ABI-encoded spvproof.SpvProof. A revert here is
// expected behavior, not a bug: the relayer leaves the payout pending
// and retries on the next iteration.
func (c *Client) SubmitPayout(ctx context.Context, proof []byte) (*types.Receipt, error) {
	return c.call(ctx, c.hashCreditManagerAddr, hashCreditManagerRegisterABI, "submitPayout", proof)
}
