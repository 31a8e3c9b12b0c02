package evmclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const btcSpvVerifierABI = `[
	{"type":"function","name":"setBorrowerPubkeyHash","inputs":[
		{"name":"borrower","type":"address"},
		{"name":"pubkeyHash","type":"bytes20"}
	],"outputs":[]}
]`

const hashCreditManagerRegisterABI = `[
	{"type":"function","name":"registerBorrower","inputs":[
		{"name":"borrower","type":"address"},
		{"name":"btcPayoutKeyHash","type":"bytes32"}
	],"outputs":[]},
	{"type":"function","name":"submitPayout","inputs":[
		{"name":"proof","type":"bytes"}
	],"outputs":[]},
	{"type":"function","name":"isBorrowerRegistered","inputs":[
		{"name":"borrower","type":"address"}
	],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"}
]`

// SetBorrowerPubkeyHash calls BtcSpvVerifier.setBorrowerPubkeyHash,
// binding a borrower's EVM address to the Bitcoin pubkey hash they
// proved control of during the claim protocol.
func (c *Client) SetBorrowerPubkeyHash(ctx context.Context, borrower common.Address, pubkeyHash [20]byte) (*types.Receipt, error) {
	return c.call(ctx, c.btcSpvVerifierAddr, btcSpvVerifierABI, "setBorrowerPubkeyHash", borrower, pubkeyHash)
}

// RegisterBorrower calls HashCreditManager.registerBorrower. The
// caller is responsible for deriving btcPayoutKeyHash as
// keccak256 of the UTF-8 BTC address string.
func (c *Client) RegisterBorrower(ctx context.Context, borrower common.Address, btcPayoutKeyHash [32]byte) (*types.Receipt, error) {
	return c.call(ctx, c.hashCreditManagerAddr, hashCreditManagerRegisterABI, "registerBorrower", borrower, btcPayoutKeyHash)
}

// IsBorrowerRegistered reads HashCreditManager.isBorrowerRegistered, used
// by the claim protocol to decide whether RegisterBorrower is needed.
func (c *Client) IsBorrowerRegistered(ctx context.Context, borrower common.Address) (bool, error) {
	outputs, err := c.callView(ctx, c.hashCreditManagerAddr, hashCreditManagerRegisterABI, "isBorrowerRegistered", borrower)
	if err != nil {
		return false, err
	}
	if len(outputs) != 1 {
		return false, fmt.Errorf("evmclient: isBorrowerRegistered returned %d outputs, want 1", len(outputs))
	}
	registered, ok := outputs[0].(bool)
	if !ok {
		return false, fmt.Errorf("evmclient: isBorrowerRegistered returned unexpected type %T", outputs[0])
	}
	return registered, nil
}
