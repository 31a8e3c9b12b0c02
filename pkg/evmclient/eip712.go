package evmclient

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// PayoutClaim is the EIP-712 payload for deployments where a payout is
// authorized by a relayer signature the borrower redeems on-chain,
// instead of a direct submitPayout transaction. Txid is in internal
// (non-display) byte order.
type PayoutClaim struct {
	Borrower       common.Address
	Txid           [32]byte
	Vout           uint32
	AmountSats     uint64
	BlockHeight    uint32
	BlockTimestamp uint32
	Deadline       *big.Int
}

var payoutClaimTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"PayoutClaim": {
		{Name: "borrower", Type: "address"},
		{Name: "txid", Type: "bytes32"},
		{Name: "vout", Type: "uint32"},
		{Name: "amountSats", Type: "uint64"},
		{Name: "blockHeight", Type: "uint32"},
		{Name: "blockTimestamp", Type: "uint32"},
		{Name: "deadline", Type: "uint256"},
	},
}

// payoutClaimTypedData assembles the full EIP-712 structure for claim
// under the HashCredit domain at verifyingContract.
func payoutClaimTypedData(chainID *big.Int, verifyingContract common.Address, claim PayoutClaim) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       payoutClaimTypes,
		PrimaryType: "PayoutClaim",
		Domain: apitypes.TypedDataDomain{
			Name:              "HashCredit",
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"borrower":       claim.Borrower.Hex(),
			"txid":           hexutil.Encode(claim.Txid[:]),
			"vout":           (*math.HexOrDecimal256)(new(big.Int).SetUint64(uint64(claim.Vout))),
			"amountSats":     (*math.HexOrDecimal256)(new(big.Int).SetUint64(claim.AmountSats)),
			"blockHeight":    (*math.HexOrDecimal256)(new(big.Int).SetUint64(uint64(claim.BlockHeight))),
			"blockTimestamp": (*math.HexOrDecimal256)(new(big.Int).SetUint64(uint64(claim.BlockTimestamp))),
			"deadline":       (*math.HexOrDecimal256)(claim.Deadline),
		},
	}
}

// SignPayoutClaim signs claim with the client's key and returns the
// 65-byte (r || s || v) signature, v in {27, 28}.
func (c *Client) SignPayoutClaim(claim PayoutClaim, verifyingContract common.Address) ([]byte, error) {
	if claim.Deadline == nil {
		return nil, fmt.Errorf("evmclient: payout claim deadline is required")
	}

	typedData := payoutClaimTypedData(c.chainID, verifyingContract, claim)
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("evmclient: hash payout claim: %w", err)
	}

	sig, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("evmclient: sign payout claim: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
