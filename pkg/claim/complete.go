package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/hashcredit/spvbridge/pkg/btcaddr"
	"github.com/hashcredit/spvbridge/pkg/btcsig"
)

// ErrEvmSignatureMismatch is returned when the EVM signature recovers to
// an address other than payload.Borrower.
var ErrEvmSignatureMismatch = errors.New("claim: evm signature does not match borrower")

// Registrar is the subset of evmclient.Client the claim completion flow
// drives: bind the pubkey hash, and register the borrower if this is
// their first claim.
type Registrar interface {
	SetBorrowerPubkeyHash(ctx context.Context, borrower common.Address, pubkeyHash [20]byte) (*types.Receipt, error)
	IsBorrowerRegistered(ctx context.Context, borrower common.Address) (bool, error)
	RegisterBorrower(ctx context.Context, borrower common.Address, btcPayoutKeyHash [32]byte) (*types.Receipt, error)
}

// CompleteRequest carries what the HTTP layer decoded from the
// /claim/complete request body.
type CompleteRequest struct {
	Token        string
	EvmSignature []byte // 65-byte personal_sign signature
	BtcSignature []byte // 65-byte BIP-137 signature
}

// CompleteResult reports what was verified and, if not a dry run, what
// was registered.
type CompleteResult struct {
	Payload             Payload
	PubKeyHashHex       string
	BtcPayoutKeyHashHex string
	Registered          bool
}

// Complete verifies token, then both signatures over its canonical
// message, then (unless dryRun) calls registrar to bind the mapping
// on-chain.
func Complete(ctx context.Context, iss *Issuer, registrar Registrar, req CompleteRequest, dryRun bool) (CompleteResult, error) {
	payload, err := iss.Verify(req.Token)
	if err != nil {
		return CompleteResult{}, err
	}

	if !common.IsHexAddress(payload.Borrower) {
		return CompleteResult{}, fmt.Errorf("%w: borrower %q", ErrInvalidAddress, payload.Borrower)
	}
	borrowerAddr := common.HexToAddress(payload.Borrower)

	message := CanonicalMessage(payload)

	recoveredEvm, err := recoverEvmSigner(message, req.EvmSignature)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("claim: evm signature: %w", err)
	}
	if !strings.EqualFold(recoveredEvm, payload.Borrower) {
		return CompleteResult{}, ErrEvmSignatureMismatch
	}

	decoded, err := btcaddr.Decode(payload.BtcAddress)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("claim: decode btc address: %w", err)
	}
	if err := btcsig.Verify(message, req.BtcSignature, decoded.PubKeyHash, decoded.ScriptType); err != nil {
		return CompleteResult{}, fmt.Errorf("claim: btc signature: %w", err)
	}

	result := CompleteResult{
		Payload:             payload,
		PubKeyHashHex:       fmt.Sprintf("%x", decoded.PubKeyHash),
		BtcPayoutKeyHashHex: fmt.Sprintf("%x", btcPayoutKeyHash(payload.BtcAddress)),
	}

	if dryRun {
		return result, nil
	}

	if _, err := registrar.SetBorrowerPubkeyHash(ctx, borrowerAddr, decoded.PubKeyHash); err != nil {
		return result, fmt.Errorf("claim: set borrower pubkey hash: %w", err)
	}

	registered, err := registrar.IsBorrowerRegistered(ctx, borrowerAddr)
	if err != nil {
		return result, fmt.Errorf("claim: check borrower registration: %w", err)
	}
	if !registered {
		if _, err := registrar.RegisterBorrower(ctx, borrowerAddr, btcPayoutKeyHash(payload.BtcAddress)); err != nil {
			return result, fmt.Errorf("claim: register borrower: %w", err)
		}
		result.Registered = true
	}

	return result, nil
}

// btcPayoutKeyHash computes keccak256(utf8(btc_address)).
func btcPayoutKeyHash(btcAddress string) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash([]byte(btcAddress)))
}

const evmPersonalSignPrefix = "\x19Ethereum Signed Message:\n"

// recoverEvmSigner recovers the EIP-55 checksummed hex address that produced
// sig over message via Ethereum's personal_sign scheme.
func recoverEvmSigner(message string, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("signature is %d bytes, want 65", len(sig))
	}

	prefixed := fmt.Sprintf("%s%d%s", evmPersonalSignPrefix, len(message), message)
	hash := ethcrypto.Keccak256([]byte(prefixed))

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pubKey, err := ethcrypto.SigToPub(hash, normalized)
	if err != nil {
		return "", err
	}
	return ethcrypto.PubkeyToAddress(*pubKey).Hex(), nil
}
