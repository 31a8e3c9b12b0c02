package spvproof

import (
	"fmt"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

// VerifyLocal replays the on-chain verifier's non-PoW checks:
// header-chain linkage, block-index range, confirmation depth, and
// Merkle inclusion against the target header's merkle root.
// Proof-of-work validation is intentionally skipped; the on-chain
// verifier holds that invariant, not this package.
func VerifyLocal(p *SpvProof) error {
	if len(p.Headers) == 0 {
		return fmt.Errorf("%w: no headers", ErrBlockIndexOOB)
	}
	if p.TxBlockIndex >= uint32(len(p.Headers)) {
		return fmt.Errorf("%w: %d, len %d", ErrBlockIndexOOB, p.TxBlockIndex, len(p.Headers))
	}
	if uint32(len(p.Headers)) > MaxHeaderChain {
		return fmt.Errorf("%w: %d headers", ErrHeaderChainTooLong, len(p.Headers))
	}
	if p.confirmations() < MinConfirmations {
		return fmt.Errorf("%w: %d", ErrInsufficientConfirmations, p.confirmations())
	}

	parsed := make([]bitcoinwire.BlockHeader, len(p.Headers))
	for i, raw := range p.Headers {
		h, err := bitcoinwire.ParseHeader(raw)
		if err != nil {
			return fmt.Errorf("spvproof: %w", err)
		}
		parsed[i] = h
	}

	for i := 1; i < len(parsed); i++ {
		prevHash := parsed[i-1].Hash()
		if prevHash != parsed[i].PrevHash {
			return fmt.Errorf("%w: at header %d", ErrHeaderLinkage, i)
		}
	}

	leaf := bitcoinwire.Sha256d(p.RawTx)
	targetHeader := parsed[p.TxBlockIndex]
	proof := fromFixedProof(p.MerkleProof)
	txIndex := int(p.TxIndex.Int64())
	if !bitcoinwire.VerifyMerkleProof(leaf, targetHeader.MerkleRoot, proof, txIndex) {
		return ErrMerkleRootMismatch
	}

	return nil
}

func fromFixedProof(proof [][32]byte) []bitcoinwire.InternalHash {
	out := make([]bitcoinwire.InternalHash, len(proof))
	for i, h := range proof {
		out[i] = bitcoinwire.InternalHash(h)
	}
	return out
}
