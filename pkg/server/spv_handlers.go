package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
	"github.com/hashcredit/spvbridge/pkg/spvproof"
)

// buildProofRequest is the body of POST /spv/build-proof.
type buildProofRequest struct {
	TxidDisplay      string  `json:"txid_display"`
	OutputIndex      uint32  `json:"output_index"`
	CheckpointHeight uint32  `json:"checkpoint_height"`
	TargetHeight     uint32  `json:"target_height"`
	TipHeight        *uint32 `json:"tip_height,omitempty"`
	Borrower         string  `json:"borrower"`
}

type buildProofResponse struct {
	CheckpointHeight uint32 `json:"checkpoint_height"`
	TxBlockIndex     uint32 `json:"tx_block_index"`
	HeaderCount      int    `json:"header_count"`
	AmountSats       uint64 `json:"amount_sats"`
	ScriptType       string `json:"script_type"`
	ProofHex         string `json:"proof_hex"`
}

// handleBuildProof runs the proof-builder pipeline and returns the
// ABI-encoded proof without submitting it.
func (s *Server) handleBuildProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req buildProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	proof, err := s.buildProofFromRequest(r, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	encoded, err := proof.Encode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "abi encode failed")
		return
	}

	writeJSON(w, http.StatusOK, buildProofResponse{
		CheckpointHeight: proof.CheckpointHeight,
		TxBlockIndex:     proof.TxBlockIndex,
		HeaderCount:      len(proof.Headers),
		AmountSats:       proof.AmountSats,
		ScriptType:       string(proof.ScriptType),
		ProofHex:         "0x" + hex.EncodeToString(encoded),
	})
}

// submitProofRequest is the body of POST /spv/submit: it either carries a
// pre-built proof hex or the same parameters as build-proof, built and
// submitted in one call.
type submitProofRequest struct {
	buildProofRequest
	ProofHex string `json:"proof_hex,omitempty"`
}

type submitProofResponse struct {
	EvmTxHash string `json:"evm_tx_hash"`
	Status    uint64 `json:"status"`
}

// handleSubmit locally verifies and submits an SPV proof, building it
// first if only the build parameters were given. This path is for
// operator-triggered one-off submissions; the relayer loop never calls
// this handler.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cfg.EVM == nil {
		writeError(w, http.StatusServiceUnavailable, "evm client not configured")
		return
	}

	var req submitProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var encoded []byte
	if req.ProofHex != "" {
		raw, err := hex.DecodeString(trimHexPrefix(req.ProofHex))
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed proof_hex")
			return
		}
		encoded = raw
	} else {
		proof, err := s.buildProofFromRequest(r, req.buildProofRequest)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := spvproof.VerifyLocal(proof); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("local verification failed: %v", err))
			return
		}
		encoded, err = proof.Encode()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "abi encode failed")
			return
		}
	}

	receipt, err := s.cfg.EVM.SubmitPayout(r.Context(), encoded)
	if err != nil {
		s.logger.Printf("submit payout: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, submitProofResponse{
		EvmTxHash: receipt.TxHash.Hex(),
		Status:    receipt.Status,
	})
}

func (s *Server) buildProofFromRequest(r *http.Request, req buildProofRequest) (*spvproof.SpvProof, error) {
	if s.cfg.Adapter == nil {
		return nil, fmt.Errorf("chain adapter not configured")
	}
	if !common.IsHexAddress(req.Borrower) {
		return nil, fmt.Errorf("invalid borrower address %q", req.Borrower)
	}
	txidDisplay, err := parseDisplayHash(req.TxidDisplay)
	if err != nil {
		return nil, fmt.Errorf("invalid txid_display: %w", err)
	}

	return spvproof.BuildProof(r.Context(), s.cfg.Adapter, spvproof.BuildParams{
		TxidDisplay:      txidDisplay,
		OutputIndex:      req.OutputIndex,
		CheckpointHeight: req.CheckpointHeight,
		TargetHeight:     req.TargetHeight,
		TipHeight:        req.TipHeight,
		BorrowerEVM:      [20]byte(common.HexToAddress(req.Borrower)),
	})
}

func parseDisplayHash(s string) (bitcoinwire.DisplayHash, error) {
	raw, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return bitcoinwire.DisplayHash{}, err
	}
	if len(raw) != 32 {
		return bitcoinwire.DisplayHash{}, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	var h bitcoinwire.DisplayHash
	copy(h[:], raw)
	return h, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
