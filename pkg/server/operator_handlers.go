package server

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// btcPayoutKeyHash computes keccak256(utf8(btc_address)), the same
// derivation the claim protocol uses.
func btcPayoutKeyHash(btcAddress string) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash([]byte(btcAddress)))
}

// setCheckpointRequest is the body of POST /checkpoint/set.
// BlockHashInternal is the 32-byte block hash in internal (non-display)
// byte order, the form CheckpointManager stores and the proof
// builder's header-linkage check compares against.
type setCheckpointRequest struct {
	Height            uint32 `json:"height"`
	BlockHashInternal string `json:"block_hash_internal"`
	ChainWork         string `json:"chain_work"` // decimal or 0x-hex
	Timestamp         uint32 `json:"timestamp"`
	Bits              uint32 `json:"bits"`
}

// handleSetCheckpoint calls CheckpointManager.setCheckpoint. This is an
// operator action: a contract revert surfaces directly to the caller
// rather than being retried by a loop.
func (s *Server) handleSetCheckpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cfg.EVM == nil {
		writeError(w, http.StatusServiceUnavailable, "evm client not configured")
		return
	}

	var req setCheckpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	blockHash, err := parseDisplayHash(req.BlockHashInternal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block_hash_internal")
		return
	}
	chainWork, ok := new(big.Int).SetString(req.ChainWork, 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain_work")
		return
	}

	receipt, err := s.cfg.EVM.SetCheckpoint(r.Context(), req.Height, [32]byte(blockHash), chainWork, req.Timestamp, req.Bits)
	if err != nil {
		s.logger.Printf("set checkpoint: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"evm_tx_hash": receipt.TxHash.Hex(), "status": receipt.Status})
}

// setBorrowerPubkeyHashRequest is the body of POST
// /borrower/set-pubkey-hash.
type setBorrowerPubkeyHashRequest struct {
	Borrower   string `json:"borrower"`
	PubkeyHash string `json:"pubkey_hash"`
}

// handleSetBorrowerPubkeyHash calls BtcSpvVerifier.setBorrowerPubkeyHash
// directly, bypassing the claim protocol's signature verification. This
// is an operator escape hatch, not the normal claim flow.
func (s *Server) handleSetBorrowerPubkeyHash(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cfg.EVM == nil {
		writeError(w, http.StatusServiceUnavailable, "evm client not configured")
		return
	}

	var req setBorrowerPubkeyHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !common.IsHexAddress(req.Borrower) {
		writeError(w, http.StatusBadRequest, "invalid borrower address")
		return
	}
	raw, err := hex.DecodeString(trimHexPrefix(req.PubkeyHash))
	if err != nil || len(raw) != 20 {
		writeError(w, http.StatusBadRequest, "pubkey_hash must be 20 bytes hex")
		return
	}
	var pkh [20]byte
	copy(pkh[:], raw)

	receipt, err := s.cfg.EVM.SetBorrowerPubkeyHash(r.Context(), common.HexToAddress(req.Borrower), pkh)
	if err != nil {
		s.logger.Printf("set borrower pubkey hash: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"evm_tx_hash": receipt.TxHash.Hex(), "status": receipt.Status})
}

// registerBorrowerRequest is the body of POST /manager/register-borrower.
type registerBorrowerRequest struct {
	Borrower   string `json:"borrower"`
	BtcAddress string `json:"btc_address"`
}

// handleRegisterBorrower derives btcPayoutKeyHash = keccak256(utf8(btc_address))
// and calls HashCreditManager.registerBorrower. Like
// handleSetBorrowerPubkeyHash, this is an operator path distinct from the
// claim protocol's automatic registration.
func (s *Server) handleRegisterBorrower(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cfg.EVM == nil {
		writeError(w, http.StatusServiceUnavailable, "evm client not configured")
		return
	}

	var req registerBorrowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !common.IsHexAddress(req.Borrower) {
		writeError(w, http.StatusBadRequest, "invalid borrower address")
		return
	}
	if req.BtcAddress == "" {
		writeError(w, http.StatusBadRequest, "btc_address is required")
		return
	}

	receipt, err := s.cfg.EVM.RegisterBorrower(r.Context(), common.HexToAddress(req.Borrower), btcPayoutKeyHash(req.BtcAddress))
	if err != nil {
		s.logger.Printf("register borrower: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"evm_tx_hash": receipt.TxHash.Hex(), "status": receipt.Status})
}
