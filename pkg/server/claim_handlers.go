package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hashcredit/spvbridge/pkg/btcaddr"
	"github.com/hashcredit/spvbridge/pkg/claim"
)

// claimStartRequest is the body of POST /claim/start.
type claimStartRequest struct {
	Borrower   string `json:"borrower"`
	BtcAddress string `json:"btc_address"`
	ChainID    int64  `json:"chain_id"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type claimStartResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// handleClaimStart validates both addresses syntactically and issues an
// HMAC claim token plus the canonical message both signatures must cover.
func (s *Server) handleClaimStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cfg.Issuer == nil {
		writeError(w, http.StatusServiceUnavailable, "claim issuer not configured")
		return
	}

	var req claimStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !common.IsHexAddress(req.Borrower) {
		writeError(w, http.StatusBadRequest, "invalid borrower address")
		return
	}
	if _, err := btcaddr.Decode(req.BtcAddress); err != nil {
		writeError(w, http.StatusBadRequest, "invalid btc_address")
		return
	}

	token, message, err := s.cfg.Issuer.Issue(req.Borrower, req.BtcAddress, req.ChainID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		s.logger.Printf("claim start: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to issue claim token")
		return
	}

	writeJSON(w, http.StatusOK, claimStartResponse{Token: token, Message: message})
}

// claimCompleteRequest is the body of POST /claim/complete. Both
// signatures are base64-encoded 65-byte values.
type claimCompleteRequest struct {
	Token           string `json:"token"`
	EvmSignatureB64 string `json:"evm_signature"`
	BtcSignatureB64 string `json:"btc_signature"`
	DryRun          bool   `json:"dry_run,omitempty"`
}

type claimCompleteResponse struct {
	Borrower            string `json:"borrower"`
	BtcAddress          string `json:"btc_address"`
	PubKeyHashHex       string `json:"pubkey_hash_hex"`
	BtcPayoutKeyHashHex string `json:"btc_payout_key_hash_hex"`
	Registered          bool   `json:"registered"`
}

// handleClaimComplete verifies the token and both signatures over its
// canonical message, then (unless dry_run) registers the binding on-chain.
func (s *Server) handleClaimComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cfg.Issuer == nil {
		writeError(w, http.StatusServiceUnavailable, "claim issuer not configured")
		return
	}

	var req claimCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if s.cfg.EVM == nil && !req.DryRun {
		writeError(w, http.StatusServiceUnavailable, "evm client not configured")
		return
	}

	evmSig, err := base64.StdEncoding.DecodeString(req.EvmSignatureB64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed evm_signature")
		return
	}
	btcSig, err := base64.StdEncoding.DecodeString(req.BtcSignatureB64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed btc_signature")
		return
	}

	var registrar claim.Registrar
	if s.cfg.EVM != nil {
		registrar = s.cfg.EVM
	}

	result, err := claim.Complete(r.Context(), s.cfg.Issuer, registrar, claim.CompleteRequest{
		Token:        req.Token,
		EvmSignature: evmSig,
		BtcSignature: btcSig,
	}, req.DryRun || registrar == nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, claimCompleteResponse{
		Borrower:            result.Payload.Borrower,
		BtcAddress:          result.Payload.BtcAddress,
		PubKeyHashHex:       result.PubKeyHashHex,
		BtcPayoutKeyHashHex: result.BtcPayoutKeyHashHex,
		Registered:          result.Registered,
	})
}
