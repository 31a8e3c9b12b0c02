// Package server exposes the relayer and claim protocol over HTTP.
// Handler logic is a thin translation to/from JSON; all
// correctness lives in pkg/spvproof, pkg/relayer, pkg/claim, and
// pkg/evmclient.
package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hashcredit/spvbridge/pkg/chainadapter"
	"github.com/hashcredit/spvbridge/pkg/claim"
	"github.com/hashcredit/spvbridge/pkg/evmclient"
	"github.com/hashcredit/spvbridge/pkg/payoutstore"
	"github.com/hashcredit/spvbridge/pkg/relayer"
)

// Config wires the server's dependencies.
type Config struct {
	Adapter  chainadapter.ChainAdapter
	Store    payoutstore.Store
	EVM      *evmclient.Client
	Issuer   *claim.Issuer
	Loop     *relayer.Loop // optional: nil if this process doesn't run the loop
	APIKey   string
	Loopback bool
	Logger   *log.Logger
}

// Server is the HTTP front-end. Handlers are independent
// modulo the store and the EVM client, both of which are safe to share
// because every mutation path is transactional.
type Server struct {
	cfg    Config
	logger *log.Logger
}

// New constructs a Server and its http.Handler. It refuses non-loopback
// operation without an API key configured.
func New(cfg Config) (*Server, error) {
	if !cfg.Loopback && cfg.APIKey == "" {
		return nil, errAPIKeyRequired
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Server] ", log.LstdFlags)
	}
	return &Server{cfg: cfg, logger: cfg.Logger}, nil
}

// Handler builds the mux with every route wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.Handle("/spv/build-proof", s.authenticated(http.HandlerFunc(s.handleBuildProof)))
	mux.Handle("/spv/submit", s.authenticated(http.HandlerFunc(s.handleSubmit)))
	mux.Handle("/checkpoint/set", s.authenticated(http.HandlerFunc(s.handleSetCheckpoint)))
	mux.Handle("/borrower/set-pubkey-hash", s.authenticated(http.HandlerFunc(s.handleSetBorrowerPubkeyHash)))
	mux.Handle("/manager/register-borrower", s.authenticated(http.HandlerFunc(s.handleRegisterBorrower)))
	mux.Handle("/claim/start", s.authenticated(http.HandlerFunc(s.handleClaimStart)))
	mux.Handle("/claim/complete", s.authenticated(http.HandlerFunc(s.handleClaimComplete)))
	mux.Handle("/address/", s.authenticated(http.HandlerFunc(s.handleAddressHistory)))

	return s.withRequestID(mux)
}

// withRequestID assigns every request an ID, echoes it back in the
// X-Request-ID header, and ties the access log line to it so a failed
// call can be correlated with its server-side log output.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		s.logger.Printf("%s %s %s", id, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// authenticated enforces the X-API-Key header when an API key is
// configured. In loopback-only mode with no key configured,
// requests are allowed through unauthenticated, matching New's refusal
// to start in non-loopback mode without one.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" && r.Header.Get("X-API-Key") != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAddressHistory serves GET /address/{addr}/history, the
// borrower-history browser surface. It is not part of the correctness
// core: it requires an Esplora-style adapter and has its own
// pagination policy; its Esplora requests are not retried.
func (s *Server) handleAddressHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/address/")
	addr, ok := strings.CutSuffix(path, "/history")
	if !ok || addr == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	historian, ok := s.cfg.Adapter.(addressHistorian)
	if !ok {
		writeError(w, http.StatusNotImplemented, "configured chain adapter does not support address history")
		return
	}

	txs, err := historian.AddressHistory(r.Context(), addr)
	if err != nil {
		s.logger.Printf("address history %s: %v", addr, err)
		writeError(w, http.StatusBadGateway, "chain adapter error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"address": addr, "txs": txs})
}

// addressHistorian is implemented only by adapters backed by an
// Esplora-style indexer. It is not part of the correctness core; the
// relayer and proof builder never consult it.
type addressHistorian interface {
	AddressHistory(ctx context.Context, addr string) ([]chainadapter.VerboseTx, error)
}
