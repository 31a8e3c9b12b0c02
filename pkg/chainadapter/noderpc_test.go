package chainadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newStubServer(t *testing.T, handler func(method string, params []interface{}) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rpcuser" || pass != "rpcpass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		result, rpcErr := handler(req.Method, req.Params)
		resp := rpcResponse{Error: rpcErr}
		if rpcErr == nil {
			raw, err := json.Marshal(result)
			if err != nil {
				t.Fatalf("marshal result: %v", err)
			}
			resp.Result = raw
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
}

func TestNodeRPCGetTipHeight(t *testing.T) {
	srv := newStubServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		if method != "getblockcount" {
			t.Fatalf("unexpected method %q", method)
		}
		return 850000, nil
	})
	defer srv.Close()

	client := NewNodeRPC(srv.URL, "rpcuser", "rpcpass")
	height, err := client.GetTipHeight(context.Background())
	if err != nil {
		t.Fatalf("GetTipHeight: %v", err)
	}
	if height != 850000 {
		t.Errorf("height = %d, want 850000", height)
	}
}

func TestNodeRPCGetBlockHash(t *testing.T) {
	wantHash := strings.Repeat("ab", 32)
	srv := newStubServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		if method != "getblockhash" {
			t.Fatalf("unexpected method %q", method)
		}
		return wantHash, nil
	})
	defer srv.Close()

	client := NewNodeRPC(srv.URL, "rpcuser", "rpcpass")
	hash, err := client.GetBlockHash(context.Background(), 100)
	if err != nil {
		t.Fatalf("GetBlockHash: %v", err)
	}
	if hash.String() == "" {
		t.Fatalf("expected non-empty hash")
	}
}

func TestNodeRPCWrapsRPCError(t *testing.T) {
	srv := newStubServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -5, Message: "Block not found"}
	})
	defer srv.Close()

	client := NewNodeRPC(srv.URL, "rpcuser", "rpcpass")
	_, err := client.GetTipHeight(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var chainErr *ChainRPCError
	if !asChainRPCError(err, &chainErr) {
		t.Fatalf("expected *ChainRPCError, got %T: %v", err, err)
	}
}

func TestNodeRPCRejectsBadAuth(t *testing.T) {
	srv := newStubServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		return 1, nil
	})
	defer srv.Close()

	client := NewNodeRPC(srv.URL, "wrong", "creds")
	if _, err := client.GetTipHeight(context.Background()); err == nil {
		t.Error("expected error for bad auth")
	}
}

func asChainRPCError(err error, target **ChainRPCError) bool {
	ce, ok := err.(*ChainRPCError)
	if ok {
		*target = ce
	}
	return ok
}
