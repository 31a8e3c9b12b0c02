package chainadapter

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

// defaultRPCTimeout bounds every Bitcoin RPC round-trip.
const defaultRPCTimeout = 30 * time.Second

// idempotentRetries bounds the retry applied to read-only RPCs. Never
// applied to anything that mutates chain state (no such call exists on
// this read path).
const idempotentRetries = 2

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// NodeRPC talks to a Bitcoin Core node over JSON-RPC 1.0 with Basic
// auth.
type NodeRPC struct {
	url      string
	user     string
	password string
	client   *http.Client
	idSeq    atomic.Int64
}

// NewNodeRPC creates a Bitcoin Core JSON-RPC adapter.
func NewNodeRPC(url, user, password string) *NodeRPC {
	return &NodeRPC{
		url:      url,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: defaultRPCTimeout},
	}
}

func (c *NodeRPC) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var lastErr error
	attempts := idempotentRetries
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := c.callOnce(ctx, method, params...)
		if err == nil {
			return result, nil
		}
		lastErr = err
		// rpcError means the node answered but rejected the call; retrying
		// won't help, so fail fast.
		var re *rpcError
		if asRPCError(err, &re) {
			break
		}
	}
	return nil, &ChainRPCError{Method: method, Err: lastErr}
}

func asRPCError(err error, target **rpcError) bool {
	re, ok := err.(*rpcError)
	if ok {
		*target = re
	}
	return ok
}

func (c *NodeRPC) callOnce(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	id := c.idSeq.Add(1)
	req := rpcRequest{JSONRPC: "1.0", ID: id, Method: method, Params: params}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.user, c.password)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp rpcResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w (body: %s)", err, string(respBody))
	}

	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func (c *NodeRPC) GetTipHeight(ctx context.Context) (uint32, error) {
	result, err := c.call(ctx, "getblockcount")
	if err != nil {
		return 0, err
	}
	var height uint32
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, &ChainRPCError{Method: "getblockcount", Err: err}
	}
	return height, nil
}

func (c *NodeRPC) GetBlockHash(ctx context.Context, height uint32) (bitcoinwire.DisplayHash, error) {
	result, err := c.call(ctx, "getblockhash", height)
	if err != nil {
		return bitcoinwire.DisplayHash{}, err
	}
	var hashHex string
	if err := json.Unmarshal(result, &hashHex); err != nil {
		return bitcoinwire.DisplayHash{}, &ChainRPCError{Method: "getblockhash", Err: err}
	}
	return decodeDisplayHash(hashHex)
}

func (c *NodeRPC) GetBlockHeaderBytes(ctx context.Context, hash bitcoinwire.DisplayHash) ([]byte, error) {
	result, err := c.call(ctx, "getblockheader", hex.EncodeToString(hash[:]), false)
	if err != nil {
		return nil, err
	}
	var headerHex string
	if err := json.Unmarshal(result, &headerHex); err != nil {
		return nil, &ChainRPCError{Method: "getblockheader", Err: err}
	}
	raw, err := hex.DecodeString(headerHex)
	if err != nil {
		return nil, &ChainRPCError{Method: "getblockheader", Err: err}
	}
	if len(raw) < bitcoinwire.HeaderSize {
		return nil, &ChainRPCError{Method: "getblockheader", Err: fmt.Errorf("short header: %d bytes", len(raw))}
	}
	return raw[:bitcoinwire.HeaderSize], nil
}

type verboseHeader struct {
	Time      uint32 `json:"time"`
	Chainwork string `json:"chainwork"`
	Bits      string `json:"bits"`
}

func (c *NodeRPC) GetBlockHeaderInfo(ctx context.Context, hash bitcoinwire.DisplayHash) (HeaderInfo, error) {
	result, err := c.call(ctx, "getblockheader", hex.EncodeToString(hash[:]), true)
	if err != nil {
		return HeaderInfo{}, err
	}
	var vh verboseHeader
	if err := json.Unmarshal(result, &vh); err != nil {
		return HeaderInfo{}, &ChainRPCError{Method: "getblockheader", Err: err}
	}
	bits, err := hexToUint32(vh.Bits)
	if err != nil {
		return HeaderInfo{}, &ChainRPCError{Method: "getblockheader", Err: err}
	}
	return HeaderInfo{Time: vh.Time, ChainworkHex: vh.Chainwork, Bits: bits}, nil
}

type verboseBlock struct {
	Tx []string `json:"tx"`
}

func (c *NodeRPC) GetBlockTxids(ctx context.Context, hash bitcoinwire.DisplayHash) ([]bitcoinwire.DisplayHash, error) {
	result, err := c.call(ctx, "getblock", hex.EncodeToString(hash[:]), 1)
	if err != nil {
		return nil, err
	}
	var vb verboseBlock
	if err := json.Unmarshal(result, &vb); err != nil {
		return nil, &ChainRPCError{Method: "getblock", Err: err}
	}
	out := make([]bitcoinwire.DisplayHash, 0, len(vb.Tx))
	for _, txidHex := range vb.Tx {
		h, err := decodeDisplayHash(txidHex)
		if err != nil {
			return nil, &ChainRPCError{Method: "getblock", Err: err}
		}
		out = append(out, h)
	}
	return out, nil
}

type verboseBlockTx struct {
	Txid string `json:"txid"`
	Vout []struct {
		// Value is kept as the node's decimal literal; float decoding
		// here would round amounts before ToSats sees them.
		Value        json.Number `json:"value"`
		N            uint32      `json:"n"`
		ScriptPubKey struct {
			Hex     string `json:"hex"`
			Address string `json:"address"`
		} `json:"scriptPubKey"`
	} `json:"vout"`
}

// GetBlockVerbose fetches the block at verbosity 2, where the node has
// already decoded every transaction's outputs.
func (c *NodeRPC) GetBlockVerbose(ctx context.Context, hash bitcoinwire.DisplayHash) ([]VerboseTx, error) {
	result, err := c.call(ctx, "getblock", hex.EncodeToString(hash[:]), 2)
	if err != nil {
		return nil, err
	}
	var vb struct {
		Tx []verboseBlockTx `json:"tx"`
	}
	if err := json.Unmarshal(result, &vb); err != nil {
		return nil, &ChainRPCError{Method: "getblock", Err: err}
	}

	out := make([]VerboseTx, 0, len(vb.Tx))
	for _, tx := range vb.Tx {
		outs := make([]TxOut, 0, len(tx.Vout))
		for _, v := range tx.Vout {
			outs = append(outs, TxOut{
				Index:           v.N,
				ValueBTCString:  v.Value.String(),
				ScriptPubKeyHex: v.ScriptPubKey.Hex,
				Address:         v.ScriptPubKey.Address,
			})
		}
		out = append(out, VerboseTx{Txid: tx.Txid, Outputs: outs})
	}
	return out, nil
}

func (c *NodeRPC) GetRawTx(ctx context.Context, txid bitcoinwire.DisplayHash) ([]byte, error) {
	result, err := c.call(ctx, "getrawtransaction", hex.EncodeToString(txid[:]), false)
	if err != nil {
		return nil, err
	}
	var rawHex string
	if err := json.Unmarshal(result, &rawHex); err != nil {
		return nil, &ChainRPCError{Method: "getrawtransaction", Err: err}
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, &ChainRPCError{Method: "getrawtransaction", Err: err}
	}
	return raw, nil
}

func decodeDisplayHash(s string) (bitcoinwire.DisplayHash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return bitcoinwire.DisplayHash{}, err
	}
	if len(b) != 32 {
		return bitcoinwire.DisplayHash{}, fmt.Errorf("hash %q is %d bytes, want 32", s, len(b))
	}
	var h bitcoinwire.DisplayHash
	copy(h[:], b)
	return h, nil
}

func hexToUint32(s string) (uint32, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%x", &v)
	return uint32(v), err
}
