package chainadapter

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

// esploraPageSize is the pagination size Esplora-family indexers use for
// the address-history endpoint.
const esploraPageSize = 25

// esploraMaxPages bounds the address-history cursor loop so a
// misbehaving indexer can't force an unbounded scan.
const esploraMaxPages = 1000

// Esplora is a REST client for an Esplora-style block explorer/indexer
// (blockstream.info / mempool.space API shape), used as the alternative to
// NodeRPC when no full node is available.
type Esplora struct {
	baseURL string
	client  *http.Client
}

// NewEsplora creates an Esplora REST adapter. baseURL has no trailing slash,
// e.g. "https://blockstream.info/api".
func NewEsplora(baseURL string) *Esplora {
	return &Esplora{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRPCTimeout},
	}
}

func (e *Esplora) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("esplora GET %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (e *Esplora) getText(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("esplora GET %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (e *Esplora) GetTipHeight(ctx context.Context) (uint32, error) {
	text, err := e.getText(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, &ChainRPCError{Method: "blocks/tip/height", Err: err}
	}
	height, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, &ChainRPCError{Method: "blocks/tip/height", Err: err}
	}
	return uint32(height), nil
}

func (e *Esplora) GetBlockHash(ctx context.Context, height uint32) (bitcoinwire.DisplayHash, error) {
	text, err := e.getText(ctx, fmt.Sprintf("/block-height/%d", height))
	if err != nil {
		return bitcoinwire.DisplayHash{}, &ChainRPCError{Method: "block-height", Err: err}
	}
	h, err := decodeDisplayHash(text)
	if err != nil {
		return bitcoinwire.DisplayHash{}, &ChainRPCError{Method: "block-height", Err: err}
	}
	return h, nil
}

func (e *Esplora) GetBlockHeaderBytes(ctx context.Context, hash bitcoinwire.DisplayHash) ([]byte, error) {
	text, err := e.getText(ctx, fmt.Sprintf("/block/%s/header", hex.EncodeToString(hash[:])))
	if err != nil {
		return nil, &ChainRPCError{Method: "block/header", Err: err}
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return nil, &ChainRPCError{Method: "block/header", Err: err}
	}
	if len(raw) != bitcoinwire.HeaderSize {
		return nil, &ChainRPCError{Method: "block/header", Err: fmt.Errorf("header is %d bytes, want %d", len(raw), bitcoinwire.HeaderSize)}
	}
	return raw, nil
}

type esploraBlockStatus struct {
	Height    uint32 `json:"height"`
	Timestamp uint32 `json:"timestamp"`
	Bits      uint32 `json:"bits"`
	// Esplora doesn't expose raw chainwork; the checkpoint selector treats
	// this as informational metadata only, never as a correctness input.
	Difficulty float64 `json:"difficulty"`
}

func (e *Esplora) GetBlockHeaderInfo(ctx context.Context, hash bitcoinwire.DisplayHash) (HeaderInfo, error) {
	var bs esploraBlockStatus
	if err := e.get(ctx, fmt.Sprintf("/block/%s", hex.EncodeToString(hash[:])), &bs); err != nil {
		return HeaderInfo{}, &ChainRPCError{Method: "block", Err: err}
	}
	return HeaderInfo{Time: bs.Timestamp, Bits: bs.Bits}, nil
}

func (e *Esplora) GetBlockTxids(ctx context.Context, hash bitcoinwire.DisplayHash) ([]bitcoinwire.DisplayHash, error) {
	var txids []string
	if err := e.get(ctx, fmt.Sprintf("/block/%s/txids", hex.EncodeToString(hash[:])), &txids); err != nil {
		return nil, &ChainRPCError{Method: "block/txids", Err: err}
	}
	out := make([]bitcoinwire.DisplayHash, 0, len(txids))
	for _, s := range txids {
		h, err := decodeDisplayHash(s)
		if err != nil {
			return nil, &ChainRPCError{Method: "block/txids", Err: err}
		}
		out = append(out, h)
	}
	return out, nil
}

func (e *Esplora) GetRawTx(ctx context.Context, txid bitcoinwire.DisplayHash) ([]byte, error) {
	text, err := e.getText(ctx, fmt.Sprintf("/tx/%s/hex", hex.EncodeToString(txid[:])))
	if err != nil {
		return nil, &ChainRPCError{Method: "tx/hex", Err: err}
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return nil, &ChainRPCError{Method: "tx/hex", Err: err}
	}
	return raw, nil
}

type esploraVout struct {
	ScriptPubKeyHex  string `json:"scriptpubkey"`
	ScriptPubKeyAddr string `json:"scriptpubkey_address"`
	Value            uint64 `json:"value"`
}

type esploraTx struct {
	Txid   string        `json:"txid"`
	Vout   []esploraVout `json:"vout"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHash   string `json:"block_hash"`
		BlockHeight uint32 `json:"block_height"`
	} `json:"status"`
}

// AddressHistory returns every transaction touching addr, newest first,
// following Esplora's cursor-based pagination:
// each page holds at most esploraPageSize entries; the next page is fetched
// with /txs/chain/{last_txid} using the last entry's txid as cursor. The
// loop is bounded by esploraMaxPages so a misbehaving or adversarial
// indexer cannot force unbounded work.
func (e *Esplora) AddressHistory(ctx context.Context, addr string) ([]VerboseTx, error) {
	var all []esploraTx
	path := fmt.Sprintf("/address/%s/txs", addr)

	var cursor string
	for page := 0; page < esploraMaxPages; page++ {
		var batch []esploraTx
		if err := e.get(ctx, path, &batch); err != nil {
			return nil, &ChainRPCError{Method: "address/txs", Err: err}
		}
		all = append(all, batch...)
		if len(batch) < esploraPageSize {
			break
		}
		last := batch[len(batch)-1]
		if last.Txid == cursor {
			// The indexer handed the same page back; stop rather than spin.
			break
		}
		cursor = last.Txid
		path = fmt.Sprintf("/address/%s/txs/chain/%s", addr, cursor)
	}

	out := make([]VerboseTx, 0, len(all))
	for _, tx := range all {
		vt := VerboseTx{Txid: tx.Txid}
		for i, v := range tx.Vout {
			vt.Outputs = append(vt.Outputs, TxOut{
				Index:           uint32(i),
				ValueBTCString:  satoshisToBTCString(v.Value),
				ScriptPubKeyHex: v.ScriptPubKeyHex,
				Address:         v.ScriptPubKeyAddr,
			})
		}
		out = append(out, vt)
	}
	return out, nil
}

func satoshisToBTCString(sats uint64) string {
	whole := sats / 100_000_000
	frac := sats % 100_000_000
	return fmt.Sprintf("%d.%08d", whole, frac)
}
