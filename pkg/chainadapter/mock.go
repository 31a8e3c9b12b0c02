package chainadapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
)

// Mock is an in-memory ChainAdapter for unit tests: callers populate a
// fixed chain of headers/transactions up front, then exercise the
// pipeline against it without a live node.
type Mock struct {
	mu sync.Mutex

	tipHeight uint32
	hashes    map[uint32]bitcoinwire.DisplayHash
	headers   map[bitcoinwire.DisplayHash][]byte
	infos     map[bitcoinwire.DisplayHash]HeaderInfo
	txids     map[bitcoinwire.DisplayHash][]bitcoinwire.DisplayHash
	rawTxs    map[bitcoinwire.DisplayHash][]byte
}

// NewMock creates an empty mock chain.
func NewMock() *Mock {
	return &Mock{
		hashes:  make(map[uint32]bitcoinwire.DisplayHash),
		headers: make(map[bitcoinwire.DisplayHash][]byte),
		infos:   make(map[bitcoinwire.DisplayHash]HeaderInfo),
		txids:   make(map[bitcoinwire.DisplayHash][]bitcoinwire.DisplayHash),
		rawTxs:  make(map[bitcoinwire.DisplayHash][]byte),
	}
}

// PutBlock registers a block at height with its raw header bytes, metadata,
// and contained txids. Subsequent PutBlock calls with a higher height
// advance the mock's tip.
func (m *Mock) PutBlock(height uint32, hash bitcoinwire.DisplayHash, headerBytes []byte, info HeaderInfo, txids []bitcoinwire.DisplayHash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hashes[height] = hash
	m.headers[hash] = headerBytes
	m.infos[hash] = info
	m.txids[hash] = txids
	if height > m.tipHeight || len(m.hashes) == 1 {
		m.tipHeight = height
	}
}

// PutRawTx registers the raw transaction bytes for a txid.
func (m *Mock) PutRawTx(txid bitcoinwire.DisplayHash, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawTxs[txid] = raw
}

func (m *Mock) GetTipHeight(ctx context.Context) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tipHeight, nil
}

func (m *Mock) GetBlockHash(ctx context.Context, height uint32) (bitcoinwire.DisplayHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[height]
	if !ok {
		return bitcoinwire.DisplayHash{}, &ChainRPCError{Method: "getblockhash", Err: fmt.Errorf("no block at height %d", height)}
	}
	return h, nil
}

func (m *Mock) GetBlockHeaderBytes(ctx context.Context, hash bitcoinwire.DisplayHash) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.headers[hash]
	if !ok {
		return nil, &ChainRPCError{Method: "getblockheader", Err: fmt.Errorf("unknown block %x", hash)}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *Mock) GetBlockHeaderInfo(ctx context.Context, hash bitcoinwire.DisplayHash) (HeaderInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[hash]
	if !ok {
		return HeaderInfo{}, &ChainRPCError{Method: "getblockheader", Err: fmt.Errorf("unknown block %x", hash)}
	}
	return info, nil
}

func (m *Mock) GetBlockTxids(ctx context.Context, hash bitcoinwire.DisplayHash) ([]bitcoinwire.DisplayHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txids, ok := m.txids[hash]
	if !ok {
		return nil, &ChainRPCError{Method: "getblock", Err: fmt.Errorf("unknown block %x", hash)}
	}
	out := make([]bitcoinwire.DisplayHash, len(txids))
	copy(out, txids)
	return out, nil
}

func (m *Mock) GetRawTx(ctx context.Context, txid bitcoinwire.DisplayHash) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.rawTxs[txid]
	if !ok {
		return nil, &ChainRPCError{Method: "getrawtransaction", Err: fmt.Errorf("unknown txid %x", txid)}
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

var _ ChainAdapter = (*Mock)(nil)
var _ ChainAdapter = (*NodeRPC)(nil)
var _ ChainAdapter = (*Esplora)(nil)
