// Package watcher scans a Bitcoin block range for outputs paying watched
// addresses and records them as pending payouts.
package watcher

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
	"github.com/hashcredit/spvbridge/pkg/btcaddr"
	"github.com/hashcredit/spvbridge/pkg/chainadapter"
	"github.com/hashcredit/spvbridge/pkg/payoutstore"
)

// WatchedAddress is a borrower address the watcher matches outputs
// against. PubKeyHash is decoded once at load time via pkg/btcaddr.
type WatchedAddress struct {
	BtcAddress string
	Borrower   [20]byte
	PubKeyHash [20]byte
	Enabled    bool
}

// LoadWatchedAddress decodes addr and binds it to borrower, ready for
// fast in-memory matching.
func LoadWatchedAddress(addr string, borrower [20]byte) (WatchedAddress, error) {
	decoded, err := btcaddr.Decode(addr)
	if err != nil {
		return WatchedAddress{}, fmt.Errorf("watcher: decode watched address %q: %w", addr, err)
	}
	return WatchedAddress{
		BtcAddress: addr,
		Borrower:   borrower,
		PubKeyHash: decoded.PubKeyHash,
		Enabled:    true,
	}, nil
}

// Watcher scans block ranges for outputs matching a set of watched
// addresses. It is pure with respect to scanning order and has no
// opinion about confirmation depth; that is the relayer loop's job.
type Watcher struct {
	adapter   chainadapter.ChainAdapter
	store     payoutstore.Store
	addresses map[[20]byte]WatchedAddress // keyed by pubkey hash
}

// New creates a Watcher over the given addresses.
func New(adapter chainadapter.ChainAdapter, store payoutstore.Store, addresses []WatchedAddress) *Watcher {
	index := make(map[[20]byte]WatchedAddress, len(addresses))
	for _, a := range addresses {
		if a.Enabled {
			index[a.PubKeyHash] = a
		}
	}
	return &Watcher{adapter: adapter, store: store, addresses: index}
}

// Scan walks blocks [fromHeight, toHeight] inclusive, inserting a pending
// payout for every new matching output, and returns the freshly inserted
// rows.
func (w *Watcher) Scan(ctx context.Context, fromHeight, toHeight uint32) ([]payoutstore.PendingPayout, error) {
	var inserted []payoutstore.PendingPayout

	for height := fromHeight; height <= toHeight; height++ {
		blockHash, err := w.adapter.GetBlockHash(ctx, height)
		if err != nil {
			return inserted, fmt.Errorf("watcher: block hash at %d: %w", height, err)
		}

		txs, err := w.blockOutputs(ctx, blockHash)
		if err != nil {
			return inserted, fmt.Errorf("watcher: block outputs at %d: %w", height, err)
		}

		for _, tx := range txs {
			rows, err := w.scanTx(ctx, tx, height, blockHash)
			if err != nil {
				return inserted, err
			}
			inserted = append(inserted, rows...)
		}
	}

	return inserted, nil
}

type decodedTx struct {
	txid    bitcoinwire.DisplayHash
	outputs []bitcoinwire.TxOutput
}

// blockOutputs fetches every transaction's outputs in a block, preferring
// the adapter's verbose decode when supported and falling back to
// fetching + parsing each raw transaction via pkg/bitcoinwire otherwise.
func (w *Watcher) blockOutputs(ctx context.Context, blockHash bitcoinwire.DisplayHash) ([]decodedTx, error) {
	if verbose, ok := w.adapter.(chainadapter.VerboseBlockAdapter); ok {
		vtxs, err := verbose.GetBlockVerbose(ctx, blockHash)
		if err != nil {
			return nil, err
		}
		out := make([]decodedTx, 0, len(vtxs))
		for _, vtx := range vtxs {
			txidBytes, err := hex.DecodeString(vtx.Txid)
			if err != nil || len(txidBytes) != 32 {
				return nil, fmt.Errorf("malformed verbose txid %q", vtx.Txid)
			}
			var txid bitcoinwire.DisplayHash
			copy(txid[:], txidBytes)

			outputs := make([]bitcoinwire.TxOutput, len(vtx.Outputs))
			for i, o := range vtx.Outputs {
				sats, err := ToSats(o.ValueBTCString)
				if err != nil {
					return nil, err
				}
				script, err := hex.DecodeString(o.ScriptPubKeyHex)
				if err != nil {
					return nil, fmt.Errorf("malformed scriptPubKey for %s: %w", vtx.Txid, err)
				}
				outputs[i] = bitcoinwire.TxOutput{ValueSats: sats, ScriptPubKey: script}
			}
			out = append(out, decodedTx{txid: txid, outputs: outputs})
		}
		return out, nil
	}

	txids, err := w.adapter.GetBlockTxids(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	out := make([]decodedTx, 0, len(txids))
	for _, txid := range txids {
		raw, err := w.adapter.GetRawTx(ctx, txid)
		if err != nil {
			return nil, err
		}
		outputs, err := bitcoinwire.ParseTxOutputs(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, decodedTx{txid: txid, outputs: outputs})
	}
	return out, nil
}

func (w *Watcher) scanTx(ctx context.Context, tx decodedTx, height uint32, blockHash bitcoinwire.DisplayHash) ([]payoutstore.PendingPayout, error) {
	var inserted []payoutstore.PendingPayout

	for vout, out := range tx.outputs {
		txidInternal := tx.txid.Reverse()

		submitted, err := w.store.IsSubmitted(ctx, [32]byte(txidInternal), uint32(vout))
		if err != nil {
			return inserted, fmt.Errorf("watcher: is submitted: %w", err)
		}
		if submitted {
			continue
		}

		pubKeyHash, _, ok := bitcoinwire.ExtractPubKeyHash(out.ScriptPubKey)
		if !ok {
			continue
		}

		watched, ok := w.addresses[pubKeyHash]
		if !ok {
			continue
		}

		row := payoutstore.PendingPayout{
			Txid:        [32]byte(txidInternal),
			OutputIndex: uint32(vout),
			Borrower:    watched.Borrower,
			BtcAddress:  watched.BtcAddress,
			AmountSats:  out.ValueSats,
			BlockHeight: height,
			BlockHash:   [32]byte(blockHash.Reverse()),
		}

		added, err := w.store.AddPending(ctx, row)
		if err != nil {
			return inserted, fmt.Errorf("watcher: add pending: %w", err)
		}
		if added {
			inserted = append(inserted, row)
		}
	}

	return inserted, nil
}
