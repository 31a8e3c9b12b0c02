// Package relayer drives the single cooperative loop that scans for
// watched-address payouts, waits out confirmations, builds and verifies
// SPV proofs, and submits them on-chain.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
	"github.com/hashcredit/spvbridge/pkg/chainadapter"
	"github.com/hashcredit/spvbridge/pkg/evmclient"
	"github.com/hashcredit/spvbridge/pkg/payoutstore"
	"github.com/hashcredit/spvbridge/pkg/spvproof"
	"github.com/hashcredit/spvbridge/pkg/watcher"
)

// State is the loop's externally observable phase.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateSubmitting
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateSubmitting:
		return "submitting"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config parameterizes one Loop.
type Config struct {
	ScanBatchSize    uint32
	PollInterval     time.Duration
	MinConfirmations uint32
	MaxHeaderChain   uint32
}

// Loop is the relayer's single cooperative task. It
// holds no cross-iteration concurrency: every suspension point is a
// chain RPC, an EVM RPC, or a store transaction commit.
type Loop struct {
	adapter chainadapter.ChainAdapter
	watcher *watcher.Watcher
	store   payoutstore.Store
	evm     *evmclient.Client
	cfg     Config
	logger  *log.Logger
	metrics *Metrics

	lastScannedHeight uint32
	state             atomic.Int32
	stopRequested     atomic.Bool
}

// WithMetrics attaches m to the loop; subsequent iterations report
// through it. Passing nil detaches instrumentation.
func (l *Loop) WithMetrics(m *Metrics) *Loop {
	l.metrics = m
	return l
}

// New creates a Loop. lastScannedHeight seeds last_scanned_height;
// callers recover it from persisted state or fall back to
// tip - scan_batch_size at startup.
func New(adapter chainadapter.ChainAdapter, w *watcher.Watcher, store payoutstore.Store, evm *evmclient.Client, cfg Config, lastScannedHeight uint32, logger *log.Logger) *Loop {
	if logger == nil {
		logger = log.New(log.Writer(), "[Relayer] ", log.LstdFlags)
	}
	l := &Loop{
		adapter:           adapter,
		watcher:           w,
		store:             store,
		evm:               evm,
		cfg:               cfg,
		logger:            logger,
		lastScannedHeight: lastScannedHeight,
	}
	l.state.Store(int32(StateIdle))
	return l
}

// State returns the loop's current phase.
func (l *Loop) State() State { return State(l.state.Load()) }

// LastScannedHeight returns the height the loop has scanned through.
func (l *Loop) LastScannedHeight() uint32 { return l.lastScannedHeight }

// Stop requests cooperative cancellation. Any in-flight submission
// completes; the loop observes the flag before each pending payout of
// the current iteration and at the next iteration boundary.
func (l *Loop) Stop() {
	l.stopRequested.Store(true)
	l.state.Store(int32(StateStopping))
}

// Run drives iterations until ctx is canceled or Stop is called.
// Every iteration's error is logged and swallowed; the loop continues.
func (l *Loop) Run(ctx context.Context) {
	for {
		if l.stopRequested.Load() {
			l.state.Store(int32(StateStopped))
			return
		}
		select {
		case <-ctx.Done():
			l.state.Store(int32(StateStopped))
			return
		default:
		}

		if err := l.iterate(ctx); err != nil {
			l.logger.Printf("iteration error: %v", err)
			l.metrics.incIterationError()
		}
		l.state.Store(int32(StateIdle))

		select {
		case <-ctx.Done():
			l.state.Store(int32(StateStopped))
			return
		case <-time.After(l.cfg.PollInterval):
		}
	}
}

// iterate runs one scan/confirm/checkpoint/build/submit pass.
func (l *Loop) iterate(ctx context.Context) error {
	l.state.Store(int32(StateScanning))

	tip, err := l.adapter.GetTipHeight(ctx)
	if err != nil {
		return fmt.Errorf("relayer: tip height: %w", err)
	}
	l.metrics.observeTip(tip)

	if tip > l.lastScannedHeight {
		from := l.lastScannedHeight + 1
		to := tip
		if to > from+l.cfg.ScanBatchSize-1 {
			to = from + l.cfg.ScanBatchSize - 1
		}
		if _, err := l.watcher.Scan(ctx, from, to); err != nil {
			return fmt.Errorf("relayer: scan [%d,%d]: %w", from, to, err)
		}
		l.metrics.addBlocksScanned(to - from + 1)
		l.lastScannedHeight = to
	}

	pending, err := l.store.GetPending(ctx)
	if err != nil {
		return fmt.Errorf("relayer: get pending: %w", err)
	}
	l.metrics.setPendingCount(len(pending))

	for _, p := range pending {
		if l.stopRequested.Load() {
			return nil
		}
		if err := l.tryConfirmAndSubmit(ctx, tip, p); err != nil {
			l.logger.Printf("payout %x:%d: %v", p.Txid, p.OutputIndex, err)
			if errors.As(err, new(*evmclient.EvmRevert)) {
				l.metrics.incReverted()
			}
		}
	}

	return nil
}

// tryConfirmAndSubmit runs the confirm/checkpoint/build/submit sequence
// for a single pending row: a contract-rejection failure is logged and
// the row is left pending for a future retry, never treated as a
// loop-fatal error.
func (l *Loop) tryConfirmAndSubmit(ctx context.Context, tip uint32, p payoutstore.PendingPayout) error {
	confirmations := tip - p.BlockHeight + 1
	if confirmations < l.cfg.MinConfirmations {
		return nil
	}

	// A reorg replaces the block the payout was discovered in; the row
	// is orphaned and must not be submitted. Drop it; if the output is
	// re-mined, the next scan rediscovers it at its new height.
	currentHash, err := l.adapter.GetBlockHash(ctx, p.BlockHeight)
	if err != nil {
		return fmt.Errorf("block hash at %d: %w", p.BlockHeight, err)
	}
	if [32]byte(currentHash.Reverse()) != p.BlockHash {
		l.logger.Printf("payout %x:%d orphaned by reorg at height %d, removing", p.Txid, p.OutputIndex, p.BlockHeight)
		if err := l.store.RemovePending(ctx, p.Txid, p.OutputIndex); err != nil {
			return fmt.Errorf("remove orphaned pending: %w", err)
		}
		return nil
	}

	latest, err := l.evm.LatestCheckpointHeight(ctx)
	if err != nil {
		return fmt.Errorf("latest checkpoint height: %w", err)
	}
	if err := validateCheckpointSelection(latest, p.BlockHeight, tip, l.cfg.MaxHeaderChain); err != nil {
		return err
	}

	l.state.Store(int32(StateSubmitting))

	txidDisplay := bitcoinwire.InternalHash(p.Txid).Reverse()

	proof, err := spvproof.BuildProof(ctx, l.adapter, spvproof.BuildParams{
		TxidDisplay:      txidDisplay,
		OutputIndex:      p.OutputIndex,
		CheckpointHeight: latest,
		TargetHeight:     p.BlockHeight,
		BorrowerEVM:      p.Borrower,
		TipHeight:        &tip,
	})
	if err != nil {
		return fmt.Errorf("build proof: %w", err)
	}

	if err := spvproof.VerifyLocal(proof); err != nil {
		return fmt.Errorf("local verify: %w", err)
	}

	encoded, err := proof.Encode()
	if err != nil {
		return fmt.Errorf("abi encode: %w", err)
	}

	receipt, err := l.evm.SubmitPayout(ctx, encoded)
	if err != nil {
		return fmt.Errorf("submit payout: %w", err)
	}

	var evmTxHash [32]byte
	copy(evmTxHash[:], receipt.TxHash.Bytes())
	if err := l.store.MarkSubmitted(ctx, p.Txid, p.OutputIndex, evmTxHash); err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}

	l.metrics.incSubmitted()
	l.logger.Printf("submitted payout %x:%d amount=%d sats tx=%s", p.Txid, p.OutputIndex, p.AmountSats, receipt.TxHash.Hex())
	return nil
}

// validateCheckpointSelection gates submission on the anchor: reject if
// no checkpoint exists, if it is at or above the payout's block, or
// if it is too far behind tip for the header chain budget.
func validateCheckpointSelection(latestCheckpoint, payoutBlockHeight, tip, maxHeaderChain uint32) error {
	if latestCheckpoint == 0 {
		return fmt.Errorf("no checkpoint set yet")
	}
	if latestCheckpoint >= payoutBlockHeight {
		return fmt.Errorf("checkpoint %d already covers payout block %d", latestCheckpoint, payoutBlockHeight)
	}
	if tip-latestCheckpoint > maxHeaderChain {
		return fmt.Errorf("checkpoint %d too stale (tip %d, max chain %d)", latestCheckpoint, tip, maxHeaderChain)
	}
	return nil
}

// RecoverLastScannedHeight computes the loop's starting
// last_scanned_height from the chain tip when no persisted value is
// available.
func RecoverLastScannedHeight(ctx context.Context, adapter chainadapter.ChainAdapter, scanBatchSize uint32) (uint32, error) {
	tip, err := adapter.GetTipHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("relayer: recover last scanned height: %w", err)
	}
	if tip < scanBatchSize {
		return 0, nil
	}
	return tip - scanBatchSize, nil
}
