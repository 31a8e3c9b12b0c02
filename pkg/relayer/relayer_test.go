package relayer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
	"github.com/hashcredit/spvbridge/pkg/chainadapter"
	"github.com/hashcredit/spvbridge/pkg/payoutstore"
	"github.com/hashcredit/spvbridge/pkg/watcher"
)

func TestValidateCheckpointSelectionRejectsZero(t *testing.T) {
	if err := validateCheckpointSelection(0, 100, 200, 144); err == nil {
		t.Fatal("want error for latest == 0")
	}
}

func TestValidateCheckpointSelectionRejectsAlreadyCovering(t *testing.T) {
	if err := validateCheckpointSelection(100, 100, 200, 144); err == nil {
		t.Fatal("want error when latest >= payout block height")
	}
	if err := validateCheckpointSelection(150, 100, 200, 144); err == nil {
		t.Fatal("want error when latest > payout block height")
	}
}

func TestValidateCheckpointSelectionRejectsStale(t *testing.T) {
	if err := validateCheckpointSelection(50, 60, 50+144+1, 144); err == nil {
		t.Fatal("want error for checkpoint older than MAX_HEADER_CHAIN")
	}
}

func TestValidateCheckpointSelectionAccepts(t *testing.T) {
	if err := validateCheckpointSelection(50, 60, 100, 144); err != nil {
		t.Fatalf("want no error, got %v", err)
	}
}

func TestRecoverLastScannedHeightFloorsAtZero(t *testing.T) {
	m := chainadapter.NewMock()
	var blockHash bitcoinwire.DisplayHash
	m.PutBlock(3, blockHash, make([]byte, bitcoinwire.HeaderSize), chainadapter.HeaderInfo{}, nil)

	got, err := RecoverLastScannedHeight(context.Background(), m, 500)
	if err != nil {
		t.Fatalf("RecoverLastScannedHeight: %v", err)
	}
	if got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestRecoverLastScannedHeightSubtractsBatch(t *testing.T) {
	m := chainadapter.NewMock()
	var blockHash bitcoinwire.DisplayHash
	m.PutBlock(1000, blockHash, make([]byte, bitcoinwire.HeaderSize), chainadapter.HeaderInfo{}, nil)

	got, err := RecoverLastScannedHeight(context.Background(), m, 500)
	if err != nil {
		t.Fatalf("RecoverLastScannedHeight: %v", err)
	}
	if got != 500 {
		t.Errorf("got %d, want 500", got)
	}
}

func TestIterateAdvancesLastScannedHeightWithNoMatches(t *testing.T) {
	m := chainadapter.NewMock()
	for h := uint32(1); h <= 5; h++ {
		var blockHash bitcoinwire.DisplayHash
		blockHash[0] = byte(h)
		m.PutBlock(h, blockHash, make([]byte, bitcoinwire.HeaderSize), chainadapter.HeaderInfo{}, nil)
	}

	store, err := payoutstore.OpenBoltStore(filepath.Join(t.TempDir(), "payouts.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore: %v", err)
	}
	defer store.Close()

	w := watcher.New(m, store, nil)
	l := New(m, w, store, nil, Config{ScanBatchSize: 3, MinConfirmations: 6, MaxHeaderChain: 144}, 0, nil)

	if err := l.iterate(context.Background()); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if l.LastScannedHeight() != 3 {
		t.Errorf("LastScannedHeight() = %d, want 3 (bounded by scan batch size)", l.LastScannedHeight())
	}

	if err := l.iterate(context.Background()); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if l.LastScannedHeight() != 5 {
		t.Errorf("LastScannedHeight() = %d, want 5", l.LastScannedHeight())
	}
}

func TestStateStringValues(t *testing.T) {
	cases := map[State]string{
		StateIdle:       "idle",
		StateScanning:   "scanning",
		StateSubmitting: "submitting",
		StateStopping:   "stopping",
		StateStopped:    "stopped",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
