package payoutstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketPending   = []byte("pending")
	bucketSubmitted = []byte("submitted")
)

// BoltStore is the embedded, file-backed Store implementation for
// single-process deployments.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt database at path with
// the pending/submitted buckets ready.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("payoutstore: open bbolt: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPending); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketSubmitted)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("payoutstore: init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func payoutKey(txid [32]byte, outputIndex uint32) []byte {
	key := make([]byte, 36)
	copy(key[:32], txid[:])
	binary.BigEndian.PutUint32(key[32:], outputIndex)
	return key
}

func (s *BoltStore) AddPending(ctx context.Context, row PendingPayout) (bool, error) {
	key := payoutKey(row.Txid, row.OutputIndex)
	inserted := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		submitted := tx.Bucket(bucketSubmitted)
		if submitted.Get(key) != nil {
			return nil // submitted rows dominate: no-op
		}

		pending := tx.Bucket(bucketPending)
		if pending.Get(key) != nil {
			return nil // already pending: no-op
		}

		if row.FirstSeen.IsZero() {
			row.FirstSeen = time.Now()
		}
		b, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal pending payout: %w", err)
		}
		if err := pending.Put(key, b); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("payoutstore: add pending: %w", err)
	}
	return inserted, nil
}

func (s *BoltStore) IsSubmitted(ctx context.Context, txid [32]byte, outputIndex uint32) (bool, error) {
	key := payoutKey(txid, outputIndex)
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketSubmitted).Get(key) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("payoutstore: is submitted: %w", err)
	}
	return found, nil
}

func (s *BoltStore) MarkSubmitted(ctx context.Context, txid [32]byte, outputIndex uint32, evmTxHash [32]byte) error {
	key := payoutKey(txid, outputIndex)

	err := s.db.Update(func(tx *bolt.Tx) error {
		pending := tx.Bucket(bucketPending)
		raw := pending.Get(key)
		if raw == nil {
			return nil // already moved: no-op
		}

		var row PendingPayout
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("unmarshal pending payout: %w", err)
		}

		submittedRow := SubmittedPayout{
			Txid:        row.Txid,
			OutputIndex: row.OutputIndex,
			Borrower:    row.Borrower,
			AmountSats:  row.AmountSats,
			BlockHeight: row.BlockHeight,
			SubmittedAt: time.Now(),
			EvmTxHash:   evmTxHash,
		}
		b, err := json.Marshal(submittedRow)
		if err != nil {
			return fmt.Errorf("marshal submitted payout: %w", err)
		}

		if err := tx.Bucket(bucketSubmitted).Put(key, b); err != nil {
			return err
		}
		return pending.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("payoutstore: mark submitted: %w", err)
	}
	return nil
}

func (s *BoltStore) RemovePending(ctx context.Context, txid [32]byte, outputIndex uint32) error {
	key := payoutKey(txid, outputIndex)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).Delete(key)
	})
	if err != nil {
		return fmt.Errorf("payoutstore: remove pending: %w", err)
	}
	return nil
}

func (s *BoltStore) GetPending(ctx context.Context) ([]PendingPayout, error) {
	var rows []PendingPayout
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(k, v []byte) error {
			var row PendingPayout
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("unmarshal pending payout: %w", err)
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("payoutstore: get pending: %w", err)
	}
	return rows, nil
}

var _ Store = (*BoltStore)(nil)
