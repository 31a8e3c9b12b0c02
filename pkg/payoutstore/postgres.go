package payoutstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is the server-backed Store implementation, for
// deployments that share payout state across multiple relayer processes.
type PostgresStore struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenPostgresStore connects to databaseURL, running embedded migrations,
// and returns a ready Store.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("payoutstore: open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("payoutstore: ping postgres: %w", err)
	}

	s := &PostgresStore{
		db:     db,
		logger: log.New(log.Writer(), "[PayoutStore] ", log.LstdFlags),
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("payoutstore: read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		contents, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("payoutstore: read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(contents)); err != nil {
			return fmt.Errorf("payoutstore: apply migration %s: %w", name, err)
		}
		s.logger.Printf("applied migration %s", name)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) AddPending(ctx context.Context, row PendingPayout) (bool, error) {
	submitted, err := s.IsSubmitted(ctx, row.Txid, row.OutputIndex)
	if err != nil {
		return false, err
	}
	if submitted {
		return false, nil
	}

	if row.FirstSeen.IsZero() {
		row.FirstSeen = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_payouts (txid, output_index, borrower, btc_address, amount_sats, block_height, block_hash, first_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (txid, output_index) DO NOTHING`,
		row.Txid[:], row.OutputIndex, row.Borrower[:], row.BtcAddress, int64(row.AmountSats), row.BlockHeight, row.BlockHash[:], row.FirstSeen)
	if err != nil {
		return false, fmt.Errorf("payoutstore: add pending: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payoutstore: add pending rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) IsSubmitted(ctx context.Context, txid [32]byte, outputIndex uint32) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM submitted_payouts WHERE txid = $1 AND output_index = $2)`,
		txid[:], outputIndex).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("payoutstore: is submitted: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) MarkSubmitted(ctx context.Context, txid [32]byte, outputIndex uint32, evmTxHash [32]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("payoutstore: begin mark submitted: %w", err)
	}
	defer tx.Rollback()

	var row PendingPayout
	var txidBytes, borrower []byte
	err = tx.QueryRowContext(ctx, `
		SELECT txid, output_index, borrower, amount_sats, block_height
		FROM pending_payouts WHERE txid = $1 AND output_index = $2 FOR UPDATE`,
		txid[:], outputIndex).Scan(&txidBytes, &row.OutputIndex, &borrower, &row.AmountSats, &row.BlockHeight)
	if err == sql.ErrNoRows {
		return nil // already moved: no-op
	}
	if err != nil {
		return fmt.Errorf("payoutstore: load pending for mark submitted: %w", err)
	}
	copy(row.Borrower[:], borrower)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO submitted_payouts (txid, output_index, borrower, amount_sats, block_height, submitted_at, evm_tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txid[:], outputIndex, row.Borrower[:], int64(row.AmountSats), row.BlockHeight, time.Now(), evmTxHash[:]); err != nil {
		return fmt.Errorf("payoutstore: insert submitted: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_payouts WHERE txid = $1 AND output_index = $2`, txid[:], outputIndex); err != nil {
		return fmt.Errorf("payoutstore: delete pending: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) RemovePending(ctx context.Context, txid [32]byte, outputIndex uint32) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_payouts WHERE txid = $1 AND output_index = $2`, txid[:], outputIndex)
	if err != nil {
		return fmt.Errorf("payoutstore: remove pending: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPending(ctx context.Context) ([]PendingPayout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT txid, output_index, borrower, btc_address, amount_sats, block_height, block_hash, first_seen
		FROM pending_payouts ORDER BY first_seen ASC`)
	if err != nil {
		return nil, fmt.Errorf("payoutstore: get pending: %w", err)
	}
	defer rows.Close()

	var out []PendingPayout
	for rows.Next() {
		var row PendingPayout
		var txid, borrower, blockHash []byte
		if err := rows.Scan(&txid, &row.OutputIndex, &borrower, &row.BtcAddress, &row.AmountSats, &row.BlockHeight, &blockHash, &row.FirstSeen); err != nil {
			return nil, fmt.Errorf("payoutstore: scan pending: %w", err)
		}
		copy(row.Txid[:], txid)
		copy(row.Borrower[:], borrower)
		copy(row.BlockHash[:], blockHash)
		out = append(out, row)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
