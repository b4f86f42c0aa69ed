package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/reconops/internal/domain"
)

// InsertTransaction mirrors one feed row. The provider transaction id is the
// natural idempotency key: re-ingesting the same window, or a webhook racing
// the poll, lands on ON CONFLICT DO NOTHING and reports inserted=false.
// Matching fields of an existing row are never overwritten.
func (s *Store) InsertTransaction(ctx context.Context, tx *domain.BankTransaction) (bool, error) {
	tag, err := s.Db.Exec(ctx,
		`INSERT INTO bank_transactions
		 (transaction_id, direction, amount, counterparty_name, value_date, collected_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (transaction_id) DO NOTHING`,
		tx.TransactionID, tx.Direction, tx.Amount, tx.CounterpartyName, tx.ValueDate, time.Now())
	if err != nil {
		return false, fmt.Errorf("transaction insert failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.BankTransaction, error) {
	var tx domain.BankTransaction
	err := s.Db.QueryRow(ctx,
		`SELECT transaction_id, direction, amount, counterparty_name, value_date, matched_request_id, collected_at
		 FROM bank_transactions WHERE transaction_id = $1`,
		id).Scan(&tx.TransactionID, &tx.Direction, &tx.Amount, &tx.CounterpartyName,
		&tx.ValueDate, &tx.MatchedRequestID, &tx.CollectedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// ListUnmatched returns unmatched credit transactions with a value date
// inside [from, to], oldest first.
func (s *Store) ListUnmatched(ctx context.Context, from, to time.Time) ([]domain.BankTransaction, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT transaction_id, direction, amount, counterparty_name, value_date, matched_request_id, collected_at
		 FROM bank_transactions
		 WHERE matched_request_id IS NULL AND direction = 'credit'
		   AND value_date >= $1 AND value_date <= $2
		 ORDER BY value_date ASC, transaction_id ASC`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BankTransaction
	for rows.Next() {
		var tx domain.BankTransaction
		if err := rows.Scan(&tx.TransactionID, &tx.Direction, &tx.Amount, &tx.CounterpartyName,
			&tx.ValueDate, &tx.MatchedRequestID, &tx.CollectedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
