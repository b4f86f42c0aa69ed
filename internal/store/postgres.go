package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/punchamoorthee/reconops/internal/domain"
)

// Store wraps the connection pool. It implements the service-layer ports
// (LedgerStore, ChargeRequestStore, TransactionMirror) against four tables:
// accounts, charge_requests, bank_transactions, ledger_entries.
type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// CreateAccount creates a new account with 0 balance.
func (s *Store) CreateAccount(ctx context.Context) (int64, error) {
	var id int64
	err := s.Db.QueryRow(ctx, "INSERT INTO accounts (balance) VALUES (0) RETURNING id").Scan(&id)
	return id, err
}

// GetAccount retrieves a single account by ID.
func (s *Store) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var account domain.Account
	err := s.Db.QueryRow(ctx,
		"SELECT id, balance, created_at FROM accounts WHERE id = $1",
		id).Scan(&account.ID, &account.Balance, &account.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListEntries retrieves the ledger log for one account, newest first.
func (s *Store) ListEntries(ctx context.Context, accountID int64) ([]domain.LedgerEntry, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT id, account_id, delta, reason, source_request_id, balance_after, created_at
		 FROM ledger_entries WHERE account_id = $1 ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Delta, &e.Reason, &e.SourceRequestID, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendEntry inserts one ledger entry and moves the account balance in the
// same transaction. The account row is locked first so balance_after is
// computed against a stable balance.
func (s *Store) AppendEntry(ctx context.Context, accountID, delta int64, reason, sourceRequestID string) (*domain.LedgerEntry, error) {
	// ReadCommitted: concurrent appends on one account serialize on the FOR
	// UPDATE row lock, and the second reads the first's committed balance
	// instead of aborting with a serialization failure.
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := appendEntryTx(ctx, tx, accountID, delta, reason, sourceRequestID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return entry, nil
}

// appendEntryTx is the shared append-and-rebalance step, also used inside
// the ConfirmMatch transaction.
func appendEntryTx(ctx context.Context, tx pgx.Tx, accountID, delta int64, reason, sourceRequestID string) (*domain.LedgerEntry, error) {
	var balance int64
	err := tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account lock failed: %w", err)
	}

	entry := domain.LedgerEntry{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		Delta:           delta,
		Reason:          reason,
		SourceRequestID: sourceRequestID,
		BalanceAfter:    balance + delta,
		CreatedAt:       time.Now(),
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, account_id, delta, reason, source_request_id, balance_after, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AccountID, entry.Delta, entry.Reason, entry.SourceRequestID, entry.BalanceAfter, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ledger entry insert failed: %w", err)
	}

	_, err = tx.Exec(ctx, "UPDATE accounts SET balance = $1 WHERE id = $2", entry.BalanceAfter, accountID)
	if err != nil {
		return nil, fmt.Errorf("balance update failed: %w", err)
	}
	return &entry, nil
}

// BalanceDrift is one account whose stored balance disagrees with the sum of
// its ledger entries.
type BalanceDrift struct {
	AccountID int64
	Stored    int64
	Derived   int64
}

// RecomputeBalances re-derives every balance from the entry log, which is
// the source of truth, and reports mismatches. Read-only; used by the
// offline audit pass.
func (s *Store) RecomputeBalances(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT a.id, a.balance, COALESCE(SUM(e.delta), 0)
		 FROM accounts a
		 LEFT JOIN ledger_entries e ON e.account_id = a.id
		 GROUP BY a.id, a.balance
		 HAVING a.balance <> COALESCE(SUM(e.delta), 0)
		 ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []BalanceDrift
	for rows.Next() {
		var d BalanceDrift
		if err := rows.Scan(&d.AccountID, &d.Stored, &d.Derived); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}
