package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/punchamoorthee/reconops/internal/domain"
	"github.com/punchamoorthee/reconops/internal/service"
)

const requestColumns = `id, account_id, amount, depositor_name, payment_method, is_credit,
	state, matched_transaction_id, confirmed_at, confirmed_by, expected_payment_date, created_at`

func scanRequest(row pgx.Row) (*domain.ChargeRequest, error) {
	var r domain.ChargeRequest
	err := row.Scan(&r.ID, &r.AccountID, &r.Amount, &r.DepositorName, &r.PaymentMethod, &r.IsCredit,
		&r.State, &r.MatchedTransactionID, &r.ConfirmedAt, &r.ConfirmedBy, &r.ExpectedPaymentDate, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateChargeRequest(ctx context.Context, req *domain.ChargeRequest) error {
	_, err := s.Db.Exec(ctx,
		`INSERT INTO charge_requests
		 (id, account_id, amount, depositor_name, payment_method, is_credit, state, expected_payment_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, req.AccountID, req.Amount, req.DepositorName, req.PaymentMethod,
		req.IsCredit, req.State, req.ExpectedPaymentDate, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("charge request insert failed: %w", err)
	}
	return nil
}

func (s *Store) GetChargeRequest(ctx context.Context, id string) (*domain.ChargeRequest, error) {
	req, err := scanRequest(s.Db.QueryRow(ctx,
		"SELECT "+requestColumns+" FROM charge_requests WHERE id = $1", id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListPendingBankTransfers returns pending bank_transfer requests for an
// exact amount, oldest first. The ordering backs the matcher's deterministic
// first-requested-first-served tie-break.
func (s *Store) ListPendingBankTransfers(ctx context.Context, amount int64) ([]domain.ChargeRequest, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT `+requestColumns+` FROM charge_requests
		 WHERE state = $1 AND payment_method = $2 AND amount = $3
		 ORDER BY created_at ASC, id ASC`,
		domain.StatePending, domain.MethodBankTransfer, amount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChargeRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// ConfirmMatch is the single atomic commit behind every confirmation path.
// Within one transaction it re-checks the request state, appends the ledger
// entry and rebalances the account (unless the credit was already applied at
// pre-charge time), transitions the request with a conditional update, and
// links the mirrored transaction. A request already confirmed comes back
// with replayed=true and zero effects.
func (s *Store) ConfirmMatch(ctx context.Context, p service.ConfirmParams) (*domain.ChargeRequest, bool, error) {
	// ReadCommitted, not RepeatableRead: the loser of two concurrent commits
	// blocks on the FOR UPDATE below, then reads the winner's committed row
	// and takes the replay branch. A stricter level would abort it with a
	// serialization failure instead of honoring the idempotency contract.
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, false, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := scanRequest(tx.QueryRow(ctx,
		"SELECT "+requestColumns+" FROM charge_requests WHERE id = $1 FOR UPDATE", p.RequestID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, domain.ErrRequestNotFound
		}
		return nil, false, fmt.Errorf("request lock failed: %w", err)
	}

	if req.Terminal() {
		// Idempotent replay: webhook delivered twice, poll racing a webhook,
		// or an operator double-click. Not a fault.
		return req, true, nil
	}

	if p.TransactionID != "" {
		if err := guardTransactionUnclaimed(ctx, tx, p.TransactionID, p.RequestID); err != nil {
			return nil, false, err
		}
	}

	// A precharged receivable was credited when the pre-charge was granted;
	// the deposit arriving now only clears it. Everything else gets exactly
	// one charge entry.
	if !(req.IsCredit && req.State == domain.StatePrecharged) {
		if _, err := appendEntryTx(ctx, tx, req.AccountID, req.Amount, domain.ReasonCharge, req.ID); err != nil {
			return nil, false, err
		}
	}

	now := time.Now()
	tag, err := tx.Exec(ctx,
		`UPDATE charge_requests
		 SET state = $1, matched_transaction_id = NULLIF($2, ''), confirmed_at = $3, confirmed_by = $4
		 WHERE id = $5 AND state = ANY($6)`,
		domain.StateConfirmed, p.TransactionID, now, p.ConfirmedBy, p.RequestID,
		[]string{domain.StatePending, domain.StatePrecharged})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Unique index on matched_transaction_id: some other request
			// already holds this deposit.
			return nil, false, domain.ErrTransactionClaimed
		}
		return nil, false, fmt.Errorf("request transition failed: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, false, fmt.Errorf("request %s left matchable state mid-commit", p.RequestID)
	}

	if p.TransactionID != "" {
		_, err = tx.Exec(ctx,
			"UPDATE bank_transactions SET matched_request_id = $1 WHERE transaction_id = $2 AND matched_request_id IS NULL",
			p.RequestID, p.TransactionID)
		if err != nil {
			return nil, false, fmt.Errorf("transaction link failed: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("tx commit failed: %w", err)
	}

	req.State = domain.StateConfirmed
	req.ConfirmedAt = &now
	req.ConfirmedBy = p.ConfirmedBy
	if p.TransactionID != "" {
		req.MatchedTransactionID = &p.TransactionID
	}
	return req, false, nil
}

// guardTransactionUnclaimed locks the mirror row and rejects the commit if
// another request already owns it. A transaction id not yet mirrored is
// tolerated: admins sometimes confirm off the bank site before the collector
// catches up, and the mirror row links up on a later cycle.
func guardTransactionUnclaimed(ctx context.Context, tx pgx.Tx, transactionID, requestID string) error {
	var matched *string
	err := tx.QueryRow(ctx,
		"SELECT matched_request_id FROM bank_transactions WHERE transaction_id = $1 FOR UPDATE",
		transactionID).Scan(&matched)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return fmt.Errorf("transaction lock failed: %w", err)
	}
	if matched != nil && *matched != requestID {
		return domain.ErrTransactionClaimed
	}
	return nil
}
