package service

import (
	"context"
	"time"

	"github.com/punchamoorthee/reconops/internal/domain"
)

// ConfirmParams carries one commit attempt into the store. TransactionID is
// empty for pure manual confirmations where the deposit was sighted outside
// the mirror.
type ConfirmParams struct {
	RequestID     string
	TransactionID string
	ConfirmedBy   string
}

// ChargeRequestStore is the durable record of funding requests.
type ChargeRequestStore interface {
	CreateChargeRequest(ctx context.Context, req *domain.ChargeRequest) error
	GetChargeRequest(ctx context.Context, id string) (*domain.ChargeRequest, error)
	// ListPendingBankTransfers returns pending bank_transfer requests with
	// the given amount, oldest first. Ordering is part of the contract: the
	// matcher's first-requested-first-served tie-break depends on it.
	ListPendingBankTransfers(ctx context.Context, amount int64) ([]domain.ChargeRequest, error)
	// ConfirmMatch atomically transitions the request to confirmed, appends
	// the ledger entry (unless the credit was applied at pre-charge time),
	// updates the balance and links the mirrored transaction. A request that
	// already left its matchable state yields replayed=true and no effects.
	ConfirmMatch(ctx context.Context, p ConfirmParams) (req *domain.ChargeRequest, replayed bool, err error)
}

// TransactionMirror is the deduplicated local copy of the bank feed.
type TransactionMirror interface {
	// InsertTransaction is a set-union insert keyed on the provider id;
	// inserted=false means the row already existed and nothing was written.
	InsertTransaction(ctx context.Context, tx *domain.BankTransaction) (inserted bool, err error)
	GetTransaction(ctx context.Context, id string) (*domain.BankTransaction, error)
	ListUnmatched(ctx context.Context, from, to time.Time) ([]domain.BankTransaction, error)
}

// LedgerStore owns accounts and the append-only entry log.
type LedgerStore interface {
	CreateAccount(ctx context.Context) (int64, error)
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	ListEntries(ctx context.Context, accountID int64) ([]domain.LedgerEntry, error)
	// AppendEntry inserts one entry and moves the balance in the same
	// transaction. Used by the pre-charge path only; matched deposits are
	// credited inside ConfirmMatch.
	AppendEntry(ctx context.Context, accountID, delta int64, reason, sourceRequestID string) (*domain.LedgerEntry, error)
}

// Authorizer is the external capability check for admin actions.
type Authorizer interface {
	IsAuthorized(actor, action string) bool
}

// Admin actions gated by the Authorizer.
const (
	ActionPrecharge     = "precharge"
	ActionManualConfirm = "manual_confirm"
	ActionRematch       = "rematch"
)
