package domain

import "time"

// ChargeRequest lifecycle states. A request leaves Pending (or Precharged)
// exactly once; Confirmed is terminal for the funding flow.
const (
	StatePending    = "pending"
	StatePrecharged = "precharged"
	StateConfirmed  = "confirmed"
)

// Payment methods accepted on a charge request.
const (
	MethodBankTransfer = "bank_transfer"
	MethodInstant      = "instant"
	MethodPrecharge    = "precharge"
)

// Ledger entry reasons.
const (
	ReasonCharge         = "charge"
	ReasonCredit         = "credit"
	ReasonCreditRollback = "credit_rollback"
)

// ConfirmedBySystem marks commits performed by the automatic matching path.
// Manual confirmations use "admin:<id>".
const ConfirmedBySystem = "system_auto"

// MinChargeAmount is the smallest accepted funding amount, in minor units.
const MinChargeAmount = 10000

// Account holds a paying organization's point balance. Balance is mutated
// only inside the ledger commit transaction.
type Account struct {
	ID        int64     `json:"id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// ChargeRequest is a declared intent to fund an account.
type ChargeRequest struct {
	ID                   string     `json:"id"`
	AccountID            int64      `json:"account_id"`
	Amount               int64      `json:"amount"`
	DepositorName        string     `json:"depositor_name"`
	PaymentMethod        string     `json:"payment_method"`
	IsCredit             bool       `json:"is_credit"`
	State                string     `json:"state"`
	MatchedTransactionID *string    `json:"matched_transaction_id,omitempty"`
	ConfirmedAt          *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy          string     `json:"confirmed_by,omitempty"`
	ExpectedPaymentDate  *time.Time `json:"expected_payment_date,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Terminal reports whether the request can no longer be matched.
func (r *ChargeRequest) Terminal() bool {
	return r.State == StateConfirmed
}

// BankTransaction is a mirrored row from the external bank feed. The
// provider's TransactionID is the dedup key; MatchedRequestID is set at most
// once, by the ledger commit.
type BankTransaction struct {
	TransactionID    string    `json:"transaction_id"`
	Direction        string    `json:"direction"` // "credit" or "debit"
	Amount           int64     `json:"amount"`
	CounterpartyName string    `json:"counterparty_name"`
	ValueDate        time.Time `json:"value_date"`
	MatchedRequestID *string   `json:"matched_request_id,omitempty"`
	CollectedAt      time.Time `json:"collected_at"`
}

// LedgerEntry is one immutable balance change. Corrections append a
// compensating entry with the opposite sign; rows are never updated.
type LedgerEntry struct {
	ID              string    `json:"id"`
	AccountID       int64     `json:"account_id"`
	Delta           int64     `json:"delta"`
	Reason          string    `json:"reason"`
	SourceRequestID string    `json:"source_request_id"`
	BalanceAfter    int64     `json:"balance_after"`
	CreatedAt       time.Time `json:"created_at"`
}

// UnmatchedItem is one deposit awaiting human review.
type UnmatchedItem struct {
	Transaction BankTransaction `json:"transaction"`
	AgeHours    float64         `json:"age_hours"`
}
