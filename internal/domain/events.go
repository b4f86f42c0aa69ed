package domain

import "time"

// Event types published to the notification sink after a commit succeeds.
// Delivery is fire-and-forget; failures never affect the financial commit.
const (
	EventChargeConfirmed      = "charge.confirmed"
	EventPrechargeCreated     = "precharge.created"
	EventPrechargeCompensated = "precharge.compensated"
)

// ChargeConfirmedEvent is emitted once per confirmed charge request.
type ChargeConfirmedEvent struct {
	RequestID     string    `json:"request_id"`
	AccountID     int64     `json:"account_id"`
	Amount        int64     `json:"amount"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ConfirmedBy   string    `json:"confirmed_by"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// PrechargeEvent is emitted when an administrator grants credit ahead of the
// deposit, and again (with Compensated=true) if the grant had to be rolled
// back.
type PrechargeEvent struct {
	RequestID           string     `json:"request_id"`
	AccountID           int64      `json:"account_id"`
	Amount              int64      `json:"amount"`
	ApprovedBy          string     `json:"approved_by"`
	ExpectedPaymentDate *time.Time `json:"expected_payment_date,omitempty"`
	Compensated         bool       `json:"compensated,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}
