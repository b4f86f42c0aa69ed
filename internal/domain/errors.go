package domain

import "errors"

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrRequestNotFound     = errors.New("charge request not found")
	ErrTransactionNotFound = errors.New("bank transaction not found")
	ErrTransactionClaimed  = errors.New("bank transaction already linked to another request")
	ErrAmountTooSmall      = errors.New("amount below minimum charge")
	ErrUnauthorized        = errors.New("actor not authorized")
	ErrInvalidInput        = errors.New("invalid input")

	// ErrCompensationFailed is fatal: a pre-charge credit was applied, the
	// request record failed, and the rollback entry could not be written.
	// Requires manual reconciliation.
	ErrCompensationFailed = errors.New("precharge compensation failed")
)
