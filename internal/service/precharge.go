package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/reconops/internal/domain"
	"github.com/punchamoorthee/reconops/internal/notify"
)

// Precharger grants credit ahead of the deposit, creating a receivable. The
// ledger credit and the request record cannot share one atomic boundary with
// every caller integration, so the pair is an explicit two-phase operation
// with a compensating entry on the failure path.
type Precharger struct {
	ledger   LedgerStore
	requests ChargeRequestStore
	auth     Authorizer
	sink     notify.Publisher
}

func NewPrecharger(ledger LedgerStore, requests ChargeRequestStore, auth Authorizer, sink notify.Publisher) *Precharger {
	return &Precharger{ledger: ledger, requests: requests, auth: auth, sink: sink}
}

// PrechargeInput describes one administrator-approved advance.
type PrechargeInput struct {
	AccountID           int64
	Amount              int64
	DepositorName       string
	ExpectedPaymentDate *time.Time
	Approver            string
}

// Precharge credits the account immediately and records a precharged request
// tracking the outstanding deposit. If the request record fails after the
// credit succeeded, a credit_rollback entry restores the balance; if that
// compensation itself fails the condition is escalated, never dropped.
func (p *Precharger) Precharge(ctx context.Context, in PrechargeInput) (*domain.ChargeRequest, error) {
	if !p.auth.IsAuthorized(in.Approver, ActionPrecharge) {
		return nil, domain.ErrUnauthorized
	}
	if in.Amount < domain.MinChargeAmount {
		return nil, domain.ErrAmountTooSmall
	}
	if in.DepositorName == "" {
		return nil, domain.ErrInvalidInput
	}

	requestID := uuid.NewString()

	// Phase 1: apply the credit.
	if _, err := p.ledger.AppendEntry(ctx, in.AccountID, in.Amount, domain.ReasonCredit, requestID); err != nil {
		return nil, fmt.Errorf("precharge credit failed: %w", err)
	}

	// Phase 2: record the receivable.
	req := &domain.ChargeRequest{
		ID:                  requestID,
		AccountID:           in.AccountID,
		Amount:              in.Amount,
		DepositorName:       in.DepositorName,
		PaymentMethod:       domain.MethodPrecharge,
		IsCredit:            true,
		State:               domain.StatePrecharged,
		ExpectedPaymentDate: in.ExpectedPaymentDate,
		CreatedAt:           time.Now(),
	}
	if err := p.requests.CreateChargeRequest(ctx, req); err != nil {
		return nil, p.compensate(ctx, in, requestID, err)
	}

	p.publish(ctx, domain.EventPrechargeCreated, req, "admin:"+in.Approver, false)
	return req, nil
}

// compensate appends the rollback entry for a credit whose request record
// never materialized. The original failure is always returned; a failed
// compensation upgrades it to ErrCompensationFailed.
func (p *Precharger) compensate(ctx context.Context, in PrechargeInput, requestID string, cause error) error {
	if _, err := p.ledger.AppendEntry(ctx, in.AccountID, -in.Amount, domain.ReasonCreditRollback, requestID); err != nil {
		compensationFailures.Inc()
		log.Printf("FATAL: precharge compensation failed for account %d request %s: credit of %d is orphaned: %v (original cause: %v)",
			in.AccountID, requestID, in.Amount, err, cause)
		return fmt.Errorf("%w: account %d request %s: %v", domain.ErrCompensationFailed, in.AccountID, requestID, cause)
	}

	p.publish(ctx, domain.EventPrechargeCompensated, &domain.ChargeRequest{
		ID:        requestID,
		AccountID: in.AccountID,
		Amount:    in.Amount,
	}, "admin:"+in.Approver, true)
	return fmt.Errorf("precharge request creation failed (credit rolled back): %w", cause)
}

func (p *Precharger) publish(ctx context.Context, eventType string, req *domain.ChargeRequest, approvedBy string, compensated bool) {
	if p.sink == nil {
		return
	}
	body, err := json.Marshal(domain.PrechargeEvent{
		RequestID:           req.ID,
		AccountID:           req.AccountID,
		Amount:              req.Amount,
		ApprovedBy:          approvedBy,
		ExpectedPaymentDate: req.ExpectedPaymentDate,
		Compensated:         compensated,
		CreatedAt:           time.Now(),
	})
	if err != nil {
		notifyFailures.Inc()
		return
	}
	if err := p.sink.Publish(ctx, eventType, body, strconv.FormatInt(req.AccountID, 10)); err != nil {
		notifyFailures.Inc()
		log.Printf("event publish failed (%s): %v", eventType, err)
	}
}
