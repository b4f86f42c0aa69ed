package service

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/punchamoorthee/reconops/internal/domain"
	"github.com/punchamoorthee/reconops/internal/notify"
)

// Writer applies a proposed match. All trigger paths (poll, webhook, manual
// admin confirm) converge here; correctness under races rests on the store's
// conditional state transition, not on any lock held by callers.
type Writer struct {
	requests ChargeRequestStore
	sink     notify.Publisher
}

func NewWriter(requests ChargeRequestStore, sink notify.Publisher) *Writer {
	return &Writer{requests: requests, sink: sink}
}

// Commit confirms the request against the transaction and credits the
// ledger, exactly once. Invoking it again for an already-confirmed request
// is a no-op: the confirmed request is returned with replayed=true and no
// error, which is the idempotency contract rather than a fault.
func (w *Writer) Commit(ctx context.Context, requestID, transactionID, confirmedBy string) (*domain.ChargeRequest, bool, error) {
	req, replayed, err := w.requests.ConfirmMatch(ctx, ConfirmParams{
		RequestID:     requestID,
		TransactionID: transactionID,
		ConfirmedBy:   confirmedBy,
	})
	if err != nil {
		return nil, false, err
	}
	if replayed {
		commitReplays.Inc()
		return req, true, nil
	}

	matchesCommitted.WithLabelValues(sourceLabel(confirmedBy)).Inc()

	confirmedAt := time.Now()
	if req.ConfirmedAt != nil {
		confirmedAt = *req.ConfirmedAt
	}
	w.publish(ctx, domain.EventChargeConfirmed, strconv.FormatInt(req.AccountID, 10), domain.ChargeConfirmedEvent{
		RequestID:     req.ID,
		AccountID:     req.AccountID,
		Amount:        req.Amount,
		TransactionID: transactionID,
		ConfirmedBy:   confirmedBy,
		ConfirmedAt:   confirmedAt,
	})
	return req, false, nil
}

// publish is fire-and-forget: a sink outage must never unwind a financial
// commit. Failures are logged and counted for independent retry tooling.
func (w *Writer) publish(ctx context.Context, eventType, key string, payload any) {
	if w.sink == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		notifyFailures.Inc()
		log.Printf("event marshal failed (%s): %v", eventType, err)
		return
	}
	if err := w.sink.Publish(ctx, eventType, body, key); err != nil {
		notifyFailures.Inc()
		log.Printf("event publish failed (%s): %v", eventType, err)
	}
}

func sourceLabel(confirmedBy string) string {
	if confirmedBy == domain.ConfirmedBySystem {
		return "auto"
	}
	return "manual"
}
