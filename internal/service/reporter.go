package service

import (
	"context"
	"fmt"
	"time"

	"github.com/punchamoorthee/reconops/internal/domain"
)

// Reporter surfaces deposits that failed to reconcile. It only reads; human
// operators resolve its output through the manual confirmation endpoint.
type Reporter struct {
	mirror TransactionMirror
	window time.Duration
}

func NewReporter(mirror TransactionMirror, window time.Duration) *Reporter {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Reporter{mirror: mirror, window: window}
}

// SweepUnmatched returns unmatched credit transactions whose value date
// falls inside the trailing window ending at asOf. Runs on its own trailing
// schedule, after business hours, so deposits still awaiting a charge
// request created later the same day are not prematurely flagged.
func (r *Reporter) SweepUnmatched(ctx context.Context, asOf time.Time) ([]domain.UnmatchedItem, error) {
	txs, err := r.mirror.ListUnmatched(ctx, asOf.Add(-r.window), asOf)
	if err != nil {
		return nil, fmt.Errorf("unmatched sweep failed: %w", err)
	}

	items := make([]domain.UnmatchedItem, 0, len(txs))
	for _, tx := range txs {
		items = append(items, domain.UnmatchedItem{
			Transaction: tx,
			AgeHours:    asOf.Sub(tx.ValueDate).Hours(),
		})
	}
	unmatchedSwept.Set(float64(len(items)))
	return items, nil
}
