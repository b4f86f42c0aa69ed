package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/reconops/internal/domain"
	"github.com/punchamoorthee/reconops/internal/match"
)

// Matcher proposes a pairing between a mirrored bank transaction and a
// pending charge request. It never mutates state; the Writer performs the
// atomic commit.
type Matcher struct {
	requests ChargeRequestStore
	strategy match.Strategy
}

func NewMatcher(requests ChargeRequestStore, strategy match.Strategy) *Matcher {
	return &Matcher{requests: requests, strategy: strategy}
}

// FindCandidate returns the unique compatible pending request for tx, or nil
// when none exists. When several requests are compatible the oldest by
// created_at wins, so re-evaluation over an unchanged request set is
// deterministic.
func (m *Matcher) FindCandidate(ctx context.Context, tx domain.BankTransaction) (*domain.ChargeRequest, error) {
	if tx.Direction != "credit" {
		return nil, nil
	}

	candidates, err := m.requests.ListPendingBankTransfers(ctx, tx.Amount)
	if err != nil {
		return nil, fmt.Errorf("pending request lookup failed: %w", err)
	}

	for i := range candidates {
		if m.strategy.IsCandidateMatch(tx, candidates[i]) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}
