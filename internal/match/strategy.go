// Package match holds the pluggable candidate-match policy. The commit and
// idempotency core never inspects names; swapping the heuristic here cannot
// affect crediting semantics.
package match

import (
	"strings"

	"github.com/punchamoorthee/reconops/internal/domain"
)

// Strategy decides whether a bank transaction and a pending charge request
// are compatible. Implementations must be pure functions of their arguments.
type Strategy interface {
	IsCandidateMatch(tx domain.BankTransaction, req domain.ChargeRequest) bool
}

// SubstringStrategy is the production policy: exact amount equality and
// case-sensitive substring containment of the expected depositor name inside
// the bank's counterparty string. Banks truncate and prefix depositor names,
// so containment rather than equality is required; no tolerance is applied
// to amounts.
type SubstringStrategy struct{}

func (SubstringStrategy) IsCandidateMatch(tx domain.BankTransaction, req domain.ChargeRequest) bool {
	if req.DepositorName == "" {
		return false
	}
	return tx.Amount == req.Amount &&
		strings.Contains(tx.CounterpartyName, req.DepositorName)
}

// NormalizedStrategy folds case and strips spaces before containment. Not
// the default: it widens matches and should only be enabled as a deliberate
// policy change.
type NormalizedStrategy struct{}

func (NormalizedStrategy) IsCandidateMatch(tx domain.BankTransaction, req domain.ChargeRequest) bool {
	name := normalize(req.DepositorName)
	if name == "" {
		return false
	}
	return tx.Amount == req.Amount &&
		strings.Contains(normalize(tx.CounterpartyName), name)
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}
