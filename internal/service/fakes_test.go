package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/reconops/internal/domain"
)

// memStore is an in-memory implementation of the store ports with the same
// semantics the Postgres store guarantees: deduplicated mirror inserts, a
// compare-and-swap state transition, and an append-only entry log.
type memStore struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
	requests map[string]*domain.ChargeRequest
	txs      map[string]*domain.BankTransaction
	entries  []domain.LedgerEntry
	nextID   int64

	failCreateRequest error
	failRollbackEntry error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[int64]*domain.Account{},
		requests: map[string]*domain.ChargeRequest{},
		txs:      map[string]*domain.BankTransaction{},
	}
}

func (m *memStore) CreateAccount(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.accounts[m.nextID] = &domain.Account{ID: m.nextID, CreatedAt: time.Now()}
	return m.nextID, nil
}

func (m *memStore) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *memStore) ListEntries(_ context.Context, accountID int64) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) AppendEntry(_ context.Context, accountID, delta int64, reason, sourceRequestID string) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reason == domain.ReasonCreditRollback && m.failRollbackEntry != nil {
		return nil, m.failRollbackEntry
	}
	return m.appendLocked(accountID, delta, reason, sourceRequestID)
}

func (m *memStore) appendLocked(accountID, delta int64, reason, sourceRequestID string) (*domain.LedgerEntry, error) {
	acc, ok := m.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	acc.Balance += delta
	entry := domain.LedgerEntry{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		Delta:           delta,
		Reason:          reason,
		SourceRequestID: sourceRequestID,
		BalanceAfter:    acc.Balance,
		CreatedAt:       time.Now(),
	}
	m.entries = append(m.entries, entry)
	return &entry, nil
}

func (m *memStore) CreateChargeRequest(_ context.Context, req *domain.ChargeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateRequest != nil {
		return m.failCreateRequest
	}
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memStore) GetChargeRequest(_ context.Context, id string) (*domain.ChargeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *memStore) ListPendingBankTransfers(_ context.Context, amount int64) ([]domain.ChargeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChargeRequest
	for _, req := range m.requests {
		if req.State == domain.StatePending && req.PaymentMethod == domain.MethodBankTransfer && req.Amount == amount {
			out = append(out, *req)
		}
	}
	// Oldest first, id as the final tie-break, matching the SQL ordering.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && older(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func older(a, b domain.ChargeRequest) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (m *memStore) ConfirmMatch(_ context.Context, p ConfirmParams) (*domain.ChargeRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[p.RequestID]
	if !ok {
		return nil, false, domain.ErrRequestNotFound
	}
	if req.Terminal() {
		cp := *req
		return &cp, true, nil
	}

	if p.TransactionID != "" {
		if tx, ok := m.txs[p.TransactionID]; ok && tx.MatchedRequestID != nil && *tx.MatchedRequestID != p.RequestID {
			return nil, false, domain.ErrTransactionClaimed
		}
	}

	if !(req.IsCredit && req.State == domain.StatePrecharged) {
		if _, err := m.appendLocked(req.AccountID, req.Amount, domain.ReasonCharge, req.ID); err != nil {
			return nil, false, err
		}
	}

	now := time.Now()
	req.State = domain.StateConfirmed
	req.ConfirmedAt = &now
	req.ConfirmedBy = p.ConfirmedBy
	if p.TransactionID != "" {
		txID := p.TransactionID
		req.MatchedTransactionID = &txID
		if tx, ok := m.txs[txID]; ok && tx.MatchedRequestID == nil {
			reqID := p.RequestID
			tx.MatchedRequestID = &reqID
		}
	}

	cp := *req
	return &cp, false, nil
}

func (m *memStore) InsertTransaction(_ context.Context, tx *domain.BankTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.txs[tx.TransactionID]; exists {
		return false, nil
	}
	cp := *tx
	cp.CollectedAt = time.Now()
	m.txs[tx.TransactionID] = &cp
	return true, nil
}

func (m *memStore) GetTransaction(_ context.Context, id string) (*domain.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *memStore) ListUnmatched(_ context.Context, from, to time.Time) ([]domain.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BankTransaction
	for _, tx := range m.txs {
		if tx.MatchedRequestID == nil && tx.Direction == "credit" &&
			!tx.ValueDate.Before(from) && !tx.ValueDate.After(to) {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (m *memStore) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// fakeFeed serves a fixed slice of transactions, or an error.
type fakeFeed struct {
	txs []domain.BankTransaction
	err error
}

func (f *fakeFeed) ListCreditTransactions(context.Context, string, time.Time, time.Time) ([]domain.BankTransaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.txs, nil
}

// allowAll authorizes every actor; denyAll authorizes none.
type allowAll struct{}

func (allowAll) IsAuthorized(string, string) bool { return true }

type denyAll struct{}

func (denyAll) IsAuthorized(string, string) bool { return false }
