package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/reconops/internal/domain"
	"github.com/punchamoorthee/reconops/internal/notify"
)

func TestCommitCreditsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	sink := notify.NewMemoryPublisher()
	accID, _ := st.CreateAccount(ctx)
	require.NoError(t, st.CreateChargeRequest(ctx, pendingRequest("req-1", accID, 50000, "Kim", time.Now())))
	_, err := st.InsertTransaction(ctx, &domain.BankTransaction{TransactionID: "tx-1", Direction: "credit", Amount: 50000, CounterpartyName: "KIM MINSU", ValueDate: time.Now()})
	require.NoError(t, err)

	w := NewWriter(st, sink)

	req, replayed, err := w.Commit(ctx, "req-1", "tx-1", domain.ConfirmedBySystem)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, domain.StateConfirmed, req.State)
	assert.Equal(t, domain.ConfirmedBySystem, req.ConfirmedBy)
	require.NotNil(t, req.MatchedTransactionID)
	assert.Equal(t, "tx-1", *req.MatchedTransactionID)

	acc, err := st.GetAccount(ctx, accID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), acc.Balance)

	entries, err := st.ListEntries(ctx, accID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ReasonCharge, entries[0].Reason)
	assert.Equal(t, int64(50000), entries[0].BalanceAfter)

	tx, err := st.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, tx.MatchedRequestID)
	assert.Equal(t, "req-1", *tx.MatchedRequestID)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventChargeConfirmed, events[0].Type)
}

func TestCommitReplayIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	sink := notify.NewMemoryPublisher()
	accID, _ := st.CreateAccount(ctx)
	require.NoError(t, st.CreateChargeRequest(ctx, pendingRequest("req-1", accID, 50000, "Kim", time.Now())))

	w := NewWriter(st, sink)

	_, replayed, err := w.Commit(ctx, "req-1", "tx-1", domain.ConfirmedBySystem)
	require.NoError(t, err)
	require.False(t, replayed)

	// Webhook delivered twice: second commit is a success-shaped no-op.
	req, replayed, err := w.Commit(ctx, "req-1", "tx-1", domain.ConfirmedBySystem)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, domain.StateConfirmed, req.State)

	assert.Equal(t, 1, st.entryCount(), "replay must not append a second entry")
	assert.Len(t, sink.Events(), 1, "replay must not re-publish")

	acc, _ := st.GetAccount(ctx, accID)
	assert.Equal(t, int64(50000), acc.Balance)
}

func TestCommitConcurrentCallsSingleWinner(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	accID, _ := st.CreateAccount(ctx)
	require.NoError(t, st.CreateChargeRequest(ctx, pendingRequest("req-1", accID, 70000, "Seo", time.Now())))

	w := NewWriter(st, notify.NewMemoryPublisher())

	const n = 16
	var wg sync.WaitGroup
	replays := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, replayed, err := w.Commit(ctx, "req-1", "tx-1", domain.ConfirmedBySystem)
			assert.NoError(t, err)
			replays <- replayed
		}()
	}
	wg.Wait()
	close(replays)

	winners := 0
	for replayed := range replays {
		if !replayed {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one invocation performs the transition")
	assert.Equal(t, 1, st.entryCount())

	acc, _ := st.GetAccount(ctx, accID)
	assert.Equal(t, int64(70000), acc.Balance)
}

func TestCommitPrechargedDepositDoesNotDoubleCredit(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	sink := notify.NewMemoryPublisher()
	accID, _ := st.CreateAccount(ctx)

	p := NewPrecharger(st, st, allowAll{}, sink)
	req, err := p.Precharge(ctx, PrechargeInput{
		AccountID:     accID,
		Amount:        100000,
		DepositorName: "Oh",
		Approver:      "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePrecharged, req.State)

	acc, _ := st.GetAccount(ctx, accID)
	require.Equal(t, int64(100000), acc.Balance, "credit applied at pre-charge time")

	// The deposit arrives later and clears the receivable without a second
	// credit entry.
	w := NewWriter(st, sink)
	confirmed, replayed, err := w.Commit(ctx, req.ID, "tx-dep", domain.ConfirmedBySystem)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, domain.StateConfirmed, confirmed.State)

	acc, _ = st.GetAccount(ctx, accID)
	assert.Equal(t, int64(100000), acc.Balance, "balance unchanged by the clearing deposit")

	entries, _ := st.ListEntries(ctx, accID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ReasonCredit, entries[0].Reason)
}

func TestCommitRejectsClaimedTransaction(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	accID, _ := st.CreateAccount(ctx)
	require.NoError(t, st.CreateChargeRequest(ctx, pendingRequest("req-1", accID, 30000, "Ko", time.Now().Add(-time.Hour))))
	require.NoError(t, st.CreateChargeRequest(ctx, pendingRequest("req-2", accID, 30000, "Ko", time.Now())))
	_, err := st.InsertTransaction(ctx, &domain.BankTransaction{TransactionID: "tx-1", Direction: "credit", Amount: 30000, CounterpartyName: "Ko", ValueDate: time.Now()})
	require.NoError(t, err)

	w := NewWriter(st, notify.NewMemoryPublisher())

	_, _, err = w.Commit(ctx, "req-1", "tx-1", domain.ConfirmedBySystem)
	require.NoError(t, err)

	_, _, err = w.Commit(ctx, "req-2", "tx-1", "admin:admin-1")
	assert.ErrorIs(t, err, domain.ErrTransactionClaimed)
	assert.Equal(t, 1, st.entryCount())
}

func TestLedgerConsistencyInvariant(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	sink := notify.NewMemoryPublisher()
	accID, _ := st.CreateAccount(ctx)

	w := NewWriter(st, sink)
	p := NewPrecharger(st, st, allowAll{}, sink)

	require.NoError(t, st.CreateChargeRequest(ctx, pendingRequest("req-1", accID, 50000, "Kim", time.Now())))
	_, _, err := w.Commit(ctx, "req-1", "", "admin:admin-1")
	require.NoError(t, err)
	_, err = p.Precharge(ctx, PrechargeInput{AccountID: accID, Amount: 20000, DepositorName: "Kim", Approver: "admin-1"})
	require.NoError(t, err)

	acc, _ := st.GetAccount(ctx, accID)
	entries, _ := st.ListEntries(ctx, accID)
	var sum int64
	for _, e := range entries {
		sum += e.Delta
	}
	assert.Equal(t, acc.Balance, sum, "stored balance must equal the entry sum")
}
