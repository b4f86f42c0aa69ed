package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/reconops/internal/domain"
	"github.com/punchamoorthee/reconops/internal/match"
	"github.com/punchamoorthee/reconops/internal/notify"
)

func TestSweepUnmatchedFindsUnreconciledDeposits(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	asOf := time.Now()

	inWindow := creditTx("tx-in", 40000, "Park")
	inWindow.ValueDate = asOf.Add(-6 * time.Hour)
	_, err := st.InsertTransaction(ctx, &inWindow)
	require.NoError(t, err)

	outOfWindow := creditTx("tx-old", 35000, "Old")
	outOfWindow.ValueDate = asOf.Add(-72 * time.Hour)
	_, err = st.InsertTransaction(ctx, &outOfWindow)
	require.NoError(t, err)

	r := NewReporter(st, 24*time.Hour)
	items, err := r.SweepUnmatched(ctx, asOf)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "tx-in", items[0].Transaction.TransactionID)
	assert.InDelta(t, 6, items[0].AgeHours, 0.1)
}

func TestSweepExcludesMatchedDeposits(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	accID, _ := st.CreateAccount(ctx)
	asOf := time.Now()

	require.NoError(t, st.CreateChargeRequest(ctx, pendingRequest("req-1", accID, 50000, "Kim", asOf.Add(-time.Hour))))

	matched := creditTx("tx-matched", 50000, "KIM MINSU")
	matched.ValueDate = asOf.Add(-2 * time.Hour)
	unmatched := creditTx("tx-unmatched", 40000, "Stranger")
	unmatched.ValueDate = asOf.Add(-2 * time.Hour)

	f := &fakeFeed{txs: []domain.BankTransaction{matched, unmatched}}
	c := NewCollector(f, st, NewMatcher(st, match.SubstringStrategy{}), NewWriter(st, notify.NewMemoryPublisher()), "acct-ref", 7)
	_, err := c.Collect(ctx)
	require.NoError(t, err)

	r := NewReporter(st, 24*time.Hour)
	items, err := r.SweepUnmatched(ctx, asOf)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "tx-unmatched", items[0].Transaction.TransactionID)
}

func TestSweepNeverMutates(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	asOf := time.Now()

	tx := creditTx("tx-1", 40000, "Park")
	tx.ValueDate = asOf.Add(-time.Hour)
	_, err := st.InsertTransaction(ctx, &tx)
	require.NoError(t, err)

	r := NewReporter(st, 24*time.Hour)
	for i := 0; i < 3; i++ {
		items, err := r.SweepUnmatched(ctx, asOf)
		require.NoError(t, err)
		require.Len(t, items, 1, "repeated sweeps keep reporting until a human resolves")
	}

	got, err := st.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Nil(t, got.MatchedRequestID)
	assert.Equal(t, 0, st.entryCount())
}
