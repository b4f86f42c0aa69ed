package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/punchamoorthee/reconops/internal/domain"
	"github.com/punchamoorthee/reconops/internal/feed"
)

// Collector pulls credit transactions from the bank feed, deduplicates them
// against the mirror and hands new rows to the matcher. Re-running the same
// window is always safe: the mirror insert is keyed on the provider's
// transaction id.
type Collector struct {
	feed    feed.Client
	mirror  TransactionMirror
	matcher *Matcher
	writer  *Writer

	accountRef   string
	lookbackDays int
}

func NewCollector(fc feed.Client, mirror TransactionMirror, matcher *Matcher, writer *Writer, accountRef string, lookbackDays int) *Collector {
	if lookbackDays < 1 {
		lookbackDays = 7
	}
	return &Collector{
		feed:         fc,
		mirror:       mirror,
		matcher:      matcher,
		writer:       writer,
		accountRef:   accountRef,
		lookbackDays: lookbackDays,
	}
}

// Collect runs one cycle over the trailing lookback window and returns how
// many transactions were newly ingested. A feed error aborts the cycle with
// no side effects beyond rows already durably inserted; the next scheduled
// run retries the same window.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -c.lookbackDays)

	txs, err := c.feed.ListCreditTransactions(ctx, c.accountRef, start, end)
	if err != nil {
		collectCycles.WithLabelValues("feed_error").Inc()
		return 0, fmt.Errorf("feed unavailable: %w", err)
	}

	ingested := 0
	for i := range txs {
		tx := txs[i]
		if tx.Direction != "credit" {
			continue
		}

		// Dedup precedes any match attempt: the same query executed twice,
		// or webhook and poll racing, must not process a row twice.
		inserted, err := c.mirror.InsertTransaction(ctx, &tx)
		if err != nil {
			collectCycles.WithLabelValues("store_error").Inc()
			return ingested, fmt.Errorf("mirror insert failed for %s: %w", tx.TransactionID, err)
		}
		if !inserted {
			transactionsDeduped.Inc()
			continue
		}
		transactionsCollected.Inc()
		ingested++

		c.tryMatch(ctx, tx)
	}

	collectCycles.WithLabelValues("ok").Inc()
	return ingested, nil
}

// Ingest runs the dedup/match/commit sequence for a single pushed
// transaction (webhook path). Returns whether the row was new to the mirror.
func (c *Collector) Ingest(ctx context.Context, tx domain.BankTransaction) (bool, error) {
	if tx.Direction != "credit" {
		return false, nil
	}
	inserted, err := c.mirror.InsertTransaction(ctx, &tx)
	if err != nil {
		return false, fmt.Errorf("mirror insert failed for %s: %w", tx.TransactionID, err)
	}
	if !inserted {
		transactionsDeduped.Inc()
		return false, nil
	}
	transactionsCollected.Inc()
	c.tryMatch(ctx, tx)
	return true, nil
}

// Rematch walks mirrored-but-unmatched credit transactions in the trailing
// lookback window and retries the match/commit sequence for each. This is
// the recovery path for deposits that arrived before their charge request
// was created, and for auto-match commits that failed transiently: the poll
// dedups those rows away before any match attempt, so only an explicit
// rematch can reconcile them. Safe to invoke any time; commits are
// idempotent and a deposit with no compatible request is left untouched.
func (c *Collector) Rematch(ctx context.Context) (int, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -c.lookbackDays)

	txs, err := c.mirror.ListUnmatched(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("unmatched listing failed: %w", err)
	}

	matched := 0
	for _, tx := range txs {
		if c.tryMatch(ctx, tx) {
			matched++
		}
	}
	if matched > 0 {
		rematchesCommitted.Add(float64(matched))
	}
	return matched, nil
}

// tryMatch proposes and commits a match for one mirrored row, reporting
// whether a commit happened. Zero candidates is not an error; the
// transaction stays unmatched and the daily sweep will surface it. Commit
// failures are logged; the admin rematch sweep retries them.
func (c *Collector) tryMatch(ctx context.Context, tx domain.BankTransaction) bool {
	candidate, err := c.matcher.FindCandidate(ctx, tx)
	if err != nil {
		log.Printf("match lookup failed for %s: %v", tx.TransactionID, err)
		return false
	}
	if candidate == nil {
		return false
	}

	if _, _, err := c.writer.Commit(ctx, candidate.ID, tx.TransactionID, domain.ConfirmedBySystem); err != nil {
		log.Printf("auto-match commit failed for %s -> %s: %v", tx.TransactionID, candidate.ID, err)
		return false
	}
	return true
}
