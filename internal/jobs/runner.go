// Package jobs drives the periodic background work: the collection cycle
// every few minutes and the unmatched-deposit sweep once daily.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/punchamoorthee/reconops/internal/service"
)

const collectLockKey = "reconops:collect:lock"

// Runner owns the tickers. Collection cycles are single-flight: a cycle
// still running when the next tick fires (or running on another replica) is
// skipped via a redis lock. Overlap would also be correct, since every write
// in the cycle is idempotent, but skipping keeps feed traffic bounded.
type Runner struct {
	collector *service.Collector
	reporter  *service.Reporter
	locker    *redis.Client

	collectInterval time.Duration
	lockTTL         time.Duration
	sweepHour       int
}

func NewRunner(collector *service.Collector, reporter *service.Reporter, locker *redis.Client, collectInterval time.Duration, sweepHour int) *Runner {
	return &Runner{
		collector:       collector,
		reporter:        reporter,
		locker:          locker,
		collectInterval: collectInterval,
		lockTTL:         collectInterval * 2,
		sweepHour:       sweepHour,
	}
}

// Start launches both loops and returns. They stop when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	go r.collectLoop(ctx)
	go r.sweepLoop(ctx)
}

func (r *Runner) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(r.collectInterval)
	defer ticker.Stop()

	// One immediate cycle at startup so a restart does not wait a full
	// interval to catch up.
	r.runCollect(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runCollect(ctx)
		}
	}
}

func (r *Runner) runCollect(ctx context.Context) {
	release, ok := r.acquireLock(ctx)
	if !ok {
		log.Println("collection cycle already in flight, skipping tick")
		return
	}
	defer release()

	n, err := r.collector.Collect(ctx)
	if err != nil {
		// Transient by taxonomy: the next tick retries the same window.
		log.Printf("collection cycle failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("collection cycle ingested %d new transactions", n)
	}
}

// acquireLock takes the single-flight lock. Without redis configured the
// runner degrades to always-run, which is safe on a single replica.
func (r *Runner) acquireLock(ctx context.Context) (func(), bool) {
	if r.locker == nil {
		return func() {}, true
	}
	ok, err := r.locker.SetNX(ctx, collectLockKey, "1", r.lockTTL).Result()
	if err != nil {
		log.Printf("collect lock unavailable, proceeding without: %v", err)
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := r.locker.Del(context.Background(), collectLockKey).Err(); err != nil {
			log.Printf("collect lock release failed: %v", err)
		}
	}, true
}

// sweepLoop fires the reporter once per day at the configured local hour,
// deliberately trailing the collector's schedule so deposits whose charge
// request simply has not been created yet are not flagged.
func (r *Runner) sweepLoop(ctx context.Context) {
	for {
		next := nextRunAt(time.Now(), r.sweepHour)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		items, err := r.reporter.SweepUnmatched(ctx, time.Now())
		if err != nil {
			log.Printf("unmatched sweep failed: %v", err)
			continue
		}
		if len(items) > 0 {
			log.Printf("unmatched sweep: %d deposits awaiting review", len(items))
			for _, item := range items {
				log.Printf("  unmatched %s: %d from %q (%.0fh old)",
					item.Transaction.TransactionID, item.Transaction.Amount,
					item.Transaction.CounterpartyName, item.AgeHours)
			}
		}
	}
}

func nextRunAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
