package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recon_transactions_collected_total",
		Help: "Bank transactions newly ingested into the mirror",
	})

	transactionsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recon_transactions_deduped_total",
		Help: "Feed rows skipped because the transaction id was already mirrored",
	})

	matchesCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recon_matches_committed_total",
		Help: "Successful ledger commits, labeled by trigger source",
	}, []string{"source"})

	commitReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recon_commit_replays_total",
		Help: "Commit attempts that were idempotent no-ops",
	})

	collectCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recon_collect_cycles_total",
		Help: "Collection cycles, labeled by outcome",
	}, []string{"outcome"})

	rematchesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recon_rematches_committed_total",
		Help: "Deposits reconciled by the admin rematch sweep",
	})

	unmatchedSwept = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recon_unmatched_deposits",
		Help: "Unmatched deposits found by the most recent sweep",
	})

	compensationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recon_precharge_compensation_failures_total",
		Help: "Pre-charge compensations that could not be written; requires manual reconciliation",
	})

	notifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recon_notify_failures_total",
		Help: "Post-commit events that failed to publish",
	})
)
