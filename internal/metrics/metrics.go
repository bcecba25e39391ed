package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Relay pipeline
	// ============================================
	RelayRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_requests_total",
		Help: "Total number of withdrawal requests received",
	})

	RelayAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_accepted_total",
		Help: "Total number of withdrawal requests accepted and submitted",
	})

	RelayRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_rejected_total",
			Help: "Total number of rejected withdrawal requests",
		},
		[]string{"category"},
	)

	RelayFeesEarnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_fees_earned_total",
		Help: "Cumulative relayer fees in base units",
	})

	RelaySubmitRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_submit_retries_total",
		Help: "Total number of ledger submission retry attempts",
	})

	RelayPipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relayer_pipeline_duration_seconds",
			Help:    "Withdrawal pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// ============================================
	// Proof verification
	// ============================================
	ProofVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_proof_verifications_total",
			Help: "Total number of local proof verifications",
		},
		[]string{"result"},
	)

	// ============================================
	// Nullifier cache
	// ============================================
	NullifierCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_nullifier_cache_hits_total",
		Help: "Double-spend checks answered by the local cache",
	})

	NullifierCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_nullifier_cache_misses_total",
		Help: "Double-spend checks that fell through to the ledger",
	})

	// ============================================
	// Deposit sync
	// ============================================
	DepositEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_deposit_events_total",
			Help: "Deposit events received from the event feed",
		},
		[]string{"result"},
	)

	MerkleLeafCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_merkle_leaf_count",
		Help: "Number of leaves in the mirrored commitment tree",
	})
)
