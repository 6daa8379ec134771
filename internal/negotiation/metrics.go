package negotiation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sessionsStartedTotal counts opened negotiation sessions.
	sessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_sessions_started_total",
		Help: "Total number of negotiation sessions started",
	})

	// sessionsClosedTotal counts sessions by terminal state.
	sessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molbhav_sessions_closed_total",
		Help: "Total number of sessions reaching a terminal state",
	}, []string{"state"})

	// offersTotal counts processed buyer offers by resulting state or error kind.
	offersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molbhav_offers_total",
		Help: "Total number of buyer offers processed, labelled by outcome",
	}, []string{"outcome"})

	// offerDuration tracks end-to-end offer handling latency.
	offerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "molbhav_offer_duration_seconds",
		Help:    "Time taken to process one buyer offer",
		Buckets: prometheus.DefBuckets,
	})

	// couponsAppliedTotal counts invisible coupon applications.
	couponsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_coupons_applied_total",
		Help: "Total number of coupons folded into seller counters",
	})

	// validatorOverridesTotal counts guardrail price clamps surfaced to buyers.
	validatorOverridesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_validator_overrides_total",
		Help: "Total number of counter prices clamped by the validator",
	})

	// degradedTotal counts turns rolled back after persistence exhaustion.
	degradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_degraded_turns_total",
		Help: "Total number of turns rolled back because persistence failed",
	})

	// rateLimitedTotal counts starts rejected by the per-IP limiter.
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_start_rate_limited_total",
		Help: "Total number of session starts rejected by the rate limiter",
	})
)
