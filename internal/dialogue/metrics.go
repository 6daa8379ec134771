package dialogue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// llmCallsTotal tracks LLM chat calls by outcome.
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "molbhav_dialogue_llm_calls_total",
			Help: "Total LLM chat-completion calls by outcome",
		},
		[]string{"outcome"},
	)

	// llmLatencySeconds tracks LLM round-trip latency.
	llmLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "molbhav_dialogue_llm_latency_seconds",
		Help:    "LLM chat-completion round-trip latency",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16},
	})

	// regenerationsTotal counts replies rejected by the price guardrail.
	regenerationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_dialogue_regenerations_total",
		Help: "Total LLM replies rejected for contradicting the clamped price",
	})

	// fallbacksTotal counts turns served by the deterministic template.
	fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_dialogue_fallbacks_total",
		Help: "Total seller turns rendered by the deterministic template",
	})
)
