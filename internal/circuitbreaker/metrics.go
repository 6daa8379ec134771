package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// breakerState tracks the breaker position (0=closed, 1=open, 2=half-open).
	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molbhav_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	})

	// stateChangesTotal counts breaker transitions.
	stateChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_breaker_state_changes_total",
		Help: "Total number of circuit breaker state transitions",
	})

	// rejectionsTotal counts calls rejected while the breaker was open.
	rejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_breaker_rejections_total",
		Help: "Total number of calls rejected by the open breaker",
	})
)
