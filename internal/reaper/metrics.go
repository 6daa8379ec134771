package reaper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sessionsReapedTotal counts abandoned sessions finalised by the sweeper.
var sessionsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "molbhav_sessions_reaped_total",
	Help: "Total number of abandoned sessions finalised as timed_out",
})
