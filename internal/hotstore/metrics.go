package hotstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// opsTotal tracks hot-tier operations by outcome.
	opsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "molbhav_hotstore_ops_total",
			Help: "Total hot-store operations by type and outcome",
		},
		[]string{"op", "outcome"},
	)

	// lockContentionTotal counts lock acquisitions lost to another holder.
	lockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_hotstore_lock_contention_total",
		Help: "Total session lock acquisitions refused because the lock was held",
	})
)
