package botdetect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// scoreObserved tracks the distribution of composite bot scores.
	scoreObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "molbhav_botdetect_score",
		Help:    "Composite bot score computed per scored offer window",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	// flagsTotal tracks detector verdicts that changed behaviour.
	flagsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "molbhav_botdetect_flags_total",
			Help: "Total detector verdicts by severity",
		},
		[]string{"level"},
	)
)
