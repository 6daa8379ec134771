package eventfeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsPublishedTotal counts events handed to the hub.
	eventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_feed_events_published_total",
		Help: "Total number of offer events published to the feed hub",
	})

	// eventsDeliveredTotal counts events written to subscriber sockets.
	eventsDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_feed_events_delivered_total",
		Help: "Total number of offer events delivered to subscribers",
	})

	// subscribersGauge tracks connected feed clients.
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molbhav_feed_subscribers",
		Help: "Number of connected feed subscribers",
	})

	// subscribersDroppedTotal counts clients dropped for slow draining.
	subscribersDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molbhav_feed_subscribers_dropped_total",
		Help: "Total number of subscribers dropped for falling behind",
	})
)
