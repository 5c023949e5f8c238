package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dispatch_messages_total",
			Help: "Campaign messages handled by the dispatcher, by result",
		},
		[]string{"result"},
	)

	dispatchJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dispatch_jobs_total",
			Help: "Campaign dispatch jobs, by outcome",
		},
		[]string{"outcome"},
	)

	trackingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_events_total",
			Help: "Open and click beacons received, by type",
		},
		[]string{"type"},
	)
)
