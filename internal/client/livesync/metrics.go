package livesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushActiveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "toukan_client",
		Name:      "sync_push_active",
		Help:      "1 while the event stream is the refresh source, 0 while polling.",
	})

	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toukan_client",
			Name:      "sync_polls_total",
			Help:      "List polls by result.",
		},
		[]string{"result"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toukan_client",
			Name:      "sync_events_total",
			Help:      "Push events by result.",
		},
		[]string{"result"},
	)
)
