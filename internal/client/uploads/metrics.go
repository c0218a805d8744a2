package uploads

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "toukan_client",
		Name:      "upload_attempts_total",
		Help:      "Delivery attempts started.",
	})

	outcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toukan_client",
			Name:      "upload_outcomes_total",
			Help:      "Delivery attempts by outcome.",
		},
		[]string{"result"},
	)

	inFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "toukan_client",
		Name:      "uploads_in_flight",
		Help:      "Records currently being uploaded.",
	})

	retriesScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "toukan_client",
		Name:      "upload_retries_scheduled_total",
		Help:      "Automatic retry timers armed.",
	})
)

const (
	resultUploaded  = "uploaded"
	resultMissing   = "file_missing"
	resultTransport = "transport_error"
	resultRejected  = "server_rejected"
	resultExhausted = "exhausted"
	resultDangling  = "dangling"
)
