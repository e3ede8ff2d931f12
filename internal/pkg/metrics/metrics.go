package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// UpdateAttemptsTotal counts finished transfer attempts by outcome.
	UpdateAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewing_update_attempts_total",
			Help: "Total number of firmware transfer attempts by outcome.",
		},
		[]string{"outcome"}, // outcome: ok/failed/timeout
	)

	// TransferBytesTotal counts firmware payload bytes received.
	TransferBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatewing_transfer_bytes_total",
			Help: "Total number of firmware payload bytes received.",
		},
	)

	// UpdateInProgress is 1 while an update command is being serviced.
	UpdateInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatewing_update_in_progress",
			Help: "Whether an update is currently being serviced (1=yes, 0=no).",
		},
	)

	// UpdateDuration observes wall-clock duration of successful updates.
	UpdateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatewing_update_duration_seconds",
			Help:    "Duration of successful firmware updates, command to commit.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~68m
		},
	)
)

// Registry holds the agent's metrics. A dedicated registry keeps the
// endpoint free of default process collectors from linked-in libraries.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(UpdateAttemptsTotal)
	Registry.MustRegister(TransferBytesTotal)
	Registry.MustRegister(UpdateInProgress)
	Registry.MustRegister(UpdateDuration)
	Registry.MustRegister(collectors.NewGoCollector())
}
