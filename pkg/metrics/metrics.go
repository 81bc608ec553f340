package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, path template and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_http_requests_total",
		Help: "Total number of HTTP requests processed",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Transfer lifecycle metrics.
var (
	TransfersStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_transfers_started_total",
		Help: "Transfers accepted for orchestration",
	})

	TransfersByOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_transfers_completed_total",
		Help: "Transfer orchestration outcomes",
	}, []string{"outcome"})

	AttestationPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_attestation_polls_total",
		Help: "Attestation service poll attempts by result",
	}, []string{"result"})
)

// Event bus metrics.
var (
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_events_published_total",
		Help: "Events published on the in-process bus",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_events_dropped_total",
		Help: "Events dropped because a subscriber queue was full",
	})

	BusSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_bus_subscribers",
		Help: "Currently attached bus subscribers",
	})
)

// DatabaseConnectionsGauge mirrors sql.DBStats, updated by a ticker in main.
var DatabaseConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "bridge_database_connections",
	Help: "Database connection pool state",
}, []string{"state"})
