package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DetectionCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fc",
		Name:      "detection_cycles_total",
		Help:      "Total number of detection cycles by result",
	}, []string{"result"})

	DetectionCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fc",
		Name:      "detection_cycle_duration_seconds",
		Help:      "Duration of a detection cycle",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	StatusesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fc",
		Name:      "statuses_emitted_total",
		Help:      "Total number of status changes persisted",
	}, []string{"status_type"})

	Brightness = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fc",
		Name:      "brightness",
		Help:      "Brightness of the last captured frame (0..1)",
	})

	DetectionRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fc",
		Name:      "detection_running",
		Help:      "1 while the detection loop is running",
	})

	CommandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fc",
		Name:      "commands_executed_total",
		Help:      "Total number of command executions by type and result",
	}, []string{"type", "result"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fc",
		Name:      "command_duration_seconds",
		Help:      "Duration of command executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fc",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a subscriber buffer was full",
	}, []string{"subscriber"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fc",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fc",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
