package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "bambusy_"

	resultSuccess = "success"
)

var (
	registerOnce sync.Once

	telemetryMessages *prometheus.CounterVec
	telemetryDropped  *prometheus.CounterVec
	reduceLatency     prometheus.Histogram

	lifecycleEvents *prometheus.CounterVec
	dispatchDropped prometheus.Counter

	archiveDownloads *prometheus.CounterVec
	archivePipeline  *prometheus.HistogramVec

	notifyFailures *prometheus.CounterVec

	sessionsConnected prometheus.Gauge
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger zerolog.Logger) {
	registerOnce.Do(func() {
		telemetryMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_messages_total",
				Help: "Total inbound telemetry messages by device",
			},
			[]string{"device"},
		)
		telemetryDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_dropped_total",
				Help: "Total inbound messages dropped by reason",
			},
			[]string{"reason"},
		)
		reduceLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reduce_latency_seconds",
				Help:    "State reduction latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		lifecycleEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "lifecycle_events_total",
				Help: "Total print lifecycle events by kind",
			},
			[]string{"kind"},
		)
		dispatchDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "dispatch_dropped_total",
				Help: "Total events dropped because the dispatch queue was full",
			},
		)

		archiveDownloads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "archive_downloads_total",
				Help: "Total archive container download attempts by result",
			},
			[]string{"result"},
		)
		archivePipeline = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "archive_pipeline_latency_seconds",
				Help:    "Archive pipeline handling latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "result"},
		)

		notifyFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notify_failures_total",
				Help: "Total notification delivery failures by target",
			},
			[]string{"target"},
		)

		sessionsConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sessions_connected",
				Help: "Printer sessions currently connected",
			},
		)

		prometheus.MustRegister(
			telemetryMessages,
			telemetryDropped,
			reduceLatency,
			lifecycleEvents,
			dispatchDropped,
			archiveDownloads,
			archivePipeline,
			notifyFailures,
			sessionsConnected,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncTelemetryMessage counts one reduced inbound message.
func IncTelemetryMessage(device string) {
	if device == "" {
		device = "unknown"
	}
	if telemetryMessages != nil {
		telemetryMessages.WithLabelValues(device).Inc()
	}
}

// IncTelemetryDropped counts one dropped inbound message.
func IncTelemetryDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if telemetryDropped != nil {
		telemetryDropped.WithLabelValues(reason).Inc()
	}
}

// ObserveReduce records state reduction duration.
func ObserveReduce(duration time.Duration) {
	if reduceLatency != nil {
		reduceLatency.Observe(duration.Seconds())
	}
}

// IncLifecycleEvent counts one lifecycle edge by kind.
func IncLifecycleEvent(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if lifecycleEvents != nil {
		lifecycleEvents.WithLabelValues(kind).Inc()
	}
}

// IncDispatchDropped counts one event dropped at the dispatch queue.
func IncDispatchDropped() {
	if dispatchDropped != nil {
		dispatchDropped.Inc()
	}
}

// IncArchiveDownload counts one download attempt by result.
func IncArchiveDownload(result string) {
	if result == "" {
		result = resultSuccess
	}
	if archiveDownloads != nil {
		archiveDownloads.WithLabelValues(result).Inc()
	}
}

// ObservePipeline records archive pipeline stage latency and result.
func ObservePipeline(stage, result string, duration time.Duration) {
	if stage == "" {
		stage = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if archivePipeline != nil {
		archivePipeline.WithLabelValues(stage, result).Observe(duration.Seconds())
	}
}

// IncNotifyFailure counts one notification delivery failure.
func IncNotifyFailure(target string) {
	if target == "" {
		target = "unknown"
	}
	if notifyFailures != nil {
		notifyFailures.WithLabelValues(target).Inc()
	}
}

// SetSessionsConnected sets the connected session gauge.
func SetSessionsConnected(count int) {
	if count < 0 {
		count = 0
	}
	if sessionsConnected != nil {
		sessionsConnected.Set(float64(count))
	}
}

func registerDBMetrics(db *sql.DB, logger zerolog.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "archives_printing",
			Help: "Archive records still in printing status",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM print_archives WHERE status = 'printing'")
		},
	))
}

func queryCount(db *sql.DB, logger zerolog.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		logger.Warn().Err(err).Msg("metrics query failed")
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
