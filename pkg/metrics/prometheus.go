package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fincrime"

type MetricsCollector struct {
	registry              *prometheus.Registry
	queryDuration         *prometheus.HistogramVec
	queryErrors           *prometheus.CounterVec
	cacheLookups          *prometheus.CounterVec
	transfersIngested     prometheus.Counter
	transfersRejected     prometheus.Counter
	riskScoreDistribution prometheus.Histogram
	alertsRaised          *prometheus.CounterVec
	blacklistSize         prometheus.Gauge
	logger                *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &MetricsCollector{
		registry: registry,
		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time taken by engine operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		queryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Engine operations that returned an error",
		}, []string{"operation"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Query cache lookups by operation and result",
		}, []string{"operation", "result"}),
		transfersIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_ingested_total",
			Help:      "Transfers written to the graph store",
		}),
		transfersRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_rejected_total",
			Help:      "Transfers that failed validation or storage",
		}),
		riskScoreDistribution: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of computed entity risk scores",
			Buckets:   []float64{0, 25, 50, 75, 100},
		}),
		alertsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Monitoring alerts by type and severity",
		}, []string{"type", "severity"}),
		blacklistSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blacklist_entities",
			Help:      "Number of blacklisted entities",
		}),
		logger: logger,
	}
}

func (m *MetricsCollector) ObserveQuery(operation string, duration time.Duration, err error) {
	m.queryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.queryErrors.WithLabelValues(operation).Inc()
	}
}

func (m *MetricsCollector) RecordCacheLookup(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(operation, result).Inc()
}

func (m *MetricsCollector) RecordTransfer(success bool) {
	if success {
		m.transfersIngested.Inc()
	} else {
		m.transfersRejected.Inc()
	}
}

func (m *MetricsCollector) ObserveRiskScore(score float64) {
	m.riskScoreDistribution.Observe(score)
}

func (m *MetricsCollector) RecordAlert(alertType, severity string) {
	m.alertsRaised.WithLabelValues(alertType, severity).Inc()
}

func (m *MetricsCollector) SetBlacklistSize(n int) {
	m.blacklistSize.Set(float64(n))
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}
