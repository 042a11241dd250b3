package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "toll_"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultInvalid = "invalid"
)

var (
	registerOnce sync.Once

	calculationTotal   *prometheus.CounterVec
	calculationLatency *prometheus.HistogramVec
	passagesTotal      prometheus.Counter

	rulesRefreshTotal   *prometheus.CounterVec
	rulesRefreshLatency *prometheus.HistogramVec
	rulesStaleTotal     prometheus.Counter

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// SnapshotInfo exposes the published rule set to gauges.
type SnapshotInfo interface {
	ValidUntil() time.Time
	LoadedAt() time.Time
}

// Init registers the toll metrics. snapshot may be nil.
func Init(snapshot SnapshotInfo) {
	registerOnce.Do(func() {
		calculationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calculations_total",
				Help: "Total daily report calculations by result",
			},
			[]string{"result"},
		)
		calculationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calculation_latency_seconds",
				Help:    "Daily report calculation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		passagesTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "passages_total",
				Help: "Total passages evaluated",
			},
		)

		rulesRefreshTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rules_refresh_total",
				Help: "Total rule set refreshes by result",
			},
			[]string{"result"},
		)
		rulesRefreshLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "rules_refresh_latency_seconds",
				Help:    "Rule set fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		rulesStaleTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rules_stale_served_total",
				Help: "Calculations served from a previous snapshot after a failed refresh",
			},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			calculationTotal,
			calculationLatency,
			passagesTotal,
			rulesRefreshTotal,
			rulesRefreshLatency,
			rulesStaleTotal,
			reportExportTotal,
			reportExportLatency,
		)

		if snapshot != nil {
			registerSnapshotMetrics(snapshot)
		}
	})
}

func registerSnapshotMetrics(snapshot SnapshotInfo) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "rules_valid_until_timestamp_seconds",
			Help: "Expiry of the published rule set as unix time",
		},
		func() float64 {
			return unixSeconds(snapshot.ValidUntil())
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "rules_loaded_timestamp_seconds",
			Help: "Time the published rule set was stored as unix time",
		},
		func() float64 {
			return unixSeconds(snapshot.LoadedAt())
		},
	))
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Unix())
}

// ObserveCalculation records calculation latency and result.
func ObserveCalculation(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if calculationTotal != nil {
		calculationTotal.WithLabelValues(result).Inc()
	}
	if calculationLatency != nil {
		calculationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddPassages increments the evaluated passages counter.
func AddPassages(count int) {
	if count <= 0 {
		return
	}
	if passagesTotal != nil {
		passagesTotal.Add(float64(count))
	}
}

// ObserveRulesRefresh records a rule fetch and its result.
func ObserveRulesRefresh(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if rulesRefreshTotal != nil {
		rulesRefreshTotal.WithLabelValues(result).Inc()
	}
	if rulesRefreshLatency != nil {
		rulesRefreshLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncRulesStale counts a fallback to the previous snapshot.
func IncRulesStale() {
	if rulesStaleTotal != nil {
		rulesStaleTotal.Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}
