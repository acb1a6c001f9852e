// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestRunsTotal *prometheus.CounterVec
	BacktestDuration  prometheus.Histogram
	TradesSimulated   prometheus.Counter
	TradesSkipped     *prometheus.CounterVec
	SignalsGenerated  *prometheus.CounterVec

	// Price provider metrics
	PriceFetchLatency  *prometheus.HistogramVec
	PriceFetchFailures *prometheus.CounterVec
	FXFallbacks        prometheus.Counter

	// Composite scorer metrics
	CompositeRunsTotal     *prometheus.CounterVec
	CompositeSourceFailure *prometheus.CounterVec
	CompositeScore         *prometheus.GaugeVec

	// HTTP API metrics
	HTTPRequests   *prometheus.CounterVec
	WSSubscribers  prometheus.Gauge
	LastSuccessRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "whaleflow"
	}

	return &Metrics{
		BacktestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120},
		}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of non-skipped simulated trades",
		}),
		TradesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_skipped_total",
			Help:      "Total number of skipped trades by reason",
		}, []string{"reason"}),
		SignalsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "signals_generated_total",
			Help:      "Total number of hourly signals by direction",
		}, []string{"direction"}),

		PriceFetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "fetch_latency_seconds",
			Help:      "Price provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		PriceFetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed price fetches by provider",
		}, []string{"provider"}),
		FXFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "fx_fallbacks_total",
			Help:      "Total number of times the fallback FX rate was used",
		}),

		CompositeRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "composite",
			Name:      "runs_total",
			Help:      "Total number of composite scoring runs by status",
		}, []string{"status"}),
		CompositeSourceFailure: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "composite",
			Name:      "source_failures_total",
			Help:      "Total number of unavailable composite sources",
		}, []string{"source"}),
		CompositeScore: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "composite",
			Name:      "score",
			Help:      "Latest composite score by token",
		}, []string{"token"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		WSSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_subscribers",
			Help:      "Current number of websocket subscribers",
		}),
		LastSuccessRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backtest_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBacktestRun records a finished backtest run.
func RecordBacktestRun(status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.BacktestRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BacktestDuration.Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessRun.Set(float64(finishedUnix))
	}
}

// RecordTrade records one simulated trade outcome.
func RecordTrade(skipped bool, reason string) {
	if skipped {
		DefaultMetrics.TradesSkipped.WithLabelValues(reason).Inc()
		return
	}
	DefaultMetrics.TradesSimulated.Inc()
}

// RecordSignal records one hourly signal.
func RecordSignal(direction string) {
	if direction == "" {
		direction = "none"
	}
	DefaultMetrics.SignalsGenerated.WithLabelValues(direction).Inc()
}

// RecordPriceFetch records a price provider call.
func RecordPriceFetch(provider string, seconds float64, err error) {
	DefaultMetrics.PriceFetchLatency.WithLabelValues(provider).Observe(seconds)
	if err != nil {
		DefaultMetrics.PriceFetchFailures.WithLabelValues(provider).Inc()
	}
}

// RecordFXFallback records use of the fallback FX rate.
func RecordFXFallback() {
	DefaultMetrics.FXFallbacks.Inc()
}

// RecordCompositeRun records a composite scoring run.
func RecordCompositeRun(status string) {
	DefaultMetrics.CompositeRunsTotal.WithLabelValues(status).Inc()
}

// RecordCompositeSourceFailure records an unavailable composite source.
func RecordCompositeSourceFailure(source string) {
	DefaultMetrics.CompositeSourceFailure.WithLabelValues(source).Inc()
}

// SetCompositeScore publishes the latest composite score for a token.
func SetCompositeScore(token string, score float64) {
	DefaultMetrics.CompositeScore.WithLabelValues(token).Set(score)
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(route, code string) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
}

// SetWSSubscribers sets the current websocket subscriber count.
func SetWSSubscribers(n int) {
	DefaultMetrics.WSSubscribers.Set(float64(n))
}
