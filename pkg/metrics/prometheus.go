package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	fusionRounds   *prometheus.HistogramVec
	factorMissing  *prometheus.CounterVec
	overrides      *prometheus.CounterVec
	flipSuppressed *prometheus.CounterVec
	lastScore      *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfusion_messages_sent_total",
				Help: "Total number of messages sent to backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfusion_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sigfusion_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigfusion_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		fusionRounds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigfusion_fusion_round_duration_seconds",
				Help:    "Duration of complete fusion rounds in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		factorMissing: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfusion_factor_missing_total",
				Help: "Rounds where a factor had no live data",
			},
			[]string{"factor"},
		),
		overrides: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfusion_overrides_total",
				Help: "Override rules fired",
			},
			[]string{"kind"},
		),
		flipSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfusion_flips_suppressed_total",
				Help: "Direction flips held back by the stability filter",
			},
			[]string{"symbol"},
		),
		lastScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sigfusion_last_score",
				Help: "Last fused working score for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordFusionRound records the duration of one fusion round.
func (r *Recorder) RecordFusionRound(symbol string, seconds float64) {
	r.fusionRounds.WithLabelValues(symbol).Observe(seconds)
}

// RecordFactorMissing records a factor scored neutral for lack of data.
func (r *Recorder) RecordFactorMissing(factor string) {
	r.factorMissing.WithLabelValues(factor).Inc()
}

// RecordOverride records an override rule firing.
func (r *Recorder) RecordOverride(kind string) {
	r.overrides.WithLabelValues(kind).Inc()
}

// RecordFlipSuppressed records a direction flip held by hysteresis.
func (r *Recorder) RecordFlipSuppressed(symbol string) {
	r.flipSuppressed.WithLabelValues(symbol).Inc()
}

// RecordLastScore records the latest working score for a symbol.
func (r *Recorder) RecordLastScore(symbol string, score float64) {
	r.lastScore.WithLabelValues(symbol).Set(score)
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
