package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	FusionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sigfusion",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of fusion endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	FusionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigfusion",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by fusion endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(FusionLatency, FusionErrors)
	})
}
