// Package metrics exposes prometheus instruments for the change-detection
// engine.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config labels every instrument with the service identity.
type Config struct {
	ServiceName string
	Environment string
}

type EngineMetrics struct {
	providerCalls     *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
	batchesProcessed  *prometheus.CounterVec
	batchDuration     prometheus.Histogram
	propertiesHandled *prometheus.CounterVec
	quotaDenials      prometheus.Counter
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

func ResetEngineMetricsForTest() {
	engineMetricsOnce = sync.Once{}
	engineMetrics = nil
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "geopulse"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	providerCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "geopulse_provider_calls_total",
			Help:        "Total imagery provider calls by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failure
	)

	providerLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "geopulse_provider_latency_seconds",
			Help:        "Imagery provider call latency.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	batchesProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "geopulse_batches_total",
			Help:        "Batch runs by terminal state.",
			ConstLabels: constLabels,
		},
		[]string{"state"}, // completed | rejected | failed
	)

	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "geopulse_batch_duration_seconds",
			Help:        "End-to-end batch run duration.",
			Buckets:     []float64{1, 5, 15, 60, 300, 900, 1800},
			ConstLabels: constLabels,
		},
	)

	propertiesHandled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "geopulse_properties_total",
			Help:        "Properties handled per batch by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"}, // success | excluded
	)

	quotaDenials := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "geopulse_quota_denials_total",
			Help:        "Batches rejected by the quota ledger before any fetch.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		providerCalls,
		providerLatency,
		batchesProcessed,
		batchDuration,
		propertiesHandled,
		quotaDenials,
	)

	return &EngineMetrics{
		providerCalls:     providerCalls,
		providerLatency:   providerLatency,
		batchesProcessed:  batchesProcessed,
		batchDuration:     batchDuration,
		propertiesHandled: propertiesHandled,
		quotaDenials:      quotaDenials,
	}
}

func (m *EngineMetrics) ObserveProviderCall(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(result).Inc()
	m.providerLatency.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *EngineMetrics) IncBatch(state string) {
	if m == nil {
		return
	}
	m.batchesProcessed.WithLabelValues(state).Inc()
}

func (m *EngineMetrics) ObserveBatchDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(duration.Seconds())
}

func (m *EngineMetrics) AddProperties(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.propertiesHandled.WithLabelValues(outcome).Add(float64(count))
}

func (m *EngineMetrics) IncQuotaDenial() {
	if m == nil {
		return
	}
	m.quotaDenials.Inc()
}
