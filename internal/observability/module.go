// Package observability wires logging, tracing, and metrics.
package observability

import (
	"github.com/geopulselabs/geopulse/internal/config"
	"github.com/geopulselabs/geopulse/internal/observability/logger"
	"github.com/geopulselabs/geopulse/internal/observability/metrics"
	"github.com/geopulselabs/geopulse/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(newTracingConfig),
	fx.Provide(tracing.NewProvider),
	// fx constructors are lazy and nothing injects the provider; force
	// construction so the global tracer and propagator are installed.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
	fx.Provide(newEngineMetrics),
)

func newTracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Telemetry.TracingEnabled,
		ServiceName:      cfg.Telemetry.ServiceName,
		ServiceVersion:   cfg.Telemetry.ServiceVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Telemetry.ExporterEndpoint,
		ExporterProtocol: cfg.Telemetry.ExporterProtocol,
		SamplingRatio:    cfg.Telemetry.SamplingRatio,
	}
}

func newEngineMetrics(cfg config.Config) *metrics.EngineMetrics {
	return metrics.EngineWithConfig(metrics.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Environment,
	})
}
