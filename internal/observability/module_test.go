package observability

import (
	"testing"

	"github.com/geopulselabs/geopulse/internal/config"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// The tracer provider has no downstream consumer, so the module must
// force its construction; otherwise the global provider stays a noop.
func TestModuleInstallsTracerProvider(t *testing.T) {
	cfg := config.Config{
		Environment: "test",
		Telemetry: config.TelemetryConfig{
			TracingEnabled:   true,
			ServiceName:      "geopulse-test",
			ServiceVersion:   "test",
			ExporterProtocol: "grpc",
			SamplingRatio:    1,
		},
	}

	app := fxtest.New(t,
		fx.Supply(cfg),
		Module,
	)
	app.RequireStart()
	defer app.RequireStop()

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected sdk tracer provider installed globally, got %T", otel.GetTracerProvider())
	}
}
