package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	otelconf "go.opentelemetry.io/contrib/otelconf/v0.3.0"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used by the report pipeline.
const InstrumentationName = "github.com/ciricc/go-al-speedup"

// SDK owns the providers installed by InitFromConfig.
type SDK struct {
	sdk otelconf.SDK
}

// InitFromConfig installs global tracer, meter and logger providers described by
// an otelconf YAML file. A nil *SDK with a nil error means tracing stays off:
// OTEL_SDK_DISABLED=true, an empty path, a missing file or "disabled: true".
func InitFromConfig(ctx context.Context, configPath string, log *slog.Logger) (*SDK, error) {
	if os.Getenv("OTEL_SDK_DISABLED") == "true" || configPath == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.DebugContext(ctx, "telemetry config not found, tracing disabled", "path", configPath)
			return nil, nil
		}
		return nil, fmt.Errorf("read telemetry config: %w", err)
	}

	conf, err := otelconf.ParseYAML(raw)
	if err != nil {
		return nil, fmt.Errorf("parse telemetry config %s: %w", configPath, err)
	}
	if conf.Disabled != nil && *conf.Disabled {
		return nil, nil
	}

	sdk, err := otelconf.NewSDK(
		otelconf.WithContext(ctx),
		otelconf.WithOpenTelemetryConfiguration(*conf),
	)
	if err != nil {
		return nil, fmt.Errorf("start telemetry: %w", err)
	}

	otel.SetTracerProvider(sdk.TracerProvider())
	otel.SetMeterProvider(sdk.MeterProvider())
	global.SetLoggerProvider(sdk.LoggerProvider())

	log.InfoContext(ctx, "tracing enabled", "config", configPath)

	return &SDK{sdk: sdk}, nil
}

// Tracer returns the pipeline tracer from the global provider. It is a no-op
// tracer until InitFromConfig installed a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Shutdown flushes pending spans. Safe on a nil receiver.
func (s *SDK) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.sdk.Shutdown(ctx)
}
