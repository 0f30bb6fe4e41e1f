package trace

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const ServiceName = "llm-defi-agent"

// Span attributes shared by the agent's spans.
const (
	AttrPair     = attribute.Key("defi.pair")
	AttrRecordID = attribute.Key("defi.record_id")
	AttrProvider = attribute.Key("defi.provider")
	AttrTrack    = attribute.Key("defi.track")
	AttrMode     = attribute.Key("defi.mode")
)

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	enabled        bool
)

// Config selects where finished spans go. A nil Writer means stdout.
type Config struct {
	Enabled     bool
	PrettyPrint bool
	Writer      io.Writer
	Mode        string
}

// Init exports pretty-printed spans to stdout unless LOG_TRACING_ENABLED is "false".
func Init(mode string) error {
	return InitWithConfig(Config{
		Enabled:     getEnv("LOG_TRACING_ENABLED", "true") == "true",
		PrettyPrint: true,
		Mode:        mode,
	})
}

// InitWithConfig installs the global tracer provider. Every span carries
// the service name and, when set, the agent mode as resource attributes.
func InitWithConfig(cfg Config) error {
	enabled = cfg.Enabled
	if !enabled {
		return nil
	}

	var opts []stdouttrace.Option
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	if cfg.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		enabled = false
		return err
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(ServiceName)}
	if cfg.Mode != "" {
		attrs = append(attrs, AttrMode.String(cfg.Mode))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		enabled = false
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(ServiceName)
	return nil
}

// Shutdown flushes buffered spans.
func Shutdown(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

// StartSpan opens a child span, or returns the current one untouched when tracing is off.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

// StartCycleSpan opens the root span of one decision cycle.
func StartCycleSpan(ctx context.Context) (context.Context, trace.Span) {
	return StartSpan(ctx, "engine.RunDecisionCycle", trace.WithSpanKind(trace.SpanKindInternal))
}

// StartProviderSpan opens a client span for one provider completion.
func StartProviderSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	return StartSpan(ctx, "llm.Complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrProvider.String(provider)),
	)
}

// Annotate adds attributes to the span in ctx, for values known only
// after the span started (record id, pair).
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	if !enabled {
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// Fail marks the span in ctx as failed.
func Fail(ctx context.Context, err error) {
	if !enabled || err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func Enabled() bool {
	return enabled
}

func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
