// Package telemetry provides OpenTelemetry distributed tracing for the
// clustering engine. It instruments each stage of the iteration
// controller with spans, supports W3C Trace Context propagation, and
// exports to OTLP or stdout.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Siddhant-K-code/cabinets"

// Config holds tracing configuration.
type Config struct {
	// Enabled turns tracing on/off.
	Enabled bool

	// Exporter selects the trace exporter: "otlp", "stdout", or "none".
	Exporter string

	// Endpoint is the OTLP collector address (e.g., "localhost:4317").
	Endpoint string

	// SampleRate controls the sampling ratio (0.0 to 1.0).
	// 1.0 = sample everything, 0.1 = sample 10%.
	SampleRate float64

	// ServiceName overrides the default service name.
	ServiceName string

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool
}

// DefaultConfig returns tracing defaults (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Exporter:    "otlp",
		Endpoint:    "localhost:4317",
		SampleRate:  1.0,
		ServiceName: "cabinets",
		Insecure:    true,
	}
}

// Provider wraps the OTEL TracerProvider and exposes engine-specific
// span helpers, one per iteration-controller stage.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init sets up the global TracerProvider based on the config.
// Returns a Provider that must be shut down with Shutdown().
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			tracer: trace.NewNoopTracerProvider().Tracer(tracerName),
		}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	case "none", "":
		return &Provider{
			tracer: trace.NewNoopTracerProvider().Tracer(tracerName),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %q (supported: otlp, stdout, none)", cfg.Exporter)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.2.0"),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(tracerName),
	}, nil
}

// Shutdown flushes pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the engine tracer for creating spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// --- Span helpers for iteration-controller stages ---

// StartMerge creates a span for the reduce-sum of shard deltas into
// the coordinator.
func (p *Provider) StartMerge(ctx context.Context, rank, iteration int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "cabinets.merge",
		trace.WithAttributes(
			attribute.Int("cabinets.rank", rank),
			attribute.Int("cabinets.iteration", iteration),
		),
	)
}

// StartFold creates a span for the coordinator folding deltas into
// the centroid store.
func (p *Provider) StartFold(ctx context.Context, iteration, cabinets int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "cabinets.fold",
		trace.WithAttributes(
			attribute.Int("cabinets.iteration", iteration),
			attribute.Int("cabinets.cabinet_count", cabinets),
		),
	)
}

// StartBroadcast creates a span for the centroid broadcast.
func (p *Provider) StartBroadcast(ctx context.Context, rank, iteration int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "cabinets.broadcast",
		trace.WithAttributes(
			attribute.Int("cabinets.rank", rank),
			attribute.Int("cabinets.iteration", iteration),
		),
	)
}

// StartReassign creates a span for one shard's distance-refresh and
// reassignment pass.
func (p *Provider) StartReassign(ctx context.Context, rank, iteration, owned int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "cabinets.reassign",
		trace.WithAttributes(
			attribute.Int("cabinets.rank", rank),
			attribute.Int("cabinets.iteration", iteration),
			attribute.Int("cabinets.owned_documents", owned),
		),
	)
}

// StartConverge creates a span for the all-reduce convergence probe.
func (p *Provider) StartConverge(ctx context.Context, rank, iteration int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "cabinets.converge",
		trace.WithAttributes(
			attribute.Int("cabinets.rank", rank),
			attribute.Int("cabinets.iteration", iteration),
		),
	)
}

// RecordRunResult adds final run attributes to a span.
func RecordRunResult(span trace.Span, documents, cabinets, iterations int, objective float64, latency time.Duration) {
	span.SetAttributes(
		attribute.Int("cabinets.result.documents", documents),
		attribute.Int("cabinets.result.cabinet_count", cabinets),
		attribute.Int("cabinets.result.iterations", iterations),
		attribute.Float64("cabinets.result.objective", objective),
		attribute.Int64("cabinets.result.latency_ms", latency.Milliseconds()),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
