package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "assistant-workers"

// Observability bundles the OpenTelemetry meter and tracer used by the pipeline.
// A zero value is safe to use and records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	tracer        trace.Tracer
	stageDuration otelmetric.Float64Histogram
	messages      otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("failed to create prometheus exporter: %v", err)
		return &Observability{tracer: otel.Tracer(instrumentationName)}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	stageDuration, _ := meter.Float64Histogram(
		"pipeline.stage.duration",
		otelmetric.WithDescription("Duration of a message pipeline stage"),
		otelmetric.WithUnit("ms"),
	)
	messages, _ := meter.Int64Counter(
		"pipeline.messages",
		otelmetric.WithDescription("Messages processed by outcome method"),
	)

	return &Observability{
		meterProvider: provider,
		tracer:        otel.Tracer(instrumentationName),
		stageDuration: stageDuration,
		messages:      messages,
	}
}

// StartStage opens a span for a pipeline stage. The returned func ends it and records its duration.
func (o *Observability) StartStage(ctx context.Context, stage string) (context.Context, func()) {
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	ctx, span := tracer.Start(ctx, stage, trace.WithAttributes(attribute.String("pipeline.stage", stage)))
	start := time.Now()

	return ctx, func() {
		if o.stageDuration != nil {
			o.stageDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
				otelmetric.WithAttributes(attribute.String("stage", stage)))
		}
		span.End()
	}
}

func (o *Observability) RecordMessage(ctx context.Context, method string, confident bool) {
	if o.messages == nil {
		return
	}
	o.messages.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("confident", confident),
	))
}

func (o *Observability) Shutdown() {
	if o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
