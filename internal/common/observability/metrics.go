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
)

// Observability owns the OpenTelemetry meter provider exported through
// Prometheus, and the tracer used around external calls.
type Observability struct {
	meterProvider    *metric.MeterProvider
	tracing          *Tracing
	meter            otelmetric.Meter
	dispatchCounter  otelmetric.Int64Counter
	dispatchDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	o := &Observability{tracing: NewTracing(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("failed to create prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o.meterProvider = provider
	o.meter = provider.Meter(serviceName)
	o.dispatchCounter, _ = o.meter.Int64Counter(
		"assistant.dispatch.processed",
		otelmetric.WithDescription("Dispatched assistant actions"),
	)
	o.dispatchDuration, _ = o.meter.Float64Histogram(
		"assistant.dispatch.duration",
		otelmetric.WithDescription("Assistant dispatch duration"),
		otelmetric.WithUnit("ms"),
	)
	return o
}

// RecordDispatch records one dispatcher outcome.
func (o *Observability) RecordDispatch(ctx context.Context, intent, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("status", status),
	)
	if o.dispatchCounter != nil {
		o.dispatchCounter.Add(ctx, 1, attrs)
	}
	if o.dispatchDuration != nil {
		o.dispatchDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// Tracing returns the tracer wrapper.
func (o *Observability) Tracing() *Tracing {
	if o == nil {
		return nil
	}
	return o.tracing
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	o.tracing.Shutdown(ctx)
}
