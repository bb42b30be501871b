package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Telemetry holds the metric instruments of the transfer agent.
type Telemetry struct {
	meterProvider metric.MeterProvider
	meter         metric.Meter
	exporter      *prometheus.Exporter

	chunksTotal     metric.Int64Counter
	chunkBytes      metric.Int64Counter
	chunkDuration   metric.Float64Histogram
	transfersActive metric.Int64UpDownCounter
	outageRecovered metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
}

// New creates a telemetry instance backed by a Prometheus exporter.
// When disabled, all recording methods are no-ops.
func New(cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		)),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	t := &Telemetry{
		meterProvider: meterProvider,
		meter:         otel.Meter(cfg.ServiceName),
		exporter:      exporter,
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	if t.chunksTotal, err = t.meter.Int64Counter("chunks_total",
		metric.WithDescription("Chunk sub-requests by operation and status")); err != nil {
		return err
	}

	if t.chunkBytes, err = t.meter.Int64Counter("chunk_bytes_total",
		metric.WithDescription("Bytes moved by chunk sub-requests")); err != nil {
		return err
	}

	if t.chunkDuration, err = t.meter.Float64Histogram("chunk_duration_seconds",
		metric.WithDescription("Chunk sub-request duration")); err != nil {
		return err
	}

	if t.transfersActive, err = t.meter.Int64UpDownCounter("transfers_active",
		metric.WithDescription("File transfers currently in flight")); err != nil {
		return err
	}

	if t.outageRecovered, err = t.meter.Int64Counter("outage_recoveries_total",
		metric.WithDescription("Sustained outages that ended")); err != nil {
		return err
	}

	return nil
}

// RecordChunk records one finished chunk sub-request.
func (t *Telemetry) RecordChunk(op, status string, bytes int64, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("status", status),
	)

	if t.chunksTotal != nil {
		t.chunksTotal.Add(context.Background(), 1, attrs)
	}

	if t.chunkBytes != nil {
		t.chunkBytes.Add(context.Background(), bytes, attrs)
	}

	if t.chunkDuration != nil {
		t.chunkDuration.Record(context.Background(), duration.Seconds(), attrs)
	}
}

// IncrementActiveTransfers increments the active transfer gauge.
func (t *Telemetry) IncrementActiveTransfers() {
	if t.transfersActive != nil {
		t.transfersActive.Add(context.Background(), 1)
	}
}

// DecrementActiveTransfers decrements the active transfer gauge.
func (t *Telemetry) DecrementActiveTransfers() {
	if t.transfersActive != nil {
		t.transfersActive.Add(context.Background(), -1)
	}
}

// RecordOutageRecovery counts a consumed recovery edge.
func (t *Telemetry) RecordOutageRecovery() {
	if t.outageRecovered != nil {
		t.outageRecovered.Add(context.Background(), 1)
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.Handler()
}
