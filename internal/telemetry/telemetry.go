// Package telemetry records launcher metrics through OpenTelemetry.
//
// A nil *Recorder is valid and records nothing, so components can take one
// unconditionally.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MeterName is the instrumentation scope for all launcher instruments.
const MeterName = "pglauncher"

// Outcome labels.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeCopied   = "copied"
	OutcomeReused   = "reused"
	OutcomeSuccess  = "success"
	OutcomeDeclined = "declined"
)

// Recorder holds the launcher's instruments.
type Recorder struct {
	resolutions   metric.Int64Counter
	downloads     metric.Int64Counter
	provisions    metric.Int64Counter
	probeDuration metric.Float64Histogram
}

// NewRecorder creates the launcher instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	resolutions, err := meter.Int64Counter("pglauncher.resolve.total",
		metric.WithDescription("Discovery strategy attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	downloads, err := meter.Int64Counter("pglauncher.download.total",
		metric.WithDescription("Release asset downloads by outcome"),
	)
	if err != nil {
		return nil, err
	}

	provisions, err := meter.Int64Counter("pglauncher.provision.total",
		metric.WithDescription("Provisioning attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	probeDuration, err := meter.Float64Histogram("pglauncher.probe.duration",
		metric.WithDescription("Duration of binary version probes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		resolutions:   resolutions,
		downloads:     downloads,
		provisions:    provisions,
		probeDuration: probeDuration,
	}, nil
}

// Resolution counts one strategy attempt.
func (r *Recorder) Resolution(ctx context.Context, strategy, outcome string) {
	if r == nil {
		return
	}
	r.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome),
	))
}

// Download counts one download attempt.
func (r *Recorder) Download(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.downloads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Provision counts one provisioning attempt.
func (r *Recorder) Provision(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.provisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Probe records how long a version probe took.
func (r *Recorder) Probe(ctx context.Context, elapsed time.Duration, ok bool) {
	if r == nil {
		return
	}
	r.probeDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.Bool("ok", ok)))
}

// NewWriterProvider returns a meter provider exporting to w. Metrics are
// flushed when the provider is shut down.
func NewWriterProvider(w io.Writer) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(w),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("create stdout metric exporter: %w", err)
	}
	res := resource.NewSchemaless(attribute.String("service.name", MeterName))
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	), nil
}
