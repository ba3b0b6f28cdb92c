// Package metered provides metric aspects for woven methods.
//
// Every metric is an aspect.OnResult over the result type R of the method it
// measures, so one value type can measure methods of any shape. The zero
// value of each metric is ready to use. Metrics can be exported through
// OpenTelemetry with Observe and written as YAML with WriteYAML.
package metered

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/toyz/aspect/pkg/aspect"
)

// Metric is implemented by every metric of this package.
type Metric interface {
	// Observe registers observable instruments named after name
	Observe(meter metric.Meter, name string) error

	// MarshalYAML returns a snapshot of the metric
	MarshalYAML() (interface{}, error)
}

// unit is the enter value of metrics that keep no per-call state
type unit = struct{}

// clock is replaced in tests
var clock = time.Now

// failed reports whether a method result carries an error. Results are an
// error, a value with an Err method such as aspect.Pair, or neither.
func failed(result interface{}) bool {
	switch r := result.(type) {
	case nil:
		return false
	case error:
		return r != nil
	case interface{ Err() error }:
		return r.Err() != nil
	}
	return false
}

func int64Gauge(meter metric.Meter, name, description string, value func() int64) error {
	_, err := meter.Int64ObservableGauge(name,
		metric.WithDescription(description),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(value())
			return nil
		}),
	)
	return err
}

func int64Counter(meter metric.Meter, name, description string, value func() int64) error {
	_, err := meter.Int64ObservableCounter(name,
		metric.WithDescription(description),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(value())
			return nil
		}),
	)
	return err
}

func float64Gauge(meter metric.Meter, name, description, unit string, value func() float64) error {
	_, err := meter.Float64ObservableGauge(name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(value())
			return nil
		}),
	)
	return err
}

var (
	_ aspect.OnResult[unit, int]         = (*HitCount[int])(nil)
	_ aspect.OnResult[unit, error]       = (*ErrorCount[error])(nil)
	_ aspect.OnResult[unit, int]         = (*InFlight[int])(nil)
	_ aspect.OnResult[time.Time, string] = (*ResponseTime[string])(nil)
	_ aspect.OnResult[unit, struct{}]    = (*Throughput[struct{}])(nil)
	_ aspect.OnResult[unit, error]       = (*RetryCall[error])(nil)

	_ Metric = (*HitCount[int])(nil)
	_ Metric = (*ErrorCount[int])(nil)
	_ Metric = (*InFlight[int])(nil)
	_ Metric = (*ResponseTime[int])(nil)
	_ Metric = (*Throughput[int])(nil)
	_ Metric = (*Retry[int])(nil)
)
