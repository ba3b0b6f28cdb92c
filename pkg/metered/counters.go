package metered

import (
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"

	"github.com/toyz/aspect/pkg/aspect"
)

// HitCount counts calls.
type HitCount[R any] struct {
	aspect.ReturnOnLeave[unit]
	hits atomic.Uint64
}

// Enter counts the call
func (h *HitCount[R]) Enter() unit {
	h.hits.Add(1)
	return unit{}
}

// OnResult returns the result
func (h *HitCount[R]) OnResult(unit, R) aspect.Advice {
	return aspect.Return
}

// Get returns the number of calls
func (h *HitCount[R]) Get() uint64 {
	return h.hits.Load()
}

// Observe exports the count as an observable counter
func (h *HitCount[R]) Observe(meter metric.Meter, name string) error {
	return int64Counter(meter, name, "Number of calls", func() int64 {
		return int64(h.Get())
	})
}

// MarshalYAML snapshots the count
func (h *HitCount[R]) MarshalYAML() (interface{}, error) {
	return h.Get(), nil
}

// ErrorCount counts calls whose result carries an error.
type ErrorCount[R any] struct {
	aspect.ReturnOnLeave[unit]
	errors atomic.Uint64
}

// Enter does nothing; errors are counted once the result is known
func (e *ErrorCount[R]) Enter() unit {
	return unit{}
}

// OnResult counts result when it carries an error
func (e *ErrorCount[R]) OnResult(_ unit, result R) aspect.Advice {
	if failed(result) {
		e.errors.Add(1)
	}
	return aspect.Return
}

// Get returns the number of failed calls
func (e *ErrorCount[R]) Get() uint64 {
	return e.errors.Load()
}

// Observe exports the count as an observable counter
func (e *ErrorCount[R]) Observe(meter metric.Meter, name string) error {
	return int64Counter(meter, name, "Number of calls returning an error", func() int64 {
		return int64(e.Get())
	})
}

// MarshalYAML snapshots the count
func (e *ErrorCount[R]) MarshalYAML() (interface{}, error) {
	return e.Get(), nil
}

// InFlight tracks the number of calls in progress. Woven code evaluates
// measured bodies through aspect.Scoped for it, so a panicking call is not
// left counted.
type InFlight[R any] struct {
	current atomic.Int64
}

// Enter marks a call as started
func (f *InFlight[R]) Enter() unit {
	f.current.Add(1)
	return unit{}
}

// LeaveScope ends a call that exited without a result
func (f *InFlight[R]) LeaveScope(unit) aspect.Advice {
	f.current.Add(-1)
	return aspect.Return
}

// OnResult ends a call
func (f *InFlight[R]) OnResult(unit, R) aspect.Advice {
	f.current.Add(-1)
	return aspect.Return
}

// Get returns the number of calls in progress
func (f *InFlight[R]) Get() int64 {
	return f.current.Load()
}

// Observe exports the number of calls in progress as a gauge
func (f *InFlight[R]) Observe(meter metric.Meter, name string) error {
	return int64Gauge(meter, name, "Number of calls in progress", f.Get)
}

// MarshalYAML snapshots the number of calls in progress
func (f *InFlight[R]) MarshalYAML() (interface{}, error) {
	return f.Get(), nil
}
