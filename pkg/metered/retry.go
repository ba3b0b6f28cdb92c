package metered

import (
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"

	"github.com/toyz/aspect/pkg/aspect"
)

// DefaultMaxRetries is used when a Retry has no limit set
const DefaultMaxRetries = 3

// Retry re-evaluates calls whose result carries an error, at most Limit
// times per call. Retry itself only keeps statistics: every call draws its
// attempts from the RetryCall returned by Call.
type Retry[R any] struct {
	limit     atomic.Int64
	retries   atomic.Uint64
	exhausted atomic.Uint64
}

// Call sets the number of retries and returns the aspect of one call. A
// limit below one selects DefaultMaxRetries.
func (r *Retry[R]) Call(limit int) *RetryCall[R] {
	r.limit.Store(int64(limit))
	return &RetryCall[R]{parent: r, max: r.max()}
}

func (r *Retry[R]) max() int64 {
	if n := r.limit.Load(); n > 0 {
		return n
	}
	return DefaultMaxRetries
}

// RetryCall is the retry aspect of a single call. It is not safe for
// concurrent use; each call gets its own.
type RetryCall[R any] struct {
	aspect.ReturnOnLeave[unit]

	parent   *Retry[R]
	max      int64
	attempts int64
}

// Enter starts an attempt
func (c *RetryCall[R]) Enter() unit {
	return unit{}
}

// OnResult advises Retry while the result carries an error and the call has
// retries left
func (c *RetryCall[R]) OnResult(_ unit, result R) aspect.Advice {
	if !failed(result) {
		return aspect.Return
	}

	if c.attempts >= c.max {
		c.parent.exhausted.Add(1)
		return aspect.Return
	}

	c.attempts++
	c.parent.retries.Add(1)
	return aspect.Retry
}

// Retries returns the number of re-evaluations
func (r *Retry[R]) Retries() uint64 {
	return r.retries.Load()
}

// Exhausted returns the number of calls that gave up with an error
func (r *Retry[R]) Exhausted() uint64 {
	return r.exhausted.Load()
}

// Observe exports the retry and exhaustion counts as <name>.count and
// <name>.exhausted
func (r *Retry[R]) Observe(meter metric.Meter, name string) error {
	if err := int64Counter(meter, name+".count", "Number of re-evaluations", func() int64 {
		return int64(r.Retries())
	}); err != nil {
		return err
	}
	return int64Counter(meter, name+".exhausted", "Calls that failed after every retry", func() int64 {
		return int64(r.Exhausted())
	})
}

type retrySnapshot struct {
	Retries   uint64 `yaml:"retries"`
	Exhausted uint64 `yaml:"exhausted"`
	Limit     int64  `yaml:"limit"`
}

// MarshalYAML snapshots the counters and the limit
func (r *Retry[R]) MarshalYAML() (interface{}, error) {
	return retrySnapshot{Retries: r.Retries(), Exhausted: r.Exhausted(), Limit: r.max()}, nil
}
