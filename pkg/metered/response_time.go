package metered

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/toyz/aspect/pkg/aspect"
)

// responseTimeBuckets are the upper bounds of the latency histogram, doubling
// from one microsecond to about 8.4 seconds. Slower calls land in the
// overflow bucket.
var responseTimeBuckets = func() []time.Duration {
	bounds := make([]time.Duration, 24)
	for i := range bounds {
		bounds[i] = time.Microsecond << uint(i)
	}
	return bounds
}()

// ResponseTime records how long calls take in a fixed histogram.
type ResponseTime[R any] struct {
	aspect.ReturnOnLeave[time.Time]

	counts [25]atomic.Uint64
	total  atomic.Int64 // nanoseconds
	calls  atomic.Uint64
	max    atomic.Int64
}

// Enter reads the clock
func (rt *ResponseTime[R]) Enter() time.Time {
	return clock()
}

// OnResult records the time since start
func (rt *ResponseTime[R]) OnResult(start time.Time, _ R) aspect.Advice {
	rt.Record(clock().Sub(start))
	return aspect.Return
}

// Record adds one observation
func (rt *ResponseTime[R]) Record(d time.Duration) {
	if d < 0 {
		d = 0
	}

	rt.counts[bucketFor(d)].Add(1)
	rt.total.Add(int64(d))
	rt.calls.Add(1)

	for {
		cur := rt.max.Load()
		if int64(d) <= cur || rt.max.CompareAndSwap(cur, int64(d)) {
			break
		}
	}
}

func bucketFor(d time.Duration) int {
	for i, bound := range responseTimeBuckets {
		if d <= bound {
			return i
		}
	}
	return len(responseTimeBuckets)
}

// Count returns the number of observations
func (rt *ResponseTime[R]) Count() uint64 {
	return rt.calls.Load()
}

// Mean returns the average duration, zero when nothing was recorded
func (rt *ResponseTime[R]) Mean() time.Duration {
	n := rt.calls.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(rt.total.Load() / int64(n))
}

// Max returns the slowest observation
func (rt *ResponseTime[R]) Max() time.Duration {
	return time.Duration(rt.max.Load())
}

// Quantile returns the upper bound of the bucket holding quantile q (0..1).
// Observations in the overflow bucket report Max.
func (rt *ResponseTime[R]) Quantile(q float64) time.Duration {
	n := rt.calls.Load()
	if n == 0 {
		return 0
	}

	rank := uint64(q*float64(n) + 0.5)
	if rank < 1 {
		rank = 1
	}

	var seen uint64
	for i := range rt.counts {
		seen += rt.counts[i].Load()
		if seen >= rank {
			if i < len(responseTimeBuckets) {
				return responseTimeBuckets[i]
			}
			break
		}
	}
	return rt.Max()
}

// Observe exports the call count and the mean and maximum durations
func (rt *ResponseTime[R]) Observe(meter metric.Meter, name string) error {
	if err := int64Counter(meter, name+".count", "Number of timed calls", func() int64 {
		return int64(rt.Count())
	}); err != nil {
		return err
	}
	if err := float64Gauge(meter, name+".mean", "Mean call duration", "s", func() float64 {
		return rt.Mean().Seconds()
	}); err != nil {
		return err
	}
	return float64Gauge(meter, name+".max", "Slowest call duration", "s", func() float64 {
		return rt.Max().Seconds()
	})
}

type responseTimeSnapshot struct {
	Count uint64 `yaml:"count"`
	Mean  string `yaml:"mean"`
	P50   string `yaml:"p50"`
	P99   string `yaml:"p99"`
	Max   string `yaml:"max"`
}

// MarshalYAML snapshots the histogram summary
func (rt *ResponseTime[R]) MarshalYAML() (interface{}, error) {
	return responseTimeSnapshot{
		Count: rt.Count(),
		Mean:  rt.Mean().String(),
		P50:   rt.Quantile(0.5).String(),
		P99:   rt.Quantile(0.99).String(),
		Max:   rt.Max().String(),
	}, nil
}

// String summarizes the recorded durations
func (rt *ResponseTime[R]) String() string {
	return fmt.Sprintf("count=%d mean=%s max=%s", rt.Count(), rt.Mean(), rt.Max())
}
