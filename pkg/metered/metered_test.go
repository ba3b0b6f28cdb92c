package metered

import (
	"bytes"
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/toyz/aspect/pkg/aspect"
)

// fakeClock replaces clock for the duration of a test
func fakeClock(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	now := start
	clock = func() time.Time { return now }
	t.Cleanup(func() { clock = time.Now })
	return &now
}

var errBoom = stderrors.New("boom")

func TestHitCount(t *testing.T) {
	var hits HitCount[int]
	for i := 0; i < 3; i++ {
		v := aspect.Intercept[unit, int](&hits, func() int { return i })
		assert.Equal(t, i, v)
	}
	assert.Equal(t, uint64(3), hits.Get())
}

func TestErrorCount(t *testing.T) {
	var errs ErrorCount[aspect.Pair[int, error]]

	call := func(fail bool) (int, error) {
		return aspect.InterceptErr[unit, int](&errs, func() (int, error) {
			if fail {
				return 0, errBoom
			}
			return 1, nil
		})
	}

	_, err := call(true)
	assert.ErrorIs(t, err, errBoom)
	_, err = call(false)
	assert.NoError(t, err)
	_, _ = call(true)

	assert.Equal(t, uint64(2), errs.Get())
}

func TestErrorCount_PlainError(t *testing.T) {
	var errs ErrorCount[error]

	aspect.Intercept[unit, error](&errs, func() error { return errBoom })
	aspect.Intercept[unit, error](&errs, func() error { return nil })

	assert.Equal(t, uint64(1), errs.Get())
}

func TestInFlight(t *testing.T) {
	var flight InFlight[int]

	inside := aspect.Intercept[unit, int](&flight, func() int {
		return int(flight.Get())
	})
	assert.Equal(t, 1, inside)
	assert.Equal(t, int64(0), flight.Get())
}

func TestInFlight_Panic(t *testing.T) {
	var flight InFlight[int]

	assert.Panics(t, func() {
		aspect.InterceptScoped[unit, int](&flight, func() int { panic("boom") })
	})
	assert.Equal(t, int64(0), flight.Get())
}

func TestResponseTime(t *testing.T) {
	now := fakeClock(t, time.Unix(1000, 0))
	var rt ResponseTime[string]

	out := aspect.Intercept[time.Time, string](&rt, func() string {
		*now = now.Add(3 * time.Millisecond)
		return "done"
	})
	assert.Equal(t, "done", out)
	assert.Equal(t, uint64(1), rt.Count())
	assert.Equal(t, 3*time.Millisecond, rt.Mean())
	assert.Equal(t, 3*time.Millisecond, rt.Max())
	assert.Equal(t, 4096*time.Microsecond, rt.Quantile(0.5))
}

func TestResponseTime_Buckets(t *testing.T) {
	tests := []struct {
		d      time.Duration
		bucket int
	}{
		{0, 0},
		{time.Microsecond, 0},
		{time.Microsecond + 1, 1},
		{time.Millisecond, 10},
		{time.Second, 20},
		{time.Minute, 24},
	}

	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			assert.Equal(t, tt.bucket, bucketFor(tt.d))
		})
	}
}

func TestResponseTime_QuantileBounds(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("quantiles are ordered and bound the mean", prop.ForAll(
		func(samples []int64) bool {
			var rt ResponseTime[int]
			for _, s := range samples {
				rt.Record(time.Duration(s) * time.Microsecond)
			}

			p50, p99 := rt.Quantile(0.5), rt.Quantile(0.99)
			return p50 <= p99 && rt.Max() <= rt.Quantile(1)*2 && rt.Count() == uint64(len(samples))
		},
		gen.SliceOfN(50, gen.Int64Range(0, 10_000_000)),
	))

	properties.TestingRun(t)
}

func TestThroughput(t *testing.T) {
	now := fakeClock(t, time.Unix(6000, 0))
	var tp Throughput[struct{}]

	for i := 0; i < 120; i++ {
		tp.Tick(*now)
	}
	*now = now.Add(time.Second)
	for i := 0; i < 60; i++ {
		tp.Tick(*now)
	}

	*now = now.Add(time.Second)
	assert.InDelta(t, 3.0, tp.Rate(), 0.0001)
	assert.Equal(t, uint64(120), tp.Peak())

	// slots older than the window no longer count
	*now = now.Add(2 * time.Minute)
	assert.Zero(t, tp.Rate())
}

func TestRetry(t *testing.T) {
	t.Run("succeeds within the limit", func(t *testing.T) {
		var retry Retry[error]
		calls := 0

		err := aspect.Intercept[unit, error](retry.Call(3), func() error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, uint64(2), retry.Retries())
		assert.Zero(t, retry.Exhausted())
	})

	t.Run("gives up after the limit", func(t *testing.T) {
		var retry Retry[error]
		calls := 0

		err := aspect.Intercept[unit, error](retry.Call(2), func() error {
			calls++
			return errBoom
		})

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 3, calls)
		assert.Equal(t, uint64(1), retry.Exhausted())
	})

	t.Run("default limit", func(t *testing.T) {
		var retry Retry[aspect.Pair[int, error]]
		calls := 0

		_, err := aspect.InterceptErr[unit, int](retry.Call(0), func() (int, error) {
			calls++
			return 0, errBoom
		})

		assert.Error(t, err)
		assert.Equal(t, DefaultMaxRetries+1, calls)
	})

	t.Run("successful callers do not reset a failing call", func(t *testing.T) {
		var retry Retry[error]
		failing := retry.Call(1)

		told := 0
		for i := 0; i < 10; i++ {
			if failing.OnResult(failing.Enter(), errBoom) == aspect.Retry {
				told++
			}
			other := retry.Call(1)
			assert.Equal(t, aspect.Return, other.OnResult(other.Enter(), nil))
		}

		assert.Equal(t, 1, told)
		assert.Equal(t, uint64(1), retry.Retries())
		assert.Equal(t, uint64(9), retry.Exhausted())
	})

	t.Run("concurrent calls keep their own budget", func(t *testing.T) {
		var retry Retry[error]
		var attempts [16]atomic.Int64

		var g errgroup.Group
		for i := range attempts {
			g.Go(func() error {
				return aspect.Intercept[unit, error](retry.Call(2), func() error {
					if i%2 == 0 {
						attempts[i].Add(1)
						return errBoom
					}
					return nil
				})
			})
		}
		assert.ErrorIs(t, g.Wait(), errBoom)

		for i := range attempts {
			if i%2 == 0 {
				assert.Equal(t, int64(3), attempts[i].Load(), "call %d", i)
			}
		}
		assert.Equal(t, uint64(16), retry.Retries())
		assert.Equal(t, uint64(8), retry.Exhausted())
	})
}

type getMetrics struct {
	HitCount     HitCount[int]     `yaml:"hit_count"`
	ResponseTime ResponseTime[int] `yaml:"response_time"`
}

type serviceMetrics struct {
	Get    getMetrics `yaml:"get"`
	Ignore int
	Hidden HitCount[int] `yaml:"-"`
	Errors ErrorCount[error]
}

func TestWalk(t *testing.T) {
	var m serviceMetrics

	var paths []string
	err := Walk(&m, func(path []string, _ Metric) error {
		paths = append(paths, joinPath(path))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"get.hit_count", "get.response_time", "errors"}, paths)

	assert.Error(t, Walk(serviceMetrics{}, func([]string, Metric) error { return nil }))
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

func TestWriteYAML(t *testing.T) {
	var m serviceMetrics
	m.Get.HitCount.Enter()
	m.Get.HitCount.Enter()
	m.Get.ResponseTime.Record(time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, &m))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	get := decoded["get"].(map[string]interface{})
	assert.Equal(t, 2, get["hit_count"])
	rt := get["response_time"].(map[string]interface{})
	assert.Equal(t, 1, rt["count"])
	assert.Equal(t, "1ms", rt["mean"])
	assert.Equal(t, 0, decoded["errors"])

	assert.Less(t, bytes.Index(buf.Bytes(), []byte("get:")), bytes.Index(buf.Bytes(), []byte("errors:")))
}

func TestObserve(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("metered-test")

	var m serviceMetrics
	m.Get.HitCount.Enter()
	m.Get.HitCount.Enter()
	m.Errors.OnResult(unit{}, errBoom)

	require.NoError(t, Observe(meter, "svc", &m))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) == 1 {
			sums[m.Name] = sum.DataPoints[0].Value
		}
	}

	assert.Equal(t, int64(2), sums["svc.get.hit_count"])
	assert.Equal(t, int64(1), sums["svc.errors"])
	assert.Equal(t, int64(0), sums["svc.get.response_time.count"])
}

func TestObserve_Noop(t *testing.T) {
	var m serviceMetrics
	assert.NoError(t, Observe(noop.NewMeterProvider().Meter("noop"), "", &m))
}

func TestFailed(t *testing.T) {
	assert.False(t, failed(nil))
	assert.False(t, failed(1))
	assert.True(t, failed(errBoom))
	assert.True(t, failed(aspect.Of(0, errBoom)))
	assert.False(t, failed(aspect.Of[int, error](0, nil)))
}
