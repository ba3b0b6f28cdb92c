package metered

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/toyz/aspect/pkg/aspect"
)

// throughputWindow is the number of one second slots kept
const throughputWindow = 60

// Throughput measures calls per second over the last minute.
type Throughput[R any] struct {
	aspect.ReturnOnLeave[unit]

	mu     sync.Mutex
	second [throughputWindow]int64 // unix second of each slot
	hits   [throughputWindow]uint64
	peak   uint64
}

// Enter records the call in the current second
func (tp *Throughput[R]) Enter() unit {
	tp.Tick(clock())
	return unit{}
}

// OnResult returns the result
func (tp *Throughput[R]) OnResult(unit, R) aspect.Advice {
	return aspect.Return
}

// Tick records one call at now
func (tp *Throughput[R]) Tick(now time.Time) {
	sec := now.Unix()
	slot := int(sec % throughputWindow)
	if slot < 0 {
		slot += throughputWindow
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.second[slot] != sec {
		tp.second[slot] = sec
		tp.hits[slot] = 0
	}
	tp.hits[slot]++
	if tp.hits[slot] > tp.peak {
		tp.peak = tp.hits[slot]
	}
}

// Rate returns the mean calls per second over the window ending at the last
// completed second
func (tp *Throughput[R]) Rate() float64 {
	last := clock().Unix() - 1

	tp.mu.Lock()
	defer tp.mu.Unlock()

	var total uint64
	for i := range tp.second {
		if tp.second[i] <= last && tp.second[i] > last-throughputWindow {
			total += tp.hits[i]
		}
	}
	return float64(total) / throughputWindow
}

// Peak returns the most calls seen in one second
func (tp *Throughput[R]) Peak() uint64 {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.peak
}

// Observe exports the rate and the peak as gauges
func (tp *Throughput[R]) Observe(meter metric.Meter, name string) error {
	if err := float64Gauge(meter, name, "Calls per second over the last minute", "{call}/s", tp.Rate); err != nil {
		return err
	}
	return int64Gauge(meter, name+".peak", "Most calls seen in one second", func() int64 {
		return int64(tp.Peak())
	})
}

type throughputSnapshot struct {
	Rate float64 `yaml:"rate"`
	Peak uint64  `yaml:"peak"`
}

// MarshalYAML snapshots the rate and the peak
func (tp *Throughput[R]) MarshalYAML() (interface{}, error) {
	return throughputSnapshot{Rate: tp.Rate(), Peak: tp.Peak()}, nil
}
